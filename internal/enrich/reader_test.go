package enrich

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCompleteRow(t *testing.T) {
	csv := strings.Join([]string{
		"MERKEY,DESCRIPTION,NAME,BRAND,SIZE,UNIT,PACK_QTY,DEPARTMENT,CATEGORY,BARCD1,BARCD2",
		`1000001,BREAD WHITE 600G,White Bread,Gardenia,600,g,12,Grocery,Bakery,9556001234567,`,
	}, "\n")

	rows, err := Read(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "1000001", row.Key)
	assert.Equal(t, "White Bread", row.Name)
	assert.Equal(t, "Gardenia", row.Brand)
	assert.Equal(t, 12, row.PackQuantity)
	assert.Equal(t, []string{"9556001234567"}, row.Barcodes)
}

func TestReadColumnsInAnyOrder(t *testing.T) {
	csv := strings.Join([]string{
		"NAME,MERKEY,IGNORED_EXTRA,BRAND",
		"White Bread,1000001,whatever,Gardenia",
	}, "\n")

	rows, err := Read(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1000001", rows[0].Key)
	assert.Equal(t, "Gardenia", rows[0].Brand)
}

func TestReadRequiresKeyColumn(t *testing.T) {
	_, err := Read(strings.NewReader("NAME,BRAND\na,b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MERKEY")
}

func TestReadRejectsBadPackQuantity(t *testing.T) {
	csv := "MERKEY,PACK_QTY\n1000001,dozen"
	_, err := Read(strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pack quantity")
}

func TestReadQualityDerivation(t *testing.T) {
	csv := strings.Join([]string{
		"MERKEY,DESCRIPTION,NAME,BRAND,SIZE,CATEGORY",
		"1000001,BREAD WHITE 600G,White Bread,Gardenia,600,Bakery",
		"1000002,BREAD WHEAT 600G,,,,",
	}, "\n")

	rows, err := Read(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	quality, needsMore := rows[0].ComputeQuality()
	assert.Equal(t, "COMPLETE", string(quality))
	assert.False(t, needsMore)

	quality, needsMore = rows[1].ComputeQuality()
	assert.Equal(t, "NEEDS_NAME", string(quality))
	assert.True(t, needsMore)
}
