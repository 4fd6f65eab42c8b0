package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/axgtan77/anson-catalog-automation/internal/cli"
	"github.com/axgtan77/anson-catalog-automation/internal/dbf"
)

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Dump the structure and sample records of a DBF export",
		Long: `Print a price-master export's header, field layout and a sample of its
records without touching the catalog. Useful when the merchandising system
changes its export layout or a file looks damaged.`,
		Args: cobra.ExactArgs(1),
		RunE: runInspect,
	}

	cmd.Flags().IntP("records", "n", 5, "Number of records to print (0 for none)")

	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("records")

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer func() { _ = f.Close() }()

	reader, err := dbf.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	fields := reader.Fields()
	fmt.Println(cli.FormatInfo(fmt.Sprintf("%s: %d records, %d fields",
		args[0], reader.RecordCount(), len(fields))))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tTYPE\tLENGTH\tDECIMALS")
	for _, fd := range fields {
		fmt.Fprintf(w, "%s\t%c\t%d\t%d\n", fd.Name, fd.Type, fd.Length, fd.Decimals)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	printed := 0
	for printed < limit {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}
		printed++
		fmt.Printf("\nrecord %d", rec.RecNo)
		if rec.Warning {
			fmt.Printf(" %s", cli.FormatWarning("(decode warnings)"))
		}
		fmt.Println()
		for _, fd := range fields {
			v, ok := rec.Field(fd.Name)
			if !ok {
				continue
			}
			fmt.Printf("  %-12s %s\n", fd.Name, renderValue(v))
		}
	}

	if reader.DeletedCount() > 0 {
		fmt.Println()
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d deleted records skipped", reader.DeletedCount())))
	}
	return nil
}

func renderValue(v dbf.Value) string {
	switch {
	case v.Invalid:
		return cli.FormatError("<invalid>")
	case !v.Present:
		return "<blank>"
	}
	switch v.Type {
	case dbf.TypeNumeric:
		return fmt.Sprintf("%g", v.Number)
	case dbf.TypeDate:
		return v.Date.Format("2006-01-02")
	case dbf.TypeLogical:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return fmt.Sprintf("%q", v.Text)
	}
}
