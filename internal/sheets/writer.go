package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/axgtan77/anson-catalog-automation/internal/common"
	"github.com/axgtan77/anson-catalog-automation/internal/model"
	"github.com/axgtan77/anson-catalog-automation/internal/service"
)

// Writer implements service.CatalogPublisher for Google Sheets.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a new Google Sheets catalog writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: svc,
		logger:  logger,
	}, nil
}

// Publish replaces the configured sheet's contents with the catalog rows.
func (w *Writer) Publish(ctx context.Context, rows []model.CatalogRow) error {
	w.logger.Info("publishing catalog",
		"spreadsheet_id", w.config.SpreadsheetID,
		"rows", len(rows))

	retryOpts := service.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	if err := common.WithRetry(ctx, func() error {
		return w.clearSheet(ctx)
	}, retryOpts); err != nil {
		return fmt.Errorf("failed to clear sheet: %w", err)
	}

	values := w.prepareValues(rows)
	for start := 0; start < len(values); start += w.config.BatchSize {
		end := start + w.config.BatchSize
		if end > len(values) {
			end = len(values)
		}
		batch := values[start:end]
		offset := start

		if err := common.WithRetry(ctx, func() error {
			return w.writeBatch(ctx, batch, offset)
		}, retryOpts); err != nil {
			return fmt.Errorf("failed to write rows %d-%d: %w", start, end, err)
		}
	}

	w.logger.Info("catalog published", "rows_written", len(values))
	return nil
}

func (w *Writer) clearSheet(ctx context.Context) error {
	_, err := w.service.Spreadsheets.Values.Clear(
		w.config.SpreadsheetID, w.config.SheetName,
		&sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

func (w *Writer) writeBatch(ctx context.Context, values [][]any, offset int) error {
	writeRange := fmt.Sprintf("%s!A%d", w.config.SheetName, offset+1)
	_, err := w.service.Spreadsheets.Values.Update(
		w.config.SpreadsheetID, writeRange,
		&sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (w *Writer) prepareValues(rows []model.CatalogRow) [][]any {
	values := make([][]any, 0, len(rows)+1)
	values = append(values, []any{
		"Key", "Description", "Name", "Brand", "Size", "Department",
		"Category", "Barcode", "Retail", "Pack", "Case", "Last Modified",
	})

	for _, r := range rows {
		values = append(values, []any{
			r.Key, r.Description, r.Name, r.Brand, r.Size, r.Department,
			r.Category, r.Barcode,
			renderPrice(r.PriceRetail), renderPrice(r.PricePack), renderPrice(r.PriceCase),
			r.LastModified.Format("2006-01-02"),
		})
	}
	return values
}

func renderPrice(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}
		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}
		tokenSource = oauthConfig.TokenSource(ctx, token)
	}

	svc, err := sheets.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return svc, nil
}
