// Package google writes reports to a Google Sheets spreadsheet, authenticated
// with either a service account or a saved OAuth user token.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"canteen/internal/log"
	"canteen/internal/report"
	"canteen/internal/sheets"
)

const defaultSheetName = "Report"

type Config struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string

	// OAuthTokenFile switches to user credentials obtained by
	// canteen-sheets-auth; the client secret is then required too.
	OAuthTokenFile  string
	OAuthClientJSON string
	OAuthClientFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var _ sheets.ReportWriter = (*Client)(nil)

// New creates a Sheets client. Without an OAuth token file it authenticates
// with service account credentials, falling back to
// GOOGLE_APPLICATION_CREDENTIALS when neither credential field is set.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	var opt goption.ClientOption
	if strings.TrimSpace(cfg.OAuthTokenFile) != "" {
		ts, err := userTokenSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opt = goption.WithTokenSource(ts)
	} else {
		creds, err := loadCredentials(cfg)
		if err != nil {
			return nil, err
		}
		opt = goption.WithCredentialsJSON(creds)
	}

	svc, err := gsheet.NewService(ctx, opt, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = defaultSheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        log.NewDefault().WithComponent(log.ComponentSheets),
	}
}

func loadCredentials(cfg Config) ([]byte, error) {
	if js := strings.TrimSpace(cfg.CredentialsJSON); js != "" {
		return []byte(js), nil
	}
	path := strings.TrimSpace(cfg.CredentialsFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// WriteReport clears the report sheet and writes the new grid from A1.
func (c *Client) WriteReport(ctx context.Context, rep report.Report) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:Z", c.sheetName)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	vr := &gsheet.ValueRange{Values: sheets.ReportRows(rep)}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.sheetName+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update sheet %s: %w", c.sheetName, err)
	}

	c.logger.InfoContext(ctx, "Report written to sheet",
		log.FieldSheetsRange, resp.UpdatedRange,
		log.FieldStartDate, rep.Range.Start.String(),
		log.FieldEndDate, rep.Range.End.String(),
		"rows", resp.UpdatedRows)
	return resp.UpdatedRange, nil
}
