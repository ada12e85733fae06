// Package google mirrors ledger rollups and budget proposals to a Google
// Sheets dashboard using service account credentials.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"bilancio/internal/core"
	ports "bilancio/internal/export"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc            *gsheet.Service
	spreadsheetID  string
	summarySheet   string
	proposalsSheet string
}

// Ensure interface conformance
var (
	_ ports.SummaryWriter  = (*Client)(nil)
	_ ports.ProposalWriter = (*Client)(nil)
)

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus service account credentials via
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_SHEET_NAME (default "Summary"),
// GOOGLE_PROPOSALS_SHEET_NAME (default "Proposals"). Sheet names are
// prefixed with the current year.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	summaryBase := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if summaryBase == "" {
		summaryBase = "Summary"
	}
	proposalsBase := strings.TrimSpace(os.Getenv("GOOGLE_PROPOSALS_SHEET_NAME"))
	if proposalsBase == "" {
		proposalsBase = "Proposals"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	year := time.Now().Year()
	return &Client{
		svc:            svc,
		spreadsheetID:  spreadsheetID,
		summarySheet:   yearPrefixedName(summaryBase, year),
		proposalsSheet: yearPrefixedName(proposalsBase, year),
	}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// yearPrefixedName returns "<year> <base>" unless base already carries a
// year prefix.
func yearPrefixedName(base string, year int) string {
	prefix := fmt.Sprintf("%d ", year)
	if strings.HasPrefix(base, prefix) {
		return base
	}
	return prefix + base
}

// summaryKey identifies one mirrored row: user + month.
func summaryKey(userID, month string) string {
	return userID + " " + month
}

// WriteSummary upserts the row keyed by user+month in the summary sheet.
// Columns: Key, User, Month, Income, Expense, Net.
func (c *Client) WriteSummary(ctx context.Context, userID string, s core.MonthlySummary) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	key := summaryKey(userID, s.Month)
	row, err := c.findRow(ctx, c.summarySheet, key)
	if err != nil {
		return "", err
	}

	values := [][]any{{
		key,
		userID,
		s.Month,
		core.FormatMinor(s.IncomeMinor),
		core.FormatMinor(s.ExpenseMinor),
		core.FormatMinor(s.NetMinor),
	}}
	rng := fmt.Sprintf("%s!A%d:F%d", c.summarySheet, row, row)
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update summary row in %s: %w", c.summarySheet, err)
	}

	slog.InfoContext(ctx, "Mirrored monthly summary",
		"user_id", userID,
		"month", s.Month,
		"row", row)
	return rng, nil
}

// WriteProposals appends one row per proposal for the requested period.
// Columns: User, Period, Category, Limit, Confidence, Rationale.
func (c *Client) WriteProposals(ctx context.Context, userID string, year, month int, proposals []core.BudgetProposal) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if len(proposals) == 0 {
		return nil
	}

	period := core.MonthKeyOf(year, month)
	values := make([][]any, 0, len(proposals))
	for _, p := range proposals {
		values = append(values, []any{
			userID,
			period,
			p.CategoryName,
			core.FormatMinor(p.LimitMinor),
			p.Confidence,
			p.Rationale,
		})
	}

	rng := fmt.Sprintf("%s!A:F", c.proposalsSheet)
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append proposals to %s: %w", c.proposalsSheet, err)
	}

	slog.InfoContext(ctx, "Mirrored budget proposals",
		"user_id", userID,
		"period", period,
		"count", len(proposals))
	return nil
}

// findRow scans the key column for an existing row, returning its 1-based
// index, or the first empty row when the key is absent.
func (c *Client) findRow(ctx context.Context, sheet, key string) (int, error) {
	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read key column of %s: %w", sheet, err)
	}
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == key {
			return i + 1, nil
		}
	}
	return len(resp.Values) + 1, nil
}
