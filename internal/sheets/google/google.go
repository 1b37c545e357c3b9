package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cashflow/internal/cache"
	"cashflow/internal/core"
	applog "cashflow/internal/log"
	ports "cashflow/internal/sheets"
)

const fetchAllKey = "all"

var _ ports.SpendLogMirror = (*Client)(nil)

// valuesAPI is the slice of the Sheets values API the client needs.
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error
	Append(ctx context.Context, spreadsheetID, rng string, values [][]any) error
}

// Options configures a Client.
type Options struct {
	SpreadsheetID     string
	SheetName         string
	RequestsPerMinute int
	CacheTTL          time.Duration
	// Location renders RecordedAt timestamps.
	Location *time.Location
}

// Client mirrors daily spend logs into one worksheet, one row per date.
type Client struct {
	values        valuesAPI
	spreadsheetID string
	sheet         string
	loc           *time.Location
	limiter       *rate.Limiter
	cache         *cache.TTL[[]core.DailySpendLog]
	logger        *applog.Logger

	mu           sync.Mutex
	headersReady bool
}

// New creates a Sheets client using Service Account credentials from the
// environment.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(sheetsValues{svc: svc}, opts), nil
}

func newClient(values valuesAPI, opts Options) *Client {
	if opts.SheetName == "" {
		opts.SheetName = "Spends"
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 60
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	burst := opts.RequestsPerMinute / 10
	if burst < 1 {
		burst = 1
	}
	return &Client{
		values:        values,
		spreadsheetID: opts.SpreadsheetID,
		sheet:         opts.SheetName,
		loc:           opts.Location,
		limiter:       rate.NewLimiter(rate.Limit(float64(opts.RequestsPerMinute)/60.0), burst),
		cache:         cache.New[[]core.DailySpendLog](opts.CacheTTL),
		logger:        applog.Default(applog.ComponentSheets),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	logger := applog.Default(applog.ComponentSheets)
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		logger.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		logger.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
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

// FetchAll returns every log in the worksheet, served from cache while fresh.
func (c *Client) FetchAll(ctx context.Context) ([]core.DailySpendLog, error) {
	if cached, ok := c.cache.Get(fetchAllKey); ok {
		return append([]core.DailySpendLog(nil), cached...), nil
	}
	if err := c.ensureHeaders(ctx); err != nil {
		return nil, err
	}

	rng := fmt.Sprintf("%s!A2:G", c.sheet)
	rows, err := c.get(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	logs := parseSpendRows(rows)
	c.cache.Set(fetchAllKey, logs)
	c.logger.DebugContext(ctx, "Fetched spend logs from sheet", "sheet", c.sheet, "count", len(logs))
	return append([]core.DailySpendLog(nil), logs...), nil
}

// Upsert rewrites the row whose column A holds entry's date, or appends one.
func (c *Client) Upsert(ctx context.Context, entry core.DailySpendLog) error {
	if err := entry.Date.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := c.ensureHeaders(ctx); err != nil {
		return err
	}
	defer c.cache.Invalidate(fetchAllKey)

	rng := fmt.Sprintf("%s!A:A", c.sheet)
	col, err := c.get(ctx, rng)
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	row := serializeSpendLog(entry, c.loc)
	key := entry.Date.String()
	for i, cells := range col {
		if i == 0 || len(cells) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(cells[0])) != key {
			continue
		}
		target := fmt.Sprintf("%s!A%d:G%d", c.sheet, i+1, i+1)
		if err := c.update(ctx, target, [][]any{row}); err != nil {
			return fmt.Errorf("update %s: %w", target, err)
		}
		c.logger.InfoContext(ctx, "Updated spend log row", applog.FieldDate, key, "range", target)
		return nil
	}

	target := fmt.Sprintf("%s!A:G", c.sheet)
	if err := c.wait(ctx); err != nil {
		return err
	}
	if err := c.values.Append(ctx, c.spreadsheetID, target, [][]any{row}); err != nil {
		return fmt.Errorf("append to %s: %w", c.sheet, err)
	}
	c.logger.InfoContext(ctx, "Appended spend log row", applog.FieldDate, key, "sheet", c.sheet)
	return nil
}

func (c *Client) ensureHeaders(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.headersReady {
		return nil
	}

	rng := fmt.Sprintf("%s!A1:G1", c.sheet)
	rows, err := c.get(ctx, rng)
	if err != nil {
		return fmt.Errorf("read headers: %w", err)
	}
	if len(rows) == 0 || !headersMatch(rows[0]) {
		if err := c.update(ctx, rng, [][]any{headerRow()}); err != nil {
			return fmt.Errorf("write headers: %w", err)
		}
		c.logger.InfoContext(ctx, "Initialized spend log headers", "sheet", c.sheet)
	}
	c.headersReady = true
	return nil
}

func (c *Client) get(ctx context.Context, rng string) ([][]any, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.values.Get(ctx, c.spreadsheetID, rng)
}

func (c *Client) update(ctx context.Context, rng string, values [][]any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.values.Update(ctx, c.spreadsheetID, rng, values)
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sheets rate limit: %w", err)
	}
	return nil
}

// sheetsValues adapts the generated Sheets service to valuesAPI.
type sheetsValues struct {
	svc *gsheet.Service
}

func (v sheetsValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := v.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (v sheetsValues) Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	_, err := v.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

func (v sheetsValues) Append(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	_, err := v.svc.Spreadsheets.Values.Append(spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}
