package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budgetbuddy/internal/log"
	ports "budgetbuddy/internal/sheets"
)

// Client exports reports to two sheets of one spreadsheet: the transactions
// sheet and "<name> Summary".
type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	summarySheet      string
	log               *log.Logger
}

// Ensure interface conformance
var _ ports.Exporter = (*Client)(nil)

// Options configures New. Service account credentials take precedence over
// an OAuth user token; ClientOptions are appended last and win.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	OAuth           OAuthOptions
	ClientOptions   []goption.ClientOption
}

// New creates a Sheets client authenticated with a service account or a
// stored OAuth user token.
func New(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = "Transactions"
	}
	logger = log.OrDiscard(logger).WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:               svc,
		spreadsheetID:     spreadsheetID,
		transactionsSheet: sheetName,
		summarySheet:      sheetName + " Summary",
		log:               logger,
	}, nil
}

// newSheetsService initializes a Sheets Service from whichever credentials
// opts carries.
func newSheetsService(ctx context.Context, opts Options, logger *log.Logger) (*gsheet.Service, error) {
	clientOpts := []goption.ClientOption{
		goption.WithHTTPClient(newHTTPClientWithPooling()),
	}

	switch {
	case len(opts.ClientOptions) > 0:
		// Caller supplies auth and transport.
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		logger.DebugContext(ctx, "Using inline JSON credentials")
		clientOpts = []goption.ClientOption{
			goption.WithCredentialsJSON([]byte(opts.CredentialsJSON)),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	case strings.TrimSpace(opts.CredentialsFile) != "":
		logger.DebugContext(ctx, "Reading credentials from file", "path", opts.CredentialsFile)
		credentialsJSON, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		clientOpts = []goption.ClientOption{
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	case opts.OAuth.enabled():
		cfg, err := OAuthConfig(opts.OAuth)
		if err != nil {
			return nil, err
		}
		tok, err := LoadToken(opts.OAuth.TokenFile)
		if err != nil {
			return nil, err
		}
		logger.DebugContext(ctx, "Using stored OAuth user token", "path", opts.OAuth.TokenFile)
		clientOpts = []goption.ClientOption{
			goption.WithTokenSource(cfg.TokenSource(ctx, tok)),
		}
	default:
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	service, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// Export clears both sheets and writes the report. The two sheets are
// written concurrently.
func (c *Client) Export(ctx context.Context, report ports.Report) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	req := &gsheet.BatchClearValuesRequest{Ranges: []string{
		c.transactionsSheet + "!A:F",
		c.summarySheet + "!A:B",
	}}
	if _, err := c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheets: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.write(gctx, c.transactionsSheet, ports.TransactionRows(report.Transactions))
	})
	g.Go(func() error {
		return c.write(gctx, c.summarySheet, ports.SummaryRows(report))
	})
	if err := g.Wait(); err != nil {
		return err
	}

	c.log.InfoContext(ctx, "Exported report",
		log.FieldOperation, log.OpExport,
		log.FieldCount, len(report.Transactions),
		"period", report.Label,
		"spreadsheet", c.spreadsheetID)
	return nil
}

func (c *Client) write(ctx context.Context, sheet string, rows [][]any) error {
	rng := fmt.Sprintf("%s!A1", sheet)
	vr := &gsheet.ValueRange{Values: rows}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", sheet, err)
	}
	return nil
}
