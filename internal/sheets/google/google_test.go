package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"

	"budgetbuddy/internal/core"
	ports "budgetbuddy/internal/sheets"
)

type fakeSheets struct {
	mu      sync.Mutex
	cleared []string
	written map[string][][]any
	fail    bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/values:batchClear"):
		var req struct {
			Ranges []string `json:"ranges"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.cleared = append(f.cleared, req.Ranges...)
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/values/"):
		if f.fail {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`))
			return
		}
		rng := r.URL.Path[strings.Index(r.URL.Path, "/values/")+len("/values/"):]
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.written[rng] = vr.Values
		_, _ = w.Write([]byte(`{}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Options{
		SpreadsheetID: "sheet-123",
		SheetName:     "Budget",
		ClientOptions: []goption.ClientOption{
			goption.WithEndpoint(srv.URL + "/"),
			goption.WithHTTPClient(srv.Client()),
		},
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func report() ports.Report {
	txs := []core.Transaction{
		{ID: "1", Amount: core.Money{Cents: 250000}, Type: core.Income, Category: "salary", Date: core.NewDate(2025, 5, 1)},
		{ID: "2", Amount: core.Money{Cents: 1999}, Type: core.Expense, Category: "food", Date: core.NewDate(2025, 5, 2)},
	}
	return ports.Report{Label: "2025-05", Transactions: txs, Summary: core.Summarize(txs), GeneratedAt: time.Now()}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{CredentialsJSON: "{}"}, nil)
	if err == nil || err.Error() != "missing spreadsheet ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "x"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{SpreadsheetID: "x", CredentialsFile: "/non/existent.json"}, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestExport(t *testing.T) {
	fake := &fakeSheets{written: map[string][][]any{}}
	c := newTestClient(t, fake)

	if err := c.Export(context.Background(), report()); err != nil {
		t.Fatalf("Export: %v", err)
	}

	if len(fake.cleared) != 2 || fake.cleared[0] != "Budget!A:F" || fake.cleared[1] != "Budget Summary!A:B" {
		t.Errorf("cleared = %v", fake.cleared)
	}
	txRows := fake.written["Budget!A1"]
	if len(txRows) != 3 {
		t.Fatalf("transaction rows = %v", fake.written)
	}
	if txRows[1][3] != "2500.00" || txRows[2][2] != "food" {
		t.Errorf("rows = %v", txRows)
	}
	sumRows := fake.written["Budget Summary!A1"]
	if len(sumRows) == 0 || sumRows[0][1] != "2025-05" {
		t.Errorf("summary rows = %v", sumRows)
	}
}

func TestExportFailure(t *testing.T) {
	fake := &fakeSheets{written: map[string][][]any{}, fail: true}
	c := newTestClient(t, fake)

	err := c.Export(context.Background(), report())
	if err == nil || !strings.Contains(err.Error(), "write Budget") {
		t.Errorf("Export error = %v", err)
	}
}

func TestExportWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "x"}
	if err := c.Export(context.Background(), report()); err == nil {
		t.Error("expected error")
	}
}
