package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type fakeSheetsAPI struct {
	mu       sync.Mutex
	titles   []string
	added    []string
	cleared  []string
	updated  [][]any
	rangeArg string
	input    string
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sheet-1"):
		sheets := make([]map[string]any, 0, len(f.titles))
		for _, t := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1", "sheets": sheets})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.added = append(f.added, rq.AddSheet.Properties.Title)
				f.titles = append(f.titles, rq.AddSheet.Properties.Title)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1"})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.cleared = append(f.cleared, path)
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sheet-1"})

	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.updated = vr.Values
		f.rangeArg = path[strings.Index(path, "/values/")+len("/values/"):]
		f.input = r.URL.Query().Get("valueInputOption")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sheet-1",
			"updatedRange":  "Export!A1:C3",
			"updatedRows":   len(vr.Values),
		})

	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, api *fakeSheetsAPI, sheet string) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewWithService(svc, "sheet-1", sheet)
}

func TestWriteRowsCreatesSheetAndWritesRaw(t *testing.T) {
	api := &fakeSheetsAPI{titles: []string{"Sheet1"}}
	c := newTestClient(t, api, "Export")

	header := []string{"id", "description", "amount"}
	rows := [][]string{{"1", "Taxi", "12.50"}, {"2", "Hotel", "0100.00"}}
	ref, err := c.WriteRows(context.Background(), header, rows)
	if err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	if ref != "Export!A1:C3" {
		t.Errorf("ref = %q", ref)
	}
	if len(api.added) != 1 || api.added[0] != "Export" {
		t.Errorf("added sheets = %v", api.added)
	}
	if len(api.cleared) != 1 {
		t.Errorf("clear calls = %d", len(api.cleared))
	}
	if api.input != "RAW" {
		t.Errorf("valueInputOption = %q", api.input)
	}
	if api.rangeArg != "'Export'!A1:C3" {
		t.Errorf("range = %q", api.rangeArg)
	}
	if len(api.updated) != 3 {
		t.Fatalf("rows written = %d", len(api.updated))
	}
	if got := api.updated[2][2]; got != "0100.00" {
		t.Errorf("amount cell = %v", got)
	}
}

func TestWriteRowsReusesExistingSheet(t *testing.T) {
	api := &fakeSheetsAPI{titles: []string{"Export"}}
	c := newTestClient(t, api, "")

	if _, err := c.WriteRows(context.Background(), []string{"id"}, nil); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}
	if len(api.added) != 0 {
		t.Errorf("sheet should not be added again: %v", api.added)
	}
	if len(api.updated) != 1 {
		t.Errorf("expected header only, got %d rows", len(api.updated))
	}
}

func TestWriteRowsReportsAPIErrors(t *testing.T) {
	api := &fakeSheetsAPI{}
	c := newTestClient(t, api, "Export")
	c.spreadsheetID = "missing"

	if _, err := c.WriteRows(context.Background(), []string{"id"}, nil); err == nil {
		t.Fatal("expected an error for an unknown spreadsheet")
	}
}

func TestNewRequiresSpreadsheetAndCredentials(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, Config{}); err == nil || !strings.Contains(err.Error(), "GOOGLE_SPREADSHEET_ID") {
		t.Errorf("missing id: %v", err)
	}
	if _, err := New(ctx, Config{SpreadsheetID: "x"}); err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Errorf("missing credentials: %v", err)
	}
	if _, err := New(ctx, Config{SpreadsheetID: "x", CredentialsFile: t.TempDir() + "/nope.json"}); err == nil {
		t.Error("expected read error for missing credentials file")
	}
}
