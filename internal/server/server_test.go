package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vampirenirmal/storyscope/internal/analysis"
	"github.com/vampirenirmal/storyscope/internal/insights"
	"github.com/vampirenirmal/storyscope/internal/storage"
	"github.com/vampirenirmal/storyscope/internal/telemetry"
)

const validSnapshot = `{
  "projectId": "lantern",
  "characters": [
    {"id": "iva", "name": "Iva", "role": "protagonist", "appearances": ["c1", "c2"]}
  ],
  "chapters": [
    {"id": "c1", "number": 1, "events": [{"id": "e1", "type": "inciting_incident", "description": "A ship is lost"}]},
    {"id": "c2", "number": 2, "events": [{"id": "e2", "type": "climax", "description": "The storm"}]}
  ]
}`

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	engine, err := analysis.New()
	if err != nil {
		t.Fatal(err)
	}
	return New(engine, opts...)
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(newTestServer(t), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("GET /healthz = %d %s", rec.Code, rec.Body)
	}
}

func TestAnalyze(t *testing.T) {
	tracker := telemetry.NewUsageTracker(nil)
	s := newTestServer(t, WithSink(tracker))

	rec := do(s, http.MethodPost, "/api/analyze", validSnapshot)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Result == nil || resp.Result.OverallScore < 0 || resp.Result.OverallScore > 100 {
		t.Errorf("result = %+v", resp.Result)
	}
	if resp.Result.PlotStructure.Structure != analysis.StructureCustom {
		t.Errorf("structure = %q", resp.Result.PlotStructure.Structure)
	}
	if tracker.Snapshot().Counts["analysis"] != 1 {
		t.Error("run not reported to sink")
	}
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		contains string
	}{
		{"malformed json", `{"characters": [`, "decoding json snapshot"},
		{"unknown field", `{"characters": [], "chapters": [], "plotThreads": []}`, "unknown field"},
		{
			name:     "invalid reference",
			body:     `{"characters": [{"id": "a", "role": "minor", "appearances": ["nope"]}], "chapters": []}`,
			contains: `"field":"characters[0].appearances[0]"`,
		},
		{
			name:     "unknown beat",
			body:     `{"characters": [], "chapters": [{"id": "c1", "number": 1, "events": [{"id": "e", "type": "twist"}]}]}`,
			contains: "unknown beat type",
		},
	}
	s := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodPost, "/api/analyze", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.contains) {
				t.Errorf("body %s missing %s", rec.Body, tt.contains)
			}
		})
	}
}

func TestAnalyzeSaveAndFetch(t *testing.T) {
	store := storage.NewReportStore(storage.NewFileSystem(t.TempDir()))
	s := newTestServer(t, WithReports(store))

	rec := do(s, http.MethodPost, "/api/analyze?save=true", validSnapshot)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ReportID == "" {
		t.Fatal("no report id returned")
	}

	rec = do(s, http.MethodGet, "/api/reports/lantern", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), resp.ReportID) {
		t.Errorf("list = %d %s", rec.Code, rec.Body)
	}

	rec = do(s, http.MethodGet, "/api/reports/lantern/"+resp.ReportID, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"projectId":"lantern"`) {
		t.Errorf("get = %d %s", rec.Code, rec.Body)
	}

	rec = do(s, http.MethodGet, "/api/reports/lantern/not-a-ksuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("get invalid id = %d", rec.Code)
	}

	rec = do(s, http.MethodDelete, "/api/reports/lantern/"+resp.ReportID, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d %s", rec.Code, rec.Body)
	}
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec = do(s, method, "/api/reports/lantern/"+resp.ReportID, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s after delete = %d", method, rec.Code)
		}
	}
}

func TestGetReportReadFailure(t *testing.T) {
	dir := t.TempDir()
	id := "2OGaPD8KOoD0hDa4fm0fk6w5Z5Y"
	if err := os.MkdirAll(filepath.Join(dir, "reports", "lantern", id+".json"), 0755); err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, WithReports(storage.NewReportStore(storage.NewFileSystem(dir))))

	rec := do(s, http.MethodGet, "/api/reports/lantern/"+id, "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("get unreadable report = %d %s", rec.Code, rec.Body)
	}
}

func TestAnalyzeWithoutOptionalServices(t *testing.T) {
	s := newTestServer(t)
	for _, target := range []string{"/api/analyze?save=1", "/api/analyze?insights=true"} {
		if rec := do(s, http.MethodPost, target, validSnapshot); rec.Code != http.StatusBadRequest {
			t.Errorf("POST %s = %d, want 400", target, rec.Code)
		}
	}
}

func TestAnalyzeWithInsights(t *testing.T) {
	client := insights.NewClient(insights.NewMockProvider(), insights.WithRateLimit(0, 0))
	s := newTestServer(t, WithInsights(client))

	rec := do(s, http.MethodPost, "/api/analyze?insights=true", validSnapshot)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var resp AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Suggestions) != len(insights.AnalysisTypes()) {
		t.Errorf("suggestions = %+v", resp.Suggestions)
	}
}

func TestSchema(t *testing.T) {
	s := newTestServer(t)
	if rec := do(s, http.MethodGet, "/api/schema/snapshot", ""); rec.Code != http.StatusOK ||
		!strings.Contains(rec.Body.String(), `"characters"`) {
		t.Errorf("GET snapshot schema = %d", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/api/schema/policy", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET unknown schema = %d, want 404", rec.Code)
	}
}
