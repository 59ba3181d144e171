package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/personalolive/oliveboard/pkg/board"
	"github.com/personalolive/oliveboard/pkg/spec"
)

type fakeSource struct {
	frag *spec.Fragment
}

func (f *fakeSource) Generate(ctx context.Context, prompt, schemaDDL string) (*spec.Fragment, error) {
	cp := f.frag.Clone()
	return &cp, nil
}

type memStore struct{ blob []byte }

func (m *memStore) Load() ([]byte, error) { return m.blob, nil }
func (m *memStore) Save(b []byte) error   { m.blob = b; return nil }
func (m *memStore) Close() error          { return nil }

func testRouter(t *testing.T) (*gin.Engine, *fakeSource) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	src := &fakeSource{frag: &spec.Fragment{
		Spec: spec.DashboardSpec{
			Widgets: []spec.Widget{
				{ID: "w1", Kind: spec.KindTable, DataSource: "s1", Columns: []string{"order_date"}},
				{ID: "f1", Kind: spec.KindFilter, FilterKind: spec.FilterDateRange, TargetWidgetIDs: []string{"w1"}},
			},
			DataSources: []spec.DataSource{{ID: "s1", Query: "SELECT order_date FROM orders"}},
		},
		Data: spec.Dataset{"s1": spec.Rows{
			{"order_date": "2024-01-15"},
			{"order_date": "2024-03-01"},
		}},
	}}
	svc, err := board.NewService(src, &memStore{}, "", slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return NewRouter(svc, src), src
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGenerateEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	w := postJSON(t, r, "/api/generate", gin.H{"prompt": "orders over time"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res board.SubmitResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if res.SessionID == "" || !res.Applied {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Dashboard == nil || len(res.Dashboard.Spec.Widgets) != 2 {
		t.Errorf("unexpected dashboard: %+v", res.Dashboard)
	}
}

func TestGenerateRequiresPrompt(t *testing.T) {
	r, _ := testRouter(t)
	w := postJSON(t, r, "/api/generate", gin.H{"sessionId": "abc"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSessionEndpoints(t *testing.T) {
	r, _ := testRouter(t)

	w := postJSON(t, r, "/api/generate", gin.H{"prompt": "orders"})
	var res board.SubmitResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	// List contains the new session.
	req := httptest.NewRequest("GET", "/api/sessions", nil)
	lw := httptest.NewRecorder()
	r.ServeHTTP(lw, req)
	if lw.Code != http.StatusOK {
		t.Fatalf("list failed: %d", lw.Code)
	}
	var list struct {
		Sessions []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"sessions"`
	}
	if err := json.Unmarshal(lw.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].ID != res.SessionID {
		t.Errorf("unexpected session list: %+v", list.Sessions)
	}

	// Fetch by id.
	req = httptest.NewRequest("GET", "/api/sessions/"+res.SessionID, nil)
	gw := httptest.NewRecorder()
	r.ServeHTTP(gw, req)
	if gw.Code != http.StatusOK {
		t.Errorf("get session failed: %d", gw.Code)
	}

	// Unknown id is a 404.
	req = httptest.NewRequest("GET", "/api/sessions/nope", nil)
	nw := httptest.NewRecorder()
	r.ServeHTTP(nw, req)
	if nw.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", nw.Code)
	}
}

func TestFilterEndpoint(t *testing.T) {
	r, _ := testRouter(t)

	w := postJSON(t, r, "/api/generate", gin.H{"prompt": "orders"})
	var res board.SubmitResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	widgetID := res.Dashboard.Spec.Widgets[0].ID
	filterID := res.Dashboard.Spec.Widgets[1].ID

	fw := postJSON(t, r, "/api/sessions/"+res.SessionID+"/filter", gin.H{
		"widgetId": widgetID,
		"filters":  gin.H{filterID: gin.H{"start": "2024-01-01", "end": "2024-01-31"}},
	})
	if fw.Code != http.StatusOK {
		t.Fatalf("filter failed: %d: %s", fw.Code, fw.Body.String())
	}

	var out struct {
		Rows spec.Rows `json:"rows"`
	}
	if err := json.Unmarshal(fw.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode filter response: %v", err)
	}
	if len(out.Rows) != 1 {
		t.Errorf("expected 1 row in range, got %d", len(out.Rows))
	}
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := testRouter(t)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
