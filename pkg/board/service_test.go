package board

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/personalolive/oliveboard/pkg/session"
	"github.com/personalolive/oliveboard/pkg/spec"
)

// fakeSource returns queued fragments (or errors) in order.
type fakeSource struct {
	frags []*spec.Fragment
	errs  []error
	calls int
}

func (f *fakeSource) Generate(ctx context.Context, prompt, schemaDDL string) (*spec.Fragment, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.frags) {
		return f.frags[i], nil
	}
	return &spec.Fragment{}, nil
}

// memStore keeps the blob in memory. failSave simulates a broken disk.
type memStore struct {
	blob     []byte
	failSave bool
	saves    int
}

func (m *memStore) Load() ([]byte, error) { return m.blob, nil }
func (m *memStore) Save(b []byte) error {
	if m.failSave {
		return errors.New("disk full")
	}
	m.blob = b
	m.saves++
	return nil
}
func (m *memStore) Close() error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func kpiFragment(widgetID, sourceID string, rows spec.Rows) *spec.Fragment {
	return &spec.Fragment{
		Spec: spec.DashboardSpec{
			Widgets: []spec.Widget{
				{ID: widgetID, Kind: spec.KindKPI, DataSource: sourceID, ValueField: "total"},
			},
			DataSources: []spec.DataSource{
				{ID: sourceID, Query: "SELECT SUM(amount) AS total FROM sales"},
			},
		},
		Data: spec.Dataset{sourceID: rows},
	}
}

func newTestService(t *testing.T, src *fakeSource, st *memStore) *Service {
	t.Helper()
	svc, err := NewService(src, st, "CREATE TABLE sales (amount REAL, date TEXT);", quietLogger())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestSubmitCreatesSessionAndMerges(t *testing.T) {
	src := &fakeSource{frags: []*spec.Fragment{
		kpiFragment("w1", "s1", spec.Rows{{"total": 100.0}}),
	}}
	st := &memStore{}
	svc := newTestService(t, src, st)

	res, err := svc.Submit(context.Background(), "", "total sales")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !res.Applied {
		t.Fatal("expected fragment to be applied")
	}
	if res.SessionID == "" {
		t.Error("expected a session id")
	}
	if res.Dashboard == nil || len(res.Dashboard.Spec.Widgets) != 1 {
		t.Fatalf("unexpected dashboard: %+v", res.Dashboard)
	}
	if st.saves == 0 {
		t.Error("expected collection to be persisted")
	}

	sess := svc.Session(res.SessionID)
	if sess == nil {
		t.Fatal("session not found after submit")
	}
	if len(sess.Messages) != 2 {
		t.Errorf("expected user + assistant messages, got %d", len(sess.Messages))
	}
	if len(sess.Dashboards) != 1 {
		t.Errorf("expected one snapshot, got %d", len(sess.Dashboards))
	}
	if sess.Title == "" || sess.Title == "New dashboard" {
		t.Errorf("title not derived from prompt: %q", sess.Title)
	}
}

func TestSubmitSecondTurnNamespacesCollisions(t *testing.T) {
	src := &fakeSource{frags: []*spec.Fragment{
		kpiFragment("w1", "s1", spec.Rows{{"total": 1.0}}),
		kpiFragment("w1", "s1", spec.Rows{{"total": 2.0}}),
	}}
	svc := newTestService(t, src, &memStore{})

	first, err := svc.Submit(context.Background(), "", "sales kpi")
	if err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	second, err := svc.Submit(context.Background(), first.SessionID, "another sales kpi")
	if err != nil {
		t.Fatalf("second Submit failed: %v", err)
	}

	dash := second.Dashboard
	if len(dash.Spec.Widgets) != 2 {
		t.Fatalf("expected 2 widgets after merge, got %d", len(dash.Spec.Widgets))
	}
	if dash.Spec.Widgets[0].ID == dash.Spec.Widgets[1].ID {
		t.Errorf("widget id collision survived merge: %q", dash.Spec.Widgets[0].ID)
	}
	if len(dash.Data) != 2 {
		t.Errorf("expected 2 datasets, got %d", len(dash.Data))
	}
	if problems := dash.Spec.Problems(); len(problems) != 0 {
		t.Errorf("merged dashboard has problems: %v", problems)
	}
}

func TestSubmitGenerationFailureKeepsDashboard(t *testing.T) {
	src := &fakeSource{
		frags: []*spec.Fragment{kpiFragment("w1", "s1", nil), nil},
		errs:  []error{nil, errors.New("model unavailable")},
	}
	svc := newTestService(t, src, &memStore{})

	first, err := svc.Submit(context.Background(), "", "sales kpi")
	if err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}

	res, err := svc.Submit(context.Background(), first.SessionID, "broken request")
	if err != nil {
		t.Fatalf("Submit should not surface generation errors: %v", err)
	}
	if res.Applied {
		t.Error("failed generation must not be applied")
	}
	if res.Dashboard == nil || len(res.Dashboard.Spec.Widgets) != 1 {
		t.Errorf("dashboard changed on failure: %+v", res.Dashboard)
	}

	sess := svc.Session(first.SessionID)
	last := sess.Messages[len(sess.Messages)-1]
	if last.Role != "assistant" || !strings.Contains(last.Content, "failed") {
		t.Errorf("expected assistant error notice, got %+v", last)
	}
	if len(sess.Dashboards) != 1 {
		t.Errorf("snapshot recorded for failed generation: %d", len(sess.Dashboards))
	}
}

// hookSource runs a callback on its first Generate call, while the service
// lock is released.
type hookSource struct {
	inner *fakeSource
	hook  func()
	fired bool
}

func (h *hookSource) Generate(ctx context.Context, prompt, schemaDDL string) (*spec.Fragment, error) {
	if !h.fired && h.hook != nil {
		h.fired = true
		h.hook()
	}
	return h.inner.Generate(ctx, prompt, schemaDDL)
}

func TestSubmitDiscardsResultForEvictedSession(t *testing.T) {
	src := &hookSource{inner: &fakeSource{frags: []*spec.Fragment{
		kpiFragment("w1", "s1", nil),
		kpiFragment("w2", "s2", nil),
	}}}
	st := &memStore{}
	svc, err := NewService(src, st, "", quietLogger())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	first, err := svc.Submit(context.Background(), "", "sales kpi")
	if err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}

	// While the second generation is in flight, fill the collection until
	// the target session is evicted.
	src.fired = false
	src.hook = func() {
		if target := svc.Session(first.SessionID); target != nil {
			target.UpdatedAt = 1
		}
		for i := 0; i < session.MaxSessions; i++ {
			if _, err := svc.Submit(context.Background(), "", "filler"); err != nil {
				t.Fatalf("filler Submit failed: %v", err)
			}
		}
	}

	res, err := svc.Submit(context.Background(), first.SessionID, "another kpi")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if res.Applied {
		t.Error("result for an evicted session must be discarded")
	}
	if svc.Session(first.SessionID) != nil {
		t.Error("evicted session was resurrected")
	}
	if got := len(svc.Sessions()); got > session.MaxSessions {
		t.Errorf("collection exceeds capacity: %d", got)
	}
}

func TestSubmitPersistFailureIsNonFatal(t *testing.T) {
	src := &fakeSource{frags: []*spec.Fragment{kpiFragment("w1", "s1", nil)}}
	svc := newTestService(t, src, &memStore{failSave: true})

	res, err := svc.Submit(context.Background(), "", "sales kpi")
	if err != nil {
		t.Fatalf("Submit must tolerate persistence failure: %v", err)
	}
	if !res.Applied {
		t.Error("fragment should still be applied when save fails")
	}
}

func TestFilterAppliesDateRange(t *testing.T) {
	frag := &spec.Fragment{
		Spec: spec.DashboardSpec{
			Widgets: []spec.Widget{
				{ID: "w1", Kind: spec.KindTable, DataSource: "s1", Columns: []string{"order_date", "amount"}},
				{ID: "f1", Kind: spec.KindFilter, FilterKind: spec.FilterDateRange, TargetWidgetIDs: []string{"w1"}},
			},
			DataSources: []spec.DataSource{{ID: "s1", Query: "SELECT order_date, amount FROM sales"}},
		},
		Data: spec.Dataset{
			"s1": spec.Rows{
				{"order_date": "2024-01-15", "amount": 10.0},
				{"order_date": "2024-02-01", "amount": 20.0},
			},
		},
	}
	src := &fakeSource{frags: []*spec.Fragment{frag}}
	svc := newTestService(t, src, &memStore{})

	res, err := svc.Submit(context.Background(), "", "orders table")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	widgetID := res.Dashboard.Spec.Widgets[0].ID
	filterID := res.Dashboard.Spec.Widgets[1].ID
	rows, err := svc.Filter(res.SessionID, widgetID, spec.FilterState{
		filterID: {Start: "2024-01-01", End: "2024-01-31"},
	})
	if err != nil {
		t.Fatalf("Filter failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row in range, got %d", len(rows))
	}
	if rows[0]["order_date"] != "2024-01-15" {
		t.Errorf("wrong row survived filter: %+v", rows[0])
	}
}

func TestFilterUnknownSession(t *testing.T) {
	svc := newTestService(t, &fakeSource{}, &memStore{})
	if _, err := svc.Filter("missing", "w1", nil); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestServiceRestoresPersistedSessions(t *testing.T) {
	src := &fakeSource{frags: []*spec.Fragment{kpiFragment("w1", "s1", spec.Rows{{"total": 5.0}})}}
	st := &memStore{}
	svc := newTestService(t, src, st)

	res, err := svc.Submit(context.Background(), "", "sales kpi")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// A fresh service over the same store sees the session.
	svc2 := newTestService(t, &fakeSource{}, st)
	sess := svc2.Session(res.SessionID)
	if sess == nil {
		t.Fatal("session lost across restart")
	}
	if sess.Current == nil || len(sess.Current.Spec.Widgets) != 1 {
		t.Errorf("dashboard lost across restart: %+v", sess.Current)
	}
}
