// Package board is the orchestration layer: it routes a user prompt through
// the fragment source, merges the result into the session's dashboard,
// records the transcript and snapshot history, and persists the bounded
// collection. All session mutation is serialized here; the packages below
// (compose, filter, session) stay free of locking.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/personalolive/oliveboard/internal/store"
	"github.com/personalolive/oliveboard/pkg/compose"
	"github.com/personalolive/oliveboard/pkg/filter"
	"github.com/personalolive/oliveboard/pkg/fragment"
	"github.com/personalolive/oliveboard/pkg/session"
	"github.com/personalolive/oliveboard/pkg/spec"
)

// Service owns the session collection and coordinates prompt submissions.
type Service struct {
	mu       sync.Mutex
	sessions *session.Collection
	merger   *compose.Merger
	source   fragment.Source
	store    store.Storer
	log      *slog.Logger

	// schemaDDL is the database schema handed to the model with every
	// prompt. Fixed for the life of the service.
	schemaDDL string
}

// NewService restores the session collection from the store and wires the
// fragment source. A nil or corrupt persisted blob yields an empty
// collection rather than an error.
func NewService(src fragment.Source, st store.Storer, schemaDDL string, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}
	raw, err := st.Load()
	if err != nil {
		return nil, fmt.Errorf("board: failed to load sessions: %w", err)
	}
	coll := session.Restore(raw)
	log.Info("sessions restored", "count", coll.Len())

	return &Service{
		sessions:  coll,
		merger:    compose.NewMerger(),
		source:    src,
		store:     st,
		log:       log,
		schemaDDL: schemaDDL,
	}, nil
}

// SubmitResult reports the outcome of one prompt submission.
type SubmitResult struct {
	SessionID string         `json:"sessionId"`
	Title     string         `json:"title"`
	Applied   bool           `json:"applied"`
	Message   string         `json:"message,omitempty"`
	Dashboard *spec.Fragment `json:"dashboard,omitempty"`
}

// Submit runs one prompt through the pipeline: record the user message,
// fetch a fragment from the source, merge it into the session's current
// dashboard, snapshot, and persist. When the fetch fails the session keeps
// its last good dashboard and the error is recorded as an assistant message.
// A completion that lands after a newer one has already been applied is
// discarded, as is one whose session was evicted while generation ran.
func (s *Service) Submit(ctx context.Context, sessionID, prompt string) (*SubmitResult, error) {
	s.mu.Lock()
	sess := s.sessions.Find(sessionID)
	if sess == nil {
		sess = session.NewSession()
		if sessionID != "" {
			sess.ID = sessionID
		}
		s.sessions.Upsert(sess)
	}
	sess.AppendUserMessage(prompt)
	seq := sess.NextSeq()
	s.mu.Unlock()

	frag, genErr := s.source.Generate(ctx, prompt, s.schemaDDL)

	s.mu.Lock()
	defer s.mu.Unlock()

	// The lock was released during generation; the session may have been
	// evicted in the meantime. Eviction is terminal, so the result is
	// dropped rather than resurrecting the session.
	if s.sessions.Find(sess.ID) == nil {
		s.log.Warn("session evicted during generation, result discarded", "session", sess.ID)
		return &SubmitResult{
			SessionID: sess.ID,
			Title:     sess.Title,
			Applied:   false,
			Message:   "session evicted, result discarded",
		}, nil
	}

	if genErr != nil {
		s.log.Error("fragment generation failed", "session", sess.ID, "error", genErr)
		sess.AppendAssistantMessage(fmt.Sprintf("Dashboard generation failed: %v", genErr))
		s.sessions.Upsert(sess)
		s.persist()
		return &SubmitResult{
			SessionID: sess.ID,
			Title:     sess.Title,
			Applied:   false,
			Message:   "generation failed, dashboard unchanged",
			Dashboard: sess.Current,
		}, nil
	}

	merged := s.merger.Merge(sess.Current, *frag)
	applied := sess.ApplyMerged(seq, prompt, merged)
	if applied {
		sess.AppendAssistantMessage(assistantSummary(frag))
	} else {
		s.log.Warn("stale completion discarded", "session", sess.ID, "seq", seq)
	}
	s.sessions.Upsert(sess)
	s.persist()

	return &SubmitResult{
		SessionID: sess.ID,
		Title:     sess.Title,
		Applied:   applied,
		Dashboard: sess.Current,
	}, nil
}

// Filter evaluates a widget's visible rows under the given filter state.
// Pure read: session state is not modified.
func (s *Service) Filter(sessionID, widgetID string, state spec.FilterState) (spec.Rows, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions.Find(sessionID)
	if sess == nil {
		return nil, fmt.Errorf("board: session %q not found", sessionID)
	}
	if sess.Current == nil {
		return nil, fmt.Errorf("board: session %q has no dashboard", sessionID)
	}
	return filter.ApplyFilters(&sess.Current.Spec, sess.Current.Data, state, widgetID), nil
}

// Sessions returns the collection most recently updated first.
func (s *Service) Sessions() []*session.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.List()
}

// Session returns one session by id, or nil.
func (s *Service) Session(id string) *session.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Find(id)
}

// persist writes the collection to storage. Best effort: a failed save is
// logged and the in-memory state stays authoritative. Callers hold s.mu.
func (s *Service) persist() {
	blob, err := s.sessions.Encode()
	if err != nil {
		s.log.Error("failed to encode sessions", "error", err)
		return
	}
	if err := s.store.Save(blob); err != nil {
		s.log.Error("failed to persist sessions", "error", err)
	}
}

// assistantSummary is the transcript line recorded for a successful merge.
func assistantSummary(f *spec.Fragment) string {
	widgets := len(f.Spec.Widgets)
	sources := len(f.Spec.DataSources)
	return fmt.Sprintf("Added %d widget(s) backed by %d data source(s).", widgets, sources)
}
