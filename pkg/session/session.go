// Package session owns the bounded collection of dashboard conversations:
// the per-session message log, the current merged dashboard, the snapshot
// history, and the normalization of untrusted persisted input. Capacity and
// size limits are enforced here; storage transport lives in internal/store.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/personalolive/oliveboard/pkg/spec"
)

const (
	// MaxSessions caps the collection; the least-recently-updated session
	// past this is evicted silently.
	MaxSessions = 20

	// MaxPersistedRows caps each data source's rows when a session is
	// written to storage. The cap is per source, not global.
	MaxPersistedRows = 200

	// DefaultTitle is used until the first prompt provides a better one.
	DefaultTitle = "New dashboard"
)

// Message is one transcript entry.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Snapshot is one realized dashboard captured after a successful merge.
// Immutable once created; owned exclusively by its session.
type Snapshot struct {
	ID        string             `json:"id"`
	Prompt    string             `json:"prompt"`
	Spec      spec.DashboardSpec `json:"spec"`
	Data      spec.Dataset       `json:"data"`
	CreatedAt int64              `json:"createdAt"`
}

// Fragment returns the snapshot's spec and data as one fragment.
func (s Snapshot) Fragment() spec.Fragment {
	return spec.Fragment{Spec: s.Spec, Data: s.Data}
}

// ChatSession is one conversation's full state.
type ChatSession struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Messages   []Message      `json:"messages"`
	Current    *spec.Fragment `json:"current,omitempty"`
	Dashboards []Snapshot     `json:"dashboards"`
	CreatedAt  int64          `json:"createdAt"`
	UpdatedAt  int64          `json:"updatedAt"`

	// Submission bookkeeping for out-of-order completions. Process-local
	// only; deliberately not serialized.
	nextSeq     uint64
	lastApplied uint64
}

// NewSession creates an empty session.
func NewSession() *ChatSession {
	now := time.Now().UnixMilli()
	return &ChatSession{
		ID:         uuid.NewString(),
		Title:      DefaultTitle,
		Messages:   []Message{},
		Dashboards: []Snapshot{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NextSeq reserves the sequence number for a new submission.
func (s *ChatSession) NextSeq() uint64 {
	s.nextSeq++
	return s.nextSeq
}

// AppendUserMessage records a user prompt. The first prompt also titles the
// session.
func (s *ChatSession) AppendUserMessage(content string) {
	if len(s.Messages) == 0 && s.Title == DefaultTitle {
		s.Title = DeriveTitle(content)
	}
	s.Messages = append(s.Messages, Message{Role: "user", Content: content})
	s.UpdatedAt = time.Now().UnixMilli()
}

// AppendAssistantMessage records an assistant reply (or an error notice for a
// failed fragment fetch — the spec and data stay at their last good value).
func (s *ChatSession) AppendAssistantMessage(content string) {
	s.Messages = append(s.Messages, Message{Role: "assistant", Content: content})
	s.UpdatedAt = time.Now().UnixMilli()
}

// ApplyMerged installs a merge result and records its snapshot. A result
// whose sequence number is below an already-applied one arrived late and is
// discarded; the session reports false and stays unchanged.
func (s *ChatSession) ApplyMerged(seq uint64, prompt string, merged spec.Fragment) bool {
	if seq <= s.lastApplied {
		return false
	}
	s.lastApplied = seq

	now := time.Now().UnixMilli()
	s.Current = &merged
	s.Dashboards = append(s.Dashboards, Snapshot{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Spec:      merged.Spec,
		Data:      merged.Data,
		CreatedAt: now,
	})
	s.UpdatedAt = now
	return true
}

// TrimForPersistence returns a copy of the fragment with every data source's
// rows capped at MaxPersistedRows, earliest rows retained in order.
func TrimForPersistence(f spec.Fragment) spec.Fragment {
	out := spec.Fragment{Spec: f.Spec.Clone()}
	if f.Data == nil {
		return out
	}
	out.Data = make(spec.Dataset, len(f.Data))
	for id, rows := range f.Data {
		if len(rows) > MaxPersistedRows {
			rows = rows[:MaxPersistedRows]
		}
		out.Data[id] = rows.Clone()
	}
	return out
}
