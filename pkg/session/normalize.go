package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/personalolive/oliveboard/pkg/spec"
)

// EnvelopeVersion is the current persisted-envelope schema version.
// Version 1 is the legacy shape: a bare session array where a session may
// carry a single "result" field instead of a "dashboards" history.
const EnvelopeVersion = 2

// rawSession mirrors a persisted session record with every field untrusted.
// Nested values stay raw so one corrupt field cannot poison the rest.
type rawSession struct {
	ID         any               `json:"id"`
	Title      any               `json:"title"`
	Messages   []json.RawMessage `json:"messages"`
	Current    json.RawMessage   `json:"current"`
	Dashboards []json.RawMessage `json:"dashboards"`
	Result     json.RawMessage   `json:"result"`
	CreatedAt  any               `json:"createdAt"`
	UpdatedAt  any               `json:"updatedAt"`
}

type rawMessage struct {
	Role    any `json:"role"`
	Content any `json:"content"`
}

type rawSnapshot struct {
	ID        any             `json:"id"`
	Prompt    any             `json:"prompt"`
	Spec      json.RawMessage `json:"spec"`
	Data      json.RawMessage `json:"data"`
	CreatedAt any             `json:"createdAt"`
}

// Normalize converts an arbitrary, possibly malformed or legacy-shaped
// record into a well-formed session. It never fails: unparseable input
// yields a valid empty session, missing fields get generated defaults, and a
// legacy single-result record is backfilled into a one-snapshot history.
func Normalize(raw json.RawMessage) *ChatSession {
	out := NewSession()
	if len(raw) == 0 {
		return out
	}

	var rec rawSession
	if err := json.Unmarshal(raw, &rec); err != nil {
		return out
	}

	if id := asString(rec.ID); id != "" {
		out.ID = id
	}
	if title := asString(rec.Title); title != "" {
		out.Title = title
	}
	out.CreatedAt = asTimestamp(rec.CreatedAt, out.CreatedAt)
	out.UpdatedAt = asTimestamp(rec.UpdatedAt, out.CreatedAt)

	for _, m := range rec.Messages {
		var msg rawMessage
		if err := json.Unmarshal(m, &msg); err != nil {
			continue
		}
		out.Messages = append(out.Messages, Message{
			Role:    normalizeRole(msg.Role),
			Content: asString(msg.Content),
		})
	}

	if len(rec.Current) > 0 {
		var frag spec.Fragment
		if err := json.Unmarshal(rec.Current, &frag); err == nil {
			out.Current = &frag
		}
	}

	for _, d := range rec.Dashboards {
		if snap, ok := normalizeSnapshot(d, out.CreatedAt); ok {
			out.Dashboards = append(out.Dashboards, snap)
		}
	}

	// Legacy records kept exactly one merged result and no history. Backfill
	// a single snapshot so the old shape stays usable.
	if len(out.Dashboards) == 0 && len(rec.Result) > 0 {
		var frag spec.Fragment
		if err := json.Unmarshal(rec.Result, &frag); err == nil {
			out.Dashboards = append(out.Dashboards, Snapshot{
				ID:        uuid.NewString(),
				Prompt:    firstUserPrompt(out.Messages),
				Spec:      frag.Spec,
				Data:      frag.Data,
				CreatedAt: out.CreatedAt,
			})
			if out.Current == nil {
				out.Current = &frag
			}
		}
	}

	return out
}

func normalizeSnapshot(raw json.RawMessage, fallbackTime int64) (Snapshot, bool) {
	var rec rawSnapshot
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Snapshot{}, false
	}
	snap := Snapshot{
		ID:        asString(rec.ID),
		Prompt:    asString(rec.Prompt),
		CreatedAt: asTimestamp(rec.CreatedAt, fallbackTime),
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if len(rec.Spec) > 0 {
		_ = json.Unmarshal(rec.Spec, &snap.Spec)
	}
	if len(rec.Data) > 0 {
		_ = json.Unmarshal(rec.Data, &snap.Data)
	}
	return snap, true
}

// NormalizeCollection restores a session list from a persisted blob. The
// blob is untrusted: it may be the current versioned envelope, a legacy bare
// array, or garbage. Garbage yields an empty list, never an error.
func NormalizeCollection(raw []byte) []*ChatSession {
	if len(raw) == 0 {
		return []*ChatSession{}
	}

	var env struct {
		Version  int               `json:"version"`
		Sessions []json.RawMessage `json:"sessions"`
	}
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &env); err == nil && env.Sessions != nil {
		records = env.Sessions
	} else {
		// Version 1 persisted a bare session array.
		var legacy []json.RawMessage
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return []*ChatSession{}
		}
		records = legacy
	}

	sessions := make([]*ChatSession, 0, len(records))
	for _, rec := range records {
		sessions = append(sessions, Normalize(rec))
	}
	sortByUpdated(sessions)
	if len(sessions) > MaxSessions {
		sessions = sessions[:MaxSessions]
	}
	return sessions
}

func firstUserPrompt(messages []Message) string {
	for _, m := range messages {
		if m.Role == "user" {
			return m.Content
		}
	}
	return ""
}

func normalizeRole(v any) string {
	if s, ok := v.(string); ok && s == "assistant" {
		return "assistant"
	}
	return "user"
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTimestamp(v any, fallback int64) int64 {
	switch t := v.(type) {
	case float64:
		if t > 0 {
			return int64(t)
		}
	case int64:
		if t > 0 {
			return t
		}
	case json.Number:
		if n, err := t.Int64(); err == nil && n > 0 {
			return n
		}
	}
	if fallback > 0 {
		return fallback
	}
	return time.Now().UnixMilli()
}
