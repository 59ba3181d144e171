package session

import (
	"encoding/json"
	"sort"
)

// Collection is the ordered set of chat sessions, most recently updated
// first, capped at MaxSessions. It is not safe for concurrent use; callers
// serialize access (the board service holds the lock).
type Collection struct {
	sessions []*ChatSession
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{sessions: []*ChatSession{}}
}

// Restore builds a collection from a persisted blob, normalizing every
// record. A nil or corrupt blob yields an empty collection.
func Restore(raw []byte) *Collection {
	return &Collection{sessions: NormalizeCollection(raw)}
}

// Upsert inserts or replaces a session by id, re-sorts by UpdatedAt
// descending, and silently evicts everything past MaxSessions — always the
// least recently updated entries.
func (c *Collection) Upsert(s *ChatSession) {
	replaced := false
	for i, existing := range c.sessions {
		if existing.ID == s.ID {
			c.sessions[i] = s
			replaced = true
			break
		}
	}
	if !replaced {
		c.sessions = append(c.sessions, s)
	}
	sortByUpdated(c.sessions)
	if len(c.sessions) > MaxSessions {
		c.sessions = c.sessions[:MaxSessions]
	}
}

// Find returns the session with the given id, or nil.
func (c *Collection) Find(id string) *ChatSession {
	for _, s := range c.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// List returns the sessions most recently updated first.
func (c *Collection) List() []*ChatSession {
	out := make([]*ChatSession, len(c.sessions))
	copy(out, c.sessions)
	return out
}

// Len returns the number of sessions.
func (c *Collection) Len() int {
	return len(c.sessions)
}

// Encode serializes the collection into the versioned persistence envelope,
// with every session's datasets capped at MaxPersistedRows per source.
func (c *Collection) Encode() ([]byte, error) {
	trimmed := make([]*ChatSession, 0, len(c.sessions))
	for _, s := range c.sessions {
		cp := *s
		if s.Current != nil {
			frag := TrimForPersistence(*s.Current)
			cp.Current = &frag
		}
		cp.Dashboards = make([]Snapshot, len(s.Dashboards))
		for i, snap := range s.Dashboards {
			frag := TrimForPersistence(snap.Fragment())
			snap.Spec = frag.Spec
			snap.Data = frag.Data
			cp.Dashboards[i] = snap
		}
		trimmed = append(trimmed, &cp)
	}

	env := struct {
		Version  int            `json:"version"`
		Sessions []*ChatSession `json:"sessions"`
	}{Version: EnvelopeVersion, Sessions: trimmed}
	return json.Marshal(env)
}

func sortByUpdated(sessions []*ChatSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt > sessions[j].UpdatedAt
	})
}
