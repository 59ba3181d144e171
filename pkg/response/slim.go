// Package response provides slim JSON views of sessions and dashboards:
// only the fields list-style clients actually render, so transcripts and
// row data never ride along with a sidebar refresh.
package response

import (
	"github.com/personalolive/oliveboard/pkg/session"
)

// SlimSession is the session-list entry. Messages, snapshots, and dataset
// rows are omitted.
type SlimSession struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Widgets   int    `json:"widgets"`
	Turns     int    `json:"turns"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// FromSession converts a full session to its list entry.
func FromSession(s *session.ChatSession) SlimSession {
	out := SlimSession{
		ID:        s.ID,
		Title:     s.Title,
		Turns:     len(s.Dashboards),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.Current != nil {
		out.Widgets = len(s.Current.Spec.Widgets)
	}
	return out
}

// FromSessions converts a session list, preserving order.
func FromSessions(sessions []*session.ChatSession) []SlimSession {
	out := make([]SlimSession, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, FromSession(s))
	}
	return out
}
