// Package compose merges independently-generated dashboard fragments into one
// coherent dashboard. Each merge renames every incoming widget and data source
// under a fresh batch namespace, so id collisions across prompt turns are
// structurally impossible rather than merely unlikely.
package compose

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/personalolive/oliveboard/pkg/spec"
)

// Merger produces collision-free unions of dashboard fragments. The zero
// value is ready to use; a single Merger must be shared by all merges in a
// process so namespace tokens never repeat.
type Merger struct {
	seq atomic.Uint64
}

// NewMerger creates a Merger.
func NewMerger() *Merger {
	return &Merger{}
}

// nextToken returns a batch namespace token unique to one merge call.
// A process-wide monotonic counter rules out the collisions a clock-tick
// timestamp could still produce.
func (m *Merger) nextToken() string {
	return "b" + strconv.FormatUint(m.seq.Add(1), 10)
}

// Merge combines an incoming fragment with the existing merged state and
// returns the union. It never fails and never mutates its inputs.
//
// With no existing state (first turn) the incoming fragment is the result,
// unchanged. Otherwise every incoming widget and data source is renamed to
// <id>_<token>, references between them are rewritten through the same remap
// table, and the renamed pieces are appended onto a copy of the existing
// fragment. Nothing is ever overwritten or dropped.
func (m *Merger) Merge(existing *spec.Fragment, incoming spec.Fragment) spec.Fragment {
	if existing == nil {
		return incoming
	}
	if incoming.IsEmpty() {
		return existing.Clone()
	}

	token := m.nextToken()
	out := existing.Clone()
	if out.Data == nil {
		out.Data = make(spec.Dataset)
	}

	// Rename data sources first so widget references can be rewritten.
	// An id reused within the incoming fragment itself would rename every
	// occurrence to the same namespaced id, so later occurrences get
	// placeholders; references resolve to the first occurrence.
	sourceRemap := make(map[string]string, len(incoming.Spec.DataSources))
	for _, ds := range incoming.Spec.DataSources {
		oldID := ds.ID
		_, dup := sourceRemap[oldID]
		if oldID == "" || dup {
			oldID = placeholderID()
		}
		renamed := ds
		renamed.ID = namespaced(oldID, token)
		if !dup && ds.ID != "" {
			sourceRemap[ds.ID] = renamed.ID
		}
		out.Spec.DataSources = append(out.Spec.DataSources, renamed)
	}

	// Widgets get new ids in a first pass so filter targets can be rewritten
	// in the second.
	widgetRemap := make(map[string]string, len(incoming.Spec.Widgets))
	renamedWidgets := make([]spec.Widget, 0, len(incoming.Spec.Widgets))
	for _, w := range incoming.Spec.Widgets {
		oldID := w.ID
		_, dup := widgetRemap[oldID]
		if oldID == "" || dup {
			oldID = placeholderID()
		}
		renamed := w.Clone()
		renamed.ID = namespaced(oldID, token)
		if !dup && w.ID != "" {
			widgetRemap[w.ID] = renamed.ID
		}
		renamedWidgets = append(renamedWidgets, renamed)
	}
	for i := range renamedWidgets {
		w := &renamedWidgets[i]
		if w.DataSource != "" {
			if mapped, ok := sourceRemap[w.DataSource]; ok {
				w.DataSource = mapped
			}
		}
		for j, target := range w.TargetWidgetIDs {
			if mapped, ok := widgetRemap[target]; ok {
				w.TargetWidgetIDs[j] = mapped
			}
		}
	}
	out.Spec.Widgets = append(out.Spec.Widgets, renamedWidgets...)

	// Move datasets under their renamed source ids. Keys without a matching
	// source entry are namespaced anyway so they cannot shadow existing data.
	for key, rows := range incoming.Data {
		newKey, ok := sourceRemap[key]
		if !ok {
			newKey = namespaced(key, token)
		}
		out.Data[newKey] = rows.Clone()
	}

	return out
}

// namespaced appends the batch token to an id.
func namespaced(id, token string) string {
	return id + "_" + token
}

// placeholderID generates an id for a fragment element that arrived without
// one, so the uniqueness invariant holds even for malformed input.
func placeholderID() string {
	return "gen_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
