// Package filter evaluates active filter widgets against per-widget datasets
// at view time. It is stateless and pure: the same spec, data, and filter
// state always produce the same rows, inputs are never mutated, and no I/O
// happens here.
package filter

import "github.com/personalolive/oliveboard/pkg/spec"

// ApplyFilters returns the rows the widget should render after every
// applicable filter has been applied.
//
// A filter applies when it is a filter widget targeting widgetID and has a
// current value in state. Filters compose by sequential intersection, each
// narrowing the previous result. A date-range filter locates the first
// date-or-time column in the dataset; when no such column exists that filter
// is a no-op. Unknown filter kinds are skipped.
func ApplyFilters(s *spec.DashboardSpec, data spec.Dataset, state spec.FilterState, widgetID string) spec.Rows {
	if s == nil {
		return nil
	}
	target := s.FindWidget(widgetID)
	if target == nil || target.DataSource == "" {
		return nil
	}
	rows := data[target.DataSource]

	for i := range s.Widgets {
		w := &s.Widgets[i]
		if !w.IsFilter() || !targets(w, widgetID) {
			continue
		}
		value, ok := state[w.ID]
		if !ok {
			continue
		}
		switch w.FilterKind {
		case spec.FilterDateRange:
			rows = applyDateRange(rows, value)
		default:
			// Unknown filter kinds never alter the data.
		}
	}

	return rows
}

func targets(w *spec.Widget, widgetID string) bool {
	for _, id := range w.TargetWidgetIDs {
		if id == widgetID {
			return true
		}
	}
	return false
}

// applyDateRange keeps rows whose temporal column falls inside the inclusive
// range. The input slice is never modified; when the dataset has no temporal
// column it is returned as-is.
func applyDateRange(rows spec.Rows, r spec.DateRange) spec.Rows {
	column, ok := temporalColumn(rows)
	if !ok {
		return rows
	}
	kept := make(spec.Rows, 0, len(rows))
	for _, row := range rows {
		if inRange(row[column], r) {
			kept = append(kept, row)
		}
	}
	return kept
}
