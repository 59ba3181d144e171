package spec

import "fmt"

// Problems returns every structural violation in the spec: duplicate widget
// or data-source ids, widgets pointing at unknown sources, and filter widgets
// targeting unknown widgets. An empty slice means the spec is well formed.
//
// Violations are reported, not repaired. The composition engine guarantees
// merged specs stay clean; hand-crafted fragments may not be, and the
// renderer treats their broken widgets as non-renderable.
func (s *DashboardSpec) Problems() []string {
	var problems []string

	widgetIDs := make(map[string]bool, len(s.Widgets))
	for _, w := range s.Widgets {
		if widgetIDs[w.ID] {
			problems = append(problems, fmt.Sprintf("duplicate widget id %q", w.ID))
		}
		widgetIDs[w.ID] = true
	}

	sourceIDs := make(map[string]bool, len(s.DataSources))
	for _, ds := range s.DataSources {
		if sourceIDs[ds.ID] {
			problems = append(problems, fmt.Sprintf("duplicate data source id %q", ds.ID))
		}
		sourceIDs[ds.ID] = true
	}

	for _, w := range s.Widgets {
		if w.DataSource != "" && !sourceIDs[w.DataSource] {
			problems = append(problems, fmt.Sprintf("widget %q references unknown data source %q", w.ID, w.DataSource))
		}
		if w.IsFilter() {
			for _, target := range w.TargetWidgetIDs {
				if !widgetIDs[target] {
					problems = append(problems, fmt.Sprintf("filter %q targets unknown widget %q", w.ID, target))
				}
			}
		}
	}

	return problems
}

// HasWidget reports whether a widget with the given id exists.
func (s *DashboardSpec) HasWidget(id string) bool {
	for _, w := range s.Widgets {
		if w.ID == id {
			return true
		}
	}
	return false
}

// FindWidget returns the widget with the given id, or nil.
func (s *DashboardSpec) FindWidget(id string) *Widget {
	for i := range s.Widgets {
		if s.Widgets[i].ID == id {
			return &s.Widgets[i]
		}
	}
	return nil
}

// HasDataSource reports whether a data source with the given id exists.
func (s *DashboardSpec) HasDataSource(id string) bool {
	for _, ds := range s.DataSources {
		if ds.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the widget.
func (w Widget) Clone() Widget {
	out := w
	if w.Columns != nil {
		out.Columns = append([]string(nil), w.Columns...)
	}
	if w.TargetWidgetIDs != nil {
		out.TargetWidgetIDs = append([]string(nil), w.TargetWidgetIDs...)
	}
	return out
}

// Clone returns a deep copy of the spec.
func (s DashboardSpec) Clone() DashboardSpec {
	out := s
	out.Widgets = make([]Widget, len(s.Widgets))
	for i, w := range s.Widgets {
		out.Widgets[i] = w.Clone()
	}
	out.DataSources = append([]DataSource(nil), s.DataSources...)
	return out
}

// Clone returns a deep copy of the rows. Row values are scalars and are
// copied by assignment.
func (r Rows) Clone() Rows {
	if r == nil {
		return nil
	}
	out := make(Rows, len(r))
	for i, row := range r {
		cp := make(Row, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// Clone returns a deep copy of the dataset.
func (d Dataset) Clone() Dataset {
	if d == nil {
		return nil
	}
	out := make(Dataset, len(d))
	for id, rows := range d {
		out[id] = rows.Clone()
	}
	return out
}

// Clone returns a deep copy of the fragment.
func (f Fragment) Clone() Fragment {
	return Fragment{Spec: f.Spec.Clone(), Data: f.Data.Clone()}
}

// IsEmpty reports whether the fragment carries no widgets, sources, or rows.
func (f Fragment) IsEmpty() bool {
	return len(f.Spec.Widgets) == 0 && len(f.Spec.DataSources) == 0 && len(f.Data) == 0
}
