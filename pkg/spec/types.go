// Package spec defines the declarative dashboard model: the typed widget and
// data-source shapes produced by the LLM and consumed by the composition and
// filter engines. It owns the validity rules (unique ids, resolvable
// references) but performs no I/O.
package spec

// WidgetKind discriminates the widget union.
type WidgetKind string

const (
	KindKPI       WidgetKind = "kpi"
	KindBarChart  WidgetKind = "bar_chart"
	KindLineChart WidgetKind = "line_chart"
	KindAreaChart WidgetKind = "area_chart"
	KindPieChart  WidgetKind = "pie_chart"
	KindTable     WidgetKind = "table"
	KindFilter    WidgetKind = "filter"
)

// validKinds is the set of recognized widget kinds for validation.
var validKinds = map[WidgetKind]bool{
	KindKPI:       true,
	KindBarChart:  true,
	KindLineChart: true,
	KindAreaChart: true,
	KindPieChart:  true,
	KindTable:     true,
	KindFilter:    true,
}

// IsValidKind checks if a string is a recognized WidgetKind.
func IsValidKind(s string) bool {
	return validKinds[WidgetKind(s)]
}

// AllWidgetKinds lists every recognized widget kind for prompt construction.
var AllWidgetKinds = []string{
	string(KindKPI), string(KindBarChart), string(KindLineChart),
	string(KindAreaChart), string(KindPieChart), string(KindTable),
	string(KindFilter),
}

// FilterKind identifies the behavior of a filter widget.
type FilterKind string

const (
	// FilterDateRange narrows target datasets to rows whose first
	// date-or-time column falls within an inclusive [start, end] range.
	FilterDateRange FilterKind = "date_range"
)

// Widget is one visual unit in a dashboard. The union is closed over Kind;
// each kind reads only the fields it needs and the rest stay zero.
type Widget struct {
	ID    string     `json:"id"`
	Kind  WidgetKind `json:"kind"`
	Title string     `json:"title,omitempty"`

	// DataSource is the id of the data source backing this widget.
	// Filter widgets have none.
	DataSource string `json:"dataSource,omitempty"`

	// KPI fields.
	ValueField string `json:"valueField,omitempty"`
	TrendField string `json:"trendField,omitempty"`

	// Chart fields (bar, line, area, pie).
	XField     string `json:"xField,omitempty"`
	YField     string `json:"yField,omitempty"`
	GroupField string `json:"groupField,omitempty"`

	// Table fields.
	Columns []string `json:"columns,omitempty"`

	// Filter fields.
	FilterKind      FilterKind `json:"filterKind,omitempty"`
	TargetWidgetIDs []string   `json:"targetWidgetIds,omitempty"`
}

// IsFilter reports whether the widget is a filter widget.
func (w *Widget) IsFilter() bool {
	return w.Kind == KindFilter
}

// DataSource is a named, query-backed dataset definition. It owns no rows;
// data arrives out of band keyed by the source id.
type DataSource struct {
	ID         string `json:"id"`
	Query      string `json:"query"`
	PrimaryKey string `json:"primaryKey,omitempty"`
}

// DashboardSpec is the declarative description of one dashboard.
type DashboardSpec struct {
	Title       string       `json:"title,omitempty"`
	Layout      string       `json:"layout,omitempty"`
	Widgets     []Widget     `json:"widgets"`
	DataSources []DataSource `json:"dataSources"`
}

// Row is one result row: column name to scalar value.
type Row = map[string]any

// Rows is an ordered sequence of result rows.
type Rows []Row

// Dataset maps data-source ids to their rows.
type Dataset map[string]Rows

// Fragment is one spec+data pair produced by a single prompt turn,
// prior to merging.
type Fragment struct {
	Spec DashboardSpec `json:"spec"`
	Data Dataset       `json:"data"`
}

// DateRange is the current value of a date-range filter widget.
// Start and End are inclusive bounds.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FilterState maps filter-widget ids to their current values. It is
// view-state only and is never persisted with a session.
type FilterState map[string]DateRange
