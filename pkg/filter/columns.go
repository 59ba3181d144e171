package filter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/coregx/ahocorasick"

	"github.com/personalolive/oliveboard/pkg/spec"
)

// temporalPatterns are the substrings that mark a column as date-bearing.
var temporalPatterns = []string{"date", "time"}

// temporalMatcher scans column names for temporal substrings in one pass.
var temporalMatcher = buildTemporalMatcher()

func buildTemporalMatcher() *ahocorasick.Automaton {
	automaton, err := ahocorasick.NewBuilder().
		AddStrings(temporalPatterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil
	}
	return automaton
}

// isTemporalColumn reports whether a column name contains "date" or "time",
// case-insensitive.
func isTemporalColumn(name string) bool {
	lower := strings.ToLower(name)
	if temporalMatcher == nil {
		return strings.Contains(lower, "date") || strings.Contains(lower, "time")
	}
	return len(temporalMatcher.FindAllOverlapping([]byte(lower))) > 0
}

// temporalColumn returns the first date-or-time column in the dataset's row
// shape. Column names are visited in sorted order so "first" is deterministic
// even though rows are maps.
func temporalColumn(rows spec.Rows) (string, bool) {
	if len(rows) == 0 {
		return "", false
	}
	names := make([]string, 0, len(rows[0]))
	for name := range rows[0] {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if isTemporalColumn(name) {
			return name, true
		}
	}
	return "", false
}

// dateLayouts are the accepted textual date formats, most common first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// inRange reports whether a cell value falls within the inclusive range.
// An empty bound is open on that side. When a value and a bound both parse
// as dates the comparison is chronological; otherwise it falls back to
// lexicographic order, which is correct for ISO-formatted strings anyway.
func inRange(value any, r spec.DateRange) bool {
	s := cellString(value)
	if r.Start != "" && compareDates(s, r.Start) < 0 {
		return false
	}
	if r.End != "" && compareDates(s, r.End) > 0 {
		return false
	}
	return true
}

func compareDates(a, b string) int {
	at, aok := parseDate(a)
	bt, bok := parseDate(b)
	if aok && bok {
		return at.Compare(bt)
	}
	return strings.Compare(a, b)
}

func cellString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}
