package fragment

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/personalolive/oliveboard/pkg/spec"
)

// wireFragment accepts both the nested {spec, data} shape the prompt asks
// for and a flat shape where widgets and dataSources sit at the top level,
// which smaller models produce often enough to tolerate.
type wireFragment struct {
	Spec *spec.DashboardSpec `json:"spec"`
	Data spec.Dataset        `json:"data"`

	Title       string            `json:"title"`
	Layout      string            `json:"layout"`
	Widgets     []spec.Widget     `json:"widgets"`
	DataSources []spec.DataSource `json:"dataSources"`
}

// ParseResponse parses the raw LLM response into a Fragment. Handles
// markdown code fences and attempts repair on malformed JSON. Widgets with
// unrecognized kinds are dropped rather than passed through untyped.
func ParseResponse(raw string) (*spec.Fragment, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" {
		return &spec.Fragment{}, nil
	}

	// Isolate the JSON object: everything between the first { and last }.
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	cleaned = cleaned[start : end+1]
	cleaned = scrubControlChars(cleaned)
	cleaned = fixTrailingCommas(cleaned)

	var wire wireFragment
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		// Quoting repair: the model sometimes emits single-quoted property
		// names.
		repaired := fixSingleQuotedKeys(cleaned)
		if err := json.Unmarshal([]byte(repaired), &wire); err != nil {
			return nil, fmt.Errorf("failed to parse LLM response: %w", err)
		}
	}

	return filterFragment(&wire), nil
}

// stripCodeFence removes markdown code block wrappers (```json ... ```).
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

var (
	controlCharPattern     = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
	trailingCommaPattern   = regexp.MustCompile(`,(\s*[}\]])`)
	singleQuotedKeyPattern = regexp.MustCompile(`'(\w+)'\s*:`)
)

func scrubControlChars(s string) string {
	return controlCharPattern.ReplaceAllString(s, "")
}

func fixTrailingCommas(s string) string {
	return trailingCommaPattern.ReplaceAllString(s, "$1")
}

func fixSingleQuotedKeys(s string) string {
	return singleQuotedKeyPattern.ReplaceAllString(s, `"$1":`)
}

// filterFragment validates and cleans the parsed fragment: flat shapes are
// lifted into the nested one, ids and queries are trimmed, and widgets whose
// kind is not recognized are skipped.
func filterFragment(wire *wireFragment) *spec.Fragment {
	out := &spec.Fragment{Data: wire.Data}

	var src spec.DashboardSpec
	if wire.Spec != nil {
		src = *wire.Spec
	} else {
		src = spec.DashboardSpec{
			Title:       wire.Title,
			Layout:      wire.Layout,
			Widgets:     wire.Widgets,
			DataSources: wire.DataSources,
		}
	}

	out.Spec.Title = strings.TrimSpace(src.Title)
	out.Spec.Layout = strings.TrimSpace(src.Layout)

	seenWidgets := make(map[string]bool, len(src.Widgets))
	out.Spec.Widgets = make([]spec.Widget, 0, len(src.Widgets))
	for _, w := range src.Widgets {
		w.ID = strings.TrimSpace(w.ID)
		if !spec.IsValidKind(string(w.Kind)) {
			continue // Skip unknown kinds
		}
		if w.ID != "" && seenWidgets[w.ID] {
			continue // The model repeated an id; keep the first occurrence
		}
		seenWidgets[w.ID] = true
		if w.IsFilter() && w.FilterKind == "" {
			w.FilterKind = spec.FilterDateRange
		}
		out.Spec.Widgets = append(out.Spec.Widgets, w)
	}

	seenSources := make(map[string]bool, len(src.DataSources))
	out.Spec.DataSources = make([]spec.DataSource, 0, len(src.DataSources))
	for _, ds := range src.DataSources {
		ds.ID = strings.TrimSpace(ds.ID)
		ds.Query = strings.TrimSpace(ds.Query)
		if ds.ID == "" && ds.Query == "" {
			continue
		}
		if ds.ID != "" && seenSources[ds.ID] {
			continue
		}
		seenSources[ds.ID] = true
		out.Spec.DataSources = append(out.Spec.DataSources, ds)
	}

	return out
}
