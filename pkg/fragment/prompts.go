package fragment

import (
	"fmt"
	"strings"

	"github.com/personalolive/oliveboard/pkg/spec"
)

// SystemPrompt instructs the model to emit one dashboard fragment as strict
// JSON. The shape mirrors spec.Fragment so the parser can decode it directly.
var SystemPrompt = fmt.Sprintf(`You are an expert SQL and dashboard designer. Given a database schema and a user request, respond with a JSON object describing a dashboard fragment:

{
  "spec": {
    "title": "short dashboard title",
    "widgets": [
      {"id": "w1", "kind": "bar_chart", "title": "...", "dataSource": "s1", "xField": "...", "yField": "..."}
    ],
    "dataSources": [
      {"id": "s1", "query": "SELECT ..."}
    ]
  },
  "data": {}
}

WIDGET KINDS: %s

VISUALIZATION RULES:
- Choose the most appropriate kind for the data and the user's intent:
  * bar_chart: comparing categories, top-N items, discrete comparisons
  * line_chart: trends over time, continuous data, time series
  * pie_chart: proportions, percentages, parts of a whole
  * area_chart: cumulative values or stacked trends over time
  * kpi: a single headline number (set valueField, optionally trendField)
  * table: only when raw data display is specifically requested
  * filter: a date_range control (set filterKind and targetWidgetIds)
- Prefer charts over tables when possible
- Every non-filter widget must reference a dataSource id defined in the same fragment

TECHNICAL RULES:
- SQL must be a single SELECT statement (no INSERT, UPDATE, DELETE, DROP)
- Leave "data" as an empty object; rows are filled in by the caller
- Return ONLY valid JSON: no markdown code blocks, no backticks, no commentary`,
	strings.Join(spec.AllWidgetKinds, ", "))

// BuildUserPrompt combines the system prompt, the schema context, and the
// user's request into one completion prompt.
func BuildUserPrompt(userPrompt, schemaDDL string) string {
	return fmt.Sprintf(`%s

Database Schema:
%s

User Request:
%s

CRITICAL JSON FORMATTING REQUIREMENTS:
1. Use DOUBLE QUOTES for all property names and string values
2. Property names MUST be quoted
3. No trailing commas, no comments, no control characters in strings
4. Do not include any markdown formatting, code blocks, or backticks
5. Return pure, valid JSON only`, SystemPrompt, schemaDDL, userPrompt)
}
