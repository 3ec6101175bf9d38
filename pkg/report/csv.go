package report

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/NERVsystems/osmsurvey/pkg/render"
	"github.com/NERVsystems/osmsurvey/pkg/rollup"
)

// CSV category column values.
const (
	categorySummary      = "SUMMARY"
	categoryElementCount = "ELEMENT_COUNT"
	categoryBreakdown    = "FEATURE_BREAKDOWN"
	categoryFeatureCount = "FEATURE_COUNT"
	categoryTagCounts    = "TAG_COUNTS"
	categoryTagCount     = "TAG_COUNT"
)

var blankRow = []string{"", "", "", ""}

// CSV renders the feature rollup table. Rows end with CRLF.
func CSV(r *rollup.Result) ([]byte, error) {
	rows := [][]string{
		{"Feature_Type", "Feature_Value", "Count", "Category"},
		{"ELEMENT_TYPES", "", "", categorySummary},
		{"NODES", "", strconv.Itoa(r.Nodes), categoryElementCount},
		{"WAYS", "", strconv.Itoa(r.Ways), categoryElementCount},
		{"RELATIONS", "", strconv.Itoa(r.Relations), categoryElementCount},
		blankRow,
		{"MAIN_FEATURES", "", "", categoryBreakdown},
	}
	for _, f := range r.SortedFeatures() {
		main, sub := f.Split()
		rows = append(rows, []string{main, sub, strconv.Itoa(f.Count), categoryFeatureCount})
	}
	rows = append(rows, blankRow, []string{"TAG_SUMMARY", "", "", categoryTagCounts})
	for _, tc := range r.SortedTags() {
		rows = append(rows, []string{tc.Key, "", strconv.Itoa(tc.Count), categoryTagCount})
	}

	var buf bytes.Buffer
	for _, row := range rows {
		writeRow(&buf, row)
	}
	return buf.Bytes(), nil
}

// writeRow quotes a field only when it holds a comma, a double quote, CR or
// LF. Embedded quotes are doubled and embedded newlines are written as is.
// Leading spaces do not trigger quoting.
func writeRow(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if !strings.ContainsAny(f, ",\"\r\n") {
			buf.WriteString(f)
			continue
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(f, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteString("\r\n")
}

// CSVRenderer writes the feature rollup file.
type CSVRenderer struct{}

func (CSVRenderer) Name() string        { return "csv_rollup" }
func (CSVRenderer) Filename() string    { return "feature_rollup.csv" }
func (CSVRenderer) ContentType() string { return "text/csv" }

// Render implements render.Renderer.
func (CSVRenderer) Render(in render.Input) ([]byte, error) {
	if in.Rollup == nil {
		return nil, errMissingInput
	}
	return CSV(in.Rollup)
}
