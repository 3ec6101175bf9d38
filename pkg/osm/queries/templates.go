// Package queries provides utilities for building OpenStreetMap API queries.
package queries

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/NERVsystems/osmsurvey/pkg/geo"
)

// DefaultTimeoutSeconds is the server-side timeout written into every query.
const DefaultTimeoutSeconds = 25

// OverpassBuilder provides a fluent interface for building Overpass API queries.
// Every filter is emitted inside one union group so the result holds nodes,
// ways and relations matching any of them.
type OverpassBuilder struct {
	timeout int
	filters []string
	output  string
}

// NewOverpassBuilder creates a new Overpass query builder with initial settings.
// All queries request JSON output format.
func NewOverpassBuilder() *OverpassBuilder {
	return &OverpassBuilder{
		timeout: DefaultTimeoutSeconds,
		filters: make([]string, 0),
		output:  "geom",
	}
}

// WithTimeout sets the [timeout:N] setting. Non-positive values omit it.
func (b *OverpassBuilder) WithTimeout(seconds int) *OverpassBuilder {
	b.timeout = seconds
	return b
}

// WithFeatureInBbox adds an nwr filter selecting every element that carries
// key, whatever its value, inside bbox.
func (b *OverpassBuilder) WithFeatureInBbox(key string, bbox geo.BoundingBox) *OverpassBuilder {
	b.filters = append(b.filters, fmt.Sprintf(`nwr["%s"](%s);`, escapeKey(key), formatBbox(bbox)))
	return b
}

// WithOutput specifies the output verbosity (default is 'geom').
// Common options include 'body', 'center', 'geom', etc.
func (b *OverpassBuilder) WithOutput(outputType string) *OverpassBuilder {
	b.output = outputType
	return b
}

// Build returns the complete Overpass query string.
func (b *OverpassBuilder) Build() string {
	var buf strings.Builder
	buf.WriteString("[out:json]")
	if b.timeout > 0 {
		fmt.Fprintf(&buf, "[timeout:%d]", b.timeout)
	}
	buf.WriteString(";(")
	for _, f := range b.filters {
		buf.WriteString(f)
	}
	fmt.Fprintf(&buf, ");out %s;", b.output)
	return buf.String()
}

// FeatureQuery builds the union query for keys inside bbox with full geometry.
func FeatureQuery(bbox geo.BoundingBox, keys []string, timeoutSeconds int) string {
	b := NewOverpassBuilder().WithTimeout(timeoutSeconds)
	for _, k := range keys {
		b.WithFeatureInBbox(k, bbox)
	}
	return b.Build()
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeKey(key string) string {
	return keyEscaper.Replace(key)
}

// formatBbox renders south,west,north,east with the shortest exact decimal form.
func formatBbox(b geo.BoundingBox) string {
	return strings.Join([]string{
		strconv.FormatFloat(b.MinLat, 'f', -1, 64),
		strconv.FormatFloat(b.MinLon, 'f', -1, 64),
		strconv.FormatFloat(b.MaxLat, 'f', -1, 64),
		strconv.FormatFloat(b.MaxLon, 'f', -1, 64),
	}, ",")
}
