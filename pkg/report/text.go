// Package report renders rollup results as survey documents: the engineering
// text report, its JSON companion, the CSV feature rollup and the generic
// overview report.
package report

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/NERVsystems/osmsurvey/pkg/classify"
	"github.com/NERVsystems/osmsurvey/pkg/osm"
	"github.com/NERVsystems/osmsurvey/pkg/render"
	"github.com/NERVsystems/osmsurvey/pkg/rollup"
)

var (
	heavyRule = strings.Repeat("=", 80)
	lightRule = strings.Repeat("-", 40)
)

// detailDisplayCap is how many elements each detail group lists.
const detailDisplayCap = 3

// displayTagKeys are the keys echoed on a detail item's Tags line, in order.
var displayTagKeys = []string{"highway", "barrier", "man_made", "amenity", "power", "waterway"}

type lines []string

func (l *lines) add(s string) {
	*l = append(*l, s)
}

func (l *lines) addf(format string, args ...any) {
	*l = append(*l, fmt.Sprintf(format, args...))
}

// titler title-cases each underscore-separated segment of a label.
type titler struct {
	caser cases.Caser
}

func newTitler() *titler {
	return &titler{caser: cases.Title(language.Und)}
}

func (t *titler) label(label string) string {
	parts := strings.Split(label, "_")
	for i, p := range parts {
		parts[i] = t.caser.String(p)
	}
	return strings.Join(parts, "_")
}

// Text renders the engineering and survey report. Lines are joined with "\n"
// and there is no trailing newline.
func Text(in render.Input) string {
	r := in.Rollup
	b := in.BBox
	t := newTitler()
	var out lines

	out.add(heavyRule)
	out.add("MACH9 ENGINEERING & SURVEY REPORT")
	out.add(heavyRule)
	out.add("")

	out.add("BOUNDING BOX:")
	out.addf("  Min Lat: %.6f", b.MinLat)
	out.addf("  Min Lon: %.6f", b.MinLon)
	out.addf("  Max Lat: %.6f", b.MaxLat)
	out.addf("  Max Lon: %.6f", b.MaxLon)
	out.addf("  Area: %.6f square degrees", b.Area())
	out.add("")

	out.add("SUMMARY STATISTICS:")
	out.addf("  Total Elements: %d", r.Total)
	out.addf("  Nodes: %d", r.Nodes)
	out.addf("  Ways: %d", r.Ways)
	out.addf("  Relations: %d", r.Relations)
	out.add("")

	out.add("ENGINEERING FEATURE ANALYSIS:")
	out.add(lightRule)
	out.add("")

	tr := r.Group(rollup.GroupTransportation)
	out.add("TRANSPORTATION OBJECTS:")
	out.addf("  Traffic Signs: %d", tr.Get("traffic_signs"))
	out.addf("  Traffic Lights: %d", tr.Get("traffic_lights"))
	out.addf("  Bollards: %d", tr.Get("bollards"))
	out.addf("  Street Lights: %d", tr.Get("street_lights"))
	out.add("")

	ut := r.Group(rollup.GroupUtility)
	out.add("UTILITY OBJECTS:")
	out.addf("  Manholes: %d", ut.Get("manholes"))
	out.addf("  Utility Infrastructure: %d", ut.Get("utility_poles")+ut.Get("utility_cabinets"))
	out.addf("  Fire Hydrants: %d", ut.Get("fire_hydrants"))
	out.add("")

	cv := r.Group(rollup.GroupCivil)
	out.add("CIVIL ENGINEERING FEATURES:")
	out.addf("  Bridges: %d", cv.Get("bridges"))
	out.addf("  Tunnels: %d", cv.Get("tunnels"))
	out.addf("  Water Structures: %d", cv.Get("water_structures"))
	out.addf("  Kerbs/Curbs: %d", cv.Get("kerbs"))
	out.addf("  Retaining Walls: %d", cv.Get("retaining_walls"))
	out.addf("  Noise Barriers: %d", cv.Get("noise_barriers"))
	out.addf("  Guard Rails: %d", cv.Get("guard_rails"))
	out.addf("  Steps/Ramps: %d", cv.Get("steps_ramps"))
	out.add("")

	out.add(heavyRule)
	out.add("DETAILED FEATURE BREAKDOWN")
	out.add(heavyRule)

	sections := []struct {
		heading string
		set     string
	}{
		{"TRANSPORTATION OBJECTS:", classify.SetTransportation},
		{"UTILITY OBJECTS:", classify.SetUtility},
		{"CIVIL ENGINEERING FEATURES:", classify.SetCivil},
	}
	for _, s := range sections {
		out.add(s.heading)
		for _, g := range r.Detail(s.set) {
			out.addf("  %s (%d found):", t.label(g.Label), len(g.Elements))
			for _, e := range capped(g.Elements) {
				out.addf("    - %s (%s)", e.Name(), e.Kind)
				if tags := displayTags(e.Tags); tags != "" {
					out.addf("      Tags: %s", tags)
				}
			}
		}
		out.add("")
	}

	out.add("SURVEY CONTROL POINTS:")
	survey := r.Detail(classify.SetSurvey)
	if len(survey) == 0 {
		out.add("  No features found in this category.")
	}
	for _, g := range survey {
		out.addf("  %s: %d found", t.label(g.Label), len(g.Elements))
		for _, e := range capped(g.Elements) {
			out.addf("    - %s (%s)", e.Name(), e.Kind)
		}
	}
	out.add("")

	out.add(heavyRule)
	out.add("INFRASTRUCTURE ANALYSIS")
	out.add(heavyRule)

	c := in.Collection
	pointsAndWays := append(append([]osm.Element(nil), c.Nodes...), c.Ways...)
	histogram(&out, "HIGHWAY INFRASTRUCTURE:", "segments", c.Ways, "highway")
	histogram(&out, "BARRIER INFRASTRUCTURE:", "features", pointsAndWays, "barrier")
	histogram(&out, "MAN-MADE INFRASTRUCTURE:", "features", pointsAndWays, "man_made")

	out.add(heavyRule)
	out.add("SURVEY & ENGINEERING RECOMMENDATIONS")
	out.add(heavyRule)
	for _, rec := range Recommend(r) {
		out.add(rec)
	}
	out.add("")
	out.add(heavyRule)

	return strings.Join(out, "\n")
}

func capped(elements []osm.Element) []osm.Element {
	if len(elements) > detailDisplayCap {
		return elements[:detailDisplayCap]
	}
	return elements
}

func displayTags(tags osm.Tags) string {
	var parts []string
	for _, k := range displayTagKeys {
		if v, ok := tags.Lookup(k); ok {
			parts = append(parts, k+"="+v)
		}
	}
	return strings.Join(parts, ", ")
}

// histogram counts the values of key across elements and writes one sorted
// line per value. Nothing is written when no element carries the key.
func histogram(out *lines, heading, unit string, elements []osm.Element, key string) {
	counts := make(map[string]int)
	for _, e := range elements {
		if v, ok := e.Tags.Lookup(key); ok {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return
	}
	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Strings(values)

	out.add(heading)
	for _, v := range values {
		out.addf("  %s: %d %s", v, counts[v], unit)
	}
	out.add("")
}

// TextRenderer writes the engineering report file.
type TextRenderer struct{}

func (TextRenderer) Name() string        { return "mach9_text" }
func (TextRenderer) Filename() string    { return "mach9_engineering_report.txt" }
func (TextRenderer) ContentType() string { return "text/plain; charset=utf-8" }

// Render implements render.Renderer.
func (TextRenderer) Render(in render.Input) ([]byte, error) {
	if in.Collection == nil || in.Rollup == nil {
		return nil, errMissingInput
	}
	return []byte(Text(in)), nil
}
