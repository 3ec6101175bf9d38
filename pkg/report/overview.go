package report

import (
	"sort"
	"strings"

	"github.com/NERVsystems/osmsurvey/pkg/osm"
	"github.com/NERVsystems/osmsurvey/pkg/render"
)

const (
	overviewTopFeatures = 20
	overviewTopTags     = 10
	overviewSamples     = 3
	overviewSampleTags  = 3
)

// primaryKeys decide an element's feature type in the overview, first match wins.
var primaryKeys = []string{
	"amenity", "building", "highway", "landuse", "leisure",
	"natural", "shop", "tourism", "waterway", "railway",
}

type ranked struct {
	name  string
	count int
}

// rank orders counts by descending count, then by name.
func rank(counts map[string]int, limit int) []ranked {
	out := make([]ranked, 0, len(counts))
	for k, n := range counts {
		out = append(out, ranked{k, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Overview renders the generic OSM data report for any collection.
func Overview(in render.Input) string {
	c := in.Collection
	b := in.BBox
	var out lines

	out.add(heavyRule)
	out.add("OSM DATA REPORT")
	out.add(heavyRule)
	out.addf("Generated: %s", in.GeneratedAt.Format("2006-01-02 15:04:05"))
	out.addf("Bounding Box: %.6f, %.6f to %.6f, %.6f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
	out.add("")

	out.add("SUMMARY STATISTICS")
	out.add(lightRule)
	out.addf("Total Elements: %d", c.Total())
	out.addf("  - Nodes (Points): %d", len(c.Nodes))
	out.addf("  - Ways (Lines/Polygons): %d", len(c.Ways))
	out.addf("  - Relations: %d", len(c.Relations))
	out.add("")
	out.add("Geometry Types:")
	for _, g := range geometryTypes(c) {
		out.addf("  - %s: %d", g.name, g.count)
	}
	out.add("")

	out.add("FEATURE TYPE ANALYSIS")
	out.add(lightRule)
	features := primaryFeatures(c)
	if len(features) == 0 {
		out.add("No tagged features found")
	} else {
		out.add("Top Feature Types:")
		for _, f := range rank(features, overviewTopFeatures) {
			out.addf("  %s: %d", f.name, f.count)
		}
	}
	out.add("")

	out.add("DETAILED BREAKDOWN")
	out.add(lightRule)
	for _, kind := range []struct {
		heading  string
		elements []osm.Element
	}{
		{"NODES", c.Nodes},
		{"WAYS", c.Ways},
		{"RELATIONS", c.Relations},
	} {
		if len(kind.elements) == 0 {
			continue
		}
		out.addf("%s (%d total):", kind.heading, len(kind.elements))
		for _, k := range rank(tagKeyCounts(kind.elements), overviewTopTags) {
			out.addf("  %s: %d", k.name, k.count)
		}
		out.add("")
	}

	out.add("SAMPLE DATA")
	out.add(lightRule)
	if len(c.Nodes) > 0 {
		out.add("Sample Nodes:")
		for i, n := range firstN(c.Nodes, overviewSamples) {
			out.addf("  Node %d:", i+1)
			out.addf("    ID: %d", n.ID)
			if n.Lat != nil && n.Lon != nil {
				out.addf("    Location: %.6f, %.6f", *n.Lat, *n.Lon)
			}
			if len(n.Tags) > 0 {
				out.addf("    Tags: %s", sampleTags(n.Tags))
			}
			out.add("")
		}
	}
	if len(c.Ways) > 0 {
		out.add("Sample Ways:")
		for i, w := range firstN(c.Ways, overviewSamples) {
			out.addf("  Way %d:", i+1)
			out.addf("    ID: %d", w.ID)
			out.addf("    Nodes: %d", len(w.NodeRefs))
			if len(w.Tags) > 0 {
				out.addf("    Tags: %s", sampleTags(w.Tags))
			}
			if w.Geometry != nil {
				out.addf("    Geometry: %s", w.Geometry.Type)
			}
			out.add("")
		}
	}

	return strings.Join(out, "\n")
}

// geometryTypes counts points (every node) and the resolved way geometries.
func geometryTypes(c *osm.Collection) []ranked {
	counts := map[osm.GeometryType]int{}
	for _, w := range c.Ways {
		if w.Geometry != nil {
			counts[w.Geometry.Type]++
		}
	}
	out := []ranked{{string(osm.GeometryPoint), len(c.Nodes)}}
	for _, t := range []osm.GeometryType{osm.GeometryLineString, osm.GeometryPolygon, osm.GeometryUnresolved} {
		if n := counts[t]; n > 0 {
			out = append(out, ranked{string(t), n})
		}
	}
	return out
}

func primaryFeatures(c *osm.Collection) map[string]int {
	counts := make(map[string]int)
	for _, e := range c.All() {
		for _, k := range primaryKeys {
			if v, ok := e.Tags.Lookup(k); ok {
				counts[k+"="+v]++
				break
			}
		}
	}
	return counts
}

func tagKeyCounts(elements []osm.Element) map[string]int {
	counts := make(map[string]int)
	for _, e := range elements {
		for k := range e.Tags {
			counts[k]++
		}
	}
	return counts
}

func firstN(elements []osm.Element, n int) []osm.Element {
	if len(elements) > n {
		return elements[:n]
	}
	return elements
}

// sampleTags formats the first few tags in key order as {k=v, ...}.
func sampleTags(tags osm.Tags) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > overviewSampleTags {
		keys = keys[:overviewSampleTags]
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + tags[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// OverviewRenderer writes the generic overview report file.
type OverviewRenderer struct{}

func (OverviewRenderer) Name() string        { return "report" }
func (OverviewRenderer) Filename() string    { return "osm_report.txt" }
func (OverviewRenderer) ContentType() string { return "text/plain; charset=utf-8" }

// Render implements render.Renderer.
func (OverviewRenderer) Render(in render.Input) ([]byte, error) {
	if in.Collection == nil {
		return nil, errMissingInput
	}
	return []byte(Overview(in)), nil
}
