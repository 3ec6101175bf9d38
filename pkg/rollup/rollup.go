package rollup

import (
	"sort"
	"strings"

	"github.com/NERVsystems/osmsurvey/pkg/classify"
	"github.com/NERVsystems/osmsurvey/pkg/osm"
)

// DetailSets are the rule sets rendered as grouped listings, in report order.
var DetailSets = []string{
	classify.SetTransportation,
	classify.SetUtility,
	classify.SetCivil,
	classify.SetSurvey,
	classify.SetDrainage,
}

// Counter is one bucket's value.
type Counter struct {
	Name  string
	Count int
}

// GroupCounts holds a bucket group's counters in declaration order.
type GroupCounts struct {
	Name     string
	Counters []Counter
}

// Get returns the named counter, or 0.
func (g GroupCounts) Get(name string) int {
	for _, c := range g.Counters {
		if c.Name == name {
			return c.Count
		}
	}
	return 0
}

// Total sums every counter in the group.
func (g GroupCounts) Total() int {
	n := 0
	for _, c := range g.Counters {
		n += c.Count
	}
	return n
}

// Detail is the grouped listing for one rule set.
type Detail struct {
	Set    string
	Groups []classify.LabelGroup
}

// FeatureCount is one row of the flattened key/value table.
type FeatureCount struct {
	Label string
	Count int
}

// Split divides the label on its first underscore. Keys that contain an
// underscore therefore split inside the key.
func (f FeatureCount) Split() (mainType, subType string) {
	mainType, subType, _ = strings.Cut(f.Label, "_")
	return mainType, subType
}

// TagCount is one row of the flattened key table.
type TagCount struct {
	Key   string
	Count int
}

// Result is the rollup of one collection. It holds no references back into
// the engine and is safe to share.
type Result struct {
	Total     int
	Nodes     int
	Ways      int
	Relations int

	Buckets   []GroupCounts
	Details   []Detail
	Features  map[string]int
	TagCounts map[string]int
}

// Group returns the named bucket group.
func (r *Result) Group(name string) GroupCounts {
	for _, g := range r.Buckets {
		if g.Name == name {
			return g
		}
	}
	return GroupCounts{Name: name}
}

// Count returns a single bucket value.
func (r *Result) Count(group, bucket string) int {
	return r.Group(group).Get(bucket)
}

// SurveyTotal is survey points plus benchmarks.
func (r *Result) SurveyTotal() int {
	return r.Group(GroupSurvey).Total()
}

// Detail returns the grouped listing for a rule set.
func (r *Result) Detail(set string) []classify.LabelGroup {
	for _, d := range r.Details {
		if d.Set == set {
			return d.Groups
		}
	}
	return nil
}

// SortedFeatures returns the key/value table ordered by full label.
func (r *Result) SortedFeatures() []FeatureCount {
	out := make([]FeatureCount, 0, len(r.Features))
	for l, n := range r.Features {
		out = append(out, FeatureCount{Label: l, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// SortedTags returns the key table ordered by key.
func (r *Result) SortedTags() []TagCount {
	out := make([]TagCount, 0, len(r.TagCounts))
	for k, n := range r.TagCounts {
		out = append(out, TagCount{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Engine runs bucket predicates and the classifier over a collection.
type Engine struct {
	catalog    *classify.Catalog
	buckets    []BucketGroup
	detailSets []string
	reportable map[string]bool
}

// NewEngine creates an engine over catalog with the default buckets and
// allow-list. A nil catalog selects classify.DefaultCatalog.
func NewEngine(catalog *classify.Catalog) *Engine {
	if catalog == nil {
		catalog = classify.DefaultCatalog()
	}
	reportable := make(map[string]bool, len(ReportableKeys))
	for _, k := range ReportableKeys {
		reportable[k] = true
	}
	return &Engine{
		catalog:    catalog,
		buckets:    DefaultBuckets(),
		detailSets: append([]string(nil), DetailSets...),
		reportable: reportable,
	}
}

// Catalog returns the engine's rule catalog.
func (e *Engine) Catalog() *classify.Catalog {
	return e.catalog
}

// Run computes a fresh Result. Running twice over the same collection yields
// equal results.
func (e *Engine) Run(c *osm.Collection) *Result {
	all := c.All()
	r := &Result{
		Total:     c.Total(),
		Nodes:     len(c.Nodes),
		Ways:      len(c.Ways),
		Relations: len(c.Relations),
		Buckets:   make([]GroupCounts, 0, len(e.buckets)),
		Details:   make([]Detail, 0, len(e.detailSets)),
		Features:  make(map[string]int),
		TagCounts: make(map[string]int),
	}

	for _, g := range e.buckets {
		gc := GroupCounts{Name: g.Name, Counters: make([]Counter, len(g.Buckets))}
		for i, b := range g.Buckets {
			gc.Counters[i].Name = b.Name
			for _, el := range all {
				if b.Match(el.Tags) {
					gc.Counters[i].Count++
				}
			}
		}
		r.Buckets = append(r.Buckets, gc)
	}

	for _, name := range e.detailSets {
		set, ok := e.catalog.Set(name)
		if !ok {
			continue
		}
		r.Details = append(r.Details, Detail{Set: name, Groups: classify.Group(all, set)})
	}

	for _, el := range all {
		for k, v := range el.Tags {
			if !e.reportable[k] {
				continue
			}
			r.Features[classify.Label(k, v)]++
			r.TagCounts[k]++
		}
	}
	return r
}
