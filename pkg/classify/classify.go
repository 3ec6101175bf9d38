package classify

import (
	"slices"

	"github.com/NERVsystems/osmsurvey/pkg/osm"
)

// Label is the match label for key and value.
func Label(key, value string) string {
	return key + "_" + value
}

// Match reports whether tags satisfy r and returns the label.
func (r Rule) Match(tags osm.Tags) (string, bool) {
	v, ok := tags.Lookup(r.Key)
	if !ok || !slices.Contains(r.Values, v) {
		return "", false
	}
	return Label(r.Key, v), true
}

// Classify returns every label tags match across sets, de-duplicated and in
// lexicographic order. The result does not depend on the order of sets.
func Classify(tags osm.Tags, sets ...RuleSet) []string {
	labels := make([]string, 0)
	for _, s := range sets {
		for _, r := range s.Rules {
			if l, ok := r.Match(tags); ok {
				labels = append(labels, l)
			}
		}
	}
	slices.Sort(labels)
	return slices.Compact(labels)
}

// LabelGroup holds the elements matching one key/value of a rule set.
type LabelGroup struct {
	Label    string
	Key      string
	Value    string
	Elements []osm.Element
}

// Group buckets elements by the labels they match in set. Elements keep
// encounter order within a group; groups follow the set's declared key order
// and then each key's declared value order. Empty groups are omitted.
func Group(elements []osm.Element, set RuleSet) []LabelGroup {
	matched := make(map[string][]osm.Element)
	for _, e := range elements {
		for _, r := range set.Rules {
			if l, ok := r.Match(e.Tags); ok {
				matched[l] = append(matched[l], e)
			}
		}
	}

	groups := make([]LabelGroup, 0, len(matched))
	seen := make(map[string]bool, len(matched))
	for _, r := range set.Rules {
		for _, v := range r.Values {
			l := Label(r.Key, v)
			if seen[l] || len(matched[l]) == 0 {
				continue
			}
			seen[l] = true
			groups = append(groups, LabelGroup{Label: l, Key: r.Key, Value: v, Elements: matched[l]})
		}
	}
	return groups
}
