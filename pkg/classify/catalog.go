// Package classify maps element tags onto named engineering rule sets.
package classify

// Rule set names.
const (
	SetTransportation = "transportation_objects"
	SetUtility        = "utility_objects"
	SetCivil          = "civil_engineering_features"
	SetSurvey         = "survey_control_points"
	SetDrainage       = "drainage_structures"
	SetTrafficControl = "traffic_control"
)

// Rule accepts an element whose Key tag holds one of Values.
type Rule struct {
	Key    string
	Values []string
}

// RuleSet is a named, ordered list of rules. Rule order is the display order
// of grouped listings.
type RuleSet struct {
	Name  string
	Rules []Rule
}

// Catalog is an immutable collection of rule sets, built once and passed to
// the classifier and rollup explicitly.
type Catalog struct {
	sets   []RuleSet
	byName map[string]int
}

// NewCatalog builds a catalog from sets. Later sets with a duplicate name
// replace earlier ones.
func NewCatalog(sets ...RuleSet) *Catalog {
	c := &Catalog{byName: make(map[string]int, len(sets))}
	for _, s := range sets {
		s = cloneSet(s)
		if i, ok := c.byName[s.Name]; ok {
			c.sets[i] = s
			continue
		}
		c.byName[s.Name] = len(c.sets)
		c.sets = append(c.sets, s)
	}
	return c
}

// Set returns the named rule set.
func (c *Catalog) Set(name string) (RuleSet, bool) {
	i, ok := c.byName[name]
	if !ok {
		return RuleSet{}, false
	}
	return cloneSet(c.sets[i]), true
}

// Sets returns every rule set in declaration order.
func (c *Catalog) Sets() []RuleSet {
	out := make([]RuleSet, len(c.sets))
	for i, s := range c.sets {
		out[i] = cloneSet(s)
	}
	return out
}

// Names returns the rule set names in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.sets))
	for i, s := range c.sets {
		names[i] = s.Name
	}
	return names
}

func cloneSet(s RuleSet) RuleSet {
	rules := make([]Rule, len(s.Rules))
	for i, r := range s.Rules {
		rules[i] = Rule{Key: r.Key, Values: append([]string(nil), r.Values...)}
	}
	return RuleSet{Name: s.Name, Rules: rules}
}

// DefaultCatalog returns the engineering rule tables.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		RuleSet{Name: SetTransportation, Rules: []Rule{
			{"highway", []string{"traffic_signals", "stop", "give_way", "traffic_sign"}},
			{"barrier", []string{"bollard", "fence", "wall", "gate", "chain", "cable_barrier"}},
			{"man_made", []string{"street_lamp", "street_cabinet", "utility_pole"}},
			{"amenity", []string{"fire_station", "police", "emergency_services"}},
		}},
		RuleSet{Name: SetUtility, Rules: []Rule{
			{"amenity", []string{"fire_hydrant", "waste_disposal", "recycling"}},
			{"man_made", []string{"manhole", "utility_pole", "pipeline", "tower", "mast"}},
			{"power", []string{"line", "pole", "tower", "substation", "generator"}},
			{"telecom", []string{"pole", "tower", "mast", "antenna"}},
		}},
		RuleSet{Name: SetCivil, Rules: []Rule{
			{"man_made", []string{"bridge", "tunnel", "embankment", "cutting", "pier", "breakwater",
				"pipeline", "tower", "mast", "substation", "generator", "transformer"}},
			{"waterway", []string{"drain", "ditch", "stream", "river", "canal", "culvert"}},
			{"natural", []string{"water", "wetland", "coastline"}},
			{"highway", []string{"bridleway", "footway", "cycleway", "path", "track", "steps", "ramp"}},
			{"kerb", []string{"yes", "raised", "lowered", "flush", "rolled", "no"}},
			{"barrier", []string{"retaining_wall", "noise_barrier", "sound_barrier", "guard_rail",
				"crash_barrier", "cycle_barrier", "bollard", "fence", "wall", "gate"}},
			{"amenity", []string{"fire_hydrant", "waste_disposal", "recycling", "benchmark"}},
			{"power", []string{"line", "pole", "tower", "substation", "generator", "transformer"}},
			{"telecom", []string{"pole", "tower", "mast", "antenna"}},
		}},
		RuleSet{Name: SetSurvey, Rules: []Rule{
			{"man_made", []string{"survey_point", "benchmark", "marker"}},
			{"amenity", []string{"benchmark"}},
		}},
		RuleSet{Name: SetDrainage, Rules: []Rule{
			{"man_made", []string{"manhole", "drain", "gutter", "culvert"}},
			{"waterway", []string{"drain", "ditch", "stream"}},
			{"highway", []string{"drain"}},
		}},
		RuleSet{Name: SetTrafficControl, Rules: []Rule{
			{"highway", []string{"traffic_signals", "stop", "give_way", "traffic_sign"}},
			{"barrier", []string{"bollard", "fence", "wall", "gate"}},
			{"man_made", []string{"street_lamp", "traffic_signals"}},
		}},
	)
}
