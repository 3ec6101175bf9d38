// Package rollup aggregates a normalized element collection into bucket
// counters, grouped listings and flattened tag tables.
package rollup

import "github.com/NERVsystems/osmsurvey/pkg/osm"

// Bucket group names.
const (
	GroupTransportation = "transportation"
	GroupUtility        = "utility"
	GroupCivil          = "civil"
	GroupSurvey         = "survey"
	GroupDrainage       = "drainage"
)

// Predicate decides whether an element's tags count toward a bucket.
type Predicate func(osm.Tags) bool

// Bucket is a named scalar counter with its own match rule.
type Bucket struct {
	Name  string
	Match Predicate
}

// BucketGroup is an ordered list of buckets reported together.
type BucketGroup struct {
	Name    string
	Buckets []Bucket
}

// Transportation predicates.
func trafficLights(t osm.Tags) bool { return t.Is("highway", "traffic_signals") }

func trafficSigns(t osm.Tags) bool {
	return !trafficLights(t) && (t.Is("highway", "stop", "give_way") || t.NonEmpty("traffic_sign"))
}

func bollards(t osm.Tags) bool { return t.Is("barrier", "bollard") }

func streetLights(t osm.Tags) bool {
	return t.Is("man_made", "street_lamp") || t.Is("highway", "street_lamp")
}

// Utility predicates.
func manholes(t osm.Tags) bool        { return t.Is("man_made", "manhole") }
func utilityPoles(t osm.Tags) bool    { return t.Is("man_made", "utility_pole") }
func utilityCabinets(t osm.Tags) bool { return t.Is("man_made", "street_cabinet") }
func fireHydrants(t osm.Tags) bool    { return t.Is("amenity", "fire_hydrant") }

// Civil engineering predicates. Several match on key presence alone.
func bridges(t osm.Tags) bool { return t.Is("man_made", "bridge") || t.NonEmpty("bridge") }
func tunnels(t osm.Tags) bool { return t.NonEmpty("tunnel") || t.Is("man_made", "tunnel") }

func waterStructures(t osm.Tags) bool {
	return t.NonEmpty("waterway") || t.Is("natural", "water")
}

func kerbs(t osm.Tags) bool          { return t.NonEmpty("kerb") }
func retainingWalls(t osm.Tags) bool { return t.Is("barrier", "retaining_wall") }
func noiseBarriers(t osm.Tags) bool  { return t.Is("barrier", "noise_barrier", "sound_barrier") }
func guardRails(t osm.Tags) bool     { return t.Is("barrier", "guard_rail", "crash_barrier") }
func stepsRamps(t osm.Tags) bool     { return t.Is("highway", "steps", "ramp") }

// Survey predicates.
func surveyPoints(t osm.Tags) bool {
	return t.Is("man_made", "survey_point", "benchmark", "marker")
}

func benchmarks(t osm.Tags) bool { return !surveyPoints(t) && t.Is("amenity", "benchmark") }

// Drainage predicates.
func drains(t osm.Tags) bool { return !manholes(t) && t.Is("waterway", "drain", "ditch") }

// DefaultBuckets returns the bucket groups in report order.
func DefaultBuckets() []BucketGroup {
	return []BucketGroup{
		{Name: GroupTransportation, Buckets: []Bucket{
			{"traffic_signs", trafficSigns},
			{"traffic_lights", trafficLights},
			{"bollards", bollards},
			{"street_lights", streetLights},
		}},
		{Name: GroupUtility, Buckets: []Bucket{
			{"manholes", manholes},
			{"utility_poles", utilityPoles},
			{"utility_cabinets", utilityCabinets},
			{"fire_hydrants", fireHydrants},
		}},
		{Name: GroupCivil, Buckets: []Bucket{
			{"bridges", bridges},
			{"tunnels", tunnels},
			{"water_structures", waterStructures},
			{"kerbs", kerbs},
			{"retaining_walls", retainingWalls},
			{"noise_barriers", noiseBarriers},
			{"guard_rails", guardRails},
			{"steps_ramps", stepsRamps},
		}},
		{Name: GroupSurvey, Buckets: []Bucket{
			{"survey_points", surveyPoints},
			{"benchmarks", benchmarks},
		}},
		{Name: GroupDrainage, Buckets: []Bucket{
			{"manholes", manholes},
			{"drains", drains},
		}},
	}
}

// ReportableKeys is the allow-list scanned for the flattened tables.
var ReportableKeys = []string{
	"highway", "railway", "aeroway", "waterway", "public_transport",
	"building", "barrier", "man_made", "power", "telecom",
	"landuse", "natural", "boundary", "amenity", "tunnel", "bridge",
	"kerb", "surface", "access", "traffic_sign", "traffic_calming",
}
