package rollup

import (
	"reflect"
	"testing"

	"github.com/NERVsystems/osmsurvey/pkg/classify"
	"github.com/NERVsystems/osmsurvey/pkg/osm"
)

func node(id int64, tags osm.Tags) osm.Element {
	return osm.Element{ID: id, Kind: osm.KindPoint, Tags: tags}
}

func way(id int64, tags osm.Tags) osm.Element {
	return osm.Element{ID: id, Kind: osm.KindLineOrArea, Tags: tags}
}

func collection(elements ...osm.Element) *osm.Collection {
	c := osm.NewCollection()
	for _, e := range elements {
		c.Add(e)
	}
	c.TotalElements = c.Len()
	return c
}

func TestBucketPredicates(t *testing.T) {
	tests := []struct {
		name   string
		tags   osm.Tags
		group  string
		bucket string
		want   int
	}{
		{"signal is a light", osm.Tags{"highway": "traffic_signals"}, GroupTransportation, "traffic_lights", 1},
		{"signal is not a sign", osm.Tags{"highway": "traffic_signals", "traffic_sign": "yes"}, GroupTransportation, "traffic_signs", 0},
		{"stop is a sign", osm.Tags{"highway": "stop"}, GroupTransportation, "traffic_signs", 1},
		{"any traffic_sign value", osm.Tags{"traffic_sign": "DE:274"}, GroupTransportation, "traffic_signs", 1},
		{"empty traffic_sign", osm.Tags{"traffic_sign": ""}, GroupTransportation, "traffic_signs", 0},
		{"highway street lamp", osm.Tags{"highway": "street_lamp"}, GroupTransportation, "street_lights", 1},
		{"bridge key presence", osm.Tags{"bridge": "viaduct"}, GroupCivil, "bridges", 1},
		{"bridge man_made", osm.Tags{"man_made": "bridge"}, GroupCivil, "bridges", 1},
		{"empty bridge value", osm.Tags{"bridge": ""}, GroupCivil, "bridges", 0},
		{"tunnel key", osm.Tags{"tunnel": "culvert"}, GroupCivil, "tunnels", 1},
		{"any waterway", osm.Tags{"waterway": "river"}, GroupCivil, "water_structures", 1},
		{"natural water", osm.Tags{"natural": "water"}, GroupCivil, "water_structures", 1},
		{"kerb presence", osm.Tags{"kerb": "lowered"}, GroupCivil, "kerbs", 1},
		{"sound barrier", osm.Tags{"barrier": "sound_barrier"}, GroupCivil, "noise_barriers", 1},
		{"crash barrier", osm.Tags{"barrier": "crash_barrier"}, GroupCivil, "guard_rails", 1},
		{"ramp", osm.Tags{"highway": "ramp"}, GroupCivil, "steps_ramps", 1},
		{"footway is not a step", osm.Tags{"highway": "footway"}, GroupCivil, "steps_ramps", 0},
		{"marker", osm.Tags{"man_made": "marker"}, GroupSurvey, "survey_points", 1},
		{"amenity benchmark", osm.Tags{"amenity": "benchmark"}, GroupSurvey, "benchmarks", 1},
		{"survey point wins over benchmark", osm.Tags{"man_made": "survey_point", "amenity": "benchmark"}, GroupSurvey, "benchmarks", 0},
		{"manhole drains", osm.Tags{"man_made": "manhole"}, GroupDrainage, "manholes", 1},
		{"manhole wins over ditch", osm.Tags{"man_made": "manhole", "waterway": "ditch"}, GroupDrainage, "drains", 0},
		{"ditch", osm.Tags{"waterway": "ditch"}, GroupDrainage, "drains", 1},
		{"stream is not a drain", osm.Tags{"waterway": "stream"}, GroupDrainage, "drains", 0},
		{"cabinet", osm.Tags{"man_made": "street_cabinet"}, GroupUtility, "utility_cabinets", 1},
	}

	engine := NewEngine(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := engine.Run(collection(node(1, tt.tags)))
			if got := r.Count(tt.group, tt.bucket); got != tt.want {
				t.Errorf("%s/%s = %d, want %d", tt.group, tt.bucket, got, tt.want)
			}
		})
	}
}

func TestBucketsCountEveryKind(t *testing.T) {
	c := collection(
		node(1, osm.Tags{"bridge": "yes"}),
		way(2, osm.Tags{"bridge": "yes"}),
		osm.Element{ID: 3, Kind: osm.KindComplexGroup, Tags: osm.Tags{"bridge": "yes"}},
	)
	if got := NewEngine(nil).Run(c).Count(GroupCivil, "bridges"); got != 3 {
		t.Errorf("bridges = %d, want 3", got)
	}
}

func TestBucketOrder(t *testing.T) {
	r := NewEngine(nil).Run(collection())

	var groups []string
	for _, g := range r.Buckets {
		groups = append(groups, g.Name)
	}
	want := []string{GroupTransportation, GroupUtility, GroupCivil, GroupSurvey, GroupDrainage}
	if !reflect.DeepEqual(groups, want) {
		t.Errorf("group order = %v, want %v", groups, want)
	}

	var names []string
	for _, c := range r.Group(GroupTransportation).Counters {
		names = append(names, c.Name)
	}
	if !reflect.DeepEqual(names, []string{"traffic_signs", "traffic_lights", "bollards", "street_lights"}) {
		t.Errorf("transportation counters = %v", names)
	}
}

func TestDetailCountVersusDisplay(t *testing.T) {
	var elements []osm.Element
	for i := int64(1); i <= 5; i++ {
		elements = append(elements, node(i, osm.Tags{"barrier": "bollard"}))
	}
	r := NewEngine(nil).Run(collection(elements...))

	if got := r.Count(GroupTransportation, "bollards"); got != 5 {
		t.Errorf("bollards = %d, want 5", got)
	}
	groups := r.Detail(classify.SetTransportation)
	if len(groups) != 1 || groups[0].Label != "barrier_bollard" {
		t.Fatalf("transportation groups = %+v", groups)
	}
	if len(groups[0].Elements) != 5 {
		t.Errorf("grouped listing holds %d elements, want all 5", len(groups[0].Elements))
	}
}

func TestFlattenedTables(t *testing.T) {
	c := collection(
		node(1, osm.Tags{"barrier": "wall", "name": "ignored"}),
		node(2, osm.Tags{"building": "yes"}),
		way(3, osm.Tags{"barrier": "fence", "surface": "asphalt"}),
		way(4, osm.Tags{"barrier": "fence", "leisure": "park"}),
	)
	r := NewEngine(nil).Run(c)

	var labels []string
	for _, f := range r.SortedFeatures() {
		labels = append(labels, f.Label)
	}
	want := []string{"barrier_fence", "barrier_wall", "building_yes", "surface_asphalt"}
	if !reflect.DeepEqual(labels, want) {
		t.Errorf("features = %v, want %v", labels, want)
	}
	if r.Features["barrier_fence"] != 2 {
		t.Errorf("barrier_fence = %d, want 2", r.Features["barrier_fence"])
	}

	tags := r.SortedTags()
	wantTags := []TagCount{{"barrier", 3}, {"building", 1}, {"surface", 1}}
	if !reflect.DeepEqual(tags, wantTags) {
		t.Errorf("tags = %v, want %v", tags, wantTags)
	}
}

func TestFeatureCountSplit(t *testing.T) {
	tests := []struct {
		label     string
		wantMain  string
		wantValue string
	}{
		{"barrier_fence", "barrier", "fence"},
		{"man_made_street_lamp", "man", "made_street_lamp"},
		{"solo", "solo", ""},
	}
	for _, tt := range tests {
		m, v := FeatureCount{Label: tt.label}.Split()
		if m != tt.wantMain || v != tt.wantValue {
			t.Errorf("Split(%s) = %s, %s; want %s, %s", tt.label, m, v, tt.wantMain, tt.wantValue)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	c := collection(
		node(1, osm.Tags{"amenity": "fire_hydrant"}),
		node(2, osm.Tags{"man_made": "manhole", "barrier": "bollard"}),
		way(3, osm.Tags{"highway": "steps", "kerb": "raised"}),
	)
	engine := NewEngine(nil)

	first := engine.Run(c)
	second := engine.Run(c)
	if !reflect.DeepEqual(first, second) {
		t.Error("two runs over the same collection differ")
	}
}

func TestEndToEndScenario(t *testing.T) {
	c := collection(
		node(1, osm.Tags{"amenity": "fire_hydrant"}),
		way(2, osm.Tags{"highway": "footway"}),
	)
	r := NewEngine(nil).Run(c)

	if r.Total != 2 {
		t.Errorf("Total = %d, want 2", r.Total)
	}
	if got := r.Count(GroupUtility, "fire_hydrants"); got != 1 {
		t.Errorf("fire_hydrants = %d, want 1", got)
	}
	if got := r.Count(GroupCivil, "steps_ramps"); got != 0 {
		t.Errorf("steps_ramps = %d, want 0", got)
	}
	if r.SurveyTotal() != 0 {
		t.Errorf("SurveyTotal() = %d, want 0", r.SurveyTotal())
	}
	if r.Count(GroupUtility, "manholes") != 0 {
		t.Error("no manholes expected")
	}
}

func TestUnknownDetailSetSkipped(t *testing.T) {
	cat := classify.NewCatalog(classify.RuleSet{Name: classify.SetUtility, Rules: []classify.Rule{
		{Key: "amenity", Values: []string{"fire_hydrant"}},
	}})
	r := NewEngine(cat).Run(collection(node(1, osm.Tags{"amenity": "fire_hydrant"})))

	if len(r.Details) != 1 || r.Details[0].Set != classify.SetUtility {
		t.Errorf("details = %+v, want only utility", r.Details)
	}
	if r.Detail(classify.SetCivil) != nil {
		t.Error("missing rule set should have no listing")
	}
}
