package report

import (
	"strings"
	"testing"
	"time"

	"github.com/NERVsystems/osmsurvey/pkg/geo"
	"github.com/NERVsystems/osmsurvey/pkg/osm"
	"github.com/NERVsystems/osmsurvey/pkg/render"
	"github.com/NERVsystems/osmsurvey/pkg/rollup"
)

const hydrantPayload = `{"elements": [
  {"type": "node", "id": 1, "lat": 40.78, "lon": -73.97, "tags": {"amenity": "fire_hydrant"}},
  {"type": "way", "id": 2, "nodes": [10, 11], "tags": {"highway": "footway"},
   "geometry": [{"lat": 40.776, "lon": -73.974}, {"lat": 40.784, "lon": -73.966}]}
]}`

var hydrantBBox = geo.BoundingBox{MinLat: 40.775, MinLon: -73.975, MaxLat: 40.785, MaxLon: -73.965}

func hydrantInput(t *testing.T) render.Input {
	t.Helper()
	c, err := osm.Normalize([]byte(hydrantPayload))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	return render.Input{
		Collection:  c,
		BBox:        hydrantBBox,
		Rollup:      rollup.NewEngine(nil).Run(c),
		GeneratedAt: time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
	}
}

const hydrantReport = `================================================================================
MACH9 ENGINEERING & SURVEY REPORT
================================================================================

BOUNDING BOX:
  Min Lat: 40.775000
  Min Lon: -73.975000
  Max Lat: 40.785000
  Max Lon: -73.965000
  Area: 0.000100 square degrees

SUMMARY STATISTICS:
  Total Elements: 2
  Nodes: 1
  Ways: 1
  Relations: 0

ENGINEERING FEATURE ANALYSIS:
----------------------------------------

TRANSPORTATION OBJECTS:
  Traffic Signs: 0
  Traffic Lights: 0
  Bollards: 0
  Street Lights: 0

UTILITY OBJECTS:
  Manholes: 0
  Utility Infrastructure: 0
  Fire Hydrants: 1

CIVIL ENGINEERING FEATURES:
  Bridges: 0
  Tunnels: 0
  Water Structures: 0
  Kerbs/Curbs: 0
  Retaining Walls: 0
  Noise Barriers: 0
  Guard Rails: 0
  Steps/Ramps: 0

================================================================================
DETAILED FEATURE BREAKDOWN
================================================================================
TRANSPORTATION OBJECTS:

UTILITY OBJECTS:
  Amenity_Fire_Hydrant (1 found):
    - Unnamed (node)
      Tags: amenity=fire_hydrant

CIVIL ENGINEERING FEATURES:
  Highway_Footway (1 found):
    - Unnamed (way)
      Tags: highway=footway
  Amenity_Fire_Hydrant (1 found):
    - Unnamed (node)
      Tags: amenity=fire_hydrant

SURVEY CONTROL POINTS:
  No features found in this category.

================================================================================
INFRASTRUCTURE ANALYSIS
================================================================================
HIGHWAY INFRASTRUCTURE:
  footway: 1 segments

================================================================================
SURVEY & ENGINEERING RECOMMENDATIONS
================================================================================
1. Low data density - consider expanding survey area
2. Add survey control points for accurate positioning
3. Verify underground utility locations
4. Check for traffic control devices

================================================================================`

func TestTextHydrantScenario(t *testing.T) {
	got := Text(hydrantInput(t))
	if got != hydrantReport {
		gl := strings.Split(got, "\n")
		wl := strings.Split(hydrantReport, "\n")
		for i := 0; i < len(gl) && i < len(wl); i++ {
			if gl[i] != wl[i] {
				t.Fatalf("line %d = %q, want %q", i+1, gl[i], wl[i])
			}
		}
		t.Fatalf("got %d lines, want %d", len(gl), len(wl))
	}
}

func TestTextDetailCapAndTags(t *testing.T) {
	c := osm.NewCollection()
	for i := 1; i <= 5; i++ {
		c.Add(osm.Element{ID: int64(i), Kind: osm.KindPoint, Tags: osm.Tags{
			"barrier": "bollard", "name": "Post", "waterway": "", "surface": "asphalt",
		}})
	}
	in := render.Input{Collection: c, BBox: hydrantBBox, Rollup: rollup.NewEngine(nil).Run(c)}
	out := Text(in)

	if !strings.Contains(out, "  Barrier_Bollard (5 found):") {
		t.Error("missing bollard group heading")
	}
	if n := strings.Count(out, "    - Post (node)"); n != 6 {
		// three listed under transportation, three under civil
		t.Errorf("listed items = %d, want 6", n)
	}
	if !strings.Contains(out, "      Tags: barrier=bollard, waterway=\n") {
		t.Error("tags line should follow display key order and keep empty values")
	}
	if !strings.Contains(out, "  Bollards: 5") {
		t.Error("bollard bucket not rendered")
	}
	if !strings.Contains(out, "BARRIER INFRASTRUCTURE:\n  bollard: 5 features") {
		t.Error("barrier histogram not rendered")
	}
	if strings.Contains(out, "HIGHWAY INFRASTRUCTURE:") {
		t.Error("highway histogram should be omitted without highway ways")
	}
	if strings.HasSuffix(out, "\n") {
		t.Error("report should not end with a newline")
	}
}

func TestTextSurveyPoints(t *testing.T) {
	c := osm.NewCollection()
	c.Add(osm.Element{ID: 1, Kind: osm.KindPoint, Tags: osm.Tags{"man_made": "survey_point", "name": "BM 12"}})
	in := render.Input{Collection: c, BBox: hydrantBBox, Rollup: rollup.NewEngine(nil).Run(c)}
	out := Text(in)

	if !strings.Contains(out, "SURVEY CONTROL POINTS:\n  Man_Made_Survey_Point: 1 found\n    - BM 12 (node)\n") {
		t.Errorf("survey section not rendered:\n%s", out)
	}
	if strings.Contains(out, RecSurveyControl) {
		t.Error("survey control recommendation should not fire")
	}
}

func TestTextRenderer(t *testing.T) {
	var r render.Renderer = TextRenderer{}
	if r.Filename() != "mach9_engineering_report.txt" {
		t.Errorf("Filename() = %s", r.Filename())
	}
	if _, err := r.Render(render.Input{}); err == nil {
		t.Error("expected error without input")
	}
	out, err := r.Render(hydrantInput(t))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if string(out) != hydrantReport {
		t.Error("Render() differs from Text()")
	}
}
