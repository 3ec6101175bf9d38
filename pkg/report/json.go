package report

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/NERVsystems/osmsurvey/pkg/osm"
	"github.com/NERVsystems/osmsurvey/pkg/render"
)

// ReportTypeSurvey is the report_type of the engineering JSON document.
const ReportTypeSurvey = "mach9_engineering_survey"

var errMissingInput = errors.New("report: collection and rollup are required")

// Summary is the element count block of the JSON document.
type Summary struct {
	Total     int `json:"total"`
	Nodes     int `json:"nodes"`
	Ways      int `json:"ways"`
	Relations int `json:"relations"`
}

// EngineeringFeatures lists elements per category. Membership uses the loose
// per-category predicates below, independent of the grouped listings.
type EngineeringFeatures struct {
	Transportation []osm.Element `json:"transportation_objects"`
	Utility        []osm.Element `json:"utility_objects"`
	Civil          []osm.Element `json:"civil_engineering_features"`
	Drainage       []osm.Element `json:"drainage_structures"`
}

// Document is the engineering JSON report.
type Document struct {
	ReportType          string              `json:"report_type"`
	Summary             Summary             `json:"summary"`
	EngineeringFeatures EngineeringFeatures `json:"engineering_features"`
	RawData             *osm.Collection     `json:"raw_data"`
}

func jsonTransportation(t osm.Tags) bool {
	return t.Is("highway", "traffic_signals", "stop", "give_way") ||
		t.Is("barrier", "bollard") ||
		t.Is("man_made", "street_lamp")
}

func jsonUtility(t osm.Tags) bool {
	return t.Is("man_made", "manhole", "utility_pole", "street_cabinet") || t.Is("amenity", "fire_hydrant")
}

func jsonCivil(t osm.Tags) bool {
	return t.Is("man_made", "bridge") || t.NonEmpty("waterway") || t.Is("natural", "water")
}

func jsonDrainage(t osm.Tags) bool {
	return t.Is("man_made", "manhole") || t.Is("waterway", "drain", "ditch")
}

// BuildDocument assembles the JSON report for c.
func BuildDocument(c *osm.Collection) Document {
	features := EngineeringFeatures{
		Transportation: []osm.Element{},
		Utility:        []osm.Element{},
		Civil:          []osm.Element{},
		Drainage:       []osm.Element{},
	}
	for _, e := range c.All() {
		if jsonTransportation(e.Tags) {
			features.Transportation = append(features.Transportation, e)
		}
		if jsonUtility(e.Tags) {
			features.Utility = append(features.Utility, e)
		}
		if jsonCivil(e.Tags) {
			features.Civil = append(features.Civil, e)
		}
		if jsonDrainage(e.Tags) {
			features.Drainage = append(features.Drainage, e)
		}
	}
	return Document{
		ReportType: ReportTypeSurvey,
		Summary: Summary{
			Total:     c.Total(),
			Nodes:     len(c.Nodes),
			Ways:      len(c.Ways),
			Relations: len(c.Relations),
		},
		EngineeringFeatures: features,
		RawData:             c,
	}
}

// marshalIndent encodes v with two-space indentation, without HTML escaping
// and without a trailing newline.
func marshalIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// JSON renders the engineering JSON report.
func JSON(c *osm.Collection) ([]byte, error) {
	return marshalIndent(BuildDocument(c))
}

// RawData renders the normalized collection on its own.
func RawData(c *osm.Collection) ([]byte, error) {
	return marshalIndent(c)
}

// JSONRenderer writes the engineering JSON report file.
type JSONRenderer struct{}

func (JSONRenderer) Name() string        { return "mach9_json" }
func (JSONRenderer) Filename() string    { return "mach9_data.json" }
func (JSONRenderer) ContentType() string { return "application/json" }

// Render implements render.Renderer.
func (JSONRenderer) Render(in render.Input) ([]byte, error) {
	if in.Collection == nil {
		return nil, errMissingInput
	}
	return JSON(in.Collection)
}

// RawDataRenderer writes the normalized collection file.
type RawDataRenderer struct{}

func (RawDataRenderer) Name() string        { return "raw_data" }
func (RawDataRenderer) Filename() string    { return "osm_data.json" }
func (RawDataRenderer) ContentType() string { return "application/json" }

// Render implements render.Renderer.
func (RawDataRenderer) Render(in render.Input) ([]byte, error) {
	if in.Collection == nil {
		return nil, errMissingInput
	}
	return RawData(in.Collection)
}
