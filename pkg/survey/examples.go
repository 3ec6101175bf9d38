package survey

import "github.com/NERVsystems/osmsurvey/pkg/geo"

// Example is a ready-made generate request for one use case.
type Example struct {
	Description string          `json:"description"`
	Request     GenerateRequest `json:"request"`
}

// exampleBBox frames the London Eye.
var exampleBBox = geo.NewBoundingBox(51.5033, -0.1196, 51.5043, -0.1186)

// Examples returns the sample requests keyed by name.
func Examples() map[string]Example {
	req := func(types []string, outputs ...string) GenerateRequest {
		return GenerateRequest{
			QueryRequest: QueryRequest{BBox: exampleBBox, FeatureTypes: types},
			Outputs:      outputs,
		}
	}
	return map[string]Example{
		"london_eye": {
			Description: "London Eye, UK - All features",
			Request:     req(nil, "report", "plot", "map"),
		},
		"comprehensive_urban": {
			Description: "Comprehensive urban features - buildings, amenities, transportation, utilities",
			Request: req([]string{
				"highway", "building", "amenity", "shop", "tourism",
				"leisure", "natural", "landuse", "power", "telecom",
				"barrier", "man_made", "railway", "waterway", "place",
				"office", "craft", "healthcare", "sport", "historic",
			}, "report", "plot", "map"),
		},
		"transportation_infrastructure": {
			Description: "Transportation and infrastructure features",
			Request: req([]string{
				"highway", "railway", "public_transport", "aeroway",
				"waterway", "barrier", "man_made", "power", "telecom",
				"traffic_sign", "traffic_calming", "surface", "access",
			}, "plot", "map", "data"),
		},
		"commercial_amenities": {
			Description: "Commercial and amenity features",
			Request: req([]string{
				"building", "amenity", "shop", "tourism", "leisure",
				"sport", "healthcare", "office", "craft", "place",
				"historic", "heritage", "emergency", "military",
			}, "report", "data"),
		},
		"mach9_engineering": {
			Description: "Mach9 Engineering Report - Comprehensive civil engineering and survey features",
			Request:     req(nil, "mach9"),
		},
	}
}
