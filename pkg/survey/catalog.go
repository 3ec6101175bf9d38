// Package survey joins the Overpass fetcher, the rollup engine, the report
// renderers and the session store into the operations the HTTP API and the
// MCP tools expose.
package survey

import (
	"fmt"
	"strings"

	"github.com/NERVsystems/osmsurvey/pkg/core"
)

// AvailableFeatureTypes is every tag key a query may ask for.
var AvailableFeatureTypes = []string{
	// transportation
	"highway", "railway", "aeroway", "waterway", "aerialway", "public_transport",
	// buildings and infrastructure
	"building", "barrier", "man_made", "power", "telecom",
	// land use and natural
	"landuse", "natural", "geological", "boundary",
	// amenities and services
	"amenity", "shop", "tourism", "leisure", "sport", "healthcare",
	// administrative and places
	"place", "office", "craft", "military", "emergency",
	// historical and cultural
	"historic", "heritage", "archaeological_site",
	// civil engineering and survey
	"kerb", "tunnel", "bridge", "embankment", "retaining_wall", "cycle_barrier",
	"survey_point", "benchmark", "marker", "culvert", "drain", "ditch",
	"street_lamp", "traffic_signals", "bollard", "fence", "wall", "gate",
	"manhole", "utility_pole", "street_cabinet", "fire_hydrant", "pipeline",
	"tower", "mast", "antenna", "substation", "generator", "transformer",
	"noise_barrier", "sound_barrier", "guard_rail", "crash_barrier",
	"steps", "ramp", "elevator", "escalator", "handrail", "railing",
	// drainage and inlets
	"inlet", "inlet_grate", "inlet_kerb_grate", "kerb_opening", "storm_drain", "catch_basin",
	// additional
	"route", "traffic_sign", "traffic_calming", "surface", "access",
	"addr", "name", "ref", "operator", "brand", "website", "phone",
	"opening_hours", "fee", "wheelchair", "smoking", "wifi",
}

// DefaultFeatureTypes are queried when a request names none.
var DefaultFeatureTypes = []string{
	"amenity", "building", "highway", "landuse", "leisure",
	"natural", "shop", "tourism", "waterway", "railway",
	"aeroway", "barrier", "boundary", "power", "public_transport",
}

// SurveyFeatureTypes are the engineering-oriented keys queried whenever the
// mach9 output is requested.
var SurveyFeatureTypes = []string{
	"highway", "railway", "aeroway", "waterway", "public_transport",
	"barrier", "man_made", "building",
	"power", "telecom", "amenity",
	"natural", "landuse", "boundary",
	"traffic_sign", "traffic_calming",
	"surface", "access", "kerb",
	"tunnel", "bridge", "embankment", "retaining_wall", "cycle_barrier",
	"survey_point", "benchmark", "marker", "culvert", "drain", "ditch",
	"street_lamp", "traffic_signals", "bollard", "fence", "wall", "gate",
	"manhole", "utility_pole", "street_cabinet", "fire_hydrant", "pipeline",
	"tower", "mast", "antenna", "substation", "generator", "transformer",
	"noise_barrier", "sound_barrier", "guard_rail", "crash_barrier",
	"steps", "ramp", "elevator", "escalator", "handrail", "railing",
	"inlet", "inlet_grate", "inlet_kerb_grate", "kerb_opening", "storm_drain", "catch_basin",
}

// SurveyCategories groups the leading survey feature types for display.
var SurveyCategories = map[string][]string{
	"transportation_infrastructure": {"highway", "railway", "aeroway", "waterway", "public_transport"},
	"physical_barriers":             {"barrier", "man_made", "building"},
	"utility_infrastructure":        {"power", "telecom", "amenity"},
	"survey_features":               {"natural", "landuse", "boundary"},
	"traffic_control":               {"traffic_sign", "traffic_calming"},
	"surface_access":                {"surface", "access"},
}

// SurveyDescription accompanies the survey feature type listing.
const SurveyDescription = "Feature types optimized for civil engineering, surveying, and infrastructure analysis"

var available = func() map[string]bool {
	m := make(map[string]bool, len(AvailableFeatureTypes))
	for _, ft := range AvailableFeatureTypes {
		m[ft] = true
	}
	return m
}()

// IsAvailable reports whether ft may be queried.
func IsAvailable(ft string) bool {
	return available[ft]
}

// ValidateFeatureTypes resolves the keys to query. An empty request yields
// DefaultFeatureTypes. Unknown keys are dropped with a warning; when nothing
// is left every available key is queried. More than limit requested keys is an
// error, counted before filtering.
func ValidateFeatureTypes(requested []string, limit int) ([]string, []string, error) {
	if len(requested) == 0 {
		return append([]string(nil), DefaultFeatureTypes...), nil, nil
	}
	if limit > 0 && len(requested) > limit {
		return nil, nil, core.NewError(core.ErrTooManyFeatureTypes, fmt.Sprintf("Too many feature types. Maximum: %d", limit)).
			WithGuidance("Request fewer feature types or use the mach9 output for the engineering set.")
	}

	var warnings []string
	kept := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, ft := range requested {
		ft = strings.TrimSpace(ft)
		switch {
		case !IsAvailable(ft):
			warnings = append(warnings, fmt.Sprintf("Unknown feature type '%s' ignored", ft))
		case !seen[ft]:
			seen[ft] = true
			kept = append(kept, ft)
		}
	}
	if len(kept) == 0 {
		warnings = append(warnings, "No valid feature types requested; querying all available feature types")
		return append([]string(nil), AvailableFeatureTypes...), warnings, nil
	}
	return kept, warnings, nil
}

// Output is one requested artifact family.
type Output string

const (
	OutputReport  Output = "report"
	OutputPlot    Output = "plot"
	OutputMap     Output = "map"
	OutputSummary Output = "summary"
	OutputData    Output = "data"
	OutputMach9   Output = "mach9"
	OutputAll     Output = "all"
)

// ValidOutputs lists the accepted output names.
var ValidOutputs = []Output{OutputReport, OutputPlot, OutputMap, OutputSummary, OutputData, OutputMach9, OutputAll}

// generation order of the expanded outputs
var outputOrder = []Output{OutputReport, OutputData, OutputPlot, OutputMap, OutputSummary, OutputMach9}

// allOutputs is what "all" stands for. mach9 is only produced when named.
var allOutputs = []Output{OutputReport, OutputPlot, OutputMap, OutputSummary, OutputData}

// ExpandOutputs validates requested outputs and returns the set to produce in
// generation order. An empty request means "all".
func ExpandOutputs(requested []string) ([]Output, error) {
	if len(requested) == 0 {
		requested = []string{string(OutputAll)}
	}

	var invalid []string
	want := make(map[Output]bool)
	for _, r := range requested {
		o := Output(strings.ToLower(strings.TrimSpace(r)))
		if !validOutput(o) {
			invalid = append(invalid, r)
			continue
		}
		if o == OutputAll {
			for _, a := range allOutputs {
				want[a] = true
			}
			continue
		}
		want[o] = true
	}
	if len(invalid) > 0 {
		valid := make([]string, len(ValidOutputs))
		for i, o := range ValidOutputs {
			valid[i] = string(o)
		}
		return nil, core.NewValidationError(core.ErrInvalidOutputType,
			fmt.Sprintf("Invalid output types: [%s]. Valid types: [%s]", strings.Join(invalid, ", "), strings.Join(valid, ", ")))
	}

	out := make([]Output, 0, len(want))
	for _, o := range outputOrder {
		if want[o] {
			out = append(out, o)
		}
	}
	return out, nil
}

func validOutput(o Output) bool {
	for _, v := range ValidOutputs {
		if v == o {
			return true
		}
	}
	return false
}

func hasOutput(outputs []Output, o Output) bool {
	for _, v := range outputs {
		if v == o {
			return true
		}
	}
	return false
}
