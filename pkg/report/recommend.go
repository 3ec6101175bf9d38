package report

import "github.com/NERVsystems/osmsurvey/pkg/rollup"

// lowDensityThreshold is the element count below which an area counts as sparse.
const lowDensityThreshold = 50

// Recommendation rule texts. Numbers belong to the rule, not to its position
// in the output.
const (
	RecLowDensity     = "1. Low data density - consider expanding survey area"
	RecSurveyControl  = "2. Add survey control points for accurate positioning"
	RecUtilities      = "3. Verify underground utility locations"
	RecTrafficControl = "4. Check for traffic control devices"

	RecAdequate     = "1. Data density appears adequate for engineering analysis"
	RecCriticalInfr = "2. Consider additional survey points for critical infrastructure"
)

// Recommend evaluates the advisory rules over r in fixed order. When no rule
// fires the two fallback lines are returned.
func Recommend(r *rollup.Result) []string {
	var recs []string
	if r.Total < lowDensityThreshold {
		recs = append(recs, RecLowDensity)
	}
	if r.SurveyTotal() == 0 {
		recs = append(recs, RecSurveyControl)
	}
	if r.Count(rollup.GroupUtility, "manholes") == 0 {
		recs = append(recs, RecUtilities)
	}
	if r.Count(rollup.GroupTransportation, "traffic_lights") == 0 {
		recs = append(recs, RecTrafficControl)
	}
	if len(recs) == 0 {
		return []string{RecAdequate, RecCriticalInfr}
	}
	return recs
}
