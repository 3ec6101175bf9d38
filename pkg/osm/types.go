// Package osm provides the OpenStreetMap element model and an Overpass API client.
package osm

import "encoding/json"

// rawResponse is the top-level Overpass JSON document. Records are kept raw so
// one malformed record cannot fail the whole batch.
type rawResponse struct {
	Elements []json.RawMessage `json:"elements"`
}

// rawElement mirrors an Overpass element record.
type rawElement struct {
	ID       *int64            `json:"id"`
	Type     string            `json:"type"`
	Lat      *float64          `json:"lat"`
	Lon      *float64          `json:"lon"`
	Tags     map[string]string `json:"tags"`
	Nodes    []int64           `json:"nodes"`
	Geometry *[]rawPoint       `json:"geometry"`
	Members  []Member          `json:"members"`
}

type rawPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
