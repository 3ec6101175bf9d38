package osm

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
)

// Kind is the source element type of an OSM record.
type Kind string

const (
	KindPoint        Kind = "node"
	KindLineOrArea   Kind = "way"
	KindComplexGroup Kind = "relation"
)

// ParseKind maps an Overpass type string to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindPoint, KindLineOrArea, KindComplexGroup:
		return Kind(s), true
	}
	return "", false
}

// Tags is the key/value mapping attached to an element. An absent key is
// distinct from a key carrying the empty string.
type Tags map[string]string

// Lookup returns the value for key and whether the key is present.
func (t Tags) Lookup(key string) (string, bool) {
	v, ok := t[key]
	return v, ok
}

// Value returns the value for key, or "" when absent.
func (t Tags) Value(key string) string {
	return t[key]
}

// NonEmpty reports whether key is present with a non-empty value.
func (t Tags) NonEmpty(key string) bool {
	return t[key] != ""
}

// Is reports whether key is present and its value is one of values.
func (t Tags) Is(key string, values ...string) bool {
	v, ok := t[key]
	if !ok {
		return false
	}
	for _, want := range values {
		if v == want {
			return true
		}
	}
	return false
}

// GeometryType discriminates the Geometry variants.
type GeometryType string

const (
	GeometryPoint      GeometryType = "Point"
	GeometryLineString GeometryType = "LineString"
	GeometryPolygon    GeometryType = "Polygon"
	GeometryUnresolved GeometryType = "Unresolved"
)

// Geometry is the resolved shape of an element. Exactly one of the payload
// fields is meaningful, selected by Type. Unresolved geometries keep the way's
// node references; they are never dereferenced.
type Geometry struct {
	Type    GeometryType
	Point   orb.Point
	Line    orb.LineString
	Polygon orb.Polygon
	Refs    []int64
}

// Orb returns the geometry as an orb.Geometry, or nil when unresolved.
func (g *Geometry) Orb() orb.Geometry {
	if g == nil {
		return nil
	}
	switch g.Type {
	case GeometryPoint:
		return g.Point
	case GeometryLineString:
		return g.Line
	case GeometryPolygon:
		return g.Polygon
	}
	return nil
}

type geometryJSON struct {
	Type        GeometryType    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Refs        []int64         `json:"refs,omitempty"`
}

// MarshalJSON encodes the geometry as {"type": ..., "coordinates": ...} in
// GeoJSON coordinate order, or {"type": "Unresolved", "refs": [...]}.
func (g Geometry) MarshalJSON() ([]byte, error) {
	out := geometryJSON{Type: g.Type}
	var coords any
	switch g.Type {
	case GeometryPoint:
		coords = g.Point
	case GeometryLineString:
		coords = g.Line
	case GeometryPolygon:
		coords = g.Polygon
	case GeometryUnresolved:
		out.Refs = g.Refs
	default:
		return nil, fmt.Errorf("unknown geometry type %q", g.Type)
	}
	if coords != nil {
		raw, err := json.Marshal(coords)
		if err != nil {
			return nil, err
		}
		out.Coordinates = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var in geometryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*g = Geometry{Type: in.Type}
	switch in.Type {
	case GeometryPoint:
		return json.Unmarshal(in.Coordinates, &g.Point)
	case GeometryLineString:
		return json.Unmarshal(in.Coordinates, &g.Line)
	case GeometryPolygon:
		return json.Unmarshal(in.Coordinates, &g.Polygon)
	case GeometryUnresolved:
		g.Refs = in.Refs
		if g.Refs == nil {
			g.Refs = []int64{}
		}
		return nil
	}
	return fmt.Errorf("unknown geometry type %q", in.Type)
}

// Member is one entry of a relation's member list.
type Member struct {
	Type string `json:"type"`
	Ref  int64  `json:"ref"`
	Role string `json:"role"`
}

// Element is one normalized map record. Elements are not modified after
// normalization.
type Element struct {
	ID       int64     `json:"id"`
	Kind     Kind      `json:"type"`
	Lat      *float64  `json:"lat,omitempty"`
	Lon      *float64  `json:"lon,omitempty"`
	Tags     Tags      `json:"tags"`
	NodeRefs []int64   `json:"nodes,omitempty"`
	Members  []Member  `json:"members,omitempty"`
	Geometry *Geometry `json:"geometry"`
}

// Name returns the element's name tag, or "Unnamed" when there is none. A
// present but empty name is returned as is.
func (e Element) Name() string {
	if n, ok := e.Tags.Lookup("name"); ok {
		return n
	}
	return "Unnamed"
}

// Collection is the normalized result of one query.
type Collection struct {
	Nodes     []Element `json:"nodes"`
	Ways      []Element `json:"ways"`
	Relations []Element `json:"relations"`
	// TotalElements is the record count reported by the source, including
	// records that were skipped during normalization.
	TotalElements int `json:"total_elements"`
}

// NewCollection returns an empty collection with non-nil slices.
func NewCollection() *Collection {
	return &Collection{
		Nodes:     []Element{},
		Ways:      []Element{},
		Relations: []Element{},
	}
}

// All returns every element in encounter order: nodes, ways, relations.
func (c *Collection) All() []Element {
	all := make([]Element, 0, len(c.Nodes)+len(c.Ways)+len(c.Relations))
	all = append(all, c.Nodes...)
	all = append(all, c.Ways...)
	return append(all, c.Relations...)
}

// Len is the number of normalized elements.
func (c *Collection) Len() int {
	return len(c.Nodes) + len(c.Ways) + len(c.Relations)
}

// Total is the source record count, never less than the normalized count.
func (c *Collection) Total() int {
	if n := c.Len(); c.TotalElements < n {
		return n
	}
	return c.TotalElements
}

// Add appends e to the slice matching its kind.
func (c *Collection) Add(e Element) {
	switch e.Kind {
	case KindPoint:
		c.Nodes = append(c.Nodes, e)
	case KindLineOrArea:
		c.Ways = append(c.Ways, e)
	case KindComplexGroup:
		c.Relations = append(c.Relations, e)
	}
}
