package osm

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
)

// Normalize decodes an Overpass JSON payload into a Collection. Only an
// undecodable document is an error; malformed records are skipped.
func Normalize(data []byte) (*Collection, error) {
	var resp rawResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	c := NewCollection()
	c.TotalElements = len(resp.Elements)
	for _, raw := range resp.Elements {
		e, ok := normalizeRecord(raw)
		if !ok {
			continue
		}
		c.Add(e)
	}
	return c, nil
}

func normalizeRecord(raw json.RawMessage) (Element, bool) {
	var r rawElement
	if err := json.Unmarshal(raw, &r); err != nil || r.ID == nil {
		return Element{}, false
	}
	kind, ok := ParseKind(r.Type)
	if !ok {
		return Element{}, false
	}

	e := Element{
		ID:   *r.ID,
		Kind: kind,
		Tags: Tags(r.Tags),
	}
	if e.Tags == nil {
		e.Tags = Tags{}
	}

	switch kind {
	case KindPoint:
		e.Lat, e.Lon = r.Lat, r.Lon
		if r.Lat != nil && r.Lon != nil {
			e.Geometry = &Geometry{Type: GeometryPoint, Point: orb.Point{*r.Lon, *r.Lat}}
		}
	case KindLineOrArea:
		if len(r.Nodes) > 0 {
			e.NodeRefs = r.Nodes
		}
		e.Geometry = wayGeometry(r)
	case KindComplexGroup:
		if len(r.Members) > 0 {
			e.Members = r.Members
		}
	}
	return e, true
}

// wayGeometry classifies an explicit coordinate sequence as a closed ring or an
// open path. Without coordinates the node references are kept unresolved.
func wayGeometry(r rawElement) *Geometry {
	if r.Geometry != nil {
		pts := *r.Geometry
		line := make(orb.LineString, len(pts))
		for i, p := range pts {
			line[i] = orb.Point{p.Lon, p.Lat}
		}
		if len(line) > 2 && line[0] == line[len(line)-1] {
			return &Geometry{Type: GeometryPolygon, Polygon: orb.Polygon{orb.Ring(line)}}
		}
		return &Geometry{Type: GeometryLineString, Line: line}
	}
	if r.Nodes != nil {
		return &Geometry{Type: GeometryUnresolved, Refs: r.Nodes}
	}
	return nil
}
