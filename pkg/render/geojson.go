package render

import (
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/NERVsystems/osmsurvey/pkg/osm"
)

const defaultColor = "#808080"

// styleColors maps a style class to its map color.
var styleColors = map[string]string{
	"building": "#8B4513",
	"highway":  "#FF0000",
	"waterway": "#0000FF",
	"natural":  "#228B22",
	"amenity":  "#FFD700",
	"leisure":  "#FF69B4",
	"shop":     "#FFA500",
	"tourism":  "#9370DB",
	"landuse":  "#90EE90",
}

// Style class precedence for lines and areas, and for points.
var (
	wayStyleKeys   = []string{"building", "highway", "waterway", "natural", "amenity", "leisure", "shop", "tourism", "landuse"}
	pointStyleKeys = []string{"amenity", "shop", "tourism", "natural", "leisure"}
)

// GeoJSON renders the collection as a styled FeatureCollection map layer.
// Elements without resolved geometry are left out.
type GeoJSON struct{}

func (GeoJSON) Name() string        { return "geojson" }
func (GeoJSON) Filename() string    { return "osm_map.geojson" }
func (GeoJSON) ContentType() string { return "application/geo+json" }

// Render implements Renderer.
func (GeoJSON) Render(in Input) ([]byte, error) {
	if in.Collection == nil {
		return nil, fmt.Errorf("geojson: no collection")
	}
	fc := FeatureCollection(in)
	return fc.MarshalJSON()
}

// FeatureCollection builds the map layer without encoding it.
func FeatureCollection(in Input) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.BBox = geojson.NewBBox(in.BBox.Bound())

	for _, e := range in.Collection.All() {
		g := e.Geometry.Orb()
		if g == nil {
			continue
		}
		f := geojson.NewFeature(g)
		f.ID = fmt.Sprintf("%s/%d", e.Kind, e.ID)

		keys := wayStyleKeys
		if e.Kind == osm.KindPoint {
			keys = pointStyleKeys
		}
		style := styleClass(e.Tags, keys)
		color, ok := styleColors[style]
		if !ok {
			color = defaultColor
		}

		tags := make(map[string]string, len(e.Tags))
		for k, v := range e.Tags {
			tags[k] = v
		}
		f.Properties["id"] = e.ID
		f.Properties["osm_type"] = string(e.Kind)
		f.Properties["name"] = e.Name()
		f.Properties["tags"] = tags
		f.Properties["style"] = style
		f.Properties["stroke"] = color
		fc.Append(f)
	}
	return fc
}

func styleClass(tags osm.Tags, keys []string) string {
	for _, k := range keys {
		if _, ok := tags.Lookup(k); ok {
			return k
		}
	}
	return "default"
}
