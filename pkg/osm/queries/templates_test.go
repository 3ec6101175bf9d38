package queries

import (
	"testing"

	"github.com/NERVsystems/osmsurvey/pkg/geo"
)

func TestOverpassBuilder_Simple(t *testing.T) {
	bbox := geo.BoundingBox{MinLat: 1, MinLon: 2, MaxLat: 3, MaxLon: 4}
	q := NewOverpassBuilder().
		WithFeatureInBbox("amenity", bbox).
		Build()
	expected := `[out:json][timeout:25];(nwr["amenity"](1,2,3,4););out geom;`
	if q != expected {
		t.Errorf("unexpected query: %s", q)
	}
}

func TestOverpassBuilder_CustomOutput(t *testing.T) {
	bbox := geo.BoundingBox{MinLat: 0, MinLon: 0, MaxLat: 1, MaxLon: 1}
	q := NewOverpassBuilder().
		WithTimeout(0).
		WithFeatureInBbox("highway", bbox).
		WithOutput("body").
		Build()
	expected := `[out:json];(nwr["highway"](0,0,1,1););out body;`
	if q != expected {
		t.Errorf("unexpected query: %s", q)
	}
}

func TestFeatureQuery(t *testing.T) {
	bbox := geo.BoundingBox{MinLat: 40.775, MinLon: -73.975, MaxLat: 40.785, MaxLon: -73.965}

	tests := []struct {
		name string
		keys []string
		want string
	}{
		{
			name: "multiple keys keep order",
			keys: []string{"amenity", "highway"},
			want: `[out:json][timeout:25];(nwr["amenity"](40.775,-73.975,40.785,-73.965);nwr["highway"](40.775,-73.975,40.785,-73.965););out geom;`,
		},
		{
			name: "no keys",
			keys: nil,
			want: `[out:json][timeout:25];();out geom;`,
		},
		{
			name: "quotes are escaped",
			keys: []string{`a"b`},
			want: `[out:json][timeout:25];(nwr["a\"b"](40.775,-73.975,40.785,-73.965););out geom;`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FeatureQuery(bbox, tt.keys, DefaultTimeoutSeconds); got != tt.want {
				t.Errorf("FeatureQuery() = %s, want %s", got, tt.want)
			}
		})
	}
}
