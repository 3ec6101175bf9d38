package geo

import (
	"encoding/json"
	"math"
	"testing"
)

func TestBoundingBoxArea(t *testing.T) {
	b := NewBoundingBox(40.775, -73.975, 40.785, -73.965)
	if got := b.Area(); math.Abs(got-0.0001) > 1e-9 {
		t.Errorf("Area() = %v, want 0.0001", got)
	}
}

func TestBoundingBoxJSON(t *testing.T) {
	var b BoundingBox
	data := `{"min_lat":51.5033,"min_lon":-0.1196,"max_lat":51.5043,"max_lon":-0.1186}`
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.MinLat != 51.5033 || b.MaxLon != -0.1186 {
		t.Errorf("unexpected box %+v", b)
	}

	bound := b.Bound()
	if bound.Min[0] != b.MinLon || bound.Min[1] != b.MinLat {
		t.Errorf("Bound() min = %v", bound.Min)
	}
}
