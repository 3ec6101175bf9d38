// Package render defines the artifact renderer interface and the GeoJSON map
// layer renderer.
package render

import (
	"time"

	"github.com/NERVsystems/osmsurvey/pkg/geo"
	"github.com/NERVsystems/osmsurvey/pkg/osm"
	"github.com/NERVsystems/osmsurvey/pkg/rollup"
)

// Input is everything a renderer may read. Renderers must not modify it.
type Input struct {
	Collection  *osm.Collection
	BBox        geo.BoundingBox
	Rollup      *rollup.Result
	GeneratedAt time.Time
}

// Renderer turns one Input into one artifact file.
type Renderer interface {
	// Name identifies the renderer in logs and metrics.
	Name() string
	// Filename is the artifact's file name inside a session.
	Filename() string
	// ContentType is the MIME type the artifact is served with.
	ContentType() string
	Render(in Input) ([]byte, error)
}
