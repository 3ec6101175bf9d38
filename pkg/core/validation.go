package core

import (
	"fmt"
	"strings"

	"github.com/NERVsystems/osmsurvey/pkg/geo"
)

// ValidateCoords checks if latitude and longitude are within valid ranges
func ValidateCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return NewError(ErrInvalidLatitude, fmt.Sprintf("Latitude must be between -90 and 90, got %f", lat)).
			WithGuidance("Ensure latitude is in decimal degrees")
	}
	if lon < -180 || lon > 180 {
		return NewError(ErrInvalidLongitude, fmt.Sprintf("Longitude must be between -180 and 180, got %f", lon)).
			WithGuidance("Ensure longitude is in decimal degrees")
	}
	return nil
}

// ValidateBoundingBox checks ranges, edge ordering and the maximum span.
// A non-positive maxSpan disables the span check.
func ValidateBoundingBox(b geo.BoundingBox, maxSpan float64) error {
	if err := ValidateCoords(b.MinLat, b.MinLon); err != nil {
		return err
	}
	if err := ValidateCoords(b.MaxLat, b.MaxLon); err != nil {
		return err
	}
	if b.MaxLat <= b.MinLat {
		return NewValidationError(ErrInvalidBBox, "max_lat must be greater than min_lat")
	}
	if b.MaxLon <= b.MinLon {
		return NewValidationError(ErrInvalidBBox, "max_lon must be greater than min_lon")
	}
	if maxSpan > 0 && (b.LatSpan() > maxSpan || b.LonSpan() > maxSpan) {
		return NewError(ErrBBoxTooLarge, fmt.Sprintf("Bounding box too large. Maximum size: %g degrees", maxSpan)).
			WithGuidance("Split the area into smaller boxes")
	}
	return nil
}

// ValidateSessionFilename rejects names that could escape a session directory.
func ValidateSessionFilename(name string) error {
	if name == "" {
		return NewValidationError(ErrInvalidFilename, "filename is required")
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return NewValidationError(ErrInvalidFilename, "Invalid filename")
	}
	return nil
}
