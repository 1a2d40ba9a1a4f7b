package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidLocation = errors.New("invalid location")

// FormatLocation renders a coordinate pair the way check-ins store it:
// "lat,lon" with six decimal places.
func FormatLocation(latitude, longitude float64) string {
	return fmt.Sprintf("%.6f,%.6f", latitude, longitude)
}

func ParseLocation(value string) (float64, float64, error) {
	parts := strings.Split(strings.TrimSpace(value), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: expected \"lat,lon\"", ErrInvalidLocation)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: latitude: %v", ErrInvalidLocation, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: longitude: %v", ErrInvalidLocation, err)
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("%w: coordinates out of range", ErrInvalidLocation)
	}
	return lat, lon, nil
}
