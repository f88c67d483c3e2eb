package domain

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
)

var ErrInvalidCoordinates = errors.New("coordinates out of range")

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64
	Lat float64
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Point converts the coordinates to an orb point (orb is lon/lat ordered as well).
func (c Coordinates) Point() orb.Point { return orb.Point{c.Lon, c.Lat} }

// Validate reports ErrInvalidCoordinates when lon is outside [-180, 180]
// or lat is outside [-90, 90].
func (c Coordinates) Validate() error {
	if c.Lon < -180 || c.Lon > 180 || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("lon=%v lat=%v: %w", c.Lon, c.Lat, ErrInvalidCoordinates)
	}
	return nil
}

// String renders "lon,lat" using the shortest decimal form of each value,
// which is the format used on the wire and in directions URLs.
func (c Coordinates) String() string {
	return formatFloat(c.Lon) + "," + formatFloat(c.Lat)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
