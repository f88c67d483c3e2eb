package cache

import (
	"driver-dispatch-client/internal/domain"
	"encoding/json"
	"fmt"
)

// Routes are stored as a JSON array of [lon, lat] pairs, the same shape the
// directions service returns.
func encodeRoute(r domain.Route) ([]byte, error) {
	pairs := make([][]float64, 0, r.Len())
	for _, c := range r.Waypoints() {
		pairs = append(pairs, c.CoordsToList())
	}

	b, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("encode route: %w", err)
	}
	return b, nil
}

func decodeRoute(b []byte) (domain.Route, error) {
	var pairs [][]float64
	if err := json.Unmarshal(b, &pairs); err != nil {
		return domain.Route{}, fmt.Errorf("decode route: %w", err)
	}

	wps := make([]domain.Coordinates, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return domain.Route{}, fmt.Errorf("decode route: waypoint %d has %d values", i, len(p))
		}
		wps = append(wps, domain.Coordinates{Lon: p[0], Lat: p[1]})
	}

	return domain.NewRoute(wps), nil
}
