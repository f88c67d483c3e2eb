package directions

import (
	"context"
	"driver-dispatch-client/internal/domain"
	"driver-dispatch-client/internal/platform/obs"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	DefaultBaseURL = "https://api.mapbox.com"
	DefaultProfile = "driving-traffic"
)

type MapboxOptions struct {
	BaseURL     string
	Profile     string
	MaxAttempts int
	Timeout     time.Duration
	Logger      hclog.Logger
}

// MapboxDirectionsProvider implements DirectionsProvider using the Mapbox
// Directions v5 API with full-overview GeoJSON geometries.
//
// The provider is safe for concurrent use.
type MapboxDirectionsProvider struct {
	session     *http.Client
	token       string
	baseURL     string
	profile     string
	maxAttempts int
	backoff     time.Duration
	log         hclog.Logger
}

func NewMapboxDirectionsProvider(token string, opts MapboxOptions) (*MapboxDirectionsProvider, error) {
	if token == "" {
		return nil, errors.New("mapbox access token is empty")
	}

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Profile == "" {
		opts.Profile = DefaultProfile
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}

	return &MapboxDirectionsProvider{
		session:     &http.Client{Timeout: opts.Timeout},
		token:       token,
		baseURL:     opts.BaseURL,
		profile:     opts.Profile,
		maxAttempts: opts.MaxAttempts,
		backoff:     200 * time.Millisecond,
		log:         opts.Logger.Named("directions"),
	}, nil
}

type directionsResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Type        string      `json:"type"`
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// GetRoute fetches the first route from origin to destination.
//
// Network and HTTP errors are returned. A body that cannot be decoded, has no
// routes, or carries a malformed coordinate degrades to an empty route.
func (m *MapboxDirectionsProvider) GetRoute(
	ctx context.Context,
	origin domain.Coordinates,
	destination domain.Coordinates,
) (_ domain.Route, err error) {
	defer obs.Time(ctx, m.log, "mapbox.GetRoute")(&err)

	path, query := m.routeRequest(origin, destination)

	resp, err := m.doWithRetry(ctx, func() (*http.Request, error) {
		return m.newRequest(ctx, path, query)
	})
	if err != nil {
		return domain.Route{}, fmt.Errorf("directions %s -> %s: %w", origin, destination, err)
	}
	defer resp.Body.Close()

	var decoded directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		m.log.Warn("undecodable directions response, using empty route", "error", err)
		return domain.Route{}, nil
	}

	return m.toRoute(decoded), nil
}

// routeRequest returns the path and query of a driving route request,
// without the access token.
func (m *MapboxDirectionsProvider) routeRequest(origin, destination domain.Coordinates) (string, url.Values) {
	q := url.Values{}
	q.Set("overview", "full")
	q.Set("geometries", "geojson")

	return fmt.Sprintf("/directions/v5/mapbox/%s/%s;%s", m.profile, origin.String(), destination.String()), q
}

func (m *MapboxDirectionsProvider) toRoute(decoded directionsResponse) domain.Route {
	if len(decoded.Routes) == 0 {
		m.log.Warn("directions response has no routes", "code", decoded.Code, "message", decoded.Message)
		return domain.Route{}
	}

	raw := decoded.Routes[0].Geometry.Coordinates
	waypoints := make([]domain.Coordinates, 0, len(raw))
	for i, pair := range raw {
		if len(pair) < 2 {
			m.log.Warn("malformed waypoint in directions response, using empty route", "index", i)
			return domain.Route{}
		}

		c := domain.Coordinates{Lon: pair[0], Lat: pair[1]}
		if err := c.Validate(); err != nil {
			m.log.Warn("waypoint out of range in directions response, using empty route", "index", i, "error", err)
			return domain.Route{}
		}
		waypoints = append(waypoints, c)
	}

	return domain.NewRoute(waypoints)
}
