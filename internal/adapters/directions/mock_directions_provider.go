package directions

import (
	"context"
	"driver-dispatch-client/internal/domain"
	"fmt"
)

type MockLeg struct {
	From, To domain.Coordinates
	Route    []domain.Coordinates
}

// MockDirectionsProvider answers from a fixed table of legs.
type MockDirectionsProvider struct {
	m map[[2]domain.Coordinates]domain.Route
}

func NewMockDirectionsProvider(legs []MockLeg) *MockDirectionsProvider {
	m := make(map[[2]domain.Coordinates]domain.Route, len(legs))
	for _, l := range legs {
		m[[2]domain.Coordinates{l.From, l.To}] = domain.NewRoute(l.Route)
	}
	return &MockDirectionsProvider{m: m}
}

func (p *MockDirectionsProvider) GetRoute(ctx context.Context, origin, destination domain.Coordinates) (domain.Route, error) {
	if err := ctx.Err(); err != nil {
		return domain.Route{}, err
	}

	r, ok := p.m[[2]domain.Coordinates{origin, destination}]
	if !ok {
		return domain.Route{}, fmt.Errorf("missing leg %s -> %s", origin, destination)
	}

	return r, nil
}
