package services

import "driver-dispatch-client/internal/domain"

// PositionSource holds the driver's current coordinate.
//
// Callers must pass coordinates inside the valid lon/lat range; the value is
// stored as given. It is not safe for concurrent use: the job machine owns it
// and only touches it from the dispatch loop.
type PositionSource struct {
	current domain.Coordinates
}

func NewPositionSource(start domain.Coordinates) *PositionSource {
	return &PositionSource{current: start}
}

func (p *PositionSource) Get() domain.Coordinates { return p.current }

func (p *PositionSource) Set(c domain.Coordinates) { p.current = c }
