package ports

import "driver-dispatch-client/internal/domain"

type LayerKind string

const (
	LayerCircle LayerKind = "circle"
	LayerLine   LayerKind = "line"
)

// Layer describes how a source is drawn. Paint is passed through untouched.
type Layer struct {
	ID     string
	Source string
	Kind   LayerKind
	Paint  map[string]any
}

// Renderer is the narrow capability surface of the map collaborator.
type Renderer interface {
	SetPointSource(id string, c domain.Coordinates)
	SetLineSource(id string, route domain.Route)
	AddLayer(layer Layer)
	RemoveLayer(id string)
}
