// Package render keeps the map scene as GeoJSON so a browser map can poll
// and draw it.
package render

import (
	"driver-dispatch-client/internal/domain"
	"driver-dispatch-client/internal/ports"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Scene implements Renderer. Sources hold geometry; layers reference a source
// and carry paint properties. Safe for concurrent use.
type Scene struct {
	mu      sync.RWMutex
	style   string
	sources map[string]orb.Geometry
	layers  map[string]ports.Layer
	order   []string
	version uint64
}

func NewScene(style string) *Scene {
	return &Scene{
		style:   style,
		sources: map[string]orb.Geometry{},
		layers:  map[string]ports.Layer{},
	}
}

func (s *Scene) SetPointSource(id string, c domain.Coordinates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[id] = c.Point()
	s.version++
}

func (s *Scene) SetLineSource(id string, route domain.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[id] = route.LineString()
	s.version++
}

// AddLayer adds or replaces a layer. Layers are drawn in insertion order.
func (s *Scene) AddLayer(l ports.Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.layers[l.ID]; !ok {
		s.order = append(s.order, l.ID)
	}
	s.layers[l.ID] = l
	s.version++
}

// RemoveLayer drops the layer and the source of the same id, mirroring the
// remove-layer-then-source pairing used by map front-ends.
func (s *Scene) RemoveLayer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.layers[id]; !ok {
		return
	}
	delete(s.layers, id)
	delete(s.sources, id)
	for i, lid := range s.order {
		if lid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.version++
}

// Source returns the GeoJSON feature for a source.
func (s *Scene) Source(id string) (*geojson.Feature, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.sources[id]
	if !ok {
		return nil, false
	}
	f := geojson.NewFeature(g)
	f.ID = id
	return f, true
}

// Layers returns the visible layers in draw order.
func (s *Scene) Layers() []ports.Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ports.Layer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.layers[id])
	}
	return out
}

// FeatureCollection renders every source that backs a visible layer. Each
// feature carries its layer's kind and paint as properties.
func (s *Scene) FeatureCollection() *geojson.FeatureCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fc := geojson.NewFeatureCollection()
	for _, id := range s.order {
		l := s.layers[id]
		g, ok := s.sources[l.Source]
		if !ok {
			continue
		}

		f := geojson.NewFeature(g)
		f.ID = l.ID
		f.Properties["layer"] = l.ID
		f.Properties["kind"] = string(l.Kind)
		for k, v := range l.Paint {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	return fc
}

func (s *Scene) Style() string { return s.style }

func (s *Scene) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// SourceIDs lists every source currently set, sorted.
func (s *Scene) SourceIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
