package handlers

import (
	"driver-dispatch-client/internal/api/dto"
	"driver-dispatch-client/internal/ports"
	"net/http"
	"strconv"

	"github.com/paulmach/orb/geojson"
)

type SceneReader interface {
	FeatureCollection() *geojson.FeatureCollection
	Source(id string) (*geojson.Feature, bool)
	Layers() []ports.Layer
	SourceIDs() []string
	Style() string
	Version() uint64
}

type SceneHandler struct {
	Scene SceneReader
}

type sceneResponse struct {
	Style    string                     `json:"style"`
	Version  uint64                     `json:"version"`
	Sources  []string                   `json:"sources"`
	Layers   []dto.LayerResponse        `json:"layers"`
	Features *geojson.FeatureCollection `json:"features"`
}

// Get returns the whole scene. Clients poll it and skip redraws while the
// ETag (the scene version) is unchanged.
func (h *SceneHandler) Get(w http.ResponseWriter, r *http.Request) {
	version := h.Scene.Version()
	etag := `"` + strconv.FormatUint(version, 10) + `"`
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	layers := h.Scene.Layers()
	res := sceneResponse{
		Style:    h.Scene.Style(),
		Version:  version,
		Sources:  h.Scene.SourceIDs(),
		Layers:   make([]dto.LayerResponse, 0, len(layers)),
		Features: h.Scene.FeatureCollection(),
	}
	for _, l := range layers {
		res.Layers = append(res.Layers, dto.LayerResponse{
			ID:     l.ID,
			Source: l.Source,
			Type:   string(l.Kind),
			Paint:  l.Paint,
		})
	}

	w.Header().Set("ETag", etag)
	writeJSON(w, r, http.StatusOK, res)
}

func (h *SceneHandler) Source(w http.ResponseWriter, r *http.Request) {
	f, ok := h.Scene.Source(r.PathValue("id"))
	if !ok {
		writeError(w, r, http.StatusNotFound, "source not found")
		return
	}

	b, err := f.MarshalJSON()
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}
