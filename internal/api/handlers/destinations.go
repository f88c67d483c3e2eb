package handlers

import (
	"context"
	"driver-dispatch-client/internal/api/dto"
	"driver-dispatch-client/internal/domain"
	"driver-dispatch-client/internal/services"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/hashicorp/go-hclog"
)

// Dispatcher is the slice of the dispatch client the HTTP surface drives.
type Dispatcher interface {
	SelectDestination(ctx context.Context, dest domain.Coordinates, reroute bool) (uint64, error)
	Snapshot() services.ClientSnapshot
	Published() int64
	StaleResponses() int64
}

type DestinationHandler struct {
	Client Dispatcher
}

// Select is the click-to-pick-destination entry point. The route is fetched
// asynchronously; the response only carries the request's sequence number.
func (h *DestinationHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req dto.DestinationRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}
	if req.Lon == nil || req.Lat == nil {
		writeError(w, r, http.StatusBadRequest, "lon and lat are required")
		return
	}

	dest := domain.Coordinates{Lon: *req.Lon, Lat: *req.Lat}
	seq, err := h.Client.SelectDestination(r.Context(), dest, req.Reroute)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidCoordinates):
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, services.ErrNotAcceptingJobs):
		writeError(w, r, http.StatusConflict, err.Error())
		return
	case errors.Is(err, services.ErrClientStopped):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
		return
	default:
		hclog.FromContext(r.Context()).Error("select destination failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusAccepted, dto.DestinationResponse{Seq: seq})
}
