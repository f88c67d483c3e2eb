package handlers

import (
	"driver-dispatch-client/internal/api/dto"
	"net/http"
)

// SocketStats is implemented by the location publisher.
type SocketStats interface {
	Connected() bool
	Sent() int64
	Dropped() int64
}

type StatusHandler struct {
	Client Dispatcher
	Socket SocketStats // optional
}

func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	s := h.Client.Snapshot()

	res := dto.StatusResponse{
		DriverID:       s.DriverID,
		Ready:          s.Ready,
		State:          s.State.String(),
		Position:       dto.PositionResponse{Lon: s.Position.Lon, Lat: s.Position.Lat},
		Cursor:         s.Cursor,
		RoutePoints:    s.RoutePoints,
		AcceptingJobs:  s.Accepting,
		LastSeq:        s.LastSeq,
		Published:      h.Client.Published(),
		StaleResponses: h.Client.StaleResponses(),
	}
	if h.Socket != nil {
		res.Socket = &dto.SocketResponse{
			Connected: h.Socket.Connected(),
			Sent:      h.Socket.Sent(),
			Dropped:   h.Socket.Dropped(),
		}
	}

	writeJSON(w, r, http.StatusOK, res)
}
