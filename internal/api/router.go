package api

import (
	"driver-dispatch-client/internal/api/handlers"
	"net/http"

	"github.com/hashicorp/go-hclog"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(client handlers.Dispatcher, scene handlers.SceneReader, socket handlers.SocketStats, log hclog.Logger) http.Handler {
	mux := http.NewServeMux()

	dest := &handlers.DestinationHandler{Client: client}
	status := &handlers.StatusHandler{Client: client, Socket: socket}
	sc := &handlers.SceneHandler{Scene: scene}

	mux.HandleFunc("GET /health", handlers.Health)
	mux.HandleFunc("POST /destinations", dest.Select)
	mux.HandleFunc("GET /status", status.Get)
	mux.HandleFunc("GET /scene", sc.Get)
	mux.HandleFunc("GET /scene/sources/{id}", sc.Source)

	return requestIDMiddleware(loggingMiddleware(mux, log))
}
