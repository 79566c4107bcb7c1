package main

import (
	"net/http"

	"github.com/aresml/arescfg"
)

// newRouter sets up all routes using Go 1.22+ enhanced routing.
func newRouter(engine *arescfg.Engine) http.Handler {
	mux := http.NewServeMux()

	h := &handlers{engine: engine}

	mux.HandleFunc("GET /healthz", h.handleHealth)

	mux.HandleFunc("GET /api/config", h.handleConfig)
	mux.HandleFunc("GET /api/config/defaults", h.handleDefaults)
	mux.HandleFunc("GET /api/config/{key}", h.handleConfigKey)
	mux.HandleFunc("PUT /api/config/{key}", h.handleConfigSet)

	mux.HandleFunc("POST /api/patch", h.handlePatch)

	mux.HandleFunc("GET /api/history", h.handleHistory)
	mux.HandleFunc("GET /api/history/patches", h.handlePatches)
	mux.HandleFunc("POST /api/history/{id}/restore", h.handleRestore)

	mux.HandleFunc("GET /api/feeds/check", h.handleFeedsCheck)
	mux.HandleFunc("GET /api/host", h.handleHost)

	return mux
}
