package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"sync"

	"github.com/aresml/arescfg"
	"github.com/aresml/arescfg/internal/storage"
)

type handlers struct {
	engine *arescfg.Engine

	// mu serializes engine calls; the config file has no locking of its own.
	mu sync.Mutex
}

type errorBody struct {
	Error string `json:"error"`
}

type setBody struct {
	Value string `json:"value"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, arescfg.ErrUnknownKey),
		errors.Is(err, storage.ErrSnapshotNotFound),
		errors.Is(err, fs.ErrNotExist):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidValue):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	return v
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleConfig(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg, err := h.engine.Load()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *handlers) handleDefaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Defaults())
}

func (h *handlers) handleConfigKey(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := r.PathValue("key")
	cfg, err := h.engine.Load()
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := cfg.Get(key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": v})
}

func (h *handlers) handleConfigSet(w http.ResponseWriter, r *http.Request) {
	var body setBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	key := r.PathValue("key")
	cfg, err := h.engine.Set(key, body.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	v, _ := cfg.Get(key)
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": v})
}

func (h *handlers) handlePatch(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	res, err := h.engine.Patch()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.engine.History(parseIntParam(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	if snapshots == nil {
		snapshots = []arescfg.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snapshots)
}

func (h *handlers) handlePatches(w http.ResponseWriter, r *http.Request) {
	events, err := h.engine.Patches(parseIntParam(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []arescfg.PatchEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *handlers) handleRestore(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid snapshot id"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	cfg, err := h.engine.Restore(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *handlers) handleFeedsCheck(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	statuses, err := h.engine.CheckFeeds(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (h *handlers) handleHost(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Host())
}
