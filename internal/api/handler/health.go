package handler

import (
	"context"
	"net/http"

	"github.com/conveyor-etl/conveyor/pkg/pipeerr"
)

// Pinger is anything with a connectivity check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	queue Pinger
	store Pinger
}

func NewHealthHandler(queue, store Pinger) *HealthHandler {
	return &HealthHandler{queue: queue, store: store}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz verifies the queue transport and the blob store are reachable.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Ping(r.Context()); err != nil {
		writeAPIError(w, nil, pipeerr.Wrap(pipeerr.CodeQueueNotReady, http.StatusServiceUnavailable, "Queue transport not ready", err))
		return
	}
	if err := h.store.Ping(r.Context()); err != nil {
		writeAPIError(w, nil, pipeerr.Wrap(pipeerr.CodeStoreNotReady, http.StatusServiceUnavailable, "Blob store not ready", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
