package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/valkey-io/valkey-go"

	"github.com/conveyor-etl/conveyor/internal/config"
	"github.com/conveyor-etl/conveyor/internal/queue"
	"github.com/conveyor-etl/conveyor/pkg/pipeerr"
)

// Enqueuer is the producing side of the transport as the API needs it.
type Enqueuer interface {
	Send(ctx context.Context, queue, payload string) (string, error)
}

type QueueHandler struct {
	logger   *slog.Logger
	client   valkey.Client
	producer Enqueuer
	queues   config.QueueConfig
}

func NewQueueHandler(logger *slog.Logger, client valkey.Client, producer Enqueuer, queues config.QueueConfig) *QueueHandler {
	return &QueueHandler{logger: logger, client: client, producer: producer, queues: queues}
}

// resolve maps a queue name from the URL onto a configured stage queue.
func (h *QueueHandler) resolve(name string) (string, bool) {
	switch name {
	case h.queues.Extract, h.queues.Transform, h.queues.Load, h.queues.Train:
		return name, true
	}
	return "", false
}

func (h *QueueHandler) Send(w http.ResponseWriter, r *http.Request) {
	name, ok := h.resolve(chi.URLParam(r, "queue"))
	if !ok {
		writeAPIError(w, h.logger, pipeerr.QueueNotFound(chi.URLParam(r, "queue")))
		return
	}

	var req struct {
		Payload string `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Payload == "" {
		writeAPIError(w, h.logger, pipeerr.InvalidRequestBody())
		return
	}

	id, err := h.producer.Send(r.Context(), name, req.Payload)
	if err != nil {
		writeAPIError(w, h.logger, pipeerr.EnqueueFailed(err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"queue": name,
		"id":    id,
	})
}

func (h *QueueHandler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	name, ok := h.resolve(chi.URLParam(r, "queue"))
	if !ok {
		writeAPIError(w, h.logger, pipeerr.QueueNotFound(chi.URLParam(r, "queue")))
		return
	}

	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	letters, err := queue.DeadLetters(r.Context(), h.client, name, limit)
	if err != nil {
		writeAPIError(w, h.logger, pipeerr.InternalError(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"queue":        name,
		"dead_letters": letters,
		"total":        len(letters),
	})
}

func (h *QueueHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	name, ok := h.resolve(chi.URLParam(r, "queue"))
	if !ok {
		writeAPIError(w, h.logger, pipeerr.QueueNotFound(chi.URLParam(r, "queue")))
		return
	}
	id := chi.URLParam(r, "id")

	newID, err := queue.Requeue(r.Context(), h.client, name, id)
	if err != nil {
		var pe *pipeerr.Error
		if errors.As(err, &pe) {
			writeAPIError(w, h.logger, pe)
			return
		}
		writeAPIError(w, h.logger, pipeerr.InternalError(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"queue": name,
		"id":    newID,
	})
}
