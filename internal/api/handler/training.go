package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/conveyor-etl/conveyor/internal/pipeline"
	"github.com/conveyor-etl/conveyor/pkg/pipeerr"
)

// TrainingHandler triggers a model-training run by enqueueing a structured
// message on the train queue; the Train stage worker does the actual job
// submission.
type TrainingHandler struct {
	logger     *slog.Logger
	producer   Enqueuer
	trainQueue string
}

func NewTrainingHandler(logger *slog.Logger, producer Enqueuer, trainQueue string) *TrainingHandler {
	return &TrainingHandler{logger: logger, producer: producer, trainQueue: trainQueue}
}

func (h *TrainingHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIError(w, h.logger, pipeerr.InvalidRequestBody())
			return
		}
	}
	if req.Source == "" {
		req.Source = "api"
	}

	msg := pipeline.Message{
		TriggerTimestamp: time.Now().UTC(),
		Source:           req.Source,
	}
	id, err := h.producer.Send(r.Context(), h.trainQueue, msg.Encode())
	if err != nil {
		writeAPIError(w, h.logger, pipeerr.EnqueueFailed(err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"queue": h.trainQueue,
		"id":    id,
	})
}
