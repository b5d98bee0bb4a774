package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/valkey-io/valkey-go"

	apihandler "github.com/conveyor-etl/conveyor/internal/api/handler"
	"github.com/conveyor-etl/conveyor/internal/blob"
	"github.com/conveyor-etl/conveyor/internal/config"
	"github.com/conveyor-etl/conveyor/internal/queue"
)

// RouterDeps holds the dependencies the operator API needs.
type RouterDeps struct {
	Valkey   valkey.Client
	Producer *queue.Producer
	Blob     *blob.Client
	Queues   config.QueueConfig
}

func NewRouter(logger *slog.Logger, deps *RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(Logger(logger))
	r.Use(chimw.Recoverer)

	health := apihandler.NewHealthHandler(queue.NewHealth(deps.Valkey), deps.Blob)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route("/api/v1", func(r chi.Router) {
		queues := apihandler.NewQueueHandler(logger, deps.Valkey, deps.Producer, deps.Queues)
		r.Route("/queues/{queue}", func(r chi.Router) {
			r.Post("/messages", queues.Send)
			r.Get("/dead-letters", queues.DeadLetters)
			r.Post("/dead-letters/{id}/requeue", queues.Requeue)
		})

		training := apihandler.NewTrainingHandler(logger, deps.Producer, deps.Queues.Train)
		r.Post("/training/runs", training.Trigger)
	})

	return r
}
