package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/conveyor-etl/conveyor/internal/queue"
	"github.com/conveyor-etl/conveyor/pkg/pipeerr"
)

// Runner binds a Handler to its input and output queues and enforces the
// shared stage contract: parse, validate the input blob, process, then emit
// exactly one downstream message on success. Failures return to the
// transport unacknowledged; the transport's redelivery policy is the only
// retry mechanism.
type Runner struct {
	handler     Handler
	store       ObjectStore
	sender      Sender
	outputQueue string // "" for the terminal stage
	logger      *slog.Logger

	// now is overridable for tests.
	now func() time.Time
}

func NewRunner(h Handler, store ObjectStore, sender Sender, outputQueue string, logger *slog.Logger) *Runner {
	return &Runner{
		handler:     h,
		store:       store,
		sender:      sender,
		outputQueue: outputQueue,
		logger:      logger,
		now:         time.Now,
	}
}

// Handle processes one delivery through the stage.
func (r *Runner) Handle(ctx context.Context, d queue.Delivery) error {
	log := r.logger.With(
		slog.String("stage", r.handler.Name()),
		slog.String("message_id", d.ID),
		slog.Int64("attempt", d.Attempt))

	msg, err := ParseMessage(d.Payload)
	if err != nil {
		log.Error("malformed message", slog.String("error", err.Error()))
		return err
	}

	if src := r.handler.SourceContainer(); src != "" {
		if msg.Ref == "" {
			log.Error("message carries no blob reference")
			return pipeerr.MissingInput(src, "(empty reference)")
		}
		exists, err := r.store.Exists(ctx, src, msg.Ref)
		if err != nil {
			log.Error("input existence check failed", slog.String("error", err.Error()))
			return pipeerr.BlobReadFailed(err)
		}
		if !exists {
			log.Error("input blob missing",
				slog.String("container", src), slog.String("ref", msg.Ref))
			return pipeerr.MissingInput(src, msg.Ref)
		}
	}

	log.Info("stage started", slog.String("ref", msg.Ref))

	downstreamRef, err := r.handler.Process(ctx, msg)
	if err != nil {
		log.Error("stage failed", slog.String("error", err.Error()))
		return err
	}

	if downstreamRef == "" || r.outputQueue == "" {
		log.Info("stage completed")
		return nil
	}

	out := Message{
		Ref:              downstreamRef,
		TriggerTimestamp: r.now().UTC(),
		Source:           r.handler.Name(),
	}
	if _, err := r.sender.Send(ctx, r.outputQueue, out.Encode()); err != nil {
		log.Error("downstream send failed",
			slog.String("queue", r.outputQueue), slog.String("error", err.Error()))
		return pipeerr.EnqueueFailed(err)
	}

	log.Info("stage completed",
		slog.String("downstream_queue", r.outputQueue),
		slog.String("downstream_ref", downstreamRef))
	return nil
}
