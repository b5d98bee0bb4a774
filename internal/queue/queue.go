// Package queue is the stage-transition transport: one Valkey stream per
// queue, one consumer group per stream. Delivery is at-least-once; entries
// are acknowledged only after the handler succeeds, redelivered after the
// visibility timeout when a consumer goes silent, and moved to a dead-letter
// stream once they exceed the configured attempt limit.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/conveyor-etl/conveyor/pkg/pipeerr"
)

const (
	// GroupName is the consumer group used on every stage queue. Streams are
	// distinct per queue, so a single group name is unambiguous.
	GroupName = "conveyor-workers"

	readBlockMillis = 5000
	reclaimBatch    = 10
)

// DeadStream returns the dead-letter stream name for a queue.
func DeadStream(queue string) string { return queue + ":dead" }

// attemptsKey returns the hash tracking per-entry delivery counts.
func attemptsKey(queue string) string { return queue + ":attempts" }

// Delivery is one dequeued message plus its transport metadata.
type Delivery struct {
	ID      string
	Attempt int64
	Payload string
}

// HandlerFunc processes a single delivery. A nil return acknowledges the
// entry; an error leaves it pending for redelivery.
type HandlerFunc func(ctx context.Context, d Delivery) error

// entryOps is the per-entry slice of the transport the delivery decision
// needs: attempt counting, acknowledgement, and the dead-letter append.
type entryOps interface {
	bumpAttempt(ctx context.Context, id string) (int64, error)
	clearAttempts(ctx context.Context, id string)
	ack(ctx context.Context, id string)
	appendDead(ctx context.Context, id, payload string, attempts int64, cause error) error
}

// Producer sends messages onto stage queues.
type Producer struct {
	client valkey.Client
}

func NewProducer(client valkey.Client) *Producer {
	return &Producer{client: client}
}

// Send appends a payload to the queue's stream and returns the entry ID.
func (p *Producer) Send(ctx context.Context, queue, payload string) (string, error) {
	resp := p.client.Do(ctx, p.client.B().Xadd().
		Key(queue).Id("*").
		FieldValue().FieldValue("data", payload).
		Build())
	if err := resp.Error(); err != nil {
		return "", fmt.Errorf("xadd %s: %w", queue, err)
	}

	id, err := resp.ToString()
	if err != nil {
		return "", fmt.Errorf("parse xadd response: %w", err)
	}
	return id, nil
}

// Consumer reads one stage queue on behalf of a single worker.
type Consumer struct {
	client      valkey.Client
	queue       string
	consumerID  string
	maxAttempts int64
	visibility  time.Duration
	logger      *slog.Logger
	ops         entryOps
}

func NewConsumer(client valkey.Client, queue, consumerID string, maxAttempts int64, visibility time.Duration, logger *slog.Logger) *Consumer {
	return &Consumer{
		client:      client,
		queue:       queue,
		consumerID:  consumerID,
		maxAttempts: maxAttempts,
		visibility:  visibility,
		logger:      logger,
		ops:         &streamOps{client: client, queue: queue, logger: logger},
	}
}

// EnsureGroup creates the consumer group if it doesn't exist.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	resp := c.client.Do(ctx, c.client.B().XgroupCreate().
		Key(c.queue).Group(GroupName).Id("0").Mkstream().Build())
	if err := resp.Error(); err != nil {
		// BUSYGROUP means group already exists — that's fine
		if err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return fmt.Errorf("xgroup create %s: %w", c.queue, err)
		}
	}
	return nil
}

// Consume blocks reading the queue, dispatching each delivery to handler.
// On startup it first drains this consumer's own pending entries from a
// previous crash; each loop iteration also reclaims entries other consumers
// left idle past the visibility timeout.
func (c *Consumer) Consume(ctx context.Context, handler HandlerFunc) error {
	c.drainPending(ctx, handler)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c.reclaimIdle(ctx, handler)

		resp := c.client.Do(ctx, c.client.B().Xreadgroup().
			Group(GroupName, c.consumerID).
			Count(1).Block(readBlockMillis).
			Streams().Key(c.queue).Id(">").
			Build())

		if err := resp.Error(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		results, err := resp.AsXRead()
		if err != nil {
			continue
		}

		for _, entries := range results {
			for _, entry := range entries {
				c.process(ctx, entry, handler)
			}
		}
	}
}

func (c *Consumer) drainPending(ctx context.Context, handler HandlerFunc) {
	resp := c.client.Do(ctx, c.client.B().Xreadgroup().
		Group(GroupName, c.consumerID).
		Count(reclaimBatch).
		Streams().Key(c.queue).Id("0").
		Build())

	if err := resp.Error(); err != nil {
		c.logger.Warn("drain pending failed", slog.String("queue", c.queue), slog.String("error", err.Error()))
		return
	}

	results, err := resp.AsXRead()
	if err != nil {
		return
	}

	for _, entries := range results {
		for _, entry := range entries {
			c.logger.Info("recovering pending entry",
				slog.String("queue", c.queue), slog.String("id", entry.ID))
			c.process(ctx, entry, handler)
		}
	}
}

// reclaimIdle claims entries whose consumer has held them past the
// visibility timeout and re-processes them here.
func (c *Consumer) reclaimIdle(ctx context.Context, handler HandlerFunc) {
	minIdle := strconv.FormatInt(c.visibility.Milliseconds(), 10)

	resp := c.client.Do(ctx, c.client.B().Xautoclaim().
		Key(c.queue).Group(GroupName).Consumer(c.consumerID).
		MinIdleTime(minIdle).Start("0-0").
		Count(reclaimBatch).Justid().
		Build())
	if err := resp.Error(); err != nil {
		return
	}

	arr, err := resp.ToArray()
	if err != nil || len(arr) < 2 {
		return
	}
	idMsgs, err := arr[1].ToArray()
	if err != nil {
		return
	}

	for _, idMsg := range idMsgs {
		id, err := idMsg.ToString()
		if err != nil {
			continue
		}
		entry, ok := c.fetchEntry(ctx, id)
		if !ok {
			continue
		}
		c.logger.Info("reclaimed idle entry",
			slog.String("queue", c.queue), slog.String("id", id))
		c.process(ctx, entry, handler)
	}
}

// fetchEntry reads a single stream entry body by ID.
func (c *Consumer) fetchEntry(ctx context.Context, id string) (valkey.XRangeEntry, bool) {
	resp := c.client.Do(ctx, c.client.B().Xrange().
		Key(c.queue).Start(id).End(id).Build())
	if err := resp.Error(); err != nil {
		return valkey.XRangeEntry{}, false
	}
	entries, err := resp.AsXRange()
	if err != nil || len(entries) == 0 {
		return valkey.XRangeEntry{}, false
	}
	return entries[0], true
}

// process applies the redelivery policy to one entry: past the attempt
// limit it moves to the dead-letter stream and is acknowledged; otherwise
// the handler runs, and only success acknowledges. Dead letters are only
// requeued by explicit operator action.
func (c *Consumer) process(ctx context.Context, entry valkey.XRangeEntry, handler HandlerFunc) {
	payload, ok := entry.FieldValues["data"]
	if !ok {
		c.logger.Warn("entry missing data field",
			slog.String("queue", c.queue), slog.String("id", entry.ID))
		c.ops.ack(ctx, entry.ID)
		return
	}

	attempt, err := c.ops.bumpAttempt(ctx, entry.ID)
	if err != nil {
		c.logger.Warn("attempt count unavailable, treating as first delivery",
			slog.String("queue", c.queue),
			slog.String("id", entry.ID),
			slog.String("error", err.Error()))
		attempt = 1
	}
	if attempt > c.maxAttempts {
		cause := pipeerr.TransportExhausted(c.queue, attempt-1)
		c.logger.Error("dead-lettering entry",
			slog.String("queue", c.queue),
			slog.String("id", entry.ID),
			slog.Int64("attempts", attempt-1))
		if err := c.ops.appendDead(ctx, entry.ID, payload, attempt-1, cause); err != nil {
			c.logger.Error("dead-letter append failed",
				slog.String("queue", c.queue), slog.String("id", entry.ID), slog.String("error", err.Error()))
			return
		}
		c.ops.ack(ctx, entry.ID)
		c.ops.clearAttempts(ctx, entry.ID)
		return
	}

	d := Delivery{ID: entry.ID, Attempt: attempt, Payload: payload}
	if err := handler(ctx, d); err != nil {
		c.logger.Error("handle entry failed",
			slog.String("queue", c.queue),
			slog.String("id", entry.ID),
			slog.Int64("attempt", attempt),
			slog.String("error", err.Error()))
		return
	}
	c.ops.ack(ctx, entry.ID)
	c.ops.clearAttempts(ctx, entry.ID)
}

// streamOps is the Valkey-backed entryOps implementation.
type streamOps struct {
	client valkey.Client
	queue  string
	logger *slog.Logger
}

// bumpAttempt increments and returns the delivery count for an entry.
func (s *streamOps) bumpAttempt(ctx context.Context, id string) (int64, error) {
	resp := s.client.Do(ctx, s.client.B().Hincrby().
		Key(attemptsKey(s.queue)).Field(id).Increment(1).Build())
	n, err := resp.AsInt64()
	if err != nil {
		return 0, fmt.Errorf("hincrby %s: %w", attemptsKey(s.queue), err)
	}
	return n, nil
}

func (s *streamOps) clearAttempts(ctx context.Context, id string) {
	resp := s.client.Do(ctx, s.client.B().Hdel().
		Key(attemptsKey(s.queue)).Field(id).Build())
	if err := resp.Error(); err != nil {
		s.logger.Warn("clear attempts failed",
			slog.String("queue", s.queue), slog.String("id", id), slog.String("error", err.Error()))
	}
}

// appendDead writes an exhausted entry onto the queue's dead-letter stream.
func (s *streamOps) appendDead(ctx context.Context, id, payload string, attempts int64, cause error) error {
	resp := s.client.Do(ctx, s.client.B().Xadd().
		Key(DeadStream(s.queue)).Id("*").
		FieldValue().
		FieldValue("data", payload).
		FieldValue("origin", id).
		FieldValue("attempts", strconv.FormatInt(attempts, 10)).
		FieldValue("error", cause.Error()).
		Build())
	if err := resp.Error(); err != nil {
		return fmt.Errorf("xadd %s: %w", DeadStream(s.queue), err)
	}
	return nil
}

func (s *streamOps) ack(ctx context.Context, id string) {
	resp := s.client.Do(ctx, s.client.B().Xack().
		Key(s.queue).Group(GroupName).Id(id).Build())
	if err := resp.Error(); err != nil {
		s.logger.Error("xack failed",
			slog.String("queue", s.queue), slog.String("id", id), slog.String("error", err.Error()))
	}
}
