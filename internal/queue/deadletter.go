package queue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/valkey-io/valkey-go"

	"github.com/conveyor-etl/conveyor/pkg/pipeerr"
)

// DeadLetter is one entry on a queue's dead-letter stream.
type DeadLetter struct {
	ID       string `json:"id"`
	Payload  string `json:"payload"`
	OriginID string `json:"origin_id"`
	Attempts int64  `json:"attempts"`
	Error    string `json:"error"`
}

// DeadLetters lists up to limit dead-lettered entries for a queue, oldest
// first.
func DeadLetters(ctx context.Context, client valkey.Client, queue string, limit int64) ([]DeadLetter, error) {
	resp := client.Do(ctx, client.B().Xrange().
		Key(DeadStream(queue)).Start("-").End("+").
		Count(limit).Build())
	if err := resp.Error(); err != nil {
		return nil, fmt.Errorf("xrange %s: %w", DeadStream(queue), err)
	}

	entries, err := resp.AsXRange()
	if err != nil {
		return nil, fmt.Errorf("parse xrange response: %w", err)
	}

	letters := make([]DeadLetter, 0, len(entries))
	for _, entry := range entries {
		letters = append(letters, parseDeadLetter(entry))
	}
	return letters, nil
}

// Requeue moves a dead-lettered entry back onto its queue and removes it
// from the dead-letter stream. Returns the new entry ID.
//
// The read, re-add, and delete are separate commands, so two operators
// requeueing the same entry concurrently can enqueue its payload twice.
// Delivery is at-least-once and stage outputs are idempotent, so the
// duplicate is processed harmlessly.
func Requeue(ctx context.Context, client valkey.Client, queue, id string) (string, error) {
	resp := client.Do(ctx, client.B().Xrange().
		Key(DeadStream(queue)).Start(id).End(id).Build())
	if err := resp.Error(); err != nil {
		return "", fmt.Errorf("xrange %s: %w", DeadStream(queue), err)
	}
	entries, err := resp.AsXRange()
	if err != nil {
		return "", fmt.Errorf("parse xrange response: %w", err)
	}
	if len(entries) == 0 {
		return "", pipeerr.DeadLetterNotFound(id)
	}

	dl := parseDeadLetter(entries[0])

	addResp := client.Do(ctx, client.B().Xadd().
		Key(queue).Id("*").
		FieldValue().FieldValue("data", dl.Payload).
		Build())
	if err := addResp.Error(); err != nil {
		return "", fmt.Errorf("xadd %s: %w", queue, err)
	}
	newID, err := addResp.ToString()
	if err != nil {
		return "", fmt.Errorf("parse xadd response: %w", err)
	}

	delResp := client.Do(ctx, client.B().Xdel().
		Key(DeadStream(queue)).Id(id).Build())
	if err := delResp.Error(); err != nil {
		return "", fmt.Errorf("xdel %s: %w", DeadStream(queue), err)
	}

	return newID, nil
}

func parseDeadLetter(entry valkey.XRangeEntry) DeadLetter {
	attempts, _ := strconv.ParseInt(entry.FieldValues["attempts"], 10, 64)
	return DeadLetter{
		ID:       entry.ID,
		Payload:  entry.FieldValues["data"],
		OriginID: entry.FieldValues["origin"],
		Attempts: attempts,
		Error:    entry.FieldValues["error"],
	}
}
