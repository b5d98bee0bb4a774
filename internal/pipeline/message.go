package pipeline

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/conveyor-etl/conveyor/pkg/pipeerr"
)

// Message is the unit of inter-stage communication. It carries a reference
// to a blob, never the data itself; the optional fields are informational
// and play no part in correctness.
type Message struct {
	Ref              string
	TriggerTimestamp time.Time
	Source           string
}

type wireMessage struct {
	Ref              string `json:"ref,omitempty"`
	TriggerTimestamp string `json:"trigger_timestamp,omitempty"`
	Source           string `json:"source,omitempty"`
}

// ParseMessage decodes a queue payload. A payload starting with "{" is the
// structured JSON form; anything else is a bare blob reference (the form
// hand-sent test messages use).
func ParseMessage(payload string) (Message, error) {
	trimmed := strings.TrimSpace(payload)
	if !strings.HasPrefix(trimmed, "{") {
		return Message{Ref: trimmed}, nil
	}

	var w wireMessage
	if err := json.Unmarshal([]byte(trimmed), &w); err != nil {
		return Message{}, pipeerr.MalformedMessage(err)
	}

	m := Message{Ref: w.Ref, Source: w.Source}
	if w.TriggerTimestamp != "" {
		// Informational only; a bad timestamp is dropped, not fatal.
		if ts, err := time.Parse(time.RFC3339, w.TriggerTimestamp); err == nil {
			m.TriggerTimestamp = ts.UTC()
		}
	}
	return m, nil
}

// Encode produces the wire form: the bare reference when no optional field
// is set, the JSON record otherwise.
func (m Message) Encode() string {
	if m.TriggerTimestamp.IsZero() && m.Source == "" {
		return m.Ref
	}

	w := wireMessage{Ref: m.Ref, Source: m.Source}
	if !m.TriggerTimestamp.IsZero() {
		w.TriggerTimestamp = m.TriggerTimestamp.UTC().Format(time.RFC3339)
	}
	data, _ := json.Marshal(w)
	return string(data)
}
