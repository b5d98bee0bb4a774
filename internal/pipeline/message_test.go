package pipeline

import (
	"testing"
	"time"

	"github.com/conveyor-etl/conveyor/pkg/pipeerr"
)

func TestParseMessage_BareReference(t *testing.T) {
	msg, err := ParseMessage("sample.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Ref != "sample.txt" {
		t.Errorf("ref = %q, want sample.txt", msg.Ref)
	}
	if !msg.TriggerTimestamp.IsZero() || msg.Source != "" {
		t.Errorf("optional fields should be empty: %+v", msg)
	}
}

func TestParseMessage_Structured(t *testing.T) {
	msg, err := ParseMessage(`{"ref":"data.csv","trigger_timestamp":"2024-01-01T00:00:00Z","source":"training.sh"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Ref != "data.csv" {
		t.Errorf("ref = %q, want data.csv", msg.Ref)
	}
	if msg.Source != "training.sh" {
		t.Errorf("source = %q, want training.sh", msg.Source)
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !msg.TriggerTimestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", msg.TriggerTimestamp, want)
	}
}

func TestParseMessage_StructuredWithoutRef(t *testing.T) {
	msg, err := ParseMessage(`{"trigger_timestamp":"2024-01-01T00:00:00Z","source":"training.sh"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Ref != "" {
		t.Errorf("ref = %q, want empty", msg.Ref)
	}
	if msg.Source != "training.sh" {
		t.Errorf("source = %q, want training.sh", msg.Source)
	}
}

func TestParseMessage_MalformedJSON(t *testing.T) {
	_, err := ParseMessage(`{"ref": }`)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if !pipeerr.IsMalformedMessage(err) {
		t.Errorf("expected malformed-message error, got %v", err)
	}
}

func TestParseMessage_BadTimestampDropped(t *testing.T) {
	msg, err := ParseMessage(`{"ref":"a.txt","trigger_timestamp":"not-a-time"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !msg.TriggerTimestamp.IsZero() {
		t.Errorf("bad timestamp should be dropped, got %v", msg.TriggerTimestamp)
	}
}

func TestEncode_BareWhenNoOptionalFields(t *testing.T) {
	m := Message{Ref: "sample.txt"}
	if got := m.Encode(); got != "sample.txt" {
		t.Errorf("encode = %q, want bare reference", got)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	in := Message{
		Ref:              "datasets/olist.parquet",
		TriggerTimestamp: time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC),
		Source:           "transform",
	}
	out, err := ParseMessage(in.Encode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Ref != in.Ref || out.Source != in.Source || !out.TriggerTimestamp.Equal(in.TriggerTimestamp) {
		t.Errorf("round trip mismatch: in=%+v out=%+v", in, out)
	}
}
