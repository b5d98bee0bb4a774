package pipeline

import (
	"context"
	"testing"

	"github.com/conveyor-etl/conveyor/internal/config"
	"github.com/conveyor-etl/conveyor/internal/queue"
	"github.com/conveyor-etl/conveyor/pkg/pipeerr"
)

func testTrainConfig() config.DatabricksConfig {
	return config.DatabricksConfig{TrainingJobID: 42}
}

// A structured trigger message results in exactly one training job
// submission referencing the datasets and models containers.
func TestTrain_SingleSubmission(t *testing.T) {
	store := newMemStore()
	sender := &memSender{}
	containers := testContainers()
	delegate := &fakeDelegate{}

	h := NewTrainHandler(delegate, testTrainConfig(), containers, "etlstore")
	r := NewRunner(h, store, sender, "", testLogger())

	payload := `{"trigger_timestamp": "2024-01-01T00:00:00Z", "source": "training.sh"}`
	if err := r.Handle(context.Background(), queue.Delivery{ID: "1-0", Attempt: 1, Payload: payload}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(delegate.runNowJobs) != 1 {
		t.Fatalf("run-now calls = %d, want exactly 1", len(delegate.runNowJobs))
	}
	if delegate.runNowJobs[0] != 42 {
		t.Errorf("job ID = %d, want 42", delegate.runNowJobs[0])
	}
	params := delegate.runNowArgs[0]
	if params["DATASETS_CONTAINER_NAME"] != containers.Datasets {
		t.Errorf("DATASETS_CONTAINER_NAME = %q", params["DATASETS_CONTAINER_NAME"])
	}
	if params["MODELS_CONTAINER_NAME"] != containers.Models {
		t.Errorf("MODELS_CONTAINER_NAME = %q", params["MODELS_CONTAINER_NAME"])
	}
	if params["STORAGE_ACCOUNT_NAME"] != "etlstore" {
		t.Errorf("STORAGE_ACCOUNT_NAME = %q", params["STORAGE_ACCOUNT_NAME"])
	}
	if len(sender.all()) != 0 {
		t.Errorf("sends = %d, want 0 for terminal stage", len(sender.all()))
	}
}

func TestTrain_DelegateFailurePropagates(t *testing.T) {
	delegate := &fakeDelegate{awaitErr: pipeerr.DelegateFailed("FAILED", "training diverged")}
	h := NewTrainHandler(delegate, testTrainConfig(), testContainers(), "")

	_, err := h.Process(context.Background(), Message{Source: "training.sh"})
	if !pipeerr.IsDelegateFailed(err) {
		t.Errorf("expected delegate-failed error, got %v", err)
	}
}

func TestTrain_RequiresJobID(t *testing.T) {
	h := NewTrainHandler(&fakeDelegate{}, config.DatabricksConfig{}, testContainers(), "")
	if _, err := h.Process(context.Background(), Message{}); err == nil {
		t.Fatal("expected error when job ID is not configured")
	}
}
