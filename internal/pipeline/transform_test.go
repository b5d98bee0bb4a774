package pipeline

import (
	"context"
	"testing"

	"github.com/conveyor-etl/conveyor/internal/config"
	"github.com/conveyor-etl/conveyor/internal/queue"
	"github.com/conveyor-etl/conveyor/pkg/pipeerr"
)

func testDatabricksConfig() config.DatabricksConfig {
	return config.DatabricksConfig{
		Host:         "https://example.cloud.databricks.com",
		NotebookPath: "/Notebooks/ecommerce_transform",
	}
}

func TestTransform_SubmitsNotebookAndEmitsDataset(t *testing.T) {
	store := newMemStore()
	sender := &memSender{}
	containers := testContainers()
	store.seed(containers.Raw, "orders.csv", []byte("raw"))

	delegate := &fakeDelegate{output: `{"ref":"orders.parquet"}`}
	h := NewTransformHandler(delegate, testDatabricksConfig(), containers, "etlstore")
	r := NewRunner(h, store, sender, "load-queue", testLogger())

	err := r.Handle(context.Background(), queue.Delivery{ID: "1-0", Attempt: 1, Payload: "orders.csv"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(delegate.submissions) != 1 {
		t.Fatalf("submissions = %d, want 1", len(delegate.submissions))
	}
	sub := delegate.submissions[0]
	if sub.NotebookPath != "/Notebooks/ecommerce_transform" {
		t.Errorf("notebook path = %q", sub.NotebookPath)
	}
	if sub.Params["input_file_name"] != "orders.csv" {
		t.Errorf("input_file_name = %q", sub.Params["input_file_name"])
	}
	if sub.Params["raw_data_container"] != containers.Raw {
		t.Errorf("raw_data_container = %q", sub.Params["raw_data_container"])
	}
	if sub.Params["processed_data_container"] != containers.Datasets {
		t.Errorf("processed_data_container = %q", sub.Params["processed_data_container"])
	}
	if sub.Params["storage_account_name"] != "etlstore" {
		t.Errorf("storage_account_name = %q", sub.Params["storage_account_name"])
	}

	sends := sender.all()
	if len(sends) != 1 || sends[0].queue != "load-queue" {
		t.Fatalf("sends = %+v, want one on load-queue", sends)
	}
	out, _ := ParseMessage(sends[0].payload)
	if out.Ref != "orders.parquet" {
		t.Errorf("downstream ref = %q, want orders.parquet", out.Ref)
	}
}

// A delegate-reported failure produces zero downstream messages; the error
// propagates so the transport redelivers the message.
func TestTransform_DelegateFailureNoEmission(t *testing.T) {
	store := newMemStore()
	sender := &memSender{}
	containers := testContainers()
	store.seed(containers.Raw, "orders.csv", []byte("raw"))

	delegate := &fakeDelegate{awaitErr: pipeerr.DelegateFailed("FAILED", "notebook exception")}
	h := NewTransformHandler(delegate, testDatabricksConfig(), containers, "")
	r := NewRunner(h, store, sender, "load-queue", testLogger())

	err := r.Handle(context.Background(), queue.Delivery{ID: "1-0", Attempt: 1, Payload: "orders.csv"})
	if !pipeerr.IsDelegateFailed(err) {
		t.Fatalf("expected delegate-failed error, got %v", err)
	}
	if len(sender.all()) != 0 {
		t.Errorf("sends = %d, want 0", len(sender.all()))
	}
}

func TestTransform_DelegateTimeoutNoEmission(t *testing.T) {
	store := newMemStore()
	sender := &memSender{}
	containers := testContainers()
	store.seed(containers.Raw, "orders.csv", []byte("raw"))

	delegate := &fakeDelegate{awaitErr: pipeerr.DelegateTimeout(7)}
	h := NewTransformHandler(delegate, testDatabricksConfig(), containers, "")
	r := NewRunner(h, store, sender, "load-queue", testLogger())

	err := r.Handle(context.Background(), queue.Delivery{ID: "1-0", Attempt: 1, Payload: "orders.csv"})
	if !pipeerr.IsDelegateTimeout(err) {
		t.Fatalf("expected delegate-timeout error, got %v", err)
	}
	if len(sender.all()) != 0 {
		t.Errorf("sends = %d, want 0", len(sender.all()))
	}
}

func TestTransform_FallsBackToDerivedName(t *testing.T) {
	store := newMemStore()
	containers := testContainers()
	store.seed(containers.Raw, "dir/orders.csv", []byte("raw"))

	delegate := &fakeDelegate{output: ""}
	h := NewTransformHandler(delegate, testDatabricksConfig(), containers, "")

	ref, err := h.Process(context.Background(), Message{Ref: "dir/orders.csv"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "orders.csv" {
		t.Errorf("ref = %q, want orders.csv", ref)
	}
}

func TestParseOutputRef(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   string
	}{
		{"empty", "", ""},
		{"bare ref", "olist.parquet\n", "olist.parquet"},
		{"json ref", `{"ref":"a.parquet"}`, "a.parquet"},
		{"json output_blob", `{"output_blob":"b.parquet"}`, "b.parquet"},
		{"json ref wins", `{"ref":"a.parquet","output_blob":"b.parquet"}`, "a.parquet"},
		{"invalid json", `{"ref":`, ""},
		{"json without ref", `{"status":"ok"}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseOutputRef(tc.output); got != tc.want {
				t.Errorf("parseOutputRef(%q) = %q, want %q", tc.output, got, tc.want)
			}
		})
	}
}

func TestRunName(t *testing.T) {
	got := runName("transform", "exports/olist orders!.csv")
	want := "conveyor_transform_exports_olist_orders__csv"
	if got != want {
		t.Errorf("runName = %q, want %q", got, want)
	}

	long := runName("transform", string(make([]byte, 200)))
	if len(long) > len("conveyor_transform_")+50 {
		t.Errorf("runName too long: %d chars", len(long))
	}
}
