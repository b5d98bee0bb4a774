package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/conveyor-etl/conveyor/internal/config"
	"github.com/conveyor-etl/conveyor/internal/databricks"
)

// TransformHandler delegates the heavy transformation to a notebook run on
// the external compute engine, then reports the resulting dataset blob
// downstream.
type TransformHandler struct {
	delegate       Delegate
	notebookPath   string
	containers     config.ContainerConfig
	storageAccount string
}

func NewTransformHandler(delegate Delegate, cfg config.DatabricksConfig, containers config.ContainerConfig, storageAccount string) *TransformHandler {
	return &TransformHandler{
		delegate:       delegate,
		notebookPath:   cfg.NotebookPath,
		containers:     containers,
		storageAccount: storageAccount,
	}
}

func (h *TransformHandler) Name() string { return "transform" }

func (h *TransformHandler) SourceContainer() string { return h.containers.Raw }

func (h *TransformHandler) Process(ctx context.Context, msg Message) (string, error) {
	if h.notebookPath == "" {
		return "", fmt.Errorf("transform notebook path not configured")
	}

	params := map[string]string{
		"input_file_name":          msg.Ref,
		"raw_data_container":       h.containers.Raw,
		"processed_data_container": h.containers.Datasets,
	}
	if h.storageAccount != "" {
		params["storage_account_name"] = h.storageAccount
	}

	runID, err := h.delegate.SubmitRun(ctx, databricks.SubmitRunRequest{
		RunName:      runName("transform", msg.Ref),
		NotebookPath: h.notebookPath,
		Params:       params,
	})
	if err != nil {
		return "", fmt.Errorf("submit transform run: %w", err)
	}

	if _, err := h.delegate.AwaitRun(ctx, runID); err != nil {
		return "", err
	}

	// The notebook may report the dataset blob it wrote; fall back to the
	// name derived from the input when it reports nothing.
	if output, err := h.delegate.RunOutput(ctx, runID); err == nil {
		if ref := parseOutputRef(output); ref != "" {
			return ref, nil
		}
	}
	return path.Base(msg.Ref), nil
}

// parseOutputRef extracts a blob reference from a notebook's output result:
// either a JSON record with a ref field or a bare reference string.
func parseOutputRef(output string) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}

	var out struct {
		Ref        string `json:"ref"`
		OutputBlob string `json:"output_blob"`
	}
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return ""
	}
	if out.Ref != "" {
		return out.Ref
	}
	return out.OutputBlob
}

// runName builds a delegate run name from a stage and message reference,
// keeping only characters the jobs UI handles well and bounding the length.
func runName(stage, ref string) string {
	var b strings.Builder
	for _, c := range ref {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			b.WriteRune(c)
		default:
			b.WriteRune('_')
		}
	}
	safe := b.String()
	if len(safe) > 50 {
		safe = safe[:50]
	}
	return "conveyor_" + stage + "_" + safe
}
