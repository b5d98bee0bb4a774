package pipeline

import (
	"context"
	"fmt"

	"github.com/conveyor-etl/conveyor/internal/config"
)

// TrainHandler triggers the pre-registered model-training job on the
// external compute engine. Its inputs are the whole datasets and models
// containers, passed as job parameters, so it carries no single source blob.
// Terminal stage: nothing is emitted downstream.
type TrainHandler struct {
	delegate       Delegate
	jobID          int64
	containers     config.ContainerConfig
	storageAccount string
}

func NewTrainHandler(delegate Delegate, cfg config.DatabricksConfig, containers config.ContainerConfig, storageAccount string) *TrainHandler {
	return &TrainHandler{
		delegate:       delegate,
		jobID:          cfg.TrainingJobID,
		containers:     containers,
		storageAccount: storageAccount,
	}
}

func (h *TrainHandler) Name() string { return "train" }

func (h *TrainHandler) SourceContainer() string { return "" }

func (h *TrainHandler) Process(ctx context.Context, msg Message) (string, error) {
	if h.jobID == 0 {
		return "", fmt.Errorf("training job ID not configured")
	}

	params := map[string]string{
		"DATASETS_CONTAINER_NAME": h.containers.Datasets,
		"MODELS_CONTAINER_NAME":   h.containers.Models,
	}
	if h.storageAccount != "" {
		params["STORAGE_ACCOUNT_NAME"] = h.storageAccount
	}

	runID, err := h.delegate.RunNow(ctx, h.jobID, params)
	if err != nil {
		return "", fmt.Errorf("trigger training job: %w", err)
	}

	if _, err := h.delegate.AwaitRun(ctx, runID); err != nil {
		return "", err
	}
	return "", nil
}
