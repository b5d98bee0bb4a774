package pipeline

import (
	"context"
	"path"

	"github.com/conveyor-etl/conveyor/internal/config"
	"github.com/conveyor-etl/conveyor/pkg/pipeerr"
)

// LoadHandler copies a finished dataset into the final-output container.
type LoadHandler struct {
	store      ObjectStore
	containers config.ContainerConfig
}

func NewLoadHandler(store ObjectStore, containers config.ContainerConfig) *LoadHandler {
	return &LoadHandler{store: store, containers: containers}
}

func (h *LoadHandler) Name() string { return "load" }

func (h *LoadHandler) SourceContainer() string { return h.containers.Datasets }

func (h *LoadHandler) Process(ctx context.Context, msg Message) (string, error) {
	name := path.Base(msg.Ref)
	if err := h.store.Copy(ctx, h.containers.Datasets, msg.Ref, h.containers.FinalOutput, name); err != nil {
		return "", pipeerr.BlobWriteFailed(err)
	}
	return name, nil
}
