package pipeline

import (
	"context"
	"path"

	"github.com/conveyor-etl/conveyor/internal/config"
	"github.com/conveyor-etl/conveyor/pkg/pipeerr"
)

// ExtractHandler resolves a message reference to raw source bytes and lands
// them in the raw container. The source is either the landing container or,
// when a fetcher is configured, an upstream S3-compatible bucket.
type ExtractHandler struct {
	store      ObjectStore
	fetcher    Fetcher // nil means read from the landing container
	containers config.ContainerConfig
}

func NewExtractHandler(store ObjectStore, fetcher Fetcher, containers config.ContainerConfig) *ExtractHandler {
	return &ExtractHandler{store: store, fetcher: fetcher, containers: containers}
}

func (h *ExtractHandler) Name() string { return "extract" }

func (h *ExtractHandler) SourceContainer() string {
	if h.fetcher != nil {
		// Upstream existence is checked in Process; the runner's blob-store
		// precondition does not apply.
		return ""
	}
	return h.containers.Landing
}

func (h *ExtractHandler) Process(ctx context.Context, msg Message) (string, error) {
	// Derived name is deterministic so a redelivered message overwrites the
	// same raw blob instead of accumulating duplicates.
	name := path.Base(msg.Ref)

	if h.fetcher != nil {
		if msg.Ref == "" {
			return "", pipeerr.MissingInput("upstream", "(empty reference)")
		}
		exists, err := h.fetcher.Exists(ctx, msg.Ref)
		if err != nil {
			return "", pipeerr.BlobReadFailed(err)
		}
		if !exists {
			return "", pipeerr.MissingInput("upstream", msg.Ref)
		}

		body, size, err := h.fetcher.Fetch(ctx, msg.Ref)
		if err != nil {
			return "", pipeerr.BlobReadFailed(err)
		}
		defer body.Close()

		if err := h.store.Put(ctx, h.containers.Raw, name, body, size, "application/octet-stream"); err != nil {
			return "", pipeerr.BlobWriteFailed(err)
		}
		return name, nil
	}

	if err := h.store.Copy(ctx, h.containers.Landing, msg.Ref, h.containers.Raw, name); err != nil {
		return "", pipeerr.BlobWriteFailed(err)
	}
	return name, nil
}
