package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validLinks() []StageLink {
	return []StageLink{
		{Stage: "extract", InputQueue: "extract-queue", SourceContainer: "landing", OutputContainer: "raw-data", OutputQueue: "transform-queue"},
		{Stage: "transform", InputQueue: "transform-queue", SourceContainer: "raw-data", OutputContainer: "datasets", OutputQueue: "load-queue"},
		{Stage: "load", InputQueue: "load-queue", SourceContainer: "datasets", OutputContainer: "final-output", OutputQueue: "train-queue"},
		{Stage: "train", InputQueue: "train-queue", OutputContainer: "models"},
	}
}

func TestDefaultChainIsValid(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := ValidateChain(cfg.Chain()); err != nil {
		t.Errorf("default chain invalid: %v", err)
	}
}

func TestValidateChain_Valid(t *testing.T) {
	if err := ValidateChain(validLinks()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateChain_BrokenQueueContinuity(t *testing.T) {
	links := validLinks()
	links[0].OutputQueue = "some-other-queue"
	if err := ValidateChain(links); err == nil {
		t.Error("expected error for broken queue continuity")
	}
}

func TestValidateChain_ContainerMismatch(t *testing.T) {
	links := validLinks()
	links[1].OutputContainer = "not-datasets"
	if err := ValidateChain(links); err == nil {
		t.Error("expected error when a stage writes a container the next stage does not read")
	}
}

func TestValidateChain_DuplicateConsumer(t *testing.T) {
	links := validLinks()
	links[2].InputQueue = "transform-queue"
	if err := ValidateChain(links); err == nil {
		t.Error("expected error for a queue with two consumers")
	}
}

func TestValidateChain_DuplicateWriter(t *testing.T) {
	links := validLinks()
	links[3].OutputContainer = "raw-data"
	if err := ValidateChain(links); err == nil {
		t.Error("expected error for a container with two writers")
	}
}

func TestValidateChain_TerminalStageMustNotEmit(t *testing.T) {
	links := validLinks()
	links[3].OutputQueue = "extract-queue"
	if err := ValidateChain(links); err == nil {
		t.Error("expected error for a terminal stage with an output queue")
	}
}

func TestValidateChain_Empty(t *testing.T) {
	if err := ValidateChain(nil); err == nil {
		t.Error("expected error for empty chain")
	}
}

func TestLoadChainFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	content := `stages:
  - stage: extract
    input_queue: extract-queue
    source_container: landing
    output_container: raw-data
    output_queue: transform-queue
  - stage: transform
    input_queue: transform-queue
    source_container: raw-data
    output_container: datasets
    output_queue: load-queue
  - stage: load
    input_queue: load-queue
    source_container: datasets
    output_container: final-output
    output_queue: train-queue
  - stage: train
    input_queue: train-queue
    output_container: models
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	links, err := LoadChainFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links) != 4 {
		t.Fatalf("stages = %d, want 4", len(links))
	}
	if links[0].Stage != "extract" || links[3].Stage != "train" {
		t.Errorf("unexpected stage order: %+v", links)
	}
}

func TestLoadChainFile_InvalidChain(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	content := `stages:
  - stage: extract
    input_queue: extract-queue
    output_queue: wrong-queue
  - stage: transform
    input_queue: transform-queue
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadChainFile(path); err == nil {
		t.Error("expected error for invalid chain file")
	}
}

func TestLoadChainFile_Missing(t *testing.T) {
	if _, err := LoadChainFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
