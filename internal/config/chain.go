package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StageLink is one link of the directed pipeline chain: the queue a stage
// consumes, the container it reads, the container it writes, and the queue it
// emits on. The ordering contract of the whole pipeline is exactly this list.
type StageLink struct {
	Stage           string `yaml:"stage"`
	InputQueue      string `yaml:"input_queue"`
	SourceContainer string `yaml:"source_container,omitempty"`
	OutputContainer string `yaml:"output_container,omitempty"`
	OutputQueue     string `yaml:"output_queue,omitempty"`
}

// Chain returns the Extract→Transform→Load→Train chain implied by the
// resolved queue and container names. The Train stage consumes whole
// containers (datasets and models) rather than a single input blob, so it
// carries no source container.
func (c *Config) Chain() []StageLink {
	return []StageLink{
		{
			Stage:           "extract",
			InputQueue:      c.Queues.Extract,
			SourceContainer: c.Containers.Landing,
			OutputContainer: c.Containers.Raw,
			OutputQueue:     c.Queues.Transform,
		},
		{
			Stage:           "transform",
			InputQueue:      c.Queues.Transform,
			SourceContainer: c.Containers.Raw,
			OutputContainer: c.Containers.Datasets,
			OutputQueue:     c.Queues.Load,
		},
		{
			Stage:           "load",
			InputQueue:      c.Queues.Load,
			SourceContainer: c.Containers.Datasets,
			OutputContainer: c.Containers.FinalOutput,
			OutputQueue:     c.Queues.Train,
		},
		{
			Stage:           "train",
			InputQueue:      c.Queues.Train,
			OutputContainer: c.Containers.Models,
		},
	}
}

type chainFile struct {
	Stages []StageLink `yaml:"stages"`
}

// LoadChainFile reads a YAML chain description and validates it. The file is
// documentation-as-configuration: deployments keep it next to the env vars so
// the ordering contract is explicit rather than implied by scripts.
func LoadChainFile(path string) ([]StageLink, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chain file: %w", err)
	}

	var cf chainFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse chain file: %w", err)
	}

	if err := ValidateChain(cf.Stages); err != nil {
		return nil, fmt.Errorf("chain file %s: %w", path, err)
	}
	return cf.Stages, nil
}

// ValidateChain checks that the links form a single directed chain: each
// stage's output queue feeds the next stage's input queue, each stage's
// output container is the next stage's read source (when the next stage
// declares one), and no queue or container has two writers.
func ValidateChain(links []StageLink) error {
	if len(links) == 0 {
		return fmt.Errorf("chain has no stages")
	}

	inputQueues := make(map[string]string, len(links))
	outputContainers := make(map[string]string, len(links))

	for i, l := range links {
		if l.Stage == "" {
			return fmt.Errorf("stage %d has no name", i)
		}
		if l.InputQueue == "" {
			return fmt.Errorf("stage %s has no input queue", l.Stage)
		}
		if prev, dup := inputQueues[l.InputQueue]; dup {
			return fmt.Errorf("queue %s consumed by both %s and %s", l.InputQueue, prev, l.Stage)
		}
		inputQueues[l.InputQueue] = l.Stage

		if l.OutputContainer != "" {
			if prev, dup := outputContainers[l.OutputContainer]; dup {
				return fmt.Errorf("container %s written by both %s and %s", l.OutputContainer, prev, l.Stage)
			}
			outputContainers[l.OutputContainer] = l.Stage
		}

		last := i == len(links)-1
		if last {
			if l.OutputQueue != "" {
				return fmt.Errorf("terminal stage %s must not emit downstream (got queue %s)", l.Stage, l.OutputQueue)
			}
			continue
		}

		next := links[i+1]
		if l.OutputQueue == "" {
			return fmt.Errorf("stage %s has no output queue but is not terminal", l.Stage)
		}
		if l.OutputQueue != next.InputQueue {
			return fmt.Errorf("stage %s emits on %s but %s consumes %s",
				l.Stage, l.OutputQueue, next.Stage, next.InputQueue)
		}
		if next.SourceContainer != "" && l.OutputContainer != next.SourceContainer {
			return fmt.Errorf("stage %s writes %s but %s reads %s",
				l.Stage, l.OutputContainer, next.Stage, next.SourceContainer)
		}
	}

	return nil
}
