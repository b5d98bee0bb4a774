// Package databricks is the External Compute Delegate client: it submits
// notebook runs and training jobs to a Databricks-style jobs API and waits,
// within a bound, for them to reach a terminal state.
package databricks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/conveyor-etl/conveyor/internal/config"
	"github.com/conveyor-etl/conveyor/pkg/pipeerr"
)

const (
	submitRunPath = "/api/2.1/jobs/runs/submit"
	runNowPath    = "/api/2.1/jobs/run-now"
	getRunPath    = "/api/2.1/jobs/runs/get"
	runOutputPath = "/api/2.1/jobs/runs/get-output"

	maxSubmitRetries = 3
	retryDelay       = 2 * time.Second
)

// Terminal lifecycle states reported by the jobs API.
const (
	stateTerminated    = "TERMINATED"
	stateSkipped       = "SKIPPED"
	stateInternalError = "INTERNAL_ERROR"

	// ResultSuccess is the only result state treated as success.
	ResultSuccess = "SUCCESS"
)

// Client talks to one Databricks workspace.
type Client struct {
	host    string
	token   string
	cluster config.DatabricksConfig
	http    *http.Client
}

func NewClient(cfg config.DatabricksConfig) *Client {
	return &Client{
		host:    strings.TrimRight(cfg.Host, "/"),
		token:   cfg.Token,
		cluster: cfg,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SubmitRunRequest describes a one-time notebook run.
type SubmitRunRequest struct {
	RunName      string
	NotebookPath string
	Params       map[string]string
}

// Run is the terminal (or in-flight) view of a delegate run.
type Run struct {
	RunID          int64
	LifecycleState string
	ResultState    string
	StateMessage   string
}

// Terminal reports whether the run has reached a terminal lifecycle state.
func (r Run) Terminal() bool {
	switch r.LifecycleState {
	case stateTerminated, stateSkipped, stateInternalError:
		return true
	}
	return false
}

type newCluster struct {
	SparkVersion      string            `json:"spark_version"`
	NodeTypeID        string            `json:"node_type_id"`
	EnableElasticDisk bool              `json:"enable_elastic_disk"`
	NumWorkers        *int              `json:"num_workers,omitempty"`
	SparkConf         map[string]string `json:"spark_conf,omitempty"`
	Autoscale         *autoscale        `json:"autoscale,omitempty"`
}

type autoscale struct {
	MinWorkers int `json:"min_workers"`
	MaxWorkers int `json:"max_workers"`
}

// buildCluster maps the configured sizing hints onto a cluster spec. Both
// worker bounds zero means a single-node cluster (driver only).
func (c *Client) buildCluster() newCluster {
	nc := newCluster{
		SparkVersion:      c.cluster.SparkVersion,
		NodeTypeID:        c.cluster.NodeType,
		EnableElasticDisk: true,
	}
	if c.cluster.MinWorkers == 0 && c.cluster.MaxWorkers == 0 {
		zero := 0
		nc.NumWorkers = &zero
		nc.SparkConf = map[string]string{"spark.databricks.cluster.profile": "singleNode"}
	} else {
		nc.Autoscale = &autoscale{
			MinWorkers: c.cluster.MinWorkers,
			MaxWorkers: c.cluster.MaxWorkers,
		}
	}
	return nc
}

// SubmitRun submits a one-time notebook run on a fresh job cluster and
// returns the run ID.
func (c *Client) SubmitRun(ctx context.Context, req SubmitRunRequest) (int64, error) {
	body := map[string]any{
		"run_name": req.RunName,
		"tasks": []map[string]any{
			{
				"task_key": "conveyor_notebook_task",
				"notebook_task": map[string]any{
					"notebook_path":   req.NotebookPath,
					"base_parameters": req.Params,
				},
				"new_cluster": c.buildCluster(),
			},
		},
		"timeout_seconds": int64(c.cluster.RunTimeout.Seconds()),
	}

	var resp struct {
		RunID int64 `json:"run_id"`
	}
	if err := c.postJSON(ctx, submitRunPath, body, &resp); err != nil {
		return 0, err
	}
	if resp.RunID == 0 {
		return 0, pipeerr.DelegateUnavailable(fmt.Errorf("submit returned no run_id"))
	}
	return resp.RunID, nil
}

// RunNow triggers a pre-registered job by ID and returns the run ID.
func (c *Client) RunNow(ctx context.Context, jobID int64, params map[string]string) (int64, error) {
	body := map[string]any{"job_id": jobID}
	if len(params) > 0 {
		body["notebook_params"] = params
	}

	var resp struct {
		RunID int64 `json:"run_id"`
	}
	if err := c.postJSON(ctx, runNowPath, body, &resp); err != nil {
		return 0, err
	}
	if resp.RunID == 0 {
		return 0, pipeerr.DelegateUnavailable(fmt.Errorf("run-now returned no run_id"))
	}
	return resp.RunID, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, runID int64) (Run, error) {
	var resp struct {
		RunID int64 `json:"run_id"`
		State struct {
			LifecycleState string `json:"life_cycle_state"`
			ResultState    string `json:"result_state"`
			StateMessage   string `json:"state_message"`
		} `json:"state"`
	}
	url := c.host + getRunPath + "?run_id=" + strconv.FormatInt(runID, 10)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return Run{}, err
	}
	return Run{
		RunID:          runID,
		LifecycleState: resp.State.LifecycleState,
		ResultState:    resp.State.ResultState,
		StateMessage:   resp.State.StateMessage,
	}, nil
}

// RunOutput fetches the notebook output of a terminated run. Returns an
// empty string when the run produced none.
func (c *Client) RunOutput(ctx context.Context, runID int64) (string, error) {
	var resp struct {
		NotebookOutput struct {
			Result string `json:"result"`
		} `json:"notebook_output"`
	}
	url := c.host + runOutputPath + "?run_id=" + strconv.FormatInt(runID, 10)
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return "", err
	}
	return resp.NotebookOutput.Result, nil
}

// AwaitRun polls until the run reaches a terminal state. It fails with a
// delegate-timeout error when the configured run timeout elapses first, and
// with a delegate-failed error when the run terminates without SUCCESS.
// Total wait is bounded by the timeout plus one poll interval.
func (c *Client) AwaitRun(ctx context.Context, runID int64) (Run, error) {
	deadline := time.Now().Add(c.cluster.RunTimeout)

	for {
		run, err := c.GetRun(ctx, runID)
		if err != nil {
			return Run{}, err
		}
		if run.Terminal() {
			if run.ResultState != ResultSuccess {
				return run, pipeerr.DelegateFailed(run.ResultState, run.StateMessage)
			}
			return run, nil
		}

		if time.Now().After(deadline) {
			return run, pipeerr.DelegateTimeout(runID)
		}

		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-time.After(c.cluster.PollInterval):
		}
	}
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxSubmitRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay * time.Duration(attempt)):
			}
		}

		err := c.doRequest(ctx, http.MethodPost, c.host+path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
	}
	return pipeerr.DelegateUnavailable(fmt.Errorf("after %d retries: %w", maxSubmitRetries, lastErr))
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	return c.doRequest(ctx, http.MethodGet, url, nil, out)
}

func (c *Client) doRequest(ctx context.Context, method, url string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return pipeerr.DelegateUnavailable(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delegate API status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func retryable(err error) bool {
	s := err.Error()
	return strings.Contains(s, "status 429") ||
		strings.Contains(s, "status 503") ||
		strings.Contains(s, "status 529")
}
