package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/conveyor-etl/conveyor/internal/databricks"
)

// memStore is an in-memory ObjectStore for handler tests.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func key(container, name string) string { return container + "/" + name }

func (s *memStore) seed(container, name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key(container, name)] = data
}

func (s *memStore) object(container, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key(container, name)]
	return data, ok
}

func (s *memStore) Put(ctx context.Context, container, name string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key(container, name)] = data
	s.puts++
	return nil
}

func (s *memStore) Get(ctx context.Context, container, name string) (io.ReadCloser, error) {
	data, ok := s.object(container, name)
	if !ok {
		return nil, fmt.Errorf("object %s/%s not found", container, name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) Exists(ctx context.Context, container, name string) (bool, error) {
	_, ok := s.object(container, name)
	return ok, nil
}

func (s *memStore) Copy(ctx context.Context, srcContainer, srcName, dstContainer, dstName string) error {
	data, ok := s.object(srcContainer, srcName)
	if !ok {
		return fmt.Errorf("object %s/%s not found", srcContainer, srcName)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key(dstContainer, dstName)] = data
	return nil
}

type sent struct {
	queue   string
	payload string
}

// memSender records downstream sends.
type memSender struct {
	mu    sync.Mutex
	sends []sent
}

func (s *memSender) Send(ctx context.Context, queue, payload string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, sent{queue: queue, payload: payload})
	return fmt.Sprintf("%d-0", len(s.sends)), nil
}

func (s *memSender) all() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sent, len(s.sends))
	copy(out, s.sends)
	return out
}

// stubHandler lets runner tests script stage behavior.
type stubHandler struct {
	name    string
	source  string
	process func(ctx context.Context, msg Message) (string, error)
}

func (h *stubHandler) Name() string            { return h.name }
func (h *stubHandler) SourceContainer() string { return h.source }
func (h *stubHandler) Process(ctx context.Context, msg Message) (string, error) {
	return h.process(ctx, msg)
}

// fakeDelegate scripts the external compute engine.
type fakeDelegate struct {
	mu          sync.Mutex
	submissions []databricks.SubmitRunRequest
	runNowJobs  []int64
	runNowArgs  []map[string]string
	nextRunID   int64
	awaitErr    error
	output      string
	outputErr   error
}

func (d *fakeDelegate) SubmitRun(ctx context.Context, req databricks.SubmitRunRequest) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submissions = append(d.submissions, req)
	d.nextRunID++
	return d.nextRunID, nil
}

func (d *fakeDelegate) RunNow(ctx context.Context, jobID int64, params map[string]string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runNowJobs = append(d.runNowJobs, jobID)
	d.runNowArgs = append(d.runNowArgs, params)
	d.nextRunID++
	return d.nextRunID, nil
}

func (d *fakeDelegate) AwaitRun(ctx context.Context, runID int64) (databricks.Run, error) {
	if d.awaitErr != nil {
		return databricks.Run{RunID: runID}, d.awaitErr
	}
	return databricks.Run{RunID: runID, LifecycleState: "TERMINATED", ResultState: databricks.ResultSuccess}, nil
}

func (d *fakeDelegate) RunOutput(ctx context.Context, runID int64) (string, error) {
	return d.output, d.outputErr
}

// fakeFetcher scripts an upstream S3 source.
type fakeFetcher struct {
	objects map[string][]byte
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	data, ok := f.objects[ref]
	if !ok {
		return nil, 0, fmt.Errorf("upstream object %s not found", ref)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (f *fakeFetcher) Exists(ctx context.Context, ref string) (bool, error) {
	_, ok := f.objects[ref]
	return ok, nil
}
