package syncctl

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/dharsanguruparan/compressdash/internal/jobapi"
	"github.com/dharsanguruparan/compressdash/internal/model"
	"github.com/dharsanguruparan/compressdash/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type listResult struct {
	jobs []model.Job
	err  error
}

// listCall is a list request parked until the test answers it.
type listCall struct {
	status model.JobStatus
	reply  chan listResult
}

type fakeService struct {
	mu        sync.Mutex
	manual    bool
	calls     chan listCall
	jobs      []model.Job
	byStatus  map[model.JobStatus][]model.Job
	listErr   error
	listCount int

	uploadErr error
	uploaded  []jobapi.File
	retryErr  error
	retried   []int64
	artifacts map[string]string
}

func newFakeService(jobs []model.Job) *fakeService {
	return &fakeService{
		calls:     make(chan listCall),
		jobs:      jobs,
		byStatus:  make(map[model.JobStatus][]model.Job),
		artifacts: make(map[string]string),
	}
}

func (f *fakeService) setManual(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manual = v
}

func (f *fakeService) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *fakeService) setJobs(jobs []model.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = jobs
}

func (f *fakeService) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCount
}

func (f *fakeService) list(ctx context.Context, status model.JobStatus) ([]model.Job, error) {
	f.mu.Lock()
	f.listCount++
	manual := f.manual
	jobs, err := f.jobs, f.listErr
	if status != "" {
		jobs = f.byStatus[status]
	}
	f.mu.Unlock()
	if !manual {
		return jobs, err
	}
	call := listCall{status: status, reply: make(chan listResult, 1)}
	select {
	case f.calls <- call:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-call.reply:
		return r.jobs, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeService) ListJobs(ctx context.Context) ([]model.Job, error) {
	return f.list(ctx, "")
}

func (f *fakeService) ListJobsByStatus(ctx context.Context, status model.JobStatus) ([]model.Job, error) {
	return f.list(ctx, status)
}

func (f *fakeService) UploadImages(ctx context.Context, files []jobapi.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploaded = append(f.uploaded, files...)
	return nil
}

func (f *fakeService) RetryJob(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.retryErr != nil {
		return f.retryErr
	}
	f.retried = append(f.retried, id)
	return nil
}

func (f *fakeService) DownloadArtifact(ctx context.Context, name string) (*jobapi.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.artifacts[name]
	if !ok {
		return nil, &jobapi.APIError{StatusCode: 404, Message: "not found"}
	}
	return &jobapi.Artifact{
		Name:        name,
		ContentType: "image/jpeg",
		Size:        int64(len(body)),
		Body:        io.NopCloser(strings.NewReader(body)),
	}, nil
}

func makeJobs(n int, status model.JobStatus) []model.Job {
	jobs := make([]model.Job, n)
	for i := range jobs {
		jobs[i] = model.Job{ID: int64(i + 1), Filename: "img.jpg", Status: status}
	}
	return jobs
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startController runs a controller with polling effectively disabled and
// waits for the initial load.
func startController(t *testing.T, svc *fakeService, opts ...Option) (*Controller, *storage.JobStore) {
	t.Helper()
	store := storage.NewJobStore(5)
	opts = append([]Option{WithInterval(time.Hour), WithLogger(quietLogger())}, opts...)
	c := New(svc, store, opts...)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(c.Stop)
	waitFor(t, store, func(s storage.Snapshot) bool { return !s.Loading })
	return c, store
}

func waitFor(t *testing.T, store *storage.JobStore, cond func(storage.Snapshot) bool) storage.Snapshot {
	t.Helper()
	ch, cancel := store.Subscribe()
	defer cancel()
	deadline := time.After(2 * time.Second)
	for {
		if s := store.Snapshot(); cond(s) {
			return s
		}
		select {
		case _, ok := <-ch:
			if !ok {
				if s := store.Snapshot(); cond(s) {
					return s
				}
				t.Fatalf("store closed before condition held: %+v", store.Snapshot())
			}
		case <-deadline:
			t.Fatalf("condition not reached, last snapshot %+v", store.Snapshot())
		}
	}
}

func nextCall(t *testing.T, svc *fakeService) listCall {
	t.Helper()
	select {
	case call := <-svc.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatalf("no list request arrived")
	}
	return listCall{}
}

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("operation did not return")
	}
	return nil
}

var errBoom = errors.New("connection refused")
