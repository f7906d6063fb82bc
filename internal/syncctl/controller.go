// Package syncctl keeps the dashboard's job store in step with the remote job
// service. It drives the initial load, periodic background polling, filter
// changes, manual refreshes and post-upload refreshes, and it is the only
// writer of the store.
//
// Every fetch is tagged with the filter and filter epoch that were current
// when it was issued. A response is applied only if its tag still matches
// when it arrives. Among responses for the current tag the last one to
// complete wins.
package syncctl

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dharsanguruparan/compressdash/internal/artifact"
	"github.com/dharsanguruparan/compressdash/internal/jobapi"
	"github.com/dharsanguruparan/compressdash/internal/model"
	"github.com/dharsanguruparan/compressdash/internal/storage"
	"github.com/dharsanguruparan/compressdash/internal/view"
)

// DefaultPollInterval is how often the background poll runs.
const DefaultPollInterval = 5 * time.Second

// DefaultEscalateAfter is the number of consecutive background failures after
// which the error banner becomes prominent.
const DefaultEscalateAfter = 3

// JobService is the remote job service as the controller consumes it.
type JobService interface {
	ListJobs(ctx context.Context) ([]model.Job, error)
	ListJobsByStatus(ctx context.Context, status model.JobStatus) ([]model.Job, error)
	UploadImages(ctx context.Context, files []jobapi.File) error
	RetryJob(ctx context.Context, id int64) error
	DownloadArtifact(ctx context.Context, name string) (*jobapi.Artifact, error)
}

// Trigger says why a fetch was issued.
type Trigger int

const (
	TriggerInitial Trigger = iota
	TriggerFilter
	TriggerManual
	TriggerUpload
	TriggerPoll
	TriggerEvent
)

func (t Trigger) String() string {
	switch t {
	case TriggerInitial:
		return "initial"
	case TriggerFilter:
		return "filter"
	case TriggerManual:
		return "manual"
	case TriggerUpload:
		return "upload"
	case TriggerPoll:
		return "poll"
	case TriggerEvent:
		return "event"
	}
	return "unknown"
}

// Background reports whether the trigger is best-effort: it never toggles the
// loading indicators and its failures are not prominent.
func (t Trigger) Background() bool {
	return t == TriggerPoll || t == TriggerEvent
}

func (t Trigger) failureMessage() string {
	if t == TriggerInitial || t == TriggerFilter {
		return MsgLoadFailed
	}
	return MsgRefreshFailed
}

// tag identifies one outstanding fetch.
type tag struct {
	filter  model.Filter
	epoch   uint64
	seq     uint64
	trigger Trigger
}

// Controller reconciles a storage.JobStore with a JobService.
type Controller struct {
	svc           JobService
	store         *storage.JobStore
	logger        *slog.Logger
	interval      time.Duration
	escalateAfter int

	// mu serializes tag checks with store writes.
	mu         sync.Mutex
	filter     model.Filter
	epoch      uint64
	seq        uint64
	started    bool
	active     bool
	loading    map[uint64]struct{}
	refreshing map[uint64]struct{}
	bgFailures int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	bgBusy atomic.Bool
}

// Option customizes a Controller.
type Option func(*Controller)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithEscalateAfter sets how many consecutive background failures make the
// error banner prominent. Zero disables escalation.
func WithEscalateAfter(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.escalateAfter = n
		}
	}
}

// WithFilter sets the filter used by the initial load.
func WithFilter(f model.Filter) Option {
	return func(c *Controller) { c.filter = f }
}

// New builds a controller writing into store. Call Start to begin syncing.
func New(svc JobService, store *storage.JobStore, opts ...Option) *Controller {
	c := &Controller{
		svc:           svc,
		store:         store,
		logger:        slog.Default(),
		interval:      DefaultPollInterval,
		escalateAfter: DefaultEscalateAfter,
		loading:       make(map[uint64]struct{}),
		refreshing:    make(map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start runs the initial foreground load and launches the poll loop. Both are
// bound to ctx and to Stop.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("syncctl: already started")
	}
	c.started = true
	c.active = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	sessionCtx := c.ctx
	filter := c.filter
	c.store.Update(func(s *storage.Snapshot) {
		s.Filter = filter
	})
	c.wg.Add(2)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		_ = c.fetch(sessionCtx, TriggerInitial, nil)
	}()
	go c.pollLoop(sessionCtx)
	return nil
}

// Stop cancels the poll timer and every in-flight request, waits for owned
// goroutines and closes the store. No store write happens after Stop returns.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.active = false
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	c.store.Close()
	c.logger.Debug("sync controller stopped")
}

func (c *Controller) pollLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// The parent context ended without Stop; stop writing anyway.
			c.mu.Lock()
			c.active = false
			c.mu.Unlock()
			return
		case <-ticker.C:
			if !c.background(TriggerPoll) {
				c.logger.Debug("poll skipped, previous background fetch still running")
			}
		}
	}
}

// background launches a best-effort fetch in an owned goroutine. It reports
// false when a background fetch is already running or the controller stopped.
func (c *Controller) background(trigger Trigger) bool {
	if !c.bgBusy.CompareAndSwap(false, true) {
		return false
	}
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		c.bgBusy.Store(false)
		return false
	}
	ctx := c.ctx
	c.wg.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.wg.Done()
		defer c.bgBusy.Store(false)
		_ = c.fetch(ctx, trigger, nil)
	}()
	return true
}

// Nudge asks for an immediate background fetch, e.g. after a live job event.
// It is dropped while another background fetch is running.
func (c *Controller) Nudge() {
	c.background(TriggerEvent)
}

// Poll performs one background fetch and waits for it.
func (c *Controller) Poll(ctx context.Context) error {
	return c.run(ctx, TriggerPoll, nil)
}

// Refresh performs a manual foreground refresh.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.run(ctx, TriggerManual, nil)
}

// SetFilter switches the status filter, resets the page to 1 and reloads.
// Responses still in flight for the previous filter are discarded when they
// arrive.
func (c *Controller) SetFilter(ctx context.Context, f model.Filter) error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return ErrStopped
	}
	c.filter = f
	c.epoch++
	// Loading indicators only track requests of the current epoch.
	c.loading = make(map[uint64]struct{})
	c.refreshing = make(map[uint64]struct{})
	t := c.nextTagLocked(TriggerFilter)
	sessionCtx := c.ctx
	c.store.Update(func(s *storage.Snapshot) {
		s.Filter = f
		s.Page = 1
		c.flagsLocked(s)
	})
	c.mu.Unlock()

	rctx, cancel := mergeContext(ctx, sessionCtx)
	defer cancel()
	jobs, err := c.list(rctx, t.filter)
	return c.apply(t, jobs, err)
}

// Upload sends the valid images and, on success, resets the page to 1 and
// refreshes. An upload failure returns without refreshing.
func (c *Controller) Upload(ctx context.Context, files []jobapi.File) error {
	valid := ValidImages(files)
	if len(valid) == 0 {
		return &UserError{Message: MsgNoValidImages, Err: jobapi.ErrNoFiles}
	}
	sessionCtx, err := c.session()
	if err != nil {
		return err
	}
	rctx, cancel := mergeContext(ctx, sessionCtx)
	defer cancel()
	if err := c.svc.UploadImages(rctx, valid); err != nil {
		c.logger.Warn("upload failed", "files", len(valid), "error", err)
		return &UserError{Message: MsgUploadFailed, Err: err}
	}
	c.logger.Info("images uploaded", "files", len(valid))
	return c.run(ctx, TriggerUpload, func(s *storage.Snapshot) { s.Page = 1 })
}

// Retry asks the service to reprocess a failed job. Local job state is left
// alone; the next successful fetch reflects the change.
func (c *Controller) Retry(ctx context.Context, id int64) error {
	sessionCtx, err := c.session()
	if err != nil {
		return err
	}
	rctx, cancel := mergeContext(ctx, sessionCtx)
	defer cancel()
	if err := c.svc.RetryJob(rctx, id); err != nil {
		c.logger.Warn("retry failed", "job_id", id, "error", err)
		return &UserError{Message: retryFailed(id), Err: err}
	}
	c.logger.Info("job queued for retry", "job_id", id)
	return nil
}

// Download streams the job's artifact into sink and returns its location. It
// never touches the job list.
func (c *Controller) Download(ctx context.Context, job model.Job, sink artifact.Sink) (string, error) {
	if job.Action() != model.ActionDownload {
		return "", ErrNotDownloadable
	}
	sessionCtx, err := c.session()
	if err != nil {
		return "", err
	}
	rctx, cancel := mergeContext(ctx, sessionCtx)
	defer cancel()
	name := job.ArtifactName()
	art, err := c.svc.DownloadArtifact(rctx, name)
	if err != nil {
		c.logger.Warn("download failed", "job_id", job.ID, "artifact", name, "error", err)
		return "", &UserError{Message: downloadFailed(name), Err: err}
	}
	defer art.Body.Close()
	loc, err := sink.Put(rctx, name, art.Body, art.Size, art.ContentType)
	if err != nil {
		c.logger.Warn("store artifact failed", "job_id", job.ID, "artifact", name, "error", err)
		return "", &UserError{Message: downloadFailed(name), Err: err}
	}
	c.logger.Info("artifact downloaded", "job_id", job.ID, "location", loc)
	return loc, nil
}

// SetPage moves to page p; values below 1 become 1. Pages past the end are
// allowed and project to an empty page.
func (c *Controller) SetPage(p int) error {
	if p < 1 {
		p = 1
	}
	return c.mutate(func(s *storage.Snapshot) { s.Page = p })
}

// NextPage advances unless already on the last page.
func (c *Controller) NextPage() error {
	return c.mutate(func(s *storage.Snapshot) {
		if s.Page < view.TotalPages(len(s.Jobs), s.ItemsPerPage) {
			s.Page++
		}
	})
}

// PrevPage goes back unless already on the first page.
func (c *Controller) PrevPage() error {
	return c.mutate(func(s *storage.Snapshot) {
		if s.Page > 1 {
			s.Page--
		}
	})
}

// Filter returns the current filter.
func (c *Controller) Filter() model.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Lookup finds a job by id in the current collection.
func (c *Controller) Lookup(id int64) (model.Job, bool) {
	for _, j := range c.store.Snapshot().Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return model.Job{}, false
}

func (c *Controller) mutate(fn func(*storage.Snapshot)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return ErrStopped
	}
	c.store.Update(fn)
	return nil
}

func (c *Controller) session() (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return nil, ErrStopped
	}
	return c.ctx, nil
}

// run issues a fetch bound to both ctx and the controller session.
func (c *Controller) run(ctx context.Context, trigger Trigger, before func(*storage.Snapshot)) error {
	sessionCtx, err := c.session()
	if err != nil {
		return err
	}
	rctx, cancel := mergeContext(ctx, sessionCtx)
	defer cancel()
	return c.fetch(rctx, trigger, before)
}

func (c *Controller) fetch(ctx context.Context, trigger Trigger, before func(*storage.Snapshot)) error {
	t, err := c.begin(trigger, before)
	if err != nil {
		return err
	}
	jobs, err := c.list(ctx, t.filter)
	return c.apply(t, jobs, err)
}

// begin tags a new request and, for foreground triggers, raises the matching
// indicator in the same write as before.
func (c *Controller) begin(trigger Trigger, before func(*storage.Snapshot)) (tag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return tag{}, ErrStopped
	}
	t := c.nextTagLocked(trigger)
	if !trigger.Background() || before != nil {
		c.store.Update(func(s *storage.Snapshot) {
			if before != nil {
				before(s)
			}
			c.flagsLocked(s)
		})
	}
	return t, nil
}

func (c *Controller) nextTagLocked(trigger Trigger) tag {
	c.seq++
	t := tag{filter: c.filter, epoch: c.epoch, seq: c.seq, trigger: trigger}
	switch trigger {
	case TriggerInitial, TriggerFilter:
		c.loading[t.seq] = struct{}{}
	case TriggerManual, TriggerUpload:
		c.refreshing[t.seq] = struct{}{}
	}
	return t
}

func (c *Controller) flagsLocked(s *storage.Snapshot) {
	s.Loading = len(c.loading) > 0
	s.Refreshing = len(c.refreshing) > 0
}

func (c *Controller) list(ctx context.Context, f model.Filter) ([]model.Job, error) {
	if status, ok := f.Status(); ok {
		return c.svc.ListJobsByStatus(ctx, status)
	}
	return c.svc.ListJobs(ctx)
}

// apply writes a fetch outcome if the request is still current.
func (c *Controller) apply(t tag, jobs []model.Job, fetchErr error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return ErrStopped
	}
	_, wasLoading := c.loading[t.seq]
	_, wasRefreshing := c.refreshing[t.seq]
	delete(c.loading, t.seq)
	delete(c.refreshing, t.seq)

	if t.filter != c.filter || t.epoch != c.epoch {
		c.logger.Debug("discarding stale job list",
			"trigger", t.trigger.String(), "tag_filter", t.filter.String(),
			"current_filter", c.filter.String(), "seq", t.seq)
		return nil
	}

	if fetchErr != nil && errors.Is(fetchErr, context.Canceled) {
		// The caller gave up; only the indicator it raised needs to drop.
		if wasLoading || wasRefreshing {
			c.store.Update(c.flagsLocked)
		}
		return fetchErr
	}

	if fetchErr != nil {
		msg := t.trigger.failureMessage()
		prominent := !t.trigger.Background()
		if t.trigger.Background() {
			c.bgFailures++
			if c.escalateAfter > 0 && c.bgFailures >= c.escalateAfter {
				prominent = true
			}
		}
		c.logger.Warn("job list fetch failed",
			"trigger", t.trigger.String(), "filter", t.filter.String(),
			"consecutive_background_failures", c.bgFailures, "error", fetchErr)
		c.store.Update(func(s *storage.Snapshot) {
			// A background failure never downgrades a prominent banner.
			keep := t.trigger.Background() && s.Err != "" && s.ErrProminent
			s.Err = msg
			s.ErrProminent = prominent || keep
			c.flagsLocked(s)
		})
		return &UserError{Message: msg, Err: fetchErr}
	}

	c.bgFailures = 0
	if jobs == nil {
		jobs = []model.Job{}
	}
	c.store.Update(func(s *storage.Snapshot) {
		s.Jobs = jobs
		s.Err = ""
		s.ErrProminent = false
		c.flagsLocked(s)
	})
	return nil
}

// mergeContext returns a context cancelled when either parent is.
func mergeContext(ctx, session context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(session, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

// ValidImages keeps files with a .jpg, .jpeg or .png extension, the formats
// the compression service accepts.
func ValidImages(files []jobapi.File) []jobapi.File {
	out := make([]jobapi.File, 0, len(files))
	for _, f := range files {
		if f.Content == nil {
			continue
		}
		switch strings.ToLower(filepath.Ext(f.Name)) {
		case ".jpg", ".jpeg", ".png":
			out = append(out, f)
		}
	}
	return out
}
