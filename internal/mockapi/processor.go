package mockapi

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dharsanguruparan/compressdash/internal/model"
)

// Broadcaster is told about every job transition.
type Broadcaster interface {
	Broadcast(job model.Job)
}

// Processor is a small worker pool that walks jobs through
// pending -> processing -> completed (or failed).
type Processor struct {
	reg     *Registry
	events  Broadcaster
	queue   chan int64
	workers int
	delay   time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
	once    sync.Once
}

// NewProcessor builds a Processor with queue capacity tied to worker count.
// delay simulates the time a real compression takes.
func NewProcessor(reg *Registry, events Broadcaster, workers int, delay time.Duration, logger *slog.Logger) *Processor {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		reg:     reg,
		events:  events,
		queue:   make(chan int64, workers*16),
		workers: workers,
		delay:   delay,
		logger:  logger,
	}
}

// Start launches the workers. Calling it again is a no-op.
func (p *Processor) Start(ctx context.Context) {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(ctx)
		}
	})
}

// Wait blocks until every worker has exited after ctx cancellation.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Submit queues a job. When the queue is full the job is marked failed so the
// API reflects reality.
func (p *Processor) Submit(id int64) {
	select {
	case p.queue <- id:
	default:
		p.logger.Warn("processor queue full, failing job", "job_id", id)
		p.fail(id, "processing queue full")
	}
}

func (p *Processor) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			p.process(ctx, id)
		}
	}
}

func (p *Processor) process(ctx context.Context, id int64) {
	job, err := p.reg.Update(id, func(j *model.Job) {
		j.Status = model.StatusProcessing
		j.ErrorMessage = nil
	})
	if err != nil {
		p.logger.Warn("job vanished before processing", "job_id", id)
		return
	}
	p.events.Broadcast(job)

	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	data, ok := p.reg.Original(id)
	if !ok {
		p.fail(id, "original image is missing")
		return
	}
	out, _, err := compressImage(data)
	if err != nil {
		p.logger.Info("compression failed", "job_id", id, "error", err)
		p.fail(id, "File format not supported")
		return
	}
	name := artifactName(job.Filename)
	p.reg.PutArtifact(name, out)
	size := int64(len(out))
	job, err = p.reg.Update(id, func(j *model.Job) {
		j.Status = model.StatusCompleted
		j.CompressedSize = &size
		j.CompressedFileName = &name
	})
	if err != nil {
		return
	}
	p.logger.Info("job completed", "job_id", id, "artifact", name, "compressed_size", size)
	p.events.Broadcast(job)
}

func (p *Processor) fail(id int64, msg string) {
	job, err := p.reg.Update(id, func(j *model.Job) {
		j.Status = model.StatusFailed
		j.ErrorMessage = &msg
	})
	if err != nil {
		return
	}
	p.events.Broadcast(job)
}
