package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/geraldbahati/unbowed/internal/config"
	"github.com/geraldbahati/unbowed/internal/index"
	"github.com/geraldbahati/unbowed/internal/stats"
)

// Orchestrator manages the chunking pipeline.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	reader *Reader
	index  *index.Client
	stats  *stats.Recorder
	log    *slog.Logger
	cfg    config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. idx may be nil, in which case jobs
// finish once chunks are produced.
func NewOrchestrator(cfg config.Config, reader *Reader, idx *index.Client, rec *stats.Recorder, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		reader: reader,
		index:  idx,
		stats:  rec,
		log:    log,
		cfg:    cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.cfg.WorkerCount; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.reader, o.index, o.stats, o.log, o.cfg.MaxConcurrentPush)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a job. When a live job already holds the same content in
// the same mode, that job is returned instead and nothing is queued.
func (o *Orchestrator) Submit(job *Job) (*Job, error) {
	if existing := o.jobs.FindByHash(job.Mode, job.ContentHash); existing != nil {
		o.log.Info("duplicate submission", "job_id", existing.ID, "content_hash", job.ContentHash)
		return existing, nil
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return job, nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return job, fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Reader returns the reader used by workers, for synchronous requests.
func (o *Orchestrator) Reader() *Reader {
	return o.reader
}

// IndexClient returns the index client, or nil when none is configured.
func (o *Orchestrator) IndexClient() *index.Client {
	return o.index
}

// Stats returns the latency recorder.
func (o *Orchestrator) Stats() *stats.Recorder {
	return o.stats
}
