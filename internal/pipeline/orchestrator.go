package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/swmlgen/internal/config"
	"github.com/dgallion1/swmlgen/internal/logger"
	"github.com/dgallion1/swmlgen/internal/parser"
	"github.com/dgallion1/swmlgen/internal/schema"
	"github.com/dgallion1/swmlgen/internal/stats"
)

// Orchestrator manages the render job queue.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	worker *Worker
	stats  *stats.Latency
	log    *logger.Logger
	cfg    config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to run workers.
func NewOrchestrator(cfg config.Config, v *schema.Validator, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	st := stats.NewLatency(time.Hour)
	var src schema.Source
	if cfg.SchemaPath != "" {
		src = schema.NewFileSource(cfg.SchemaPath)
	}
	return &Orchestrator{
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		worker: NewWorker(v, src, st, log, parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}),
		stats:  st,
		log:    log,
		cfg:    cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i, n := 0, o.cfg.WorkerCount; i < n; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.worker.Process(workerCtx, job)
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

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.log.Debug("job queued", "job_id", job.ID, "depth", len(o.queue))
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
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

// Worker returns the worker used for synchronous renders.
func (o *Orchestrator) Worker() *Worker {
	return o.worker
}

// Stats returns the latency tracker shared by all workers.
func (o *Orchestrator) Stats() *stats.Latency {
	return o.stats
}
