package smartsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrDispatcherFull is returned by Submit when the job queue is at capacity.
var ErrDispatcherFull = errors.New("dispatcher queue is full")

// JobKind selects the SyncManager operation a Job runs.
type JobKind string

const (
	JobSyncDown JobKind = "syncDown"
	JobSyncUp   JobKind = "syncUp"
	JobReSync   JobKind = "reSync"
)

// Job is one sync operation to run in the background.
type Job struct {
	Kind     JobKind
	Manager  *SyncManager
	Target   *Target
	Options  *Options
	SoupName string

	// SyncID is the sync to rerun for JobReSync.
	SyncID int64

	// Callback observes progress of the running sync.
	Callback Callback

	// Done is called once the job finished, with the final state or the
	// error that prevented the sync from being created.
	Done func(state *SyncState, err error)
}

func (j *Job) validate() error {
	if j == nil {
		return fmt.Errorf("job cannot be nil")
	}
	if j.Manager == nil {
		return fmt.Errorf("job has no sync manager")
	}
	switch j.Kind {
	case JobSyncDown, JobSyncUp, JobReSync:
		return nil
	default:
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
}

// Dispatcher runs submitted sync jobs in a background goroutine at a
// controlled rate. Jobs run one at a time: a store allows a single
// store-wide transaction.
type Dispatcher struct {
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	jobs      chan *Job
	config    DispatcherConfig
	processed int
	failed    int
}

// DefaultDispatcherConfig returns the dispatcher defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		JobsPerSecond: 10,
		QueueSize:     100,
	}
}

// NewDispatcher creates a stopped dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.JobsPerSecond <= 0 {
		config.JobsPerSecond = DefaultDispatcherConfig().JobsPerSecond
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultDispatcherConfig().QueueSize
	}

	return &Dispatcher{
		jobs:   make(chan *Job, config.QueueSize),
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Submit queues a job. Jobs submitted before Start wait until it is called.
func (d *Dispatcher) Submit(job *Job) error {
	if err := job.validate(); err != nil {
		return err
	}
	select {
	case d.jobs <- job:
		return nil
	default:
		return ErrDispatcherFull
	}
}

// Start begins the dispatcher goroutine.
// This is non-blocking. Call Stop() to shut it down.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		log.Printf("[DISPATCHER] Already running")
		return nil
	}
	d.running = true
	// Reset channels for restart capability
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.mu.Unlock()

	go d.run(ctx)
	log.Printf("[DISPATCHER] Started with rate: %d jobs/sec", d.config.JobsPerSecond)
	return nil
}

// Stop waits for the running job to finish and stops the dispatcher.
// Queued jobs stay queued.
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	log.Printf("[DISPATCHER] Stopping...")
	close(d.stopCh)
	<-d.doneCh
	log.Printf("[DISPATCHER] Stopped")
	return nil
}

// IsRunning returns whether the dispatcher is currently running.
func (d *Dispatcher) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// Pending returns the number of queued jobs.
func (d *Dispatcher) Pending() int {
	return len(d.jobs)
}

// Stats returns the number of jobs run and how many of them ended without a Done sync.
func (d *Dispatcher) Stats() (processed, failed int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.processed, d.failed
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.doneCh)

	limiter := rate.NewLimiter(rate.Limit(d.config.JobsPerSecond), 1)
	startTime := time.Now()

	for {
		select {
		case <-d.stopCh:
			processed, _ := d.Stats()
			log.Printf("[DISPATCHER] Received stop signal, ran %d jobs in %v", processed, time.Since(startTime))
			return
		case <-ctx.Done():
			processed, _ := d.Stats()
			log.Printf("[DISPATCHER] Context cancelled, ran %d jobs in %v", processed, time.Since(startTime))
			return
		case job := <-d.jobs:
			if err := limiter.Wait(ctx); err != nil {
				if err == context.Canceled || err == context.DeadlineExceeded {
					d.requeue(job)
					return
				}
				log.Printf("[DISPATCHER] Rate limiter error: %v", err)
			}
			d.execute(ctx, job)
		}
	}
}

// requeue puts back a job taken off the queue when the dispatcher shuts down before running it.
func (d *Dispatcher) requeue(job *Job) {
	select {
	case d.jobs <- job:
	default:
		log.Printf("[DISPATCHER] Dropping %s job for soup %s: queue is full", job.Kind, job.SoupName)
	}
}

func (d *Dispatcher) execute(ctx context.Context, job *Job) {
	start := time.Now()

	var (
		state *SyncState
		err   error
	)
	switch job.Kind {
	case JobSyncDown:
		state, err = job.Manager.SyncDown(ctx, job.Target, job.Options, job.SoupName, job.Callback)
	case JobSyncUp:
		state, err = job.Manager.SyncUp(ctx, job.Options, job.SoupName, job.Callback)
	case JobReSync:
		state, err = job.Manager.ReSync(ctx, job.SyncID, job.Callback)
	}

	failed := err != nil || state == nil || !state.IsDone()
	d.mu.Lock()
	d.processed++
	if failed {
		d.failed++
	}
	d.mu.Unlock()

	if err != nil {
		log.Printf("[DISPATCHER] ERROR: %s job for soup %s: %v (duration: %v)", job.Kind, job.SoupName, err, time.Since(start))
	} else {
		log.Printf("[DISPATCHER] %s sync %d finished with %s (duration: %v)", job.Kind, state.ID, state.Status, time.Since(start))
	}

	if job.Done != nil {
		job.Done(state, err)
	}
}
