package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dexbot/goswap/internal/domain"
	"github.com/dexbot/goswap/internal/metrics"
	"github.com/dexbot/goswap/pkg/ratelimit"
)

var queueLog = logrus.WithField("component", "job_queue")

// Runner is the work a job performs; in production it is the Pipeline.
type Runner interface {
	Run(ctx context.Context, orderID string, attempt int) error
}

// Job is one unit of work: the whole pipeline for one order. It is
// discarded on success and retained in the abandoned set once retries are
// exhausted.
type Job struct {
	OrderID    string
	Attempt    int
	EnqueuedAt time.Time
	LastError  string
}

// QueueOptions carries the queue's tunables.
type QueueOptions struct {
	Workers         int           // concurrent jobs (default 10)
	Buffer          int           // queued jobs (default 256)
	MaxAttempts     int           // pipeline runs per order (default 3)
	AdmissionLimit  int           // job starts per window (default 100)
	AdmissionWindow time.Duration // rolling window (default 60s)
	BackoffBase     time.Duration // backoff unit, delay = base << attempt (default 1s)
}

func (o *QueueOptions) applyDefaults() {
	if o.Workers <= 0 {
		o.Workers = 10
	}
	if o.Buffer <= 0 {
		o.Buffer = 256
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.AdmissionLimit <= 0 {
		o.AdmissionLimit = 100
	}
	if o.AdmissionWindow <= 0 {
		o.AdmissionWindow = 60 * time.Second
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
}

// JobQueue feeds a bounded worker pool, one job per order. Admission is
// rate limited on first enqueue only; a retry re-runs the whole pipeline
// and bypasses admission. Because retries restart from pending, jobs are
// not safe against non-idempotent venue submission; see DESIGN.md.
type JobQueue struct {
	opts      QueueOptions
	runner    Runner
	admission ratelimit.Limiter

	ch chan *Job

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	accepting bool
	inflight  int
	abandoned []Job

	wg   sync.WaitGroup
	once sync.Once
}

func NewJobQueue(runner Runner, opts QueueOptions) *JobQueue {
	opts.applyDefaults()
	return &JobQueue{
		opts:      opts,
		runner:    runner,
		admission: ratelimit.NewSlidingWindow(opts.AdmissionLimit, opts.AdmissionWindow),
		ch:        make(chan *Job, opts.Buffer),
	}
}

// Start launches the worker pool. Safe to call once.
func (q *JobQueue) Start(ctx context.Context) {
	q.once.Do(func() {
		q.mu.Lock()
		q.ctx, q.cancel = context.WithCancel(ctx)
		q.accepting = true
		q.mu.Unlock()

		for i := 0; i < q.opts.Workers; i++ {
			q.wg.Add(1)
			go q.worker(i)
		}
		queueLog.Infof("job queue started: workers=%d buffer=%d", q.opts.Workers, cap(q.ch))
	})
}

// Enqueue admits a new order's job, blocking on the admission window.
func (q *JobQueue) Enqueue(ctx context.Context, orderID string) error {
	q.mu.Lock()
	accepting := q.accepting
	q.mu.Unlock()
	if !accepting {
		return &domain.InfrastructureError{Component: "job queue", Err: fmt.Errorf("not accepting jobs")}
	}
	if err := q.admission.Wait(ctx); err != nil {
		return &domain.InfrastructureError{Component: "job queue", Err: fmt.Errorf("admission: %w", err)}
	}
	job := &Job{OrderID: orderID, Attempt: 1, EnqueuedAt: time.Now()}
	select {
	case q.ch <- job:
		return nil
	default:
		return &domain.InfrastructureError{Component: "job queue", Err: fmt.Errorf("queue full")}
	}
}

func (q *JobQueue) worker(id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.ch:
			q.runJob(id, job)
		}
	}
}

func (q *JobQueue) runJob(workerID int, job *Job) {
	q.mu.Lock()
	q.inflight++
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.inflight--
		q.mu.Unlock()
	}()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panic: %v", r)
				queueLog.Errorf("job panic: worker=%d order=%s panic=%v", workerID, job.OrderID, r)
			}
		}()
		return q.runner.Run(q.ctx, job.OrderID, job.Attempt)
	}()
	if err == nil {
		return
	}

	job.LastError = err.Error()
	if job.Attempt >= q.opts.MaxAttempts {
		q.abandon(job)
		return
	}

	// Exponential backoff: 2^attempt backoff units (seconds by default)
	// after the attempt that just failed. The timer requeues so the
	// worker slot frees immediately.
	delay := q.opts.BackoffBase << uint(job.Attempt)
	queueLog.Warnf("job retry scheduled: order=%s attempt=%d delay=%s err=%v",
		job.OrderID, job.Attempt, delay, err)
	metrics.JobsRetried.Add(1)

	retry := &Job{
		OrderID:    job.OrderID,
		Attempt:    job.Attempt + 1,
		EnqueuedAt: job.EnqueuedAt,
		LastError:  job.LastError,
	}
	time.AfterFunc(delay, func() {
		select {
		case <-q.ctx.Done():
		case q.ch <- retry:
		default:
			// Queue full on requeue: abandon rather than block the timer.
			q.abandon(retry)
		}
	})
}

// abandon retains the exhausted job for inspection instead of purging it.
func (q *JobQueue) abandon(job *Job) {
	q.mu.Lock()
	q.abandoned = append(q.abandoned, *job)
	q.mu.Unlock()
	metrics.JobsAbandoned.Add(1)
	queueLog.Errorf("job abandoned: order=%s attempts=%d last_err=%s",
		job.OrderID, job.Attempt, job.LastError)
}

// Stats is the queue-inspection snapshot.
type Stats struct {
	Depth              int   `json:"depth"`
	Inflight           int   `json:"inflight"`
	Workers            int   `json:"workers"`
	Abandoned          int   `json:"abandoned"`
	AdmissionRemaining int   `json:"admission_remaining"`
	Accepting          bool  `json:"accepting"`
	AbandonedJobs      []Job `json:"abandoned_jobs,omitempty"`
}

func (q *JobQueue) Stats(includeJobs bool) Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	st := Stats{
		Depth:              len(q.ch),
		Inflight:           q.inflight,
		Workers:            q.opts.Workers,
		Abandoned:          len(q.abandoned),
		AdmissionRemaining: q.admission.GetRemaining(),
		Accepting:          q.accepting,
	}
	if includeJobs {
		st.AbandonedJobs = append([]Job(nil), q.abandoned...)
	}
	return st
}

// Running reports whether workers are live (health probe).
func (q *JobQueue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ctx != nil && q.ctx.Err() == nil
}

// Stop drains: admission halts first, then queued and in-flight jobs run
// to completion (workers are never cancelled mid-transaction), bounded by
// ctx's deadline.
func (q *JobQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	q.accepting = false
	cancel := q.cancel
	q.mu.Unlock()
	if cancel == nil {
		return nil
	}

	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		q.mu.Lock()
		drained := len(q.ch) == 0 && q.inflight == 0
		q.mu.Unlock()
		if drained {
			break
		}
		select {
		case <-ctx.Done():
			queueLog.Warnf("queue drain timed out: %v", ctx.Err())
			cancel()
			q.wg.Wait()
			return ctx.Err()
		case <-tick.C:
		}
	}

	cancel()
	q.wg.Wait()
	queueLog.Info("job queue stopped")
	return nil
}
