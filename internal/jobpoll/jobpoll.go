// Package jobpoll tracks a long-running server job by polling its status
// endpoint on a fixed interval.
package jobpoll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/ecrituria/schema"
	"pkt.systems/pslog"
)

// State is the lifecycle of a tracked job.
type State int

const (
	// StateIdle means no poll has been started.
	StateIdle State = iota
	// StatePolling means the job is being polled.
	StatePolling
	// StateCompleted means the server reported completion with a result.
	StateCompleted
	// StateFailed means the server reported an error.
	StateFailed
	// StateTimedOut means the poll ceiling was reached.
	StateTimedOut
	// StateUnreachable means the status endpoint failed too many times in a row.
	StateUnreachable
	// StateCancelled means the job handle was cancelled.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateUnreachable:
		return "unreachable"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the state ends a job.
func (s State) Terminal() bool {
	return s != StateIdle && s != StatePolling
}

// StatusFunc fetches one job status.
type StatusFunc func(ctx context.Context) (schema.JobStatus, error)

// UpdateFunc observes every successfully fetched status.
type UpdateFunc func(schema.JobStatus)

// Options configure polling.
type Options struct {
	Interval time.Duration
	// MaxPolls bounds successful polls. Transient failures do not count.
	MaxPolls int
	// MaxErrors bounds consecutive transient failures; <= 0 means unbounded.
	MaxErrors int
}

// DefaultOptions polls every 1.5s, at most 200 times, tolerating 40
// consecutive transient failures.
func DefaultOptions() Options {
	return Options{Interval: 1500 * time.Millisecond, MaxPolls: 200, MaxErrors: 40}
}

// Outcome is how a job ended.
type Outcome struct {
	State  State
	Status schema.JobStatus
	Polls  int
	Err    error
}

// JobError is a server-reported job failure.
type JobError struct {
	Message string
}

func (e *JobError) Error() string {
	return e.Message
}

// Poller tracks at most one job at a time.
type Poller struct {
	fetch    StatusFunc
	opts     Options
	onUpdate UpdateFunc

	mu      sync.Mutex
	current *Job
	// updateMu orders status delivery with cancellation: once a job is
	// cancelled, none of its statuses reach onUpdate.
	updateMu sync.Mutex
}

// New returns a Poller.
func New(fetch StatusFunc, opts Options, onUpdate UpdateFunc) *Poller {
	def := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = def.MaxPolls
	}
	return &Poller{fetch: fetch, opts: opts, onUpdate: onUpdate}
}

// Start cancels the current job, if any, and begins polling a new one.
func (p *Poller) Start(ctx context.Context) *Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelLocked()
	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{cancel: cancel, done: make(chan struct{}), state: StatePolling}
	p.current = job
	go p.run(jobCtx, job)
	return job
}

// Current returns the most recently started job, or nil.
func (p *Poller) Current() *Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Cancel cancels the current job.
func (p *Poller) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelLocked()
}

func (p *Poller) cancelLocked() {
	if p.current == nil {
		return
	}
	p.updateMu.Lock()
	p.current.Cancel()
	p.updateMu.Unlock()
}

// deliver hands status to onUpdate unless the job was cancelled.
func (p *Poller) deliver(ctx context.Context, status schema.JobStatus) bool {
	p.updateMu.Lock()
	defer p.updateMu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	if p.onUpdate != nil {
		p.onUpdate(status)
	}
	return true
}

func (p *Poller) run(ctx context.Context, job *Job) {
	defer job.cancel()
	log := pslog.Ctx(ctx)
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	var last schema.JobStatus
	polls, consecutiveErrors := 0, 0
	for {
		select {
		case <-ctx.Done():
			job.finish(Outcome{State: StateCancelled, Status: last, Polls: polls, Err: ctx.Err()})
			return
		case <-ticker.C:
		}
		job.requests.Add(1)
		status, err := p.fetch(ctx)
		if ctx.Err() != nil {
			job.finish(Outcome{State: StateCancelled, Status: last, Polls: polls, Err: ctx.Err()})
			return
		}
		if err != nil {
			consecutiveErrors++
			log.Warn("job status poll failed", "err", err, "consecutive", consecutiveErrors)
			if p.opts.MaxErrors > 0 && consecutiveErrors >= p.opts.MaxErrors {
				job.finish(Outcome{
					State:  StateUnreachable,
					Status: last,
					Polls:  polls,
					Err:    fmt.Errorf("%w after %d attempts: %w", schema.ErrStatusUnreachable, consecutiveErrors, err),
				})
				return
			}
			continue
		}
		consecutiveErrors = 0
		if !p.deliver(ctx, status) {
			job.finish(Outcome{State: StateCancelled, Status: last, Polls: polls, Err: ctx.Err()})
			return
		}
		polls++
		last = status
		job.polls.Store(int64(polls))
		log.Debug("job status", "poll", polls, "percent", status.Percent, "step", status.Step)
		switch {
		case status.Succeeded():
			job.finish(Outcome{State: StateCompleted, Status: status, Polls: polls})
		case status.ErrorMessage() != "":
			job.finish(Outcome{State: StateFailed, Status: status, Polls: polls, Err: &JobError{Message: status.ErrorMessage()}})
		case polls >= p.opts.MaxPolls:
			job.finish(Outcome{State: StateTimedOut, Status: status, Polls: polls, Err: schema.ErrJobTimeout})
		default:
			continue
		}
		return
	}
}

// Job is the handle of one tracked job.
type Job struct {
	cancel   context.CancelFunc
	done     chan struct{}
	requests atomic.Int64
	polls    atomic.Int64

	mu      sync.Mutex
	state   State
	outcome Outcome
}

// Cancel stops polling. It is safe to call more than once.
func (j *Job) Cancel() {
	j.cancel()
}

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job ends or ctx is done.
func (j *Job) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-j.done:
		return j.Outcome(), nil
	case <-ctx.Done():
		return Outcome{State: j.State()}, ctx.Err()
	}
}

// State returns the current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Outcome returns the terminal outcome, or the zero Outcome while polling.
func (j *Job) Outcome() Outcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outcome
}

// Polls counts successful status fetches.
func (j *Job) Polls() int {
	return int(j.polls.Load())
}

// Requests counts every status fetch, failed ones included.
func (j *Job) Requests() int {
	return int(j.requests.Load())
}

func (j *Job) finish(outcome Outcome) {
	j.mu.Lock()
	j.state = outcome.State
	j.outcome = outcome
	j.mu.Unlock()
	close(j.done)
}

// IsJobError reports whether err is a server-reported job failure.
func IsJobError(err error) bool {
	var jobErr *JobError
	return errors.As(err, &jobErr)
}
