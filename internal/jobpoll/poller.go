package jobpoll

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Report is one server-reported job status observation.
type Report struct {
	Status Status          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Err    string          `json:"error,omitempty"`
}

// Source answers status queries for a job id.
type Source interface {
	JobStatus(ctx context.Context, jobID string) (Report, error)
}

// Hooks receive terminal transitions. They run on the poll goroutine and
// are never invoked after Stop returns the poller to idle, so a torn-down
// owner cannot be written to.
type Hooks struct {
	OnCompleted func(snap Snapshot)
	OnFailed    func(snap Snapshot)
	// OnExhausted fires when the attempt budget runs out without a terminal
	// status. The job stays processing; polling just stops.
	OnExhausted func(snap Snapshot)
}

// Config tunes one poller slot.
type Config struct {
	Interval    time.Duration // default 2.5s
	TickTimeout time.Duration // per-query timeout, default 10s
	MaxAttempts int           // default 120
	Clock       Clock         // default RealClock
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 2500 * time.Millisecond
	}
	if c.TickTimeout <= 0 {
		c.TickTimeout = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 120
	}
	if c.Clock == nil {
		c.Clock = RealClock()
	}
}

// Poller owns exactly one job slot. Starting a new job on the slot always
// cancels the previous timer first, so at most one live timer exists per
// slot at any time.
type Poller struct {
	cfg    Config
	source Source
	hooks  Hooks
	log    *slog.Logger

	mu   sync.Mutex
	job  *Job
	stop chan struct{} // closes to cancel the current run; nil when idle
	done chan struct{} // closed by the current run on exit
}

// New creates an idle poller for one job slot.
func New(source Source, hooks Hooks, cfg Config, log *slog.Logger) *Poller {
	cfg.defaults()
	if log == nil {
		log = slog.Default()
	}
	return &Poller{cfg: cfg, source: source, hooks: hooks, log: log}
}

// Start begins polling jobID. Any run already active on this slot is
// cancelled first. The job enters processing immediately.
func (p *Poller) Start(ctx context.Context, kind Kind, jobID string) {
	p.mu.Lock()
	prevStop, prevDone := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	cancelRun(prevStop, prevDone)

	job := &Job{ID: jobID, Kind: kind, Status: StatusProcessing, UpdatedAt: time.Now()}
	stop := make(chan struct{})
	done := make(chan struct{})

	p.mu.Lock()
	p.job = job
	p.stop = stop
	p.done = done
	p.mu.Unlock()

	go p.run(ctx, job, stop, done)
}

// Resume restarts polling for the slot's current job with a fresh attempt
// budget. No-op when the slot is empty or the job already ended.
func (p *Poller) Resume(ctx context.Context) {
	p.mu.Lock()
	job := p.job
	running := p.stop != nil
	p.mu.Unlock()

	if job == nil || running {
		return
	}
	snap := job.snapshot(false)
	if snap.Status.Terminal() {
		return
	}
	job.resetAttempts()

	stop := make(chan struct{})
	done := make(chan struct{})
	p.mu.Lock()
	p.stop = stop
	p.done = done
	p.mu.Unlock()

	go p.run(ctx, job, stop, done)
}

// Stop cancels any active timer. Idempotent; always safe on teardown.
func (p *Poller) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()

	cancelRun(stop, done)
}

func cancelRun(stop, done chan struct{}) {
	if stop == nil {
		return
	}
	close(stop)
	if done != nil {
		<-done
	}
}

// Polling reports whether a timer is live on this slot.
func (p *Poller) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

// Job returns a snapshot of the slot's job, or false for an empty slot.
func (p *Poller) Job() (Snapshot, bool) {
	p.mu.Lock()
	job := p.job
	running := p.stop != nil
	p.mu.Unlock()
	if job == nil {
		return Snapshot{}, false
	}
	return job.snapshot(running), true
}

// run is the poll loop: one status query per tick until a terminal status
// arrives or the attempt budget is exhausted.
func (p *Poller) run(ctx context.Context, job *Job, stop, done chan struct{}) {
	defer close(done)

	ticker := p.cfg.Clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.clearRun(stop)
			return
		case <-stop:
			return
		case <-ticker.C():
		}

		report, err := p.query(ctx, job.ID)

		// The slot may have been torn down while the query was in flight;
		// late results must not touch state or fire hooks.
		select {
		case <-stop:
			return
		default:
		}

		if err != nil {
			// A failed tick is tolerated silently and counted toward the budget.
			p.log.Warn("job poll tick failed", "job_id", job.ID, "kind", job.Kind, "error", err)
			if job.incrAttempts() >= p.cfg.MaxAttempts {
				p.exhaust(job, stop)
				return
			}
			continue
		}

		switch report.Status {
		case StatusCompleted:
			job.complete(report.Result)
			p.clearRun(stop)
			if p.hooks.OnCompleted != nil {
				p.hooks.OnCompleted(job.snapshot(false))
			}
			return
		case StatusFailed:
			job.fail(report.Err)
			p.clearRun(stop)
			if p.hooks.OnFailed != nil {
				p.hooks.OnFailed(job.snapshot(false))
			}
			return
		default:
			if job.incrAttempts() >= p.cfg.MaxAttempts {
				p.exhaust(job, stop)
				return
			}
		}
	}
}

// exhaust stops the timer without failing the job: it continues in the
// background and the caller may Resume or re-trigger.
func (p *Poller) exhaust(job *Job, stop chan struct{}) {
	p.clearRun(stop)
	p.log.Info("job poll budget exhausted, job continues in background",
		"job_id", job.ID, "kind", job.Kind, "attempts", p.cfg.MaxAttempts)
	if p.hooks.OnExhausted != nil {
		p.hooks.OnExhausted(job.snapshot(false))
	}
}

// clearRun detaches the run from the slot if it is still the active one.
func (p *Poller) clearRun(stop chan struct{}) {
	p.mu.Lock()
	if p.stop == stop {
		p.stop, p.done = nil, nil
	}
	p.mu.Unlock()
}

func (p *Poller) query(ctx context.Context, jobID string) (Report, error) {
	tickCtx, cancel := context.WithTimeout(ctx, p.cfg.TickTimeout)
	defer cancel()
	return p.source.JobStatus(tickCtx, jobID)
}
