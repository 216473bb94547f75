// Package progress drives the status line and the progress bar shown while
// a long request is in flight.
package progress

import (
	"sync"
	"time"

	"pkt.systems/ecrituria/schema"
)

// Surface renders status and progress.
type Surface interface {
	SetStatus(text string, mode schema.StatusMode)
	SetPercent(percent int)
	Hide()
}

// Options tune the simulated ticker.
type Options struct {
	Tick      time.Duration
	Floor     int
	Step      int
	Ceiling   int
	HideAfter time.Duration
}

// DefaultOptions returns 5% every 1.5s capped at 90%, hidden 1.2s after success.
func DefaultOptions() Options {
	return Options{
		Tick:      1500 * time.Millisecond,
		Floor:     5,
		Step:      5,
		Ceiling:   90,
		HideAfter: 1200 * time.Millisecond,
	}
}

// Reporter owns at most one simulated ticker and one pending auto-hide.
type Reporter struct {
	mu      sync.Mutex
	surface Surface
	opts    Options
	percent int
	ticker  *ticker
	hide    *time.Timer
	hideGen uint64
}

type ticker struct {
	stop chan struct{}
	done chan struct{}
}

// New returns a Reporter writing to surface.
func New(surface Surface, opts Options) *Reporter {
	def := DefaultOptions()
	if opts.Tick <= 0 {
		opts.Tick = def.Tick
	}
	if opts.Step <= 0 {
		opts.Step = def.Step
	}
	if opts.Ceiling <= 0 || opts.Ceiling >= 100 {
		opts.Ceiling = def.Ceiling
	}
	if opts.Floor <= 0 || opts.Floor > opts.Ceiling {
		opts.Floor = def.Floor
	}
	if opts.HideAfter <= 0 {
		opts.HideAfter = def.HideAfter
	}
	return &Reporter{surface: surface, opts: opts}
}

// Begin shows label and starts the simulated ticker, replacing any running one.
func (r *Reporter) Begin(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.cancelHideLocked()
	r.percent = r.opts.Floor
	r.surface.SetStatus(label, schema.StatusInfo)
	r.surface.SetPercent(r.percent)
	t := &ticker{stop: make(chan struct{}), done: make(chan struct{})}
	r.ticker = t
	go r.run(t)
}

// Succeed completes the bar and hides the surface after a short delay.
func (r *Reporter) Succeed(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.cancelHideLocked()
	r.percent = 100
	r.surface.SetPercent(100)
	r.surface.SetStatus(message, schema.StatusSuccess)
	gen := r.hideGen
	r.hide = time.AfterFunc(r.opts.HideAfter, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.hideGen != gen {
			return
		}
		r.hide = nil
		r.surface.Hide()
	})
}

// Fail resets the bar and leaves the error visible.
func (r *Reporter) Fail(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.cancelHideLocked()
	r.percent = 0
	r.surface.SetPercent(0)
	r.surface.SetStatus(message, schema.StatusError)
}

// Report shows a server-reported percentage. It stops the simulated
// ticker so the real value is not overwritten.
func (r *Reporter) Report(text string, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.cancelHideLocked()
	r.percent = clamp(percent, 0, 100)
	r.surface.SetStatus(text, schema.StatusInfo)
	r.surface.SetPercent(r.percent)
}

// Status replaces the status text without touching the bar.
func (r *Reporter) Status(text string, mode schema.StatusMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surface.SetStatus(text, mode)
}

// Clear stops everything and hides the surface.
func (r *Reporter) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.cancelHideLocked()
	r.percent = 0
	r.surface.Hide()
}

// Percent returns the percentage last shown.
func (r *Reporter) Percent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.percent
}

// Active reports whether a simulated ticker is running.
func (r *Reporter) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ticker != nil
}

func (r *Reporter) run(t *ticker) {
	defer close(t.done)
	tk := time.NewTicker(r.opts.Tick)
	defer tk.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-tk.C:
			r.advance(t)
		}
	}
}

func (r *Reporter) advance(t *ticker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ticker != t {
		return
	}
	next := r.percent + r.opts.Step
	if next > r.opts.Ceiling {
		next = r.opts.Ceiling
	}
	if next == r.percent {
		return
	}
	r.percent = next
	r.surface.SetPercent(next)
}

func (r *Reporter) stopLocked() {
	if r.ticker == nil {
		return
	}
	close(r.ticker.stop)
	r.ticker = nil
}

func (r *Reporter) cancelHideLocked() {
	r.hideGen++
	if r.hide != nil {
		r.hide.Stop()
		r.hide = nil
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
