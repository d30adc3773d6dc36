package qrlogin

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultIdleTimeout is how long an untouched controller survives a Sweep.
const DefaultIdleTimeout = 30 * time.Minute

// Registry keeps one Controller per console session.
type Registry struct {
	backend Backend
	opts    Options
	idle    time.Duration

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	ctrl            *Controller
	token           string
	lastSeen        time.Time
	accountsChanged bool
}

// NewRegistry builds controllers from opts. OnSuccess and Observer in opts are invoked for
// every controller the registry creates.
func NewRegistry(b Backend, opts Options, idle time.Duration) *Registry {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Registry{
		backend: b,
		opts:    opts,
		idle:    idle,
		entries: make(map[string]*entry),
	}
}

// Get returns the controller for sessionID, creating it on first use. A different token
// (for example after signing in again) replaces the old controller.
func (r *Registry) Get(sessionID, token string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.opts.Clock.Now()
	if e, ok := r.entries[sessionID]; ok {
		if e.token == token {
			e.lastSeen = now
			return e.ctrl
		}
		e.ctrl.Close()
	}

	e := &entry{token: token, lastSeen: now}
	opts := r.opts
	opts.Logger = r.opts.Logger.With(zap.String("console_session", sessionID))
	opts.OnSuccess = func(snap Snapshot) {
		r.mu.Lock()
		e.accountsChanged = true
		r.mu.Unlock()
		if r.opts.OnSuccess != nil {
			r.opts.OnSuccess(snap)
		}
	}
	e.ctrl = New(r.backend, token, opts)
	r.entries[sessionID] = e
	return e.ctrl
}

// Forget closes and drops the controller for sessionID.
func (r *Registry) Forget(sessionID string) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	delete(r.entries, sessionID)
	r.mu.Unlock()
	if ok {
		e.ctrl.Close()
	}
}

// ConsumeAccountsChanged reports, once, that a login for sessionID succeeded since the last call.
func (r *Registry) ConsumeAccountsChanged(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok || !e.accountsChanged {
		return false
	}
	e.accountsChanged = false
	return true
}

// Now reads the clock shared by every controller.
func (r *Registry) Now() time.Time {
	return r.opts.Clock.Now()
}

// PollInterval returns the status polling cadence of new controllers.
func (r *Registry) PollInterval() time.Duration {
	if r.opts.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return r.opts.PollInterval
}

// Len returns the number of live controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep closes controllers untouched for longer than the idle timeout and returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.opts.Clock.Now()
	var stale []*Controller

	r.mu.Lock()
	for id, e := range r.entries {
		if now.Sub(e.lastSeen) > r.idle {
			stale = append(stale, e.ctrl)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, ctrl := range stale {
		ctrl.Close()
	}
	return len(stale)
}

// Run sweeps every interval until ctx is cancelled, then closes every controller.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.opts.Logger.Debug("swept idle qr controllers", zap.Int("count", n))
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range entries {
		e.ctrl.Close()
	}
}
