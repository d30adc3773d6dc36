// Package qrlogin drives Bilibili QR-code logins on behalf of one console session.
package qrlogin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
)

// Status is the state of the current login attempt.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusWaiting Status = "waiting"
	StatusScanned Status = "scanned"
	StatusSuccess Status = "success"
	StatusExpired Status = "expired"
	StatusError   Status = "error"
)

// Terminal reports whether polling stops in this state.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusExpired || s == StatusError
}

func parseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusWaiting:
		return StatusWaiting, true
	case StatusScanned:
		return StatusScanned, true
	case StatusSuccess:
		return StatusSuccess, true
	case StatusExpired:
		return StatusExpired, true
	case StatusError:
		return StatusError, true
	}
	return "", false
}

// canAdvance allows forward moves only. Repeating the current non-terminal status refreshes the message.
func canAdvance(from, to Status) bool {
	switch from {
	case StatusWaiting:
		return to != StatusIdle
	case StatusScanned:
		return to == StatusScanned || to == StatusSuccess || to == StatusExpired || to == StatusError
	default:
		return false
	}
}

const (
	msgGenerating = "Generating QR code…"
	msgSignIn     = "Please sign in to the console first"
	msgWaiting    = "Scan the QR code with the Bilibili app"
	msgScanned    = "Scanned. Confirm the login on your phone"
	msgSuccess    = "Login successful"
	msgExpired    = "QR code expired"
	msgError      = "Login failed"
)

func defaultMessage(s Status) string {
	switch s {
	case StatusWaiting:
		return msgWaiting
	case StatusScanned:
		return msgScanned
	case StatusSuccess:
		return msgSuccess
	case StatusExpired:
		return msgExpired
	case StatusError:
		return msgError
	}
	return ""
}

// terminalError maps a reported failure status onto the backend error taxonomy.
func terminalError(s Status, message string) error {
	switch s {
	case StatusExpired:
		return fmt.Errorf("%w: %s", backend.ErrExpired, message)
	case StatusError:
		return &backend.APIError{Status: http.StatusOK, Message: message}
	}
	return nil
}

func startFailureMessage(err error) string {
	switch backend.KindOf(err) {
	case backend.KindUnauthenticated:
		return "Your console session has expired, please sign in again"
	case backend.KindNetwork:
		return "Network error, please retry"
	default:
		return backend.Message(err, "Failed to generate QR code")
	}
}

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("qrlogin: controller closed")

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	Attempt     uint64
	SessionID   string
	Image       string
	Status      Status
	Message     string
	UserInfo    *UserInfo
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AutoRefresh time.Duration
	// Generating is set while a new code is being requested, including the moment between an
	// expiry and its automatic replacement.
	Generating bool

	err error
}

// Err returns why the attempt ended in expired or error. An expiry wraps backend.ErrExpired.
func (s Snapshot) Err() error {
	return s.err
}

// Polling reports whether a viewer should keep asking for fresh snapshots.
func (s Snapshot) Polling() bool {
	if s.Generating {
		return true
	}
	return s.SessionID != "" && (s.Status == StatusWaiting || s.Status == StatusScanned)
}

// RefreshAt returns when auto-refresh will replace a still-waiting code.
func (s Snapshot) RefreshAt() (time.Time, bool) {
	if s.AutoRefresh <= 0 || s.Status != StatusWaiting || s.CreatedAt.IsZero() {
		return time.Time{}, false
	}
	return s.CreatedAt.Add(s.AutoRefresh), true
}

// Options tunes a Controller. Zero durations fall back to the defaults.
type Options struct {
	PollInterval   time.Duration
	AutoRefresh    time.Duration
	RequestTimeout time.Duration
	Clock          Clock
	Logger         *zap.Logger
	// OnSuccess fires once when an attempt reaches StatusSuccess.
	OnSuccess func(Snapshot)
	// Observer receives every published snapshot.
	Observer func(Snapshot)
}

const (
	DefaultPollInterval   = 2 * time.Second
	DefaultAutoRefresh    = 180 * time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// Controller owns the lifecycle of one QR login attempt at a time. Every timer is
// released through cancelLocked before a new one is armed, and each response is
// checked against the attempt counter before it may change state.
type Controller struct {
	backend   Backend
	token     string
	clock     Clock
	logger    *zap.Logger
	interval  time.Duration
	timeout   time.Duration
	onSuccess func(Snapshot)
	observer  func(Snapshot)

	mu           sync.Mutex
	attempt      uint64
	state        Snapshot
	autoRefresh  time.Duration
	pollTimer    Timer
	refreshTimer Timer
	stop         context.CancelFunc
	closed       bool
}

// New constructs an idle Controller that authenticates backend calls with token.
// A negative AutoRefresh disables auto-refresh; zero selects the default.
func New(b Backend, token string, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.AutoRefresh == 0 {
		opts.AutoRefresh = DefaultAutoRefresh
	}
	if opts.AutoRefresh < 0 {
		opts.AutoRefresh = 0
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Controller{
		backend:     b,
		token:       strings.TrimSpace(token),
		clock:       opts.Clock,
		logger:      opts.Logger,
		interval:    opts.PollInterval,
		timeout:     opts.RequestTimeout,
		onSuccess:   opts.OnSuccess,
		observer:    opts.Observer,
		autoRefresh: opts.AutoRefresh,
	}
	c.state = Snapshot{Status: StatusIdle, AutoRefresh: c.autoRefresh}
	return c
}

// Token returns the console token the controller authenticates with.
func (c *Controller) Token() string {
	return c.token
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Start cancels any running attempt and requests a new QR code. Without a console token it
// fails with backend.ErrUnauthenticated and performs no request. Backend failures are
// terminal for the attempt: the state moves to StatusError and the error is returned.
func (c *Controller) Start(ctx context.Context) (Snapshot, error) {
	return c.begin(ctx, 0, false)
}

// Reset cancels all timers and returns to StatusIdle. Safe in every state.
func (c *Controller) Reset() Snapshot {
	c.mu.Lock()
	c.cancelLocked()
	c.attempt++
	c.state = Snapshot{Attempt: c.attempt, Status: StatusIdle, AutoRefresh: c.autoRefresh, UpdatedAt: c.clock.Now()}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return snap
}

// Close releases all timers. The controller cannot be started again.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.attempt++
	c.closed = true
}

// SetAutoRefresh changes the auto-refresh interval (0 disables) and re-arms the refresh
// timer for a code that is still waiting, measured from when the code was issued.
func (c *Controller) SetAutoRefresh(d time.Duration) Snapshot {
	if d < 0 {
		d = 0
	}
	c.mu.Lock()
	c.autoRefresh = d
	c.state.AutoRefresh = d
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
	if c.state.Status == StatusWaiting && c.state.SessionID != "" {
		c.armRefreshLocked(c.attempt)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
	return snap
}

func (c *Controller) begin(ctx context.Context, expect uint64, guarded bool) (Snapshot, error) {
	c.mu.Lock()
	if c.closed {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrClosed
	}
	if guarded && c.attempt != expect {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	}
	c.cancelLocked()
	c.attempt++
	attempt := c.attempt
	now := c.clock.Now()

	if c.token == "" {
		c.state = Snapshot{Attempt: attempt, Status: StatusError, Message: msgSignIn, AutoRefresh: c.autoRefresh, UpdatedAt: now, err: backend.ErrUnauthenticated}
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.notify(snap)
		return snap, backend.ErrUnauthenticated
	}

	c.state = Snapshot{Attempt: attempt, Status: StatusWaiting, Message: msgGenerating, AutoRefresh: c.autoRefresh, UpdatedAt: now, Generating: true}
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	c.stop = cancel
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)

	ticket, err := c.backend.Generate(reqCtx, c.token, "admin-console/"+ulid.Make().String())
	cancel()
	var image string
	if err == nil {
		image, err = ImageFor(ticket)
	}

	c.mu.Lock()
	if c.attempt != attempt {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.logger.Debug("qr code superseded before it arrived", zap.Uint64("attempt", attempt))
		return snap, nil
	}
	c.stop = nil
	now = c.clock.Now()
	if err != nil {
		c.state.Status = StatusError
		c.state.Message = startFailureMessage(err)
		c.state.Generating = false
		c.state.UpdatedAt = now
		c.state.err = err
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.logger.Warn("qr code generation failed",
			zap.Uint64("attempt", attempt),
			zap.String("kind", string(backend.KindOf(err))),
			zap.Error(err),
		)
		c.notify(snap)
		return snap, err
	}

	c.state = Snapshot{
		Attempt:     attempt,
		SessionID:   ticket.SessionID,
		Image:       image,
		Status:      StatusWaiting,
		Message:     msgWaiting,
		CreatedAt:   now,
		UpdatedAt:   now,
		AutoRefresh: c.autoRefresh,
	}
	loopCtx, stop := context.WithCancel(context.Background())
	c.stop = stop
	c.schedulePollLocked(loopCtx, attempt, ticket.SessionID)
	c.armRefreshLocked(attempt)
	snap = c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("qr login started", zap.Uint64("attempt", attempt), zap.String("session_id", ticket.SessionID))
	c.notify(snap)
	return snap, nil
}

func (c *Controller) schedulePollLocked(ctx context.Context, attempt uint64, sessionID string) {
	c.pollTimer = c.clock.AfterFunc(c.interval, func() {
		c.poll(ctx, attempt, sessionID)
	})
}

func (c *Controller) armRefreshLocked(attempt uint64) {
	if c.autoRefresh <= 0 {
		return
	}
	remaining := c.autoRefresh - c.clock.Now().Sub(c.state.CreatedAt)
	if remaining < 0 {
		remaining = 0
	}
	c.refreshTimer = c.clock.AfterFunc(remaining, func() {
		c.refreshDue(attempt)
	})
}

// cancelLocked is the single release point for the poll timer, the refresh timer
// and any in-flight request of the current attempt.
func (c *Controller) cancelLocked() {
	if c.pollTimer != nil {
		c.pollTimer.Stop()
		c.pollTimer = nil
	}
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
}

func (c *Controller) poll(ctx context.Context, attempt uint64, sessionID string) {
	c.mu.Lock()
	if c.attempt != attempt || ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.pollTimer = nil
	c.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	res, err := c.backend.Poll(reqCtx, c.token, sessionID)
	cancel()

	c.mu.Lock()
	if c.attempt != attempt || ctx.Err() != nil {
		c.mu.Unlock()
		c.logger.Debug("discarding stale poll response", zap.Uint64("attempt", attempt), zap.String("session_id", sessionID))
		return
	}
	if err != nil {
		c.schedulePollLocked(ctx, attempt, sessionID)
		c.mu.Unlock()
		fields := []zap.Field{zap.Uint64("attempt", attempt), zap.String("session_id", sessionID), zap.Error(err)}
		if backend.IsNetwork(err) {
			c.logger.Debug("qr poll failed, retrying", fields...)
		} else {
			c.logger.Warn("qr poll failed, retrying", fields...)
		}
		return
	}

	changed := false
	next, ok := parseStatus(res.Status)
	if ok && canAdvance(c.state.Status, next) {
		c.state.Status = next
		c.state.Message = strings.TrimSpace(res.Message)
		if c.state.Message == "" {
			c.state.Message = defaultMessage(next)
		}
		if info := ParseUserInfo(res.UserInfo); info != nil {
			c.state.UserInfo = info
		}
		c.state.err = terminalError(next, c.state.Message)
		c.state.UpdatedAt = c.clock.Now()
		changed = true
	} else {
		c.logger.Debug("ignoring qr status", zap.String("reported", res.Status), zap.String("current", string(c.state.Status)))
	}

	if c.state.Status.Terminal() {
		c.cancelLocked()
	} else {
		c.schedulePollLocked(ctx, attempt, sessionID)
	}
	restart := changed && c.state.Status == StatusExpired && c.autoRefresh > 0
	if restart {
		c.state.Generating = true
	}
	snap := c.snapshotLocked()
	succeeded := changed && snap.Status == StatusSuccess
	c.mu.Unlock()

	if !changed {
		return
	}
	c.notify(snap)
	if succeeded {
		c.logger.Info("qr login succeeded", zap.Uint64("attempt", attempt), zap.String("session_id", sessionID))
		if c.onSuccess != nil {
			c.onSuccess(snap)
		}
	}
	if err := snap.Err(); err != nil {
		c.logger.Info("qr login ended",
			zap.Uint64("attempt", attempt),
			zap.String("session_id", sessionID),
			zap.String("kind", string(backend.KindOf(err))),
			zap.Error(err),
		)
	}
	if restart {
		c.logger.Info("qr code expired, issuing a new one", zap.Uint64("attempt", attempt))
		_, _ = c.begin(context.Background(), attempt, true)
	}
}

func (c *Controller) refreshDue(attempt uint64) {
	c.mu.Lock()
	if c.attempt != attempt || c.state.Status != StatusWaiting {
		c.mu.Unlock()
		return
	}
	c.refreshTimer = nil
	c.mu.Unlock()

	c.logger.Info("qr code auto-refresh", zap.Uint64("attempt", attempt))
	_, _ = c.begin(context.Background(), attempt, true)
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := c.state
	snap.Attempt = c.attempt
	snap.AutoRefresh = c.autoRefresh
	if c.state.UserInfo != nil {
		info := *c.state.UserInfo
		snap.UserInfo = &info
	}
	return snap
}

func (c *Controller) notify(snap Snapshot) {
	if c.observer != nil {
		c.observer(snap)
	}
}
