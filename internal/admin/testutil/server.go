package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/accounts"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver/middleware"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/identity"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/qrlogin"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/rbac"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/session"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/videos"
)

// QRImage is the image returned by QRBackend for every ticket.
const QRImage = "data:image/png;base64,iVBORw0KGgo="

// Server is a running console with its in-memory services exposed for assertions.
type Server struct {
	*httptest.Server

	Identity  *identity.StaticService
	Accounts  *accounts.StaticService
	Videos    *videos.StaticService
	QR        *qrlogin.Registry
	QRBackend *QRBackend
	Clock     *qrlogin.FakeClock
}

type serverConfig struct {
	http      httpserver.Config
	videoRole rbac.Role
}

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*serverConfig)

// WithAuthenticator overrides the authenticator used by the console.
func WithAuthenticator(auth middleware.Authenticator) ServerOption {
	return func(cfg *serverConfig) {
		cfg.http.Authenticator = auth
	}
}

// WithBasePath sets a custom base path for the console routes.
func WithBasePath(path string) ServerOption {
	return func(cfg *serverConfig) {
		cfg.http.BasePath = path
	}
}

// WithVideoRole sets the role whose daily quota the video service enforces.
func WithVideoRole(role rbac.Role) ServerOption {
	return func(cfg *serverConfig) {
		cfg.videoRole = role
	}
}

// NewServer starts the console over static services, a fake clock and a scripted QR backend.
// Successful QR logins link an account named after the reported nickname.
func NewServer(t testing.TB, opts ...ServerOption) *Server {
	t.Helper()

	cfg := serverConfig{
		http: httpserver.Config{
			Address:        ":0",
			BasePath:       "/admin",
			CSRFCookieName: "csrf_token",
			CSRFHeaderName: "X-CSRF-Token",
		},
		videoRole: rbac.RoleUser,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		Identity:  identity.NewStaticService(),
		Accounts:  accounts.NewStaticService(),
		Videos:    videos.NewStaticService(cfg.videoRole),
		QRBackend: NewQRBackend(),
		Clock:     qrlogin.NewFakeClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)),
	}
	s.QR = qrlogin.NewRegistry(s.QRBackend, qrlogin.Options{
		Clock: s.Clock,
		OnSuccess: func(snap qrlogin.Snapshot) {
			name := "bilibili user"
			if snap.UserInfo != nil && snap.UserInfo.Nickname != "" {
				name = snap.UserInfo.Nickname
			}
			s.Accounts.Link(name)
		},
	}, 0)

	sessions, err := session.NewManager(session.Config{
		HashKey:  securecookie.GenerateRandomKey(32),
		BlockKey: securecookie.GenerateRandomKey(32),
	})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	cfg.http.Identity = s.Identity
	cfg.http.Sessions = sessions
	cfg.http.Accounts = s.Accounts
	cfg.http.Videos = s.Videos
	cfg.http.QR = s.QR

	srv, err := httpserver.New(cfg.http)
	if err != nil {
		t.Fatalf("httpserver: %v", err)
	}
	s.Server = httptest.NewServer(srv.Handler)
	t.Cleanup(s.Server.Close)
	return s
}

// QRBackend issues numbered tickets and replays scripted statuses. Unscripted polls report waiting.
type QRBackend struct {
	mu        sync.Mutex
	generated int
	steps     map[string][]qrlogin.PollResult
	fail      error
}

// NewQRBackend returns an empty script.
func NewQRBackend() *QRBackend {
	return &QRBackend{steps: make(map[string][]qrlogin.PollResult)}
}

// Script queues statuses for a ticket. Tickets are named "qr-1", "qr-2" and so on.
func (b *QRBackend) Script(sessionID string, statuses ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range statuses {
		b.steps[sessionID] = append(b.steps[sessionID], qrlogin.PollResult{Status: s})
	}
}

// ScriptSuccess queues a success carrying nickname.
func (b *QRBackend) ScriptSuccess(sessionID, nickname string) {
	info, _ := json.Marshal(map[string]string{"uname": nickname, "mid": "42"})
	b.mu.Lock()
	defer b.mu.Unlock()
	b.steps[sessionID] = append(b.steps[sessionID], qrlogin.PollResult{Status: string(qrlogin.StatusSuccess), UserInfo: info})
}

// FailGenerate makes every following Generate return err. Nil restores normal behaviour.
func (b *QRBackend) FailGenerate(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = err
}

// Generated returns how many tickets were issued.
func (b *QRBackend) Generated() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generated
}

// Generate implements qrlogin.Backend.
func (b *QRBackend) Generate(_ context.Context, _, _ string) (qrlogin.Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return qrlogin.Ticket{}, b.fail
	}
	b.generated++
	return qrlogin.Ticket{SessionID: fmt.Sprintf("qr-%d", b.generated), Image: QRImage}, nil
}

// Poll implements qrlogin.Backend.
func (b *QRBackend) Poll(_ context.Context, _, sessionID string) (qrlogin.PollResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	queue := b.steps[sessionID]
	if len(queue) == 0 {
		return qrlogin.PollResult{Status: string(qrlogin.StatusWaiting)}, nil
	}
	b.steps[sessionID] = queue[1:]
	return queue[0], nil
}
