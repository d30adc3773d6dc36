package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/accounts"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/help"
	custommw "github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver/middleware"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver/ui"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/identity"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/imageproxy"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/observability"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/qrlogin"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/rbac"
	appsession "github.com/xiaoshenming/bilibili-Api-front/internal/admin/session"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/videos"
	"github.com/xiaoshenming/bilibili-Api-front/public"
)

// Config holds runtime options for the console HTTP server.
type Config struct {
	Address     string
	BasePath    string
	LoginPath   string
	Environment string
	Logger      *zap.Logger

	// Authenticator guards every console route. Defaults to resolving tokens through Identity.
	Authenticator custommw.Authenticator
	// FirebaseAuthenticator, when set, accepts Firebase ID tokens posted to the login form.
	FirebaseAuthenticator custommw.Authenticator
	Sessions              custommw.SessionStore
	CookieSecure          bool

	CSRFCookieName string
	CSRFCookiePath string
	CSRFHeaderName string

	Identity           identity.Service
	Accounts           accounts.Service
	Videos             videos.Service
	QR                 *qrlogin.Registry
	AutoRefreshChoices []time.Duration
	// ImageProxy serves the thumbnail prefixes. When nil an outer proxy is expected to serve them.
	ImageProxy *imageproxy.Handler
	Help       *help.Library
}

// New constructs the HTTP server with middleware stack and embedded assets.
func New(cfg Config) (*http.Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.RequestLogger(logger))
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(60 * time.Second))

	staticContent, err := public.StaticFS()
	if err != nil {
		return nil, err
	}
	router.Handle("/public/static/*", http.StripPrefix("/public/static/", http.FileServer(http.FS(staticContent))))

	if cfg.ImageProxy != nil {
		for _, prefix := range cfg.ImageProxy.Prefixes() {
			router.Handle(prefix+"/*", cfg.ImageProxy)
		}
	}

	basePath := normalizeBasePath(cfg.BasePath)
	loginPath := resolveLoginPath(basePath, cfg.LoginPath)

	if cfg.Identity == nil {
		cfg.Identity = identity.NewStaticService()
	}
	authenticator := cfg.Authenticator
	if authenticator == nil {
		authenticator = custommw.FirstOf(identity.NewAuthenticator(cfg.Identity), cfg.FirebaseAuthenticator)
	}

	sessions := cfg.Sessions
	if sessions == nil {
		logger.Warn("no session store configured; using per-process keys")
		manager, err := appsession.NewManager(appsession.Config{
			HashKey:      securecookie.GenerateRandomKey(32),
			BlockKey:     securecookie.GenerateRandomKey(32),
			CookieSecure: cfg.CookieSecure,
		})
		if err != nil {
			return nil, err
		}
		sessions = manager
	}

	csrfCfg := custommw.CSRFConfig{
		CookieName: cfg.CSRFCookieName,
		CookiePath: firstNonEmpty(cfg.CSRFCookiePath, basePath),
		HeaderName: cfg.CSRFHeaderName,
		Secure:     cfg.CookieSecure,
	}

	handlers := ui.NewHandlers(ui.Dependencies{
		Accounts:           cfg.Accounts,
		Videos:             cfg.Videos,
		QR:                 cfg.QR,
		AutoRefreshChoices: cfg.AutoRefreshChoices,
		Help:               cfg.Help,
	})

	auth := newAuthHandlers(authConfig{
		identity:     cfg.Identity,
		firebase:     cfg.FirebaseAuthenticator,
		qr:           cfg.QR,
		basePath:     basePath,
		loginPath:    loginPath,
		cookieSecure: cfg.CookieSecure,
	})

	mountAdminRoutes(router, basePath, routeOptions{
		Authenticator: authenticator,
		LoginPath:     loginPath,
		Environment:   cfg.Environment,
		Sessions:      sessions,
		CSRF:          csrfCfg,
		Handlers:      handlers,
		Auth:          auth,
	})

	return &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, nil
}

type routeOptions struct {
	Authenticator custommw.Authenticator
	LoginPath     string
	Environment   string
	Sessions      custommw.SessionStore
	CSRF          custommw.CSRFConfig
	Handlers      *ui.Handlers
	Auth          *authHandlers
}

func mountAdminRoutes(router chi.Router, base string, opts routeOptions) {
	h := opts.Handlers
	chain := chi.Middlewares{
		custommw.Session(opts.Sessions),
		custommw.RequestInfoMiddleware(base),
		custommw.Environment(opts.Environment),
		custommw.HTMX(),
		custommw.NoStore(),
		custommw.CSRF(opts.CSRF),
	}

	loginSuffix, nested := nestedPath(base, opts.LoginPath)
	if !nested {
		router.With(chain...).Get(opts.LoginPath, opts.Auth.LoginForm)
		router.With(chain...).Post(opts.LoginPath, opts.Auth.LoginSubmit)
	}

	router.Route(base, func(r chi.Router) {
		r.Use(chain...)

		if nested {
			r.Get(loginSuffix, opts.Auth.LoginForm)
			r.Post(loginSuffix, opts.Auth.LoginSubmit)
		}
		r.Post("/logout", opts.Auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(custommw.Auth(opts.Authenticator, opts.LoginPath))
			r.Use(ui.RequireConsoleAccess)

			r.Get("/", h.Dashboard)

			r.Route("/bilibili", func(r chi.Router) {
				r.Use(custommw.RequireCapability(rbac.CapAccountsManage))
				r.Get("/", h.AccountsPage)
				RegisterFragment(r, "/accounts", h.AccountsTable)
				r.Post("/accounts/{id}/toggle", h.AccountToggle)
				r.Delete("/accounts/{id}", h.AccountDelete)

				r.Post("/qr/start", h.QRStart)
				r.Post("/qr/reset", h.QRReset)
				r.Post("/qr/auto-refresh", h.QRAutoRefresh)
				RegisterFragment(r, "/qr/status", h.QRStatus)
			})

			r.Route("/videos", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(custommw.RequireCapability(rbac.CapVideosProcess))
					r.Get("/parse", h.ParsePage)
					r.Post("/parse", h.ParseSubmit)
					r.Post("/process", h.ProcessSubmit)
					r.Get("/batch", h.BatchPage)
					r.Post("/batch", h.BatchSubmit)
				})
				r.Group(func(r chi.Router) {
					r.Use(custommw.RequireCapability(rbac.CapVideosBrowse))
					r.Get("/available", h.AvailablePage)
					RegisterFragment(r, "/quota", h.QuotaCard)
					r.Post("/available/{bvid}/permission", h.RequestPermission)
				})
				r.Group(func(r chi.Router) {
					r.Use(custommw.RequireCapability(rbac.CapVideosDelete))
					r.Get("/library", h.LibraryPage)
					r.Post("/library/{id}/download-link", h.DownloadLink)
					r.Post("/library/{id}/play", h.PlayVideo)
					r.Delete("/library/{id}", h.LibraryDelete)
				})
			})

			r.Get("/help", h.HelpPage)
			r.Get("/help/{slug}", h.HelpPage)
		})
	})
}

// nestedPath returns target relative to base when it lies below it.
func nestedPath(base, target string) (string, bool) {
	if base == "/" {
		return target, strings.HasPrefix(target, "/")
	}
	if rest, ok := strings.CutPrefix(target, base); ok && strings.HasPrefix(rest, "/") {
		return rest, true
	}
	return "", false
}

func normalizeBasePath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return "/admin"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

func resolveLoginPath(base string, override string) string {
	if strings.TrimSpace(override) != "" {
		return override
	}
	if base == "/" {
		return "/login"
	}
	return base + "/login"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// RegisterFragment registers a GET handler intended for htmx fragment rendering.
func RegisterFragment(r chi.Router, pattern string, handler http.HandlerFunc) {
	r.With(custommw.RequireHTMX()).Get(pattern, handler)
}
