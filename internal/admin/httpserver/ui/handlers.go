package ui

import (
	"net/http"
	"slices"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/accounts"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/config"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/help"
	custommw "github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver/middleware"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/observability"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/qrlogin"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/rbac"
	authtpl "github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/auth"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/dashboard"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/partials"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/videos"
)

// Dependencies collects external services required by the UI handlers.
type Dependencies struct {
	Accounts accounts.Service
	Videos   videos.Service
	QR       *qrlogin.Registry
	// AutoRefreshChoices are the QR auto-refresh intervals offered to operators.
	AutoRefreshChoices []time.Duration
	Help               *help.Library
}

// Handlers exposes HTTP handlers for console pages and fragments.
type Handlers struct {
	accounts accounts.Service
	videos   videos.Service
	qr       *qrlogin.Registry
	choices  []time.Duration
	help     *help.Library
}

// NewHandlers wires the UI handler set. Missing services fall back to the in-memory implementations.
func NewHandlers(deps Dependencies) *Handlers {
	h := &Handlers{
		accounts: deps.Accounts,
		videos:   deps.Videos,
		qr:       deps.QR,
		choices:  deps.AutoRefreshChoices,
		help:     deps.Help,
	}
	if h.accounts == nil {
		h.accounts = accounts.NewStaticService()
	}
	if h.videos == nil {
		h.videos = videos.NewStaticService(rbac.RoleUser)
	}
	if h.qr == nil {
		h.qr = qrlogin.NewRegistry(unavailableQR{}, qrlogin.Options{}, 0)
	}
	if len(h.choices) == 0 {
		h.choices = config.AutoRefreshChoices
	}
	if h.help == nil {
		lib, err := help.Load()
		if err != nil {
			panic("ui: bundled help docs: " + err.Error())
		}
		h.help = lib
	}
	return h
}

// Dashboard renders the console overview.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	logger := observability.FromContext(ctx)

	linked, accountsErr := h.accounts.List(ctx, user.Token)
	if accountsErr != nil {
		logger.Warn("dashboard: list accounts failed", zap.Error(accountsErr))
	}
	status, quotaErr := h.videos.DailyLimit(ctx, user.Token)
	if quotaErr != nil {
		logger.Warn("dashboard: daily limit failed", zap.Error(quotaErr))
		status = nil
	}
	list, videosErr := h.videos.UserList(ctx, user.Token)
	if videosErr != nil {
		logger.Warn("dashboard: list videos failed", zap.Error(videosErr))
	}

	data := dashboard.BuildPageData(custommw.BasePathFromContext(ctx), linked, status, list)
	data.Access(user.Role)
	if accountsErr != nil {
		data.AccountsError = backend.Message(accountsErr, "Linked accounts could not be loaded.")
	}
	if quotaErr != nil {
		data.Quota = partials.NewQuotaCard(nil, backend.Message(quotaErr, "The daily quota could not be loaded."), "")
	}
	if videosErr != nil {
		data.VideosError = backend.Message(videosErr, "The video library could not be loaded.")
	}
	render(w, r, dashboard.Index(data), http.StatusOK)
}

// RequireConsoleAccess turns away signed-in users whose role grants no console capability.
func RequireConsoleAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := custommw.UserFromContext(r.Context())
		if ok && user.Can(rbac.CapConsoleView) {
			next.ServeHTTP(w, r)
			return
		}
		if custommw.IsHTMXRequest(r.Context()) {
			custommw.Toast(w, "Your account has no console access.", custommw.ToneDanger)
			w.WriteHeader(http.StatusForbidden)
			return
		}
		data := authtpl.NoAccessPageData{LogoutURL: consolePath(r.Context(), "/logout")}
		if user != nil {
			data.Name = user.DisplayName()
			data.RoleLabel = user.Role.Label()
		}
		render(w, r, authtpl.NoAccess(data), http.StatusForbidden)
	})
}

func render(w http.ResponseWriter, r *http.Request, component templ.Component, status int) {
	templ.Handler(component, templ.WithStatus(status)).ServeHTTP(w, r)
}

func requireUser(w http.ResponseWriter, r *http.Request) (*custommw.User, bool) {
	user, ok := custommw.UserFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return nil, false
	}
	return user, true
}

// validChoice reports whether d is one of the offered auto-refresh intervals.
func (h *Handlers) validChoice(d time.Duration) bool {
	return slices.Contains(h.choices, d)
}
