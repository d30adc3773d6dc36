package httpserver

import (
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
	custommw "github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver/middleware"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/identity"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/observability"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/qrlogin"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/rbac"
	appsession "github.com/xiaoshenming/bilibili-Api-front/internal/admin/session"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/templates/auth"
)

const (
	msgFormInvalid    = "The form could not be read. Please try again."
	msgMissingFields  = "Enter your username and password."
	msgBadCredentials = "Invalid username or password."
	msgBackendDown    = "The backend is unreachable. Try again shortly."
	msgLoginFailed    = "Sign-in failed. Try again."
	msgTokenRejected  = "The identity token was rejected. Sign in again."
)

type authConfig struct {
	identity     identity.Service
	firebase     custommw.Authenticator
	qr           *qrlogin.Registry
	basePath     string
	loginPath    string
	cookieSecure bool
	now          func() time.Time
}

type authHandlers struct {
	authConfig
}

func newAuthHandlers(cfg authConfig) *authHandlers {
	if cfg.identity == nil {
		panic("auth: identity service is required")
	}
	if strings.TrimSpace(cfg.basePath) == "" {
		cfg.basePath = "/"
	}
	if strings.TrimSpace(cfg.loginPath) == "" {
		cfg.loginPath = resolveLoginPath(cfg.basePath, "")
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &authHandlers{authConfig: cfg}
}

func (h *authHandlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.isAuthenticated(r) && !forceLogin(r) {
		http.Redirect(w, r, h.redirectTarget(r.URL.Query().Get("next")), http.StatusFound)
		return
	}
	h.renderLoginPage(w, r, h.buildLoginPageData(r, nil), http.StatusOK)
}

func (h *authHandlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		h.renderLoginPage(w, r, h.buildLoginPageData(r, &loginFormState{Error: msgFormInvalid}), http.StatusBadRequest)
		return
	}

	state := &loginFormState{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Remember: parseCheckbox(r.PostFormValue("remember")),
		Next:     r.PostFormValue("next"),
	}

	if idToken := strings.TrimSpace(r.PostFormValue("id_token")); idToken != "" && h.firebase != nil {
		user, err := h.firebase.Authenticate(r, idToken)
		if err != nil || user == nil {
			logger.Info("firebase sign-in rejected", zap.Error(err))
			state.Error = msgTokenRejected
			h.renderLoginPage(w, r, h.buildLoginPageData(r, state), http.StatusUnauthorized)
			return
		}
		h.completeLogin(w, r, state, idToken, &appsession.User{
			UID:    user.UID,
			Name:   user.Name,
			Email:  user.Email,
			Role:   string(user.Role),
			Avatar: user.Avatar,
		})
		return
	}

	password := r.PostFormValue("password")
	if state.Username == "" || password == "" {
		state.Error = msgMissingFields
		h.renderLoginPage(w, r, h.buildLoginPageData(r, state), http.StatusBadRequest)
		return
	}

	login, err := h.identity.Login(r.Context(), state.Username, password, state.Remember)
	if err != nil || login == nil {
		status := http.StatusUnauthorized
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			state.Error = msgBadCredentials
		case backend.IsNetwork(err):
			state.Error = msgBackendDown
			status = http.StatusBadGateway
		default:
			state.Error = backend.Message(err, msgLoginFailed)
		}
		logger.Info("console sign-in failed", zap.String("username", state.Username), zap.Error(err))
		h.renderLoginPage(w, r, h.buildLoginPageData(r, state), status)
		return
	}

	name := strings.TrimSpace(login.Name)
	if name == "" {
		name = state.Username
	}
	h.completeLogin(w, r, state, login.Token, &appsession.User{
		UID:  login.ID.String(),
		Name: name,
		Role: string(rbac.NormaliseRole(login.Role)),
	})
}

func (h *authHandlers) completeLogin(w http.ResponseWriter, r *http.Request, state *loginFormState, token string, user *appsession.User) {
	maxAge := 0
	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		sess.SetUser(user)
		sess.SetRememberMe(state.Remember)
		sess.SetFlash("Signed in as "+firstNonEmpty(user.Name, user.UID)+".", custommw.ToneSuccess)
		if state.Remember {
			if remaining := sess.ExpiresAt().Sub(h.now()); remaining > 0 {
				maxAge = int(remaining.Round(time.Second).Seconds())
			}
		}
	}
	custommw.SetAuthCookie(w, token, h.cookieSecure, maxAge)

	observability.FromContext(r.Context()).Info("console sign-in",
		zap.String("uid", user.UID),
		zap.String("role", user.Role),
		zap.Bool("remember", state.Remember),
	)
	custommw.Redirect(w, r, h.redirectTarget(state.Next))
}

// Logout revokes the backend token on a best-effort basis and always clears local state.
func (h *authHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	logger := observability.FromContext(r.Context())
	if token := custommw.TokenFromRequest(r); token != "" {
		if err := h.identity.Logout(r.Context(), token); err != nil {
			logger.Info("backend logout failed", zap.Error(err))
		}
	}
	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		if h.qr != nil {
			h.qr.Forget(sess.ID())
		}
		sess.Destroy()
	}
	custommw.ClearAuthCookie(w)
	custommw.Redirect(w, r, h.loginURLWithParams(map[string]string{"status": "logged_out"}))
}

type loginFormState struct {
	Username string
	Remember bool
	Next     string
	Error    string
	Message  string
}

func (h *authHandlers) buildLoginPageData(r *http.Request, state *loginFormState) auth.LoginPageData {
	q := r.URL.Query()
	if state == nil {
		state = &loginFormState{
			Username: strings.TrimSpace(q.Get("username")),
			Next:     q.Get("next"),
		}
		if sess, ok := custommw.SessionFromContext(r.Context()); ok {
			state.Remember = sess.RememberMe()
		}
	}
	message := state.Message
	if strings.TrimSpace(message) == "" {
		message = messageForQuery(q)
	}
	return auth.LoginPageData{
		Username:        state.Username,
		Message:         message,
		Error:           state.Error,
		Remember:        state.Remember,
		Next:            h.normalizeNext(state.Next),
		LoginPath:       h.loginPath,
		FirebaseEnabled: h.firebase != nil,
	}
}

func (h *authHandlers) renderLoginPage(w http.ResponseWriter, r *http.Request, data auth.LoginPageData, status int) {
	templ.Handler(auth.Login(data), templ.WithStatus(status)).ServeHTTP(w, r)
}

func (h *authHandlers) isAuthenticated(r *http.Request) bool {
	if custommw.TokenFromRequest(r) == "" {
		return false
	}
	sess, ok := custommw.SessionFromContext(r.Context())
	if !ok {
		return false
	}
	user := sess.User()
	return user != nil && strings.TrimSpace(user.UID) != ""
}

func messageForQuery(q url.Values) string {
	if q.Get("status") == "logged_out" {
		return "You have been signed out."
	}
	switch q.Get("reason") {
	case custommw.ReasonTokenExpired, "expired":
		return "Your session has expired. Sign in again."
	case custommw.ReasonMissingToken:
		return "Sign in to continue."
	case custommw.ReasonTokenInvalid:
		return "Your sign-in is no longer valid. Sign in again."
	default:
		return ""
	}
}

func (h *authHandlers) redirectTarget(raw string) string {
	if next := h.normalizeNext(raw); next != "" {
		return next
	}
	return h.basePath
}

func (h *authHandlers) loginURLWithParams(params map[string]string) string {
	parsed, err := url.Parse(h.loginPath)
	if err != nil {
		return h.loginPath
	}
	q := parsed.Query()
	for key, val := range params {
		if strings.TrimSpace(val) == "" {
			continue
		}
		q.Set(key, val)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

func parseCheckbox(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "on", "yes":
		return true
	default:
		return false
	}
}

func forceLogin(r *http.Request) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("force"))) {
	case "1", "true", "yes", "force":
		return true
	default:
		return false
	}
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	trim := func(p string) string {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		for len(p) > 1 && strings.HasSuffix(p, "/") {
			p = strings.TrimSuffix(p, "/")
		}
		return p
	}
	return trim(a) == trim(b)
}

func (h *authHandlers) normalizeNext(raw string) string {
	sanitized := sanitizeNextTarget(h.basePath, raw)
	if sanitized == "" {
		return ""
	}
	if samePath(pathOnly(sanitized), h.loginPath) {
		return ""
	}
	return sanitized
}

// sanitizeNextTarget keeps only same-origin paths under basePath.
func sanitizeNextTarget(basePath, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" || parsed.Host != "" {
		return ""
	}

	pathValue := parsed.Path
	if pathValue == "" {
		pathValue = "/"
	}

	unescaped, err := url.PathUnescape(pathValue)
	if err != nil {
		return ""
	}
	if strings.Contains(unescaped, "\\") {
		return ""
	}

	cleaned := path.Clean(unescaped)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	if strings.HasPrefix(cleaned, "//") {
		return ""
	}

	base := normalizeBasePath(basePath)
	if base != "/" && !hasSafePrefix(cleaned, base) {
		return ""
	}

	target := cleaned
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	if parsed.Fragment != "" {
		target += "#" + parsed.Fragment
	}
	return target
}

func hasSafePrefix(pathValue, base string) bool {
	if base == "/" {
		return strings.HasPrefix(pathValue, "/")
	}
	if !strings.HasPrefix(pathValue, base) {
		return false
	}
	if len(pathValue) == len(base) {
		return true
	}
	return pathValue[len(base)] == '/'
}

func pathOnly(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Path
}
