// Package identity signs console users in and out against the backend account endpoints.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/httpserver/middleware"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/rbac"
)

// ErrInvalidCredentials is returned when the backend rejects a username/password pair.
var ErrInvalidCredentials = errors.New("identity: invalid credentials")

// Service authenticates console users.
type Service interface {
	Login(ctx context.Context, username, password string, remember bool) (*Login, error)
	Status(ctx context.Context, token string) (*User, error)
	Logout(ctx context.Context, token string) error
}

// Login is the session issued by a successful sign-in.
type Login struct {
	Token string     `json:"token"`
	Role  string     `json:"role"`
	Name  string     `json:"name"`
	ID    backend.ID `json:"id"`
}

// User is the current console user.
type User struct {
	UserID backend.ID `json:"userid"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Role   string     `json:"role"`
	Access string     `json:"access"`
	Avatar string     `json:"avatar"`
}

// RoleValue returns the normalised role, falling back to the access field.
func (u User) RoleValue() rbac.Role {
	if strings.TrimSpace(u.Role) != "" {
		return rbac.NormaliseRole(u.Role)
	}
	return rbac.NormaliseRole(u.Access)
}

// HTTPService implements Service against the backend.
type HTTPService struct {
	client *backend.Client
}

// NewHTTPService wires the identity service to a backend client.
func NewHTTPService(client *backend.Client) *HTTPService {
	return &HTTPService{client: client}
}

// Login exchanges credentials for a bearer token.
func (s *HTTPService) Login(ctx context.Context, username, password string, remember bool) (*Login, error) {
	if s == nil || s.client == nil {
		return nil, backend.ErrNotConfigured
	}
	payload := map[string]any{
		"username":  strings.TrimSpace(username),
		"password":  password,
		"autoLogin": remember,
		"type":      "account",
	}
	var out Login
	if _, err := s.client.PostJSON(ctx, "identity.login", "/api/pc/login", "", payload, &out); err != nil {
		if backend.KindOf(err) == backend.KindUnauthenticated || backend.KindOf(err) == backend.KindRejected {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, backend.Message(err, "username or password is incorrect"))
		}
		return nil, fmt.Errorf("identity: login: %w", err)
	}
	if strings.TrimSpace(out.Token) == "" {
		return nil, fmt.Errorf("%w: backend issued no token", ErrInvalidCredentials)
	}
	return &out, nil
}

// Status resolves the user behind token.
func (s *HTTPService) Status(ctx context.Context, token string) (*User, error) {
	if s == nil || s.client == nil {
		return nil, backend.ErrNotConfigured
	}
	if strings.TrimSpace(token) == "" {
		return nil, backend.ErrUnauthenticated
	}
	var out User
	if err := s.client.Get(ctx, "identity.status", "/api/status", token, nil, &out); err != nil {
		return nil, fmt.Errorf("identity: status: %w", err)
	}
	return &out, nil
}

// Logout invalidates token on the backend.
func (s *HTTPService) Logout(ctx context.Context, token string) error {
	if s == nil || s.client == nil {
		return backend.ErrNotConfigured
	}
	if strings.TrimSpace(token) == "" {
		return nil
	}
	if _, err := s.client.PostJSON(ctx, "identity.logout", "/api/logout", token, nil, nil); err != nil {
		return fmt.Errorf("identity: logout: %w", err)
	}
	return nil
}

// Authenticator resolves bearer tokens through Service.Status.
type Authenticator struct {
	svc Service
}

// NewAuthenticator returns a middleware.Authenticator backed by svc.
func NewAuthenticator(svc Service) *Authenticator {
	return &Authenticator{svc: svc}
}

// Authenticate implements middleware.Authenticator.
func (a *Authenticator) Authenticate(r *http.Request, token string) (*middleware.User, error) {
	if a == nil || a.svc == nil {
		return nil, middleware.NewAuthError(middleware.ReasonTokenInvalid, backend.ErrNotConfigured)
	}
	user, err := a.svc.Status(r.Context(), token)
	if err != nil {
		switch backend.KindOf(err) {
		case backend.KindUnauthenticated:
			return nil, middleware.NewAuthError(middleware.ReasonTokenExpired, err)
		default:
			return nil, middleware.NewAuthError(middleware.ReasonTokenInvalid, err)
		}
	}
	return &middleware.User{
		UID:    user.UserID.String(),
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.RoleValue(),
		Avatar: user.Avatar,
		Token:  token,
	}, nil
}
