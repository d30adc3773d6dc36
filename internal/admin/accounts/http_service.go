package accounts

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
)

// HTTPService implements Service against the backend account endpoints.
type HTTPService struct {
	client *backend.Client
}

// NewHTTPService wires the service to a backend client.
func NewHTTPService(client *backend.Client) *HTTPService {
	return &HTTPService{client: client}
}

// List returns linked accounts.
func (s *HTTPService) List(ctx context.Context, token string) ([]Account, error) {
	if s == nil || s.client == nil {
		return nil, backend.ErrNotConfigured
	}
	if strings.TrimSpace(token) == "" {
		return nil, backend.ErrUnauthenticated
	}
	var list []Account
	if err := s.client.Get(ctx, "accounts.list", "/api/bilibili/accounts", token, nil, &list); err != nil {
		return nil, fmt.Errorf("accounts: list: %w", err)
	}
	return list, nil
}

// SetActive toggles an account and returns the backend message.
func (s *HTTPService) SetActive(ctx context.Context, token, id string, active bool) (string, error) {
	if s == nil || s.client == nil {
		return "", backend.ErrNotConfigured
	}
	if strings.TrimSpace(token) == "" {
		return "", backend.ErrUnauthenticated
	}
	endpoint := "/api/bilibili/accounts/" + url.PathEscape(id) + "/toggle"
	res, err := s.client.PutJSON(ctx, "accounts.toggle", endpoint, token, map[string]bool{"isActive": active}, nil)
	if err != nil {
		return "", fmt.Errorf("accounts: toggle %s: %w", id, err)
	}
	return res.Message, nil
}

// Delete unlinks an account and returns the backend message.
func (s *HTTPService) Delete(ctx context.Context, token, id string) (string, error) {
	if s == nil || s.client == nil {
		return "", backend.ErrNotConfigured
	}
	if strings.TrimSpace(token) == "" {
		return "", backend.ErrUnauthenticated
	}
	res, err := s.client.Delete(ctx, "accounts.delete", "/api/bilibili/accounts/"+url.PathEscape(id), token, nil)
	if err != nil {
		return "", fmt.Errorf("accounts: delete %s: %w", id, err)
	}
	return res.Message, nil
}
