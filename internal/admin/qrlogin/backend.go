package qrlogin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
)

// Ticket is a freshly issued QR login attempt.
type Ticket struct {
	SessionID string `json:"sessionId"`
	Image     string `json:"qrCodeImage"`
	URL       string `json:"qrcodeUrl,omitempty"`
}

// PollResult is one login-status report for a ticket.
type PollResult struct {
	Status   string          `json:"status"`
	Message  string          `json:"message"`
	UserInfo json.RawMessage `json:"userInfo,omitempty"`
}

// UserInfo is the Bilibili profile attached to a successful login.
type UserInfo struct {
	MID      string
	Nickname string
	Face     string
}

// ParseUserInfo extracts the commonly used profile fields from a loosely shaped payload.
func ParseUserInfo(raw json.RawMessage) *UserInfo {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return nil
	}
	first := func(paths ...string) string {
		for _, p := range paths {
			if v := parsed.Get(p); v.Exists() && strings.TrimSpace(v.String()) != "" {
				return strings.TrimSpace(v.String())
			}
		}
		return ""
	}
	info := &UserInfo{
		MID:      first("mid", "dedeuserid", "uid"),
		Nickname: first("uname", "nickname", "name"),
		Face:     first("face", "avatar"),
	}
	if *info == (UserInfo{}) {
		return nil
	}
	return info
}

// Backend issues QR codes and reports their login status.
type Backend interface {
	Generate(ctx context.Context, token, deviceInfo string) (Ticket, error)
	Poll(ctx context.Context, token, sessionID string) (PollResult, error)
}

// HTTPBackend implements Backend against the download assistant backend.
type HTTPBackend struct {
	client *backend.Client
}

// NewHTTPBackend wires the QR endpoints to client.
func NewHTTPBackend(client *backend.Client) *HTTPBackend {
	return &HTTPBackend{client: client}
}

// Generate requests a new QR code.
func (b *HTTPBackend) Generate(ctx context.Context, token, deviceInfo string) (Ticket, error) {
	if b == nil || b.client == nil {
		return Ticket{}, backend.ErrNotConfigured
	}
	var body any
	if deviceInfo != "" {
		body = map[string]string{"deviceInfo": deviceInfo}
	}
	var ticket Ticket
	_, err := b.client.Do(ctx, backend.Call{
		Op:     "qrlogin.generate",
		Method: http.MethodPost,
		Path:   "/api/bilibili/generate-qrcode",
		Token:  token,
		Body:   body,
	}, &ticket)
	if err != nil {
		return Ticket{}, fmt.Errorf("qrlogin: generate: %w", err)
	}
	if strings.TrimSpace(ticket.SessionID) == "" {
		return Ticket{}, fmt.Errorf("qrlogin: generate: %w", &backend.APIError{Status: http.StatusOK, Code: http.StatusOK, Message: "backend returned no session id"})
	}
	return ticket, nil
}

// Poll reports the login status of sessionID.
func (b *HTTPBackend) Poll(ctx context.Context, token, sessionID string) (PollResult, error) {
	if b == nil || b.client == nil {
		return PollResult{}, backend.ErrNotConfigured
	}
	var out PollResult
	err := b.client.Get(ctx, "qrlogin.status", "/api/bilibili/login-status/"+url.PathEscape(sessionID), token, nil, &out)
	if err != nil {
		return PollResult{}, fmt.Errorf("qrlogin: poll: %w", err)
	}
	return out, nil
}
