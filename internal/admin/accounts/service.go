package accounts

import (
	"context"
	"strings"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
)

// Service manages the Bilibili accounts linked to the console user.
type Service interface {
	// List returns the linked accounts of the caller.
	List(ctx context.Context, token string) ([]Account, error)
	// SetActive enables or disables an account for downloads.
	SetActive(ctx context.Context, token, id string, active bool) (string, error)
	// Delete unlinks an account.
	Delete(ctx context.Context, token, id string) (string, error)
}

// Account is a linked Bilibili account.
type Account struct {
	ID         backend.ID   `json:"id"`
	DedeUserID backend.ID   `json:"dedeuserid"`
	Nickname   string       `json:"nickname"`
	Avatar     string       `json:"avatar"`
	IsActive   backend.Flag `json:"is_active"`
	CreatedAt  backend.Time `json:"created_at"`
}

// Active reports whether the account is enabled.
func (a Account) Active() bool { return bool(a.IsActive) }

// DisplayName falls back to the Bilibili UID when no nickname is stored.
func (a Account) DisplayName() string {
	if name := strings.TrimSpace(a.Nickname); name != "" {
		return name
	}
	if a.DedeUserID != "" {
		return "UID " + a.DedeUserID.String()
	}
	return "Account " + a.ID.String()
}

// Summary aggregates account counts for the dashboard.
type Summary struct {
	Total  int
	Active int
}

// Summarise counts total and active accounts.
func Summarise(list []Account) Summary {
	s := Summary{Total: len(list)}
	for _, a := range list {
		if a.Active() {
			s.Active++
		}
	}
	return s
}
