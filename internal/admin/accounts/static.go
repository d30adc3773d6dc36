package accounts

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
)

// StaticService keeps accounts in memory for local development and tests.
type StaticService struct {
	mu       sync.Mutex
	accounts []Account
	nextID   int
}

// NewStaticService returns a StaticService seeded with representative accounts.
func NewStaticService() *StaticService {
	now := time.Now().UTC()
	return &StaticService{
		accounts: []Account{
			{ID: "1", DedeUserID: "3493120", Nickname: "archive-main", IsActive: true, CreatedAt: backend.Time{Time: now.Add(-72 * time.Hour)}},
			{ID: "2", DedeUserID: "5571032", Nickname: "backup-viewer", IsActive: false, CreatedAt: backend.Time{Time: now.Add(-24 * time.Hour)}},
		},
		nextID: 3,
	}
}

// List returns a copy of the stored accounts.
func (s *StaticService) List(_ context.Context, token string) ([]Account, error) {
	if token == "" {
		return nil, backend.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Account(nil), s.accounts...), nil
}

// SetActive toggles the stored flag.
func (s *StaticService) SetActive(_ context.Context, token, id string, active bool) (string, error) {
	if token == "" {
		return "", backend.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].ID.String() == id {
			s.accounts[i].IsActive = backend.Flag(active)
			if active {
				return "Account enabled", nil
			}
			return "Account disabled", nil
		}
	}
	return "", &backend.APIError{Status: 200, Code: 404, Message: "Account not found"}
}

// Delete removes an account.
func (s *StaticService) Delete(_ context.Context, token, id string) (string, error) {
	if token == "" {
		return "", backend.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.accounts {
		if s.accounts[i].ID.String() == id {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			return "Account removed", nil
		}
	}
	return "", &backend.APIError{Status: 200, Code: 404, Message: "Account not found"}
}

// Link appends an account, mirroring what a completed QR login does on the backend.
func (s *StaticService) Link(nickname string) Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := strconv.Itoa(s.nextID)
	s.nextID++
	acct := Account{
		ID:         backend.ID(id),
		DedeUserID: backend.ID("90" + id),
		Nickname:   nickname,
		IsActive:   true,
		CreatedAt:  backend.Time{Time: time.Now().UTC()},
	}
	s.accounts = append(s.accounts, acct)
	return acct
}
