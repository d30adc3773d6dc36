package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/backend"
	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/rbac"
)

// StaticService accepts a fixed set of users for local development and tests.
type StaticService struct {
	mu     sync.Mutex
	users  map[string]staticUser
	tokens map[string]string
}

type staticUser struct {
	password string
	user     User
}

// NewStaticService returns a StaticService with one user per role: "user", "admin", "super" and "root",
// each with password "password".
func NewStaticService() *StaticService {
	s := &StaticService{
		users:  make(map[string]staticUser),
		tokens: make(map[string]string),
	}
	s.AddUser("user", "password", rbac.RoleUser)
	s.AddUser("admin", "password", rbac.RoleAdmin)
	s.AddUser("super", "password", rbac.RoleSuperAdmin)
	s.AddUser("root", "password", rbac.RoleUnlimited)
	return s
}

// AddUser registers a user.
func (s *StaticService) AddUser(name, password string, role rbac.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[name] = staticUser{
		password: password,
		user: User{
			UserID: backend.ID(name),
			Name:   name,
			Email:  name + "@example.com",
			Role:   string(role),
		},
	}
}

// IssueToken returns a valid token for name without a password check.
func (s *StaticService) IssueToken(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := "static-" + ulid.Make().String()
	s.tokens[token] = name
	return token
}

// Login implements Service.
func (s *StaticService) Login(_ context.Context, username, password string, _ bool) (*Login, error) {
	username = strings.TrimSpace(username)
	s.mu.Lock()
	u, ok := s.users[username]
	s.mu.Unlock()
	if !ok || u.password != password {
		return nil, ErrInvalidCredentials
	}
	token := s.IssueToken(username)
	return &Login{Token: token, Role: u.user.Role, Name: u.user.Name, ID: u.user.UserID}, nil
}

// Status implements Service.
func (s *StaticService) Status(_ context.Context, token string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.tokens[token]
	if !ok {
		return nil, backend.ErrUnauthenticated
	}
	u := s.users[name].user
	return &u, nil
}

// Logout implements Service.
func (s *StaticService) Logout(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}
