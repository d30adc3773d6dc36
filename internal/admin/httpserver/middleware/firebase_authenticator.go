package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/rbac"
)

// ErrTokenExpired is returned when the Firebase token has expired.
var ErrTokenExpired = errors.New("firebase token expired")

// FirebaseTokenVerifier abstracts the Firebase Admin SDK client for testability.
type FirebaseTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseAuthenticator validates Firebase ID tokens and maps them onto a User.
// The console role is read from the "role" custom claim and defaults to no access.
type FirebaseAuthenticator struct {
	verifier FirebaseTokenVerifier
}

// NewFirebaseAuthenticator constructs an Authenticator backed by the provided verifier.
func NewFirebaseAuthenticator(verifier FirebaseTokenVerifier) *FirebaseAuthenticator {
	if verifier == nil {
		panic("firebase token verifier is required")
	}
	return &FirebaseAuthenticator{verifier: verifier}
}

// Authenticate verifies the supplied ID token using Firebase and builds a User object.
func (f *FirebaseAuthenticator) Authenticate(r *http.Request, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}

	verified, err := f.verifier.VerifyIDToken(r.Context(), token)
	if err != nil {
		switch {
		case firebaseauth.IsIDTokenExpired(err), errors.Is(err, ErrTokenExpired):
			return nil, NewAuthError(ReasonTokenExpired, err)
		default:
			return nil, NewAuthError(ReasonTokenInvalid, err)
		}
	}

	return &User{
		UID:    verified.UID,
		Name:   claimString(verified.Claims["name"]),
		Email:  claimString(verified.Claims["email"]),
		Avatar: claimString(verified.Claims["picture"]),
		Role:   claimRole(verified.Claims["role"]),
		Token:  token,
	}, nil
}

func claimString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case *string:
		if v == nil {
			return ""
		}
		return strings.TrimSpace(*v)
	default:
		return ""
	}
}

// claimRole accepts "2", 2 (decoded as float64) or a list whose highest tier wins.
func claimRole(value any) rbac.Role {
	switch v := value.(type) {
	case string:
		return rbac.NormaliseRole(v)
	case float64:
		return rbac.NormaliseRole(fmt.Sprintf("%d", int(v)))
	case int:
		return rbac.NormaliseRole(fmt.Sprintf("%d", v))
	case []any:
		best := rbac.RoleNone
		for _, item := range v {
			if role := claimRole(item); role > best {
				best = role
			}
		}
		return best
	default:
		return rbac.RoleNone
	}
}
