package middleware

import (
	"net/http"

	"github.com/xiaoshenming/bilibili-Api-front/internal/admin/rbac"
)

// RequireCapability aborts the request when the authenticated user lacks the required capability.
func RequireCapability(capability rbac.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok || !user.Can(capability) {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ForbiddenHandler renders the 403 response. Servers may replace it with a full page.
var ForbiddenHandler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
})

func forbidden(w http.ResponseWriter, r *http.Request) {
	if IsHTMXRequest(r.Context()) {
		Toast(w, "You do not have access to this action", ToneDanger)
		w.WriteHeader(http.StatusForbidden)
		return
	}
	ForbiddenHandler.ServeHTTP(w, r)
}
