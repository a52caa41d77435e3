package middleware

import (
	"net/http"

	"github.com/alexedwards/scs/v2"
)

const operatorSessionKey = "operator"

// RequireOperator guards the operator surface. A session becomes an
// operator session by presenting the shared operator token at /login.
func RequireOperator(sessionManager *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessionManager.GetBool(r.Context(), operatorSessionKey) {
				http.Error(w, "operator login required", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MarkOperator flags the current session as an operator session.
func MarkOperator(sessionManager *scs.SessionManager, r *http.Request) {
	sessionManager.Put(r.Context(), operatorSessionKey, true)
}
