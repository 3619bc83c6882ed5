package middleware

import (
	"net/http"

	pnet "instapilot/internal/platform/net"
)

// AuthPort turns a request into the operator and workspace its bearer token names
type AuthPort interface {
	Parse(r *http.Request) (userID string, tenantID string, err error)
}

// Auth rejects requests p cannot parse through fail and stores the identity
// for handlers otherwise. A nil port lets everything through
func Auth(p AuthPort, fail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if p == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, tid, err := p.Parse(r)
			if err != nil {
				fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(pnet.WithIdentity(r.Context(), uid, tid)))
		})
	}
}
