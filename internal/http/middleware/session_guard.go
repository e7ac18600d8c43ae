package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/uiowa-coph/roomres/internal/domain"
	"github.com/uiowa-coph/roomres/internal/http/response"
	"github.com/uiowa-coph/roomres/internal/identity"
	"github.com/uiowa-coph/roomres/internal/observability"
	"github.com/uiowa-coph/roomres/internal/session"
)

type contextKey string

const (
	SessionContextKey contextKey = "session"

	// SessionCookieName carries the session id in the browser.
	SessionCookieName = "roomres_session"
)

// TokenRefresher is the one identity operation the guard needs.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*identity.UserToken, error)
}

// SessionGuard gates every pipeline entry point: a request passes only with a
// live session whose token is outside the expiry margin, refreshing once if
// needed. A failed refresh is terminal for the request; there is no retry.
//
// Two explicit bypasses: a request carrying an authorization code (the login
// callback) and a request from a recognized local-development origin.
func SessionGuard(store session.Store, refresher TokenRefresher, devOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(devOrigins))
	for _, o := range devOrigins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("code") != "" || allowed[r.Header.Get("Origin")] {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "no session", nil)
				return
			}
			sess, err := store.Get(r.Context(), cookie.Value)
			if err != nil {
				if !errors.Is(err, session.ErrSessionNotFound) {
					response.Error(w, r, http.StatusInternalServerError, "SESSION_STORE", "session store unavailable", nil)
					return
				}
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "session expired", nil)
				return
			}
			if sess.UserAccessToken == "" {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "session has no token", nil)
				return
			}

			if time.Now().Before(sess.TokenExpiry.Add(-identity.TokenExpiryMargin)) {
				next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
				return
			}

			tok, err := refresher.Refresh(r.Context(), sess.UserRefreshToken)
			if err != nil {
				observability.RecordAuthRefresh("failure")
				observability.Audit(r, "session_refresh_failed", "session_id", sess.ID)
				response.Error(w, r, http.StatusForbidden, "UNAUTHENTICATED", "token refresh failed", nil)
				return
			}
			sess.UserAccessToken = tok.AccessToken
			sess.UserRefreshToken = tok.RefreshToken
			sess.TokenExpiry = tok.Expiry
			if err := store.Set(r.Context(), sess); err != nil {
				response.Error(w, r, http.StatusInternalServerError, "SESSION_STORE", "session store unavailable", nil)
				return
			}
			observability.RecordAuthRefresh("success")
			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
		})
	}
}

func withSession(ctx context.Context, sess *domain.Session) context.Context {
	return context.WithValue(ctx, SessionContextKey, sess)
}

// SessionFromContext returns the authenticated session the guard attached.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(SessionContextKey).(*domain.Session)
	return s, ok
}
