package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/uiowa-coph/roomres/internal/domain"
	"github.com/uiowa-coph/roomres/internal/http/middleware"
	"github.com/uiowa-coph/roomres/internal/http/response"
	"github.com/uiowa-coph/roomres/internal/identity"
	"github.com/uiowa-coph/roomres/internal/observability"
	"github.com/uiowa-coph/roomres/internal/security"
	"github.com/uiowa-coph/roomres/internal/session"
)

// IdentityClient is the slice of the identity client the handshake uses.
type IdentityClient interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*identity.UserToken, error)
}

type AuthHandler struct {
	identity     IdentityClient
	sessions     session.Store
	state        *security.StateManager
	sessionTTL   time.Duration
	secureCookie bool
}

func NewAuthHandler(id IdentityClient, sessions session.Store, state *security.StateManager, sessionTTL time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		identity:     id,
		sessions:     sessions,
		state:        state,
		sessionTTL:   sessionTTL,
		secureCookie: secureCookie,
	}
}

// Login bounces the browser to the campus authority with a signed state.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	redirect := r.URL.Query().Get("redirect")
	if redirect == "" || redirect[0] != '/' {
		redirect = "/"
	}
	state, err := h.state.Sign(redirect)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "could not sign login state", nil)
		return
	}
	http.Redirect(w, r, h.identity.AuthCodeURL(state), http.StatusFound)
}

// Callback finishes the handshake: verifies state, redeems the code, creates
// the session, sets the cookie. Identity failures here are server errors, not
// authentication failures.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "missing authorization code", nil)
		return
	}
	claims, err := h.state.Verify(r.URL.Query().Get("state"))
	if err != nil {
		observability.Audit(r, "login_state_rejected")
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid login state", nil)
		return
	}

	tok, err := h.identity.Exchange(r.Context(), code)
	if err != nil {
		observability.Audit(r, "login_exchange_failed")
		response.Error(w, r, http.StatusInternalServerError, "IDENTITY_ERROR", err.Error(), nil)
		return
	}

	sess := &domain.Session{
		ID:               uuid.NewString(),
		UserAccessToken:  tok.AccessToken,
		UserRefreshToken: tok.RefreshToken,
		TokenExpiry:      tok.Expiry,
		HawkID:           tok.HawkID,
		UniversityID:     tok.UniversityID,
	}
	if err := h.sessions.Set(r.Context(), sess); err != nil {
		response.Error(w, r, http.StatusInternalServerError, "SESSION_STORE", "could not persist session", nil)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(h.sessionTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	observability.Audit(r, "login_succeeded", "hawk_id", sess.HawkID)
	http.Redirect(w, r, claims.Redirect, http.StatusFound)
}

// Logout destroys the session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.Invalidate(r.Context(), cookie.Value); err != nil {
			response.Error(w, r, http.StatusInternalServerError, "SESSION_STORE", "could not invalidate session", nil)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	observability.Audit(r, "logout")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}
