// Package identity talks to the campus OAuth2 authority. It issues two kinds
// of credentials: per-user tokens from the authorization-code flow, and a
// single process-wide application token from the client-credentials grant.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/uiowa-coph/roomres/internal/config"
)

// TokenExpiryMargin is how long before nominal expiry a token is treated as
// already expired. Both the session guard and the application-token cache
// apply it.
const TokenExpiryMargin = 5 * time.Minute

// Error is any failure talking to the identity authority. Callers decide the
// HTTP status mapping.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("identity %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// UserToken is the result of a user-level grant.
type UserToken struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	HawkID       string
	UniversityID string
}

// Client exchanges credentials against the authority.
type Client struct {
	userConf *oauth2.Config
	appConf  *clientcredentials.Config
	httpc    *http.Client
	appCache *appTokenCache
}

func NewClient(cfg *config.Config) *Client {
	endpoint := oauth2.Endpoint{
		AuthURL:  cfg.OAuthAuthURL,
		TokenURL: cfg.OAuthTokenURL,
	}
	c := &Client{
		userConf: &oauth2.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.OAuthRedirectURL,
			Scopes:       cfg.OAuthScopes,
		},
		appConf: &clientcredentials.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			TokenURL:     cfg.OAuthTokenURL,
			Scopes:       cfg.OAuthScopes,
		},
		httpc: &http.Client{Timeout: cfg.ExternalTimeout},
	}
	c.appCache = newAppTokenCache(c)
	return c
}

// AuthCodeURL builds the authority redirect for the login handshake.
func (c *Client) AuthCodeURL(state string) string {
	return c.userConf.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange redeems an authorization code for a user token.
func (c *Client) Exchange(ctx context.Context, code string) (*UserToken, error) {
	tok, err := c.userConf.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, &Error{Op: "exchange", Message: "authorization code exchange failed", Err: err}
	}
	return userTokenFrom(tok), nil
}

// Refresh trades a refresh token for a fresh user token. One round trip, no
// retries; a failure here is terminal for the request that triggered it.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*UserToken, error) {
	src := c.userConf.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, &Error{Op: "refresh", Message: "refresh token grant failed", Err: err}
	}
	ut := userTokenFrom(tok)
	if ut.RefreshToken == "" {
		// The authority does not always rotate refresh tokens.
		ut.RefreshToken = refreshToken
	}
	return ut, nil
}

// AppToken returns the cached process-wide application token, re-acquiring it
// via the client-credentials grant when inside the expiry margin.
func (c *Client) AppToken(ctx context.Context) (string, error) {
	return c.appCache.get(ctx)
}

// InvalidateAppToken drops the cached application token. Callers invoke this
// after an upstream rejects the application bearer, forcing re-acquisition on
// the next use.
func (c *Client) InvalidateAppToken() {
	c.appCache.invalidate()
}

func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpc)
}

func userTokenFrom(tok *oauth2.Token) *UserToken {
	ut := &UserToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if v, ok := tok.Extra("hawk_id").(string); ok {
		ut.HawkID = v
	}
	if v, ok := tok.Extra("university_id").(string); ok {
		ut.UniversityID = v
	}
	return ut
}
