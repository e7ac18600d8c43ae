package domain

import "time"

// Session is the per-browser authenticated state. It owns the user's bearer
// tokens exclusively; nothing else caches them.
type Session struct {
	ID               string    `json:"id"`
	UserAccessToken  string    `json:"-"`
	UserRefreshToken string    `json:"-"`
	TokenExpiry      time.Time `json:"token_expiry"`
	HawkID           string    `json:"hawk_id"`
	UniversityID     string    `json:"university_id"`
	CreatedAt        time.Time `json:"created_at"`
}
