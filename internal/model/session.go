package model

import "time"

// Session is the authenticated state prepared before the suite runs.
// It is written by the setup hook and only read by the per-transaction hooks.
type Session struct {
	Username string
	Email    string
	Password string

	Token          string
	TokenExpiresAt time.Time // zero when the token carries no readable expiry
	UserID         ResourceID
	TaskID         ResourceID
}

// NewSession creates an empty, unauthenticated session
func NewSession() *Session {
	return &Session{}
}

// Authenticated returns true once a bearer token is held
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// HasSeededTask returns true if setup created a task record
func (s *Session) HasSeededTask() bool {
	return s != nil && s.TaskID != ""
}

// BearerToken returns the Authorization header value for the held token
func (s *Session) BearerToken() string {
	if !s.Authenticated() {
		return ""
	}
	return "Bearer " + s.Token
}

// State names the session state for logging
func (s *Session) State() string {
	if s.Authenticated() {
		return "authenticated"
	}
	return "unauthenticated"
}
