package events

import "time"

// AuthFailure is published when a device push fails authorization. The
// service reacts by running the token-refresh job outside its periodic
// window.
type AuthFailure struct {
	UserID string
	Reason string
	Time   time.Time
}

// RunApplied is published after a confirmed comfort run for a user.
type RunApplied struct {
	UserID string
	Hour   time.Time
}
