package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/askelund/spotheat/core/model"
)

// Applier pushes the chosen state for a due hour to the device gateway.
// It is a fallible remote operation; the engine retries transient failures
// once and defers the rest to the next cycle.
type Applier interface {
	Apply(ctx context.Context, userID string, hour time.Time, state model.State) error
}

// AuthError marks a failure caused by an invalid or expired device token.
// The engine does not retry these; it publishes a token-refresh request
// instead.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("gateway auth: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthError reports whether err is an authorization failure.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
