// Package conversation – error taxonomy.
//
// Every collaborator error is converted to one of these kinds at the
// state-handler boundary before the engine decides the transition and the
// user-facing text. No raw collaborator error ever reaches the user.
package conversation

import (
	"errors"

	"github.com/bazarko/go-supplier-bot/internal/repo"
	"github.com/bazarko/go-supplier-bot/internal/retry"
	"github.com/bazarko/go-supplier-bot/internal/store"
)

var (
	// ErrInvalidInput: wrong event type or malformed value for the current
	// state. Produces a re-prompt, never surfaced as a failure.
	ErrInvalidInput = errors.New("invalid input for current state")

	// ErrRateLimited: the usage limiter denied the action. Quota message,
	// no retry.
	ErrRateLimited = errors.New("daily quota exceeded")

	// ErrTransientService: network/5xx failure, already retried per
	// policy. Surfaced as "try again later".
	ErrTransientService = errors.New("transient service failure")

	// ErrPermanentService: auth or validation failure. Surfaced
	// immediately, logged, never retried.
	ErrPermanentService = errors.New("permanent service failure")

	// ErrConsistency: referential breakage (e.g. product bound to a
	// location the supplier does not own). Fatal for the operation; the
	// conversation resets to the resting state.
	ErrConsistency = errors.New("consistency violation")
)

// classify maps a collaborator error onto the taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotOwned), errors.Is(err, repo.ErrNotFound):
		return ErrConsistency
	case retry.IsExhausted(err), retry.IsTransient(err):
		return ErrTransientService
	default:
		return ErrPermanentService
	}
}
