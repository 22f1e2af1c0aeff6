package agent

import (
	"errors"

	"github.com/ashureev/jobassist/internal/lookup"
)

var (
	// ErrInvalidTransition is a hand-off outside the agent graph. It is a
	// programming error; the turn is answered with a fallback reply.
	ErrInvalidTransition = errors.New("invalid agent transition")
	// ErrContextConflict is a patch that would rewrite the id of the job
	// under discussion without a new selection.
	ErrContextConflict = errors.New("context patch conflicts with selected job")
	// ErrUnknownAgent is a dispatch to an agent with no registered handler.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrInvalidSlot is a slot that is not in the candidate set computed for
	// the current job.
	ErrInvalidSlot = errors.New("invalid interview slot")
	// ErrInvalidJobID is an empty job selection.
	ErrInvalidJobID = errors.New("invalid job id")

	// ErrLookupUnavailable and ErrJobNotFound are the lookup adapter's kinds.
	ErrLookupUnavailable = lookup.ErrLookupUnavailable
	ErrJobNotFound       = lookup.ErrJobNotFound
)

// IsContractViolation reports whether err is a router contract violation
// rather than a user-facing condition.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrContextConflict) ||
		errors.Is(err, ErrUnknownAgent)
}
