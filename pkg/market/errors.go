package market

import "errors"

// Participant-facing validation failures. The engine performs no mutation
// before returning one of these; entry-log failures propagate unchanged.
var (
	// ErrAlreadyTraded rejects any action by a participant who has already
	// traded this round.
	ErrAlreadyTraded = errors.New("participant already traded this round")

	// ErrInvalidPrice rejects a negative offer price.
	ErrInvalidPrice = errors.New("offer price must be non-negative")

	// ErrOfferInvalid rejects an accept whose target is missing, cancelled
	// or superseded. The three cases are deliberately indistinguishable so
	// callers cannot infer the timing of concurrent edits.
	ErrOfferInvalid = errors.New("offer no longer valid")

	// ErrSideMismatch rejects accepting an offer from one's own side.
	ErrSideMismatch = errors.New("cannot accept an offer on your own side")

	// ErrUnknownParticipant rejects actions by ids outside the session.
	ErrUnknownParticipant = errors.New("unknown participant")
)
