package errors

import "errors"

var (
	ErrNoCandidates              = errors.New("candidate list must not be empty")
	ErrAlreadyVoted              = errors.New("voter has already voted")
	ErrInvalidCandidateIndex     = errors.New("invalid candidate index")
	ErrMissingCandidateIndex     = errors.New("candidate index is required")
	ErrInvalidVoterIdentity      = errors.New("voter identity is required")
	ErrCandidateRegistryMismatch = errors.New("stored candidate registry does not match configured candidates")
	ErrTallyMismatch             = errors.New("candidate tallies do not match recorded voters")
	ErrOrphanBallotEvent         = errors.New("ballot event has no recorded voter")
	ErrMalformedBallotEvent      = errors.New("malformed ballot event")
	ErrConflict                  = errors.New("ledger conflict")
)
