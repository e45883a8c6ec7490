package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	application "tally/contexts/elections/vote-ledger/application"
	"tally/contexts/elections/vote-ledger/domain/entities"
	domainerrors "tally/contexts/elections/vote-ledger/domain/errors"
	"tally/contexts/elections/vote-ledger/ports"
)

// CastVoteCommand is the write-model input for a single vote. VoterID is the
// identity resolved by the upstream authenticator.
type CastVoteCommand struct {
	VoterID        string
	CandidateIndex int
}

type CastVoteResult struct {
	Ballot entities.Ballot
}

// CastVoteUseCase applies votes to the ledger repository and emits
// ballot.cast events through the outbox.
type CastVoteUseCase struct {
	Ledger ports.LedgerRepository
	Outbox ports.OutboxWriter
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc CastVoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	voterID := strings.TrimSpace(cmd.VoterID)
	logger.Info("cast vote processing started",
		"event", "ledger_cast_vote_started",
		"module", "elections/vote-ledger",
		"layer", "application",
		"voter_id", voterID,
		"candidate_index", cmd.CandidateIndex,
	)
	if voterID == "" {
		logger.Warn("cast vote validation failed",
			"event", "ledger_cast_vote_validation_failed",
			"module", "elections/vote-ledger",
			"layer", "application",
			"candidate_index", cmd.CandidateIndex,
		)
		return CastVoteResult{}, domainerrors.ErrInvalidVoterIdentity
	}

	ballotID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CastVoteResult{}, err
	}
	now := uc.now()

	ballot, err := uc.Ledger.CastVote(ctx, ports.CastVoteRecord{
		BallotID:       ballotID,
		VoterID:        voterID,
		CandidateIndex: cmd.CandidateIndex,
		CastAt:         now,
	})
	if err != nil {
		switch {
		case errors.Is(err, domainerrors.ErrAlreadyVoted):
			logger.Warn("cast vote rejected: voter already voted",
				"event", "ledger_cast_vote_already_voted",
				"module", "elections/vote-ledger",
				"layer", "application",
				"voter_id", voterID,
				"candidate_index", cmd.CandidateIndex,
			)
		case errors.Is(err, domainerrors.ErrInvalidCandidateIndex):
			logger.Warn("cast vote rejected: invalid candidate index",
				"event", "ledger_cast_vote_invalid_candidate",
				"module", "elections/vote-ledger",
				"layer", "application",
				"voter_id", voterID,
				"candidate_index", cmd.CandidateIndex,
			)
		default:
			logger.Error("cast vote failed",
				"event", "ledger_cast_vote_failed",
				"module", "elections/vote-ledger",
				"layer", "application",
				"voter_id", voterID,
				"candidate_index", cmd.CandidateIndex,
				"error", err.Error(),
			)
		}
		return CastVoteResult{}, err
	}

	if err := uc.appendBallotEvent(ctx, ballot); err != nil {
		// The vote is already applied; a lost event is reported but does not
		// turn an accepted ballot into a rejection.
		logger.Error("ballot event append failed",
			"event", "ledger_ballot_event_append_failed",
			"module", "elections/vote-ledger",
			"layer", "application",
			"ballot_id", ballot.BallotID,
			"voter_id", ballot.VoterID,
			"error", err.Error(),
		)
	}

	logger.Info("vote cast",
		"event", "ledger_vote_cast",
		"module", "elections/vote-ledger",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"voter_id", ballot.VoterID,
		"candidate_index", ballot.CandidateIndex,
		"candidate_name", ballot.CandidateName,
	)
	return CastVoteResult{Ballot: ballot}, nil
}

func (uc CastVoteUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc CastVoteUseCase) appendBallotEvent(ctx context.Context, ballot entities.Ballot) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newLedgerEnvelope(eventID, "ballot.cast", ballot.VoterID, ballot.CastAt, map[string]any{
		"ballot_id":       ballot.BallotID,
		"voter_id":        ballot.VoterID,
		"candidate_index": ballot.CandidateIndex,
		"candidate_name":  ballot.CandidateName,
		"occurred_at":     ballot.CastAt.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}
