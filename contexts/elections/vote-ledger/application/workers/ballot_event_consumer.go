package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	application "tally/contexts/elections/vote-ledger/application"
	domainerrors "tally/contexts/elections/vote-ledger/domain/errors"
	"tally/contexts/elections/vote-ledger/ports"
)

const (
	ballotCastTopic    = "ballot.cast"
	defaultBallotGroup = "vote-ledger-ballot-cg"
)

type ballotCastPayload struct {
	BallotID       string `json:"ballot_id"`
	VoterID        string `json:"voter_id"`
	CandidateIndex int    `json:"candidate_index"`
	CandidateName  string `json:"candidate_name"`
}

// BallotEventConsumer reads ballot.cast events back from the bus and confirms
// that each one belongs to a voter the ledger has recorded.
type BallotEventConsumer struct {
	Subscriber    ports.EventSubscriber
	Ledger        ports.LedgerRepository
	ConsumerGroup string
	Logger        *slog.Logger
}

// Start subscribes to ballot.cast. A consumer without a subscriber is a no-op.
func (c BallotEventConsumer) Start(ctx context.Context) error {
	logger := application.ResolveLogger(c.Logger)
	if c.Subscriber == nil {
		return nil
	}
	group := strings.TrimSpace(c.ConsumerGroup)
	if group == "" {
		group = defaultBallotGroup
	}
	if err := c.Subscriber.Subscribe(ctx, ballotCastTopic, group, c.HandleBallotCast); err != nil {
		logger.Error("ballot consumer subscribe failed",
			"event", "ledger_ballot_consumer_subscribe_failed",
			"module", "elections/vote-ledger",
			"layer", "worker",
			"topic", ballotCastTopic,
			"consumer_group", group,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("ballot consumer subscription active",
		"event", "ledger_ballot_consumer_started",
		"module", "elections/vote-ledger",
		"layer", "worker",
		"topic", ballotCastTopic,
		"consumer_group", group,
	)
	return nil
}

func (c BallotEventConsumer) HandleBallotCast(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(c.Logger)

	var payload ballotCastPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return fmt.Errorf("%w: %s: %v", domainerrors.ErrMalformedBallotEvent, event.EventID, err)
	}
	voterID := strings.TrimSpace(payload.VoterID)
	if voterID == "" {
		return fmt.Errorf("%w: %s: voter_id is empty", domainerrors.ErrMalformedBallotEvent, event.EventID)
	}

	voted, err := c.Ledger.HasVoted(ctx, voterID)
	if err != nil {
		return err
	}
	if !voted {
		logger.Error("ballot event without recorded voter",
			"event", "ledger_ballot_event_orphaned",
			"module", "elections/vote-ledger",
			"layer", "worker",
			"event_id", event.EventID,
			"ballot_id", payload.BallotID,
			"voter_id", voterID,
		)
		return fmt.Errorf("%w: %s", domainerrors.ErrOrphanBallotEvent, voterID)
	}

	logger.Info("ballot event confirmed",
		"event", "ledger_ballot_event_confirmed",
		"module", "elections/vote-ledger",
		"layer", "worker",
		"event_id", event.EventID,
		"ballot_id", payload.BallotID,
		"voter_id", voterID,
		"candidate_index", payload.CandidateIndex,
		"candidate_name", payload.CandidateName,
	)
	return nil
}
