package ports

import (
	"context"
	"time"

	"tally/contexts/elections/vote-ledger/domain/entities"
	"tally/internal/shared/events"
	"tally/internal/shared/outbox"
)

// CastVoteRecord carries a vote already stamped by the application layer.
type CastVoteRecord struct {
	BallotID       string
	VoterID        string
	CandidateIndex int
	CastAt         time.Time
}

// LedgerRepository is the storage boundary of the vote ledger. CastVote must
// check "already voted" before the candidate index and must apply the tally
// increment and voter insertion atomically.
type LedgerRepository interface {
	CastVote(ctx context.Context, record CastVoteRecord) (entities.Ballot, error)
	ListCandidates(ctx context.Context) ([]entities.Candidate, error)
	HasVoted(ctx context.Context, voterID string) (bool, error)
	CountVoters(ctx context.Context) (int, error)
	// Tally reads the candidates and the voter count from one consistent
	// snapshot.
	Tally(ctx context.Context) ([]entities.Candidate, int, error)
}

type EventEnvelope = events.Envelope

type OutboxMessage = outbox.Message

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventPublisher publishes canonical envelopes to a topic.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

// EventSubscriber delivers topic events to handler until ctx is cancelled.
type EventSubscriber interface {
	Subscribe(
		ctx context.Context,
		topic string,
		consumerGroup string,
		handler func(context.Context, EventEnvelope) error,
	) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
