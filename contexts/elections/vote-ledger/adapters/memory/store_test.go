package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	domainerrors "tally/contexts/elections/vote-ledger/domain/errors"
	"tally/contexts/elections/vote-ledger/ports"
)

func TestStoreRecordsBallotReceipt(t *testing.T) {
	store, err := NewStore([]string{"Alice", "Bob"})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	castAt := time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)
	if _, err := store.CastVote(context.Background(), ports.CastVoteRecord{
		BallotID:       "ballot-1",
		VoterID:        "addr1",
		CandidateIndex: 1,
		CastAt:         castAt,
	}); err != nil {
		t.Fatalf("cast vote: %v", err)
	}

	ballot, ok := store.Ballot("addr1")
	if !ok {
		t.Fatalf("expected receipt for addr1")
	}
	if ballot.BallotID != "ballot-1" || ballot.CandidateName != "Bob" || !ballot.CastAt.Equal(castAt) {
		t.Fatalf("unexpected receipt: %+v", ballot)
	}
}

func TestStoreOutboxRejectsConflictingPayload(t *testing.T) {
	store, err := NewStore([]string{"Alice"})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	envelope := ports.EventEnvelope{EventID: "e1", EventType: "ballot.cast", Data: []byte(`{"a":1}`)}
	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("identical append must be a no-op, got %v", err)
	}
	envelope.Data = []byte(`{"a":2}`)
	if err := store.AppendOutbox(ctx, envelope); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := store.MarkOutboxPublished(ctx, "missing", time.Now()); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected ErrConflict for unknown row, got %v", err)
	}
}

func TestStoreNormalizesVoterKeys(t *testing.T) {
	store, err := NewStore([]string{"Alice"})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	if _, err := store.CastVote(ctx, ports.CastVoteRecord{BallotID: "b1", VoterID: "  addr1 ", CandidateIndex: 0}); err != nil {
		t.Fatalf("cast vote: %v", err)
	}

	ballot, ok := store.Ballot("addr1")
	if !ok || ballot.VoterID != "addr1" {
		t.Fatalf("expected receipt under trimmed key, got %+v (found=%v)", ballot, ok)
	}
	voted, err := store.HasVoted(ctx, "addr1 ")
	if err != nil || !voted {
		t.Fatalf("expected addr1 to have voted, got %v %v", voted, err)
	}
	if _, err := store.CastVote(ctx, ports.CastVoteRecord{BallotID: "b2", VoterID: "addr1", CandidateIndex: 0}); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted for the same trimmed voter, got %v", err)
	}
}
