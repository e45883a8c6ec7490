package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	domainerrors "tally/contexts/elections/vote-ledger/domain/errors"
	"tally/contexts/elections/vote-ledger/ports"

	"golang.org/x/sync/errgroup"
)

func openTempStore(t *testing.T, names ...string) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.RegisterCandidates(context.Background(), names); err != nil {
		t.Fatalf("register candidates: %v", err)
	}
	return store
}

func castVote(store *Store, voterID string, index int) error {
	_, err := store.CastVote(context.Background(), ports.CastVoteRecord{
		BallotID:       "ballot-" + voterID,
		VoterID:        voterID,
		CandidateIndex: index,
		CastAt:         time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC),
	})
	return err
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestRegisterCandidatesRejectsEmptyList(t *testing.T) {
	t.Parallel()

	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	if err := store.RegisterCandidates(context.Background(), nil); !errors.Is(err, domainerrors.ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestCastVoteScenario(t *testing.T) {
	t.Parallel()

	store := openTempStore(t, "Alice", "Bob", "Charlie")
	ctx := context.Background()

	ballot, err := store.CastVote(ctx, ports.CastVoteRecord{
		BallotID:       "ballot-1",
		VoterID:        "addr1",
		CandidateIndex: 0,
		CastAt:         time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if ballot.CandidateName != "Alice" || ballot.BallotID != "ballot-1" {
		t.Fatalf("unexpected ballot: %+v", ballot)
	}
	if err := castVote(store, "addr1", 1); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
	if err := castVote(store, "addr2", 99); !errors.Is(err, domainerrors.ErrInvalidCandidateIndex) {
		t.Fatalf("expected ErrInvalidCandidateIndex, got %v", err)
	}
	if err := castVote(store, "addr1", 99); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("already voted must win over invalid index, got %v", err)
	}

	candidates, err := store.ListCandidates(ctx)
	if err != nil {
		t.Fatalf("list candidates: %v", err)
	}
	want := []uint64{1, 0, 0}
	for i, candidate := range candidates {
		if candidate.VoteCount != want[i] {
			t.Fatalf("candidate %d vote_count = %d, want %d", i, candidate.VoteCount, want[i])
		}
	}
	voted, err := store.HasVoted(ctx, "addr2")
	if err != nil {
		t.Fatalf("has voted: %v", err)
	}
	if voted {
		t.Fatal("rejected voter must not be recorded")
	}
	count, err := store.CountVoters(ctx)
	if err != nil {
		t.Fatalf("count voters: %v", err)
	}
	if count != 1 {
		t.Fatalf("voter count = %d, want 1", count)
	}

	snapshot, voters, err := store.Tally(ctx)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	if voters != 1 || len(snapshot) != 3 || snapshot[0].VoteCount != 1 {
		t.Fatalf("unexpected tally: %d voters, %+v", voters, snapshot)
	}
}

func TestRegisterCandidatesVerifiesExistingRegistry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.RegisterCandidates(context.Background(), []string{"Alice", "Bob"}); err != nil {
		t.Fatalf("register candidates: %v", err)
	}
	if err := castVote(store, "v1", 1); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()
	if err := reopened.RegisterCandidates(context.Background(), []string{"Alice", "Bob"}); err != nil {
		t.Fatalf("re-register same candidates: %v", err)
	}
	if err := reopened.RegisterCandidates(context.Background(), []string{"Alice", "Eve"}); !errors.Is(err, domainerrors.ErrCandidateRegistryMismatch) {
		t.Fatalf("expected ErrCandidateRegistryMismatch, got %v", err)
	}
	if err := castVote(reopened, "v1", 0); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("voter record must survive reopen, got %v", err)
	}
}

func TestConcurrentVotesAreSerialized(t *testing.T) {
	t.Parallel()

	const voters = 60
	store := openTempStore(t, "A", "B", "C")

	var group errgroup.Group
	for i := 0; i < voters; i++ {
		group.Go(func() error {
			return castVote(store, fmt.Sprintf("voter-%d", i), i%3)
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("concurrent vote failed: %v", err)
	}

	candidates, err := store.ListCandidates(context.Background())
	if err != nil {
		t.Fatalf("list candidates: %v", err)
	}
	for _, candidate := range candidates {
		if candidate.VoteCount != voters/3 {
			t.Fatalf("candidate %d vote_count = %d, want %d", candidate.Index, candidate.VoteCount, voters/3)
		}
	}
}

func TestOutboxLifecycle(t *testing.T) {
	t.Parallel()

	store := openTempStore(t, "Alice")
	ctx := context.Background()
	envelope := ports.EventEnvelope{
		EventID:    "event-1",
		EventType:  "ballot.cast",
		OccurredAt: time.Date(2026, time.October, 19, 9, 0, 0, 0, time.UTC),
		Data:       []byte(`{"voter_id":"v1"}`),
	}
	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("append outbox: %v", err)
	}
	if err := store.AppendOutbox(ctx, envelope); err != nil {
		t.Fatalf("append duplicate outbox: %v", err)
	}

	pending, err := store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].OutboxID != "event-1" {
		t.Fatalf("unexpected pending rows: %+v", pending)
	}
	if err := store.MarkOutboxPublished(ctx, "event-1", time.Now()); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	pending, err = store.ListPendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("list pending after publish: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending rows, got %d", len(pending))
	}
	if err := store.MarkOutboxPublished(ctx, "missing", time.Now()); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected ErrConflict for unknown row, got %v", err)
	}
}
