package voteledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	domainerrors "tally/contexts/elections/vote-ledger/domain/errors"
	"tally/contexts/elections/vote-ledger/ports"
	httptransport "tally/contexts/elections/vote-ledger/transport/http"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []ports.EventEnvelope
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Subscribe(context.Context, string, string, func(context.Context, ports.EventEnvelope) error) error {
	return nil
}

func candidateIndex(i int) *int {
	return &i
}

func TestNewInMemoryModuleRejectsEmptyCandidates(t *testing.T) {
	if _, err := NewInMemoryModule(nil, nil, nil); !errors.Is(err, domainerrors.ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestCastVoteRequiresCandidateIndex(t *testing.T) {
	module, err := NewInMemoryModule([]string{"Alice"}, &recordingPublisher{}, nil)
	if err != nil {
		t.Fatalf("build module: %v", err)
	}
	ctx := context.Background()
	if _, err := module.Handler.CastVoteHandler(ctx, "addr1", httptransport.CastVoteRequest{}); !errors.Is(err, domainerrors.ErrMissingCandidateIndex) {
		t.Fatalf("expected ErrMissingCandidateIndex, got %v", err)
	}
	voted, err := module.Handler.VoterStatusHandler(ctx, "addr1")
	if err != nil || voted.HasVoted {
		t.Fatalf("rejected request must not record a vote, got %+v %v", voted, err)
	}
}

func TestVoteFlowThroughHandler(t *testing.T) {
	publisher := &recordingPublisher{}
	module, err := NewInMemoryModule([]string{"Alice", "Bob", "Charlie"}, publisher, nil)
	if err != nil {
		t.Fatalf("build module: %v", err)
	}
	ctx := context.Background()

	ballot, err := module.Handler.CastVoteHandler(ctx, "addr1", httptransport.CastVoteRequest{CandidateIndex: candidateIndex(0)})
	if err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if ballot.CandidateName != "Alice" || ballot.VoterID != "addr1" || ballot.BallotID == "" {
		t.Fatalf("unexpected ballot response: %+v", ballot)
	}
	if _, err := module.Handler.CastVoteHandler(ctx, "addr2", httptransport.CastVoteRequest{CandidateIndex: candidateIndex(1)}); err != nil {
		t.Fatalf("cast vote addr2: %v", err)
	}
	if _, err := module.Handler.CastVoteHandler(ctx, "addr3", httptransport.CastVoteRequest{CandidateIndex: candidateIndex(0)}); err != nil {
		t.Fatalf("cast vote addr3: %v", err)
	}
	_, err = module.Handler.CastVoteHandler(ctx, "addr1", httptransport.CastVoteRequest{CandidateIndex: candidateIndex(1)})
	if !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}

	candidates, err := module.Handler.ListCandidatesHandler(ctx)
	if err != nil {
		t.Fatalf("list candidates: %v", err)
	}
	want := []httptransport.CandidateItem{
		{Index: 0, Name: "Alice", VoteCount: 2},
		{Index: 1, Name: "Bob", VoteCount: 1},
		{Index: 2, Name: "Charlie", VoteCount: 0},
	}
	if len(candidates.Items) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(candidates.Items))
	}
	for i := range want {
		if candidates.Items[i] != want[i] {
			t.Fatalf("candidate %d = %+v, want %+v", i, candidates.Items[i], want[i])
		}
	}

	standings, err := module.Handler.StandingsHandler(ctx)
	if err != nil {
		t.Fatalf("standings: %v", err)
	}
	if standings.TotalVotes != 3 || len(standings.Leaders) != 1 || standings.Leaders[0].Name != "Alice" {
		t.Fatalf("unexpected standings: %+v", standings)
	}

	status, err := module.Handler.VoterStatusHandler(ctx, " addr2 ")
	if err != nil {
		t.Fatalf("voter status: %v", err)
	}
	if !status.HasVoted || status.VoterID != "addr2" {
		t.Fatalf("unexpected voter status: %+v", status)
	}

	if err := module.Relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay run: %v", err)
	}
	if len(publisher.events) != 3 {
		t.Fatalf("expected 3 published ballot events, got %d", len(publisher.events))
	}
	for _, topic := range publisher.topics {
		if topic != "ballot.cast" {
			t.Fatalf("unexpected topic %q", topic)
		}
	}
	if err := module.Relay.RunOnce(ctx); err != nil {
		t.Fatalf("second relay run: %v", err)
	}
	if len(publisher.events) != 3 {
		t.Fatalf("published rows must not be republished, got %d events", len(publisher.events))
	}
	if err := module.Auditor.RunOnce(ctx); err != nil {
		t.Fatalf("audit: %v", err)
	}
}

func TestInvalidCandidateDoesNotConsumeVote(t *testing.T) {
	module, err := NewInMemoryModule([]string{"Alice", "Bob"}, &recordingPublisher{}, nil)
	if err != nil {
		t.Fatalf("build module: %v", err)
	}
	ctx := context.Background()

	_, err = module.Handler.CastVoteHandler(ctx, "voter-1", httptransport.CastVoteRequest{CandidateIndex: candidateIndex(2)})
	if !errors.Is(err, domainerrors.ErrInvalidCandidateIndex) {
		t.Fatalf("expected ErrInvalidCandidateIndex, got %v", err)
	}
	if _, ok := module.Store.Ballot("voter-1"); ok {
		t.Fatalf("rejected vote must not leave a ballot")
	}
	if _, err := module.Handler.CastVoteHandler(ctx, "voter-1", httptransport.CastVoteRequest{CandidateIndex: candidateIndex(1)}); err != nil {
		t.Fatalf("retry with valid index failed: %v", err)
	}
	if _, ok := module.Store.Ballot("voter-1"); !ok {
		t.Fatalf("expected ballot receipt for voter-1")
	}
}
