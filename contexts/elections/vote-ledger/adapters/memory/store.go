package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"tally/contexts/elections/vote-ledger/domain/entities"
	domainerrors "tally/contexts/elections/vote-ledger/domain/errors"
	"tally/contexts/elections/vote-ledger/domain/ledger"
	"tally/contexts/elections/vote-ledger/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store keeps the ledger in process memory. Vote serialization is delegated to
// the wrapped VoteLedger; mu guards only the ballot receipts and the outbox.
type Store struct {
	ledger *ledger.VoteLedger

	mu      sync.RWMutex
	ballots map[string]entities.Ballot
	outbox  map[string]outboxRecord
}

func NewStore(candidateNames []string) (*Store, error) {
	l, err := ledger.New(candidateNames)
	if err != nil {
		return nil, err
	}
	return &Store{
		ledger:  l,
		ballots: make(map[string]entities.Ballot),
		outbox:  make(map[string]outboxRecord),
	}, nil
}

func (s *Store) CastVote(_ context.Context, record ports.CastVoteRecord) (entities.Ballot, error) {
	voterID := strings.TrimSpace(record.VoterID)
	candidate, err := s.ledger.CastVote(voterID, record.CandidateIndex)
	if err != nil {
		return entities.Ballot{}, err
	}
	ballot := entities.Ballot{
		BallotID:       strings.TrimSpace(record.BallotID),
		VoterID:        voterID,
		CandidateIndex: candidate.Index,
		CandidateName:  candidate.Name,
		CastAt:         record.CastAt.UTC(),
	}
	s.mu.Lock()
	s.ballots[voterID] = ballot
	s.mu.Unlock()
	return ballot, nil
}

func (s *Store) ListCandidates(_ context.Context) ([]entities.Candidate, error) {
	return s.ledger.Candidates(), nil
}

func (s *Store) HasVoted(_ context.Context, voterID string) (bool, error) {
	return s.ledger.HasVoted(strings.TrimSpace(voterID)), nil
}

func (s *Store) CountVoters(_ context.Context) (int, error) {
	return s.ledger.VoterCount(), nil
}

func (s *Store) Tally(_ context.Context) ([]entities.Candidate, int, error) {
	candidates, voters := s.ledger.Tally()
	return candidates, voters, nil
}

// Ballot returns the receipt recorded for voterID.
func (s *Store) Ballot(voterID string) (entities.Ballot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ballot, ok := s.ballots[strings.TrimSpace(voterID)]
	return ballot, ok
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].OutboxID < items[j].OutboxID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.LedgerRepository = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
