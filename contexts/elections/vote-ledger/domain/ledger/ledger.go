package ledger

import (
	"sync"

	"tally/contexts/elections/vote-ledger/domain/entities"
	domainerrors "tally/contexts/elections/vote-ledger/domain/errors"
)

// VoteLedger is the in-process vote state machine. Every voter identity moves
// once from "has not voted" to "has voted"; candidate counts only grow.
//
// All mutations hold the write lock across both the tally increment and the
// voter insertion, so calls are linearizable and readers never observe one
// without the other.
type VoteLedger struct {
	mu         sync.RWMutex
	candidates []entities.Candidate
	voted      map[string]struct{}
}

// New registers the candidates in the given order with zero votes each.
func New(names []string) (*VoteLedger, error) {
	if len(names) == 0 {
		return nil, domainerrors.ErrNoCandidates
	}
	candidates := make([]entities.Candidate, len(names))
	for i, name := range names {
		candidates[i] = entities.Candidate{Index: i, Name: name}
	}
	return &VoteLedger{
		candidates: candidates,
		voted:      make(map[string]struct{}),
	}, nil
}

// CastVote records one vote for candidateIndex on behalf of voterID and returns
// the candidate with its updated count. A voter that already voted is rejected
// before the index is looked at.
func (l *VoteLedger) CastVote(voterID string, candidateIndex int) (entities.Candidate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.voted[voterID]; ok {
		return entities.Candidate{}, domainerrors.ErrAlreadyVoted
	}
	if candidateIndex < 0 || candidateIndex >= len(l.candidates) {
		return entities.Candidate{}, domainerrors.ErrInvalidCandidateIndex
	}
	l.candidates[candidateIndex].VoteCount++
	l.voted[voterID] = struct{}{}
	return l.candidates[candidateIndex], nil
}

// Candidates returns a snapshot in registration order.
func (l *VoteLedger) Candidates() []entities.Candidate {
	l.mu.RLock()
	defer l.mu.RUnlock()
	items := make([]entities.Candidate, len(l.candidates))
	copy(items, l.candidates)
	return items
}

func (l *VoteLedger) HasVoted(voterID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.voted[voterID]
	return ok
}

func (l *VoteLedger) VoterCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.voted)
}

// Tally returns the candidate snapshot and the voter count read under one lock,
// so the sum of counts always equals the number of voters.
func (l *VoteLedger) Tally() ([]entities.Candidate, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	items := make([]entities.Candidate, len(l.candidates))
	copy(items, l.candidates)
	return items, len(l.voted)
}
