package queries

import (
	"context"
	"strings"

	"tally/contexts/elections/vote-ledger/domain/entities"
	domainerrors "tally/contexts/elections/vote-ledger/domain/errors"
	"tally/contexts/elections/vote-ledger/ports"
)

type StandingsUseCase struct {
	Ledger ports.LedgerRepository
}

func (uc StandingsUseCase) Candidates(ctx context.Context) ([]entities.Candidate, error) {
	return uc.Ledger.ListCandidates(ctx)
}

// Standings reports totals and every candidate sharing the highest raw count.
// Ties are reported as-is; there is no tie breaking.
func (uc StandingsUseCase) Standings(ctx context.Context) (entities.Standings, error) {
	candidates, err := uc.Ledger.ListCandidates(ctx)
	if err != nil {
		return entities.Standings{}, err
	}
	standings := entities.Standings{
		Candidates: candidates,
		Leaders:    make([]entities.Candidate, 0),
	}
	var best uint64
	for _, candidate := range candidates {
		standings.TotalVotes += candidate.VoteCount
		if candidate.VoteCount > best {
			best = candidate.VoteCount
		}
	}
	if best == 0 {
		return standings, nil
	}
	for _, candidate := range candidates {
		if candidate.VoteCount == best {
			standings.Leaders = append(standings.Leaders, candidate)
		}
	}
	return standings, nil
}

func (uc StandingsUseCase) HasVoted(ctx context.Context, voterID string) (bool, error) {
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return false, domainerrors.ErrInvalidVoterIdentity
	}
	return uc.Ledger.HasVoted(ctx, voterID)
}
