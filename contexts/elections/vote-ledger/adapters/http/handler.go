package httpadapter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"tally/contexts/elections/vote-ledger/application/commands"
	"tally/contexts/elections/vote-ledger/application/queries"
	"tally/contexts/elections/vote-ledger/domain/entities"
	domainerrors "tally/contexts/elections/vote-ledger/domain/errors"
	httptransport "tally/contexts/elections/vote-ledger/transport/http"
)

type Handler struct {
	Votes     commands.CastVoteUseCase
	Standings queries.StandingsUseCase
	Logger    *slog.Logger
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	voterID string,
	req httptransport.CastVoteRequest,
) (httptransport.BallotResponse, error) {
	if req.CandidateIndex == nil {
		return httptransport.BallotResponse{}, domainerrors.ErrMissingCandidateIndex
	}
	result, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		VoterID:        voterID,
		CandidateIndex: *req.CandidateIndex,
	})
	if err != nil {
		return httptransport.BallotResponse{}, err
	}
	return httptransport.BallotResponse{
		BallotID:       result.Ballot.BallotID,
		VoterID:        result.Ballot.VoterID,
		CandidateIndex: result.Ballot.CandidateIndex,
		CandidateName:  result.Ballot.CandidateName,
		CastAt:         result.Ballot.CastAt.UTC().Format(time.RFC3339),
	}, nil
}

func (h Handler) ListCandidatesHandler(ctx context.Context) (httptransport.CandidatesResponse, error) {
	candidates, err := h.Standings.Candidates(ctx)
	if err != nil {
		return httptransport.CandidatesResponse{}, err
	}
	return httptransport.CandidatesResponse{
		Items: mapCandidates(candidates),
	}, nil
}

func (h Handler) StandingsHandler(ctx context.Context) (httptransport.StandingsResponse, error) {
	standings, err := h.Standings.Standings(ctx)
	if err != nil {
		return httptransport.StandingsResponse{}, err
	}
	return httptransport.StandingsResponse{
		Items:      mapCandidates(standings.Candidates),
		TotalVotes: standings.TotalVotes,
		Leaders:    mapCandidates(standings.Leaders),
	}, nil
}

func (h Handler) VoterStatusHandler(ctx context.Context, voterID string) (httptransport.VoterStatusResponse, error) {
	voted, err := h.Standings.HasVoted(ctx, voterID)
	if err != nil {
		return httptransport.VoterStatusResponse{}, err
	}
	return httptransport.VoterStatusResponse{
		VoterID:  strings.TrimSpace(voterID),
		HasVoted: voted,
	}, nil
}

func mapCandidates(candidates []entities.Candidate) []httptransport.CandidateItem {
	items := make([]httptransport.CandidateItem, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, httptransport.CandidateItem{
			Index:     candidate.Index,
			Name:      candidate.Name,
			VoteCount: candidate.VoteCount,
		})
	}
	return items
}
