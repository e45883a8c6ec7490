package workers

import (
	"context"
	"fmt"
	"log/slog"

	application "tally/contexts/elections/vote-ledger/application"
	domainerrors "tally/contexts/elections/vote-ledger/domain/errors"
	"tally/contexts/elections/vote-ledger/ports"
)

// TallyAuditor checks that the sum of candidate tallies equals the number of
// recorded voters. Both values come from one Tally snapshot.
type TallyAuditor struct {
	Ledger ports.LedgerRepository
	Logger *slog.Logger
}

func (a TallyAuditor) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(a.Logger)

	candidates, voters, err := a.Ledger.Tally(ctx)
	if err != nil {
		return err
	}
	var total uint64
	for _, candidate := range candidates {
		total += candidate.VoteCount
	}
	if total != uint64(voters) {
		logger.Error("ledger tally audit failed",
			"event", "ledger_tally_audit_mismatch",
			"module", "elections/vote-ledger",
			"layer", "worker",
			"total_votes", total,
			"voter_count", voters,
		)
		return fmt.Errorf("%w: %d votes for %d voters", domainerrors.ErrTallyMismatch, total, voters)
	}
	logger.Debug("ledger tally audit passed",
		"event", "ledger_tally_audit_passed",
		"module", "elections/vote-ledger",
		"layer", "worker",
		"total_votes", total,
	)
	return nil
}
