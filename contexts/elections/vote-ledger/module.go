package voteledger

import (
	"log/slog"

	httpadapter "tally/contexts/elections/vote-ledger/adapters/http"
	"tally/contexts/elections/vote-ledger/adapters/memory"
	"tally/contexts/elections/vote-ledger/application/commands"
	"tally/contexts/elections/vote-ledger/application/queries"
	"tally/contexts/elections/vote-ledger/application/workers"
	"tally/contexts/elections/vote-ledger/ports"
)

type Module struct {
	Handler  httpadapter.Handler
	Relay    workers.OutboxRelay
	Auditor  workers.TallyAuditor
	Consumer workers.BallotEventConsumer
	Store    *memory.Store
}

type Dependencies struct {
	Ledger     ports.LedgerRepository
	Outbox     ports.OutboxWriter
	OutboxRepo ports.OutboxRepository
	Publisher  ports.EventPublisher
	Subscriber ports.EventSubscriber
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	RelayBatch int
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	castVote := commands.CastVoteUseCase{
		Ledger: deps.Ledger,
		Outbox: deps.Outbox,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	standings := queries.StandingsUseCase{
		Ledger: deps.Ledger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Votes:     castVote,
			Standings: standings,
			Logger:    deps.Logger,
		},
		Relay: workers.OutboxRelay{
			Outbox:    deps.OutboxRepo,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: deps.RelayBatch,
			Logger:    deps.Logger,
		},
		Auditor: workers.TallyAuditor{
			Ledger: deps.Ledger,
			Logger: deps.Logger,
		},
		Consumer: workers.BallotEventConsumer{
			Subscriber: deps.Subscriber,
			Ledger:     deps.Ledger,
			Logger:     deps.Logger,
		},
	}
}

// NewInMemoryModule builds a module over a fresh in-process ledger. The bus both
// receives relayed ballot events and feeds them back to the consumer.
func NewInMemoryModule(candidateNames []string, bus ports.EventBus, logger *slog.Logger) (Module, error) {
	store, err := memory.NewStore(candidateNames)
	if err != nil {
		return Module{}, err
	}
	deps := Dependencies{
		Ledger:     store,
		Outbox:     store,
		OutboxRepo: store,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	}
	if bus != nil {
		deps.Publisher = bus
		deps.Subscriber = bus
	}
	module := NewModule(deps)
	module.Store = store
	return module, nil
}
