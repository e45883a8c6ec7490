package postgresadapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tally/contexts/elections/vote-ledger/domain/entities"
	domainerrors "tally/contexts/elections/vote-ledger/domain/errors"
	"tally/contexts/elections/vote-ledger/ports"
	"tally/internal/shared/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository stores the ledger in Postgres. Linearizability comes from the
// database: each vote runs in one transaction that locks the candidate row and
// relies on the voter primary key to reject concurrent double votes.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the ledger tables when they are missing.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&candidateModel{}, &voterModel{}, &outboxModel{}); err != nil {
		return r.logError("ledger_repo_migrate_failed", err)
	}
	return nil
}

// RegisterCandidates seeds an empty registry. A registry that already exists
// must match names exactly; it is never rewritten.
func (r *Repository) RegisterCandidates(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return domainerrors.ErrNoCandidates
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []candidateModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Order("candidate_index ASC").
			Find(&existing).Error; err != nil {
			return r.logError("ledger_repo_load_registry_failed", err)
		}
		if len(existing) > 0 {
			if len(existing) != len(names) {
				return domainerrors.ErrCandidateRegistryMismatch
			}
			for i, row := range existing {
				if row.Position != i || row.Name != names[i] {
					return domainerrors.ErrCandidateRegistryMismatch
				}
			}
			return nil
		}
		rows := make([]candidateModel, len(names))
		for i, name := range names {
			rows[i] = candidateModel{Position: i, Name: name}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return r.logError("ledger_repo_register_candidates_failed", err,
				"candidate_count", len(names),
			)
		}
		return nil
	})
}

func (r *Repository) CastVote(ctx context.Context, record ports.CastVoteRecord) (entities.Ballot, error) {
	var ballot entities.Ballot
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var voted int64
		if err := tx.Model(&voterModel{}).
			Where("voter_id = ?", record.VoterID).
			Count(&voted).Error; err != nil {
			return r.logError("ledger_repo_voter_lookup_failed", err, "voter_id", record.VoterID)
		}
		if voted > 0 {
			return domainerrors.ErrAlreadyVoted
		}

		var candidate candidateModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("candidate_index = ?", record.CandidateIndex).
			First(&candidate).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrInvalidCandidateIndex
			}
			return r.logError("ledger_repo_candidate_lookup_failed", err,
				"candidate_index", record.CandidateIndex,
			)
		}

		voter := voterModel{
			VoterID:           record.VoterID,
			BallotID:          strings.TrimSpace(record.BallotID),
			CandidatePosition: candidate.Position,
			CastAt:            record.CastAt.UTC(),
		}
		if err := tx.Create(&voter).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrAlreadyVoted
			}
			return r.logError("ledger_repo_record_voter_failed", err, "voter_id", record.VoterID)
		}
		if err := tx.Model(&candidateModel{}).
			Where("candidate_index = ?", candidate.Position).
			Update("vote_count", gorm.Expr("vote_count + 1")).Error; err != nil {
			return r.logError("ledger_repo_increment_failed", err,
				"candidate_index", candidate.Position,
			)
		}

		ballot = entities.Ballot{
			BallotID:       voter.BallotID,
			VoterID:        voter.VoterID,
			CandidateIndex: candidate.Position,
			CandidateName:  candidate.Name,
			CastAt:         voter.CastAt,
		}
		return nil
	})
	if err != nil {
		return entities.Ballot{}, err
	}
	return ballot, nil
}

func (r *Repository) ListCandidates(ctx context.Context) ([]entities.Candidate, error) {
	var rows []candidateModel
	if err := r.db.WithContext(ctx).
		Order("candidate_index ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_candidates_failed", err)
	}
	items := make([]entities.Candidate, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) HasVoted(ctx context.Context, voterID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&voterModel{}).
		Where("voter_id = ?", voterID).
		Count(&count).Error; err != nil {
		return false, r.logError("ledger_repo_has_voted_failed", err, "voter_id", voterID)
	}
	return count > 0, nil
}

func (r *Repository) CountVoters(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&voterModel{}).Count(&count).Error; err != nil {
		return 0, r.logError("ledger_repo_count_voters_failed", err)
	}
	return int(count), nil
}

// Tally reads both tables inside one REPEATABLE READ transaction so a vote
// committed between the two queries is either fully visible or not at all.
func (r *Repository) Tally(ctx context.Context) ([]entities.Candidate, int, error) {
	var (
		rows  []candidateModel
		count int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("candidate_index ASC").Find(&rows).Error; err != nil {
			return err
		}
		return tx.Model(&voterModel{}).Count(&count).Error
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, 0, r.logError("ledger_repo_tally_failed", err)
	}
	items := make([]entities.Candidate, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, int(count), nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	row := outboxModel{
		OutboxID:     outboxID,
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outbox.StatusPending,
		CreatedAt:    createdAt,
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("ledger_repo_append_outbox_failed", create.Error, "outbox_id", outboxID)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_pending_outbox_failed", err)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	published := publishedAt.UTC()
	update := r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outbox.StatusPublished,
			"published_at": &published,
		})
	if update.Error != nil {
		return r.logError("ledger_repo_mark_outbox_published_failed", update.Error, "outbox_id", outboxID)
	}
	if update.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "elections/vote-ledger",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ledger repository operation failed", fields...)
	return fmt.Errorf("%s: %w", strings.TrimPrefix(event, "ledger_repo_"), err)
}

type candidateModel struct {
	Position  int    `gorm:"column:candidate_index;primaryKey;autoIncrement:false"`
	Name      string `gorm:"column:name;not null"`
	VoteCount int64  `gorm:"column:vote_count;not null;default:0"`
}

func (candidateModel) TableName() string {
	return "ledger_candidates"
}

func (m candidateModel) toEntity() entities.Candidate {
	return entities.Candidate{
		Index:     m.Position,
		Name:      m.Name,
		VoteCount: uint64(m.VoteCount),
	}
}

type voterModel struct {
	VoterID           string    `gorm:"column:voter_id;primaryKey"`
	BallotID          string    `gorm:"column:ballot_id;not null"`
	CandidatePosition int       `gorm:"column:candidate_position;not null"`
	CastAt            time.Time `gorm:"column:cast_at;not null"`
}

func (voterModel) TableName() string {
	return "ledger_voters"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "ledger_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.LedgerRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
