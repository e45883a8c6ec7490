// Package sqlite provides a SQLite-backed vote ledger for single-node
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tally/contexts/elections/vote-ledger/adapters/sqlite/migrations"
	"tally/contexts/elections/vote-ledger/domain/entities"
	domainerrors "tally/contexts/elections/vote-ledger/domain/errors"
	"tally/contexts/elections/vote-ledger/ports"
	"tally/internal/shared/outbox"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists the ledger in SQLite. The pool is capped at one connection,
// so vote transactions run strictly one after another.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite ledger store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RegisterCandidates seeds an empty registry or verifies that the stored one
// matches names exactly.
func (s *Store) RegisterCandidates(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return domainerrors.ErrNoCandidates
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register candidates: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := listCandidates(ctx, tx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		if len(existing) != len(names) {
			return domainerrors.ErrCandidateRegistryMismatch
		}
		for i, candidate := range existing {
			if candidate.Index != i || candidate.Name != names[i] {
				return domainerrors.ErrCandidateRegistryMismatch
			}
		}
		return nil
	}
	for i, name := range names {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_candidates (candidate_index, name, vote_count) VALUES (?, ?, 0)`,
			i, name,
		); err != nil {
			return fmt.Errorf("insert candidate %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit register candidates: %w", err)
	}
	return nil
}

func (s *Store) CastVote(ctx context.Context, record ports.CastVoteRecord) (entities.Ballot, error) {
	if err := ctx.Err(); err != nil {
		return entities.Ballot{}, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return entities.Ballot{}, fmt.Errorf("begin cast vote: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var voted int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM ledger_voters WHERE voter_id = ?`,
		record.VoterID,
	).Scan(&voted); err != nil {
		return entities.Ballot{}, fmt.Errorf("lookup voter: %w", err)
	}
	if voted > 0 {
		return entities.Ballot{}, domainerrors.ErrAlreadyVoted
	}

	var name string
	err = tx.QueryRowContext(ctx,
		`SELECT name FROM ledger_candidates WHERE candidate_index = ?`,
		record.CandidateIndex,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Ballot{}, domainerrors.ErrInvalidCandidateIndex
	}
	if err != nil {
		return entities.Ballot{}, fmt.Errorf("lookup candidate: %w", err)
	}

	ballotID := strings.TrimSpace(record.BallotID)
	castAt := record.CastAt.UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_voters (voter_id, ballot_id, candidate_index, cast_at) VALUES (?, ?, ?, ?)`,
		record.VoterID, ballotID, record.CandidateIndex, toMillis(castAt),
	); err != nil {
		if isUniqueViolation(err) {
			return entities.Ballot{}, domainerrors.ErrAlreadyVoted
		}
		return entities.Ballot{}, fmt.Errorf("record voter: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE ledger_candidates SET vote_count = vote_count + 1 WHERE candidate_index = ?`,
		record.CandidateIndex,
	); err != nil {
		return entities.Ballot{}, fmt.Errorf("increment tally: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return entities.Ballot{}, fmt.Errorf("commit cast vote: %w", err)
	}
	return entities.Ballot{
		BallotID:       ballotID,
		VoterID:        record.VoterID,
		CandidateIndex: record.CandidateIndex,
		CandidateName:  name,
		CastAt:         fromMillis(toMillis(castAt)),
	}, nil
}

func (s *Store) ListCandidates(ctx context.Context) ([]entities.Candidate, error) {
	return listCandidates(ctx, s.sqlDB)
}

func (s *Store) HasVoted(ctx context.Context, voterID string) (bool, error) {
	var count int
	if err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM ledger_voters WHERE voter_id = ?`,
		voterID,
	).Scan(&count); err != nil {
		return false, fmt.Errorf("has voted: %w", err)
	}
	return count > 0, nil
}

func (s *Store) CountVoters(ctx context.Context) (int, error) {
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(1) FROM ledger_voters`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count voters: %w", err)
	}
	return count, nil
}

// Tally reads candidates and the voter count in one transaction.
func (s *Store) Tally(ctx context.Context) ([]entities.Candidate, int, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("begin tally tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	candidates, err := listCandidates(ctx, tx)
	if err != nil {
		return nil, 0, err
	}
	var voters int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM ledger_voters`).Scan(&voters); err != nil {
		return nil, 0, fmt.Errorf("count voters: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit tally tx: %w", err)
	}
	return candidates, voters, nil
}

func (s *Store) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
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
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO ledger_outbox (outbox_id, event_type, partition_key, payload, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (outbox_id) DO NOTHING`,
		outboxID,
		strings.TrimSpace(envelope.EventType),
		strings.TrimSpace(envelope.PartitionKey),
		payload,
		outbox.StatusPending,
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("append outbox: %w", err)
	}
	return nil
}

func (s *Store) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT outbox_id, event_type, partition_key, payload, created_at
		 FROM ledger_outbox
		 WHERE status = ?
		 ORDER BY created_at ASC, outbox_id ASC
		 LIMIT ?`,
		outbox.StatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending outbox: %w", err)
	}
	defer rows.Close()

	items := make([]ports.OutboxMessage, 0)
	for rows.Next() {
		var (
			item      ports.OutboxMessage
			createdAt int64
		)
		if err := rows.Scan(&item.OutboxID, &item.EventType, &item.PartitionKey, &item.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		item.CreatedAt = fromMillis(createdAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE ledger_outbox SET status = ?, published_at = ? WHERE outbox_id = ?`,
		outbox.StatusPublished, toMillis(publishedAt), strings.TrimSpace(outboxID),
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	if affected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listCandidates(ctx context.Context, q queryer) ([]entities.Candidate, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT candidate_index, name, vote_count FROM ledger_candidates ORDER BY candidate_index ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	items := make([]entities.Candidate, 0)
	for rows.Next() {
		var (
			item  entities.Candidate
			count int64
		)
		if err := rows.Scan(&item.Index, &item.Name, &count); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		item.VoteCount = uint64(count)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return items, nil
}

// applyMigrations executes embedded migrations at most once per file.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var applied int
		if err := sqlDB.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, file).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied > 0 {
			continue
		}
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ ports.LedgerRepository = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
