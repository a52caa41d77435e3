package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkrasnov/pickpool/internal/contest"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type ContestStore struct {
	db *sqlx.DB
}

func NewContestStore(db *sqlx.DB) *ContestStore {
	return &ContestStore{db: db}
}

const insertContestQuery = `INSERT INTO contests
	(id, title, choices, status, published, locked, resolved, cancelled, paid_out,
	 entry_fee, prize_pool, participant_count, total_entries, winner_count, created_at)
	VALUES
	(:id, :title, :choices, :status, :published, :locked, :resolved, :cancelled, :paid_out,
	 :entry_fee, :prize_pool, :participant_count, :total_entries, :winner_count, :created_at)`

const updateContestQuery = `UPDATE contests SET
	title = :title,
	choices = :choices,
	status = :status,
	published = :published,
	locked = :locked,
	resolved = :resolved,
	cancelled = :cancelled,
	paid_out = :paid_out,
	entry_fee = :entry_fee,
	prize_pool = :prize_pool,
	participant_count = :participant_count,
	total_entries = :total_entries,
	winner_count = :winner_count
	WHERE id = :id`

func (s *ContestStore) CreateContest(ctx context.Context, tx *sqlx.Tx, c *contest.Contest) error {
	_, err := tx.NamedExecContext(ctx, insertContestQuery, c)
	return wrapStoreErr("insert contest", err)
}

func (s *ContestStore) UpdateContest(ctx context.Context, tx *sqlx.Tx, c *contest.Contest) error {
	_, err := tx.NamedExecContext(ctx, updateContestQuery, c)
	return wrapStoreErr("update contest", err)
}

func (s *ContestStore) GetContest(ctx context.Context, id uuid.UUID) (*contest.Contest, error) {
	var c contest.Contest
	err := s.db.GetContext(ctx, &c, "SELECT * FROM contests WHERE id = ?", id)
	if err != nil {
		return nil, mapReadErr("get contest", err)
	}
	return &c, nil
}

// GetContestTx re-reads the contest inside an open transaction. Settlement
// decisions must use this read, never a snapshot taken before the
// transaction began.
func (s *ContestStore) GetContestTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*contest.Contest, error) {
	var c contest.Contest
	err := tx.GetContext(ctx, &c, "SELECT * FROM contests WHERE id = ?", id)
	if err != nil {
		return nil, mapReadErr("get contest", err)
	}
	return &c, nil
}

func (s *ContestStore) ListContests(ctx context.Context) ([]contest.Contest, error) {
	var contests []contest.Contest
	err := s.db.SelectContext(ctx, &contests, "SELECT * FROM contests ORDER BY created_at DESC")
	return contests, wrapStoreErr("list contests", err)
}

func (s *ContestStore) GetEntries(ctx context.Context, contestID uuid.UUID) ([]contest.ParticipantEntry, error) {
	var entries []contest.ParticipantEntry
	err := s.db.SelectContext(ctx, &entries, "SELECT * FROM entries WHERE contest_id = ? ORDER BY entry_time ASC", contestID)
	return entries, wrapStoreErr("get entries", err)
}

func (s *ContestStore) GetEntriesTx(ctx context.Context, tx *sqlx.Tx, contestID uuid.UUID) ([]contest.ParticipantEntry, error) {
	var entries []contest.ParticipantEntry
	err := tx.SelectContext(ctx, &entries, "SELECT * FROM entries WHERE contest_id = ? ORDER BY entry_time ASC", contestID)
	return entries, wrapStoreErr("get entries", err)
}

func (s *ContestStore) CreateEntry(ctx context.Context, tx *sqlx.Tx, e *contest.ParticipantEntry) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO entries
		(id, contest_id, user_id, picks, entry_time, entry_fee, final_score, is_winner, winner_rank, prize_amount, status)
		VALUES
		(:id, :contest_id, :user_id, :picks, :entry_time, :entry_fee, :final_score, :is_winner, :winner_rank, :prize_amount, :status)`, e)
	return wrapStoreErr("insert entry", err)
}

func (s *ContestStore) HasEntryTx(ctx context.Context, tx *sqlx.Tx, contestID, userID uuid.UUID) (bool, error) {
	var count int
	err := tx.GetContext(ctx, &count, "SELECT COUNT(1) FROM entries WHERE contest_id = ? AND user_id = ?", contestID, userID)
	if err != nil {
		return false, wrapStoreErr("count entries", err)
	}
	return count > 0, nil
}

// UpdateEntrySettlement writes the coordinator-owned fields of one entry.
func (s *ContestStore) UpdateEntrySettlement(ctx context.Context, tx *sqlx.Tx, e *contest.ParticipantEntry) error {
	_, err := tx.NamedExecContext(ctx, `UPDATE entries SET
		final_score = :final_score,
		is_winner = :is_winner,
		winner_rank = :winner_rank,
		prize_amount = :prize_amount,
		status = :status
		WHERE id = :id`, e)
	return wrapStoreErr("update entry settlement", err)
}

func (s *ContestStore) CreateTransaction(ctx context.Context, tx *sqlx.Tx, t *contest.Transaction) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO transactions
		(id, user_id, type, amount, contest_id, description, reference, status, created_at)
		VALUES
		(:id, :user_id, :type, :amount, :contest_id, :description, :reference, :status, :created_at)`, t)
	return wrapStoreErr("insert transaction", err)
}

func (s *ContestStore) GetTransactionsByContest(ctx context.Context, contestID uuid.UUID) ([]contest.Transaction, error) {
	var txns []contest.Transaction
	err := s.db.SelectContext(ctx, &txns, "SELECT * FROM transactions WHERE contest_id = ? ORDER BY created_at ASC", contestID)
	return txns, wrapStoreErr("get transactions", err)
}

// DeleteContestCascade removes the contest and everything referencing it.
// Entries and ledger records go first so a torn read never sees orphans.
func (s *ContestStore) DeleteContestCascade(ctx context.Context, tx *sqlx.Tx, contestID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE contest_id = ?", contestID); err != nil {
		return wrapStoreErr("delete entries", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE contest_id = ?", contestID); err != nil {
		return wrapStoreErr("delete transactions", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM contests WHERE id = ?", contestID); err != nil {
		return wrapStoreErr("delete contest", err)
	}
	return nil
}

func mapReadErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return contest.ErrNotFound
	}
	return wrapStoreErr(op, err)
}

func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, contest.ErrStoreUnavailable, err)
}
