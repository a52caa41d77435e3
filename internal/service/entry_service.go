package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dkrasnov/pickpool/internal/contest"
	"github.com/dkrasnov/pickpool/internal/ledger"
	"github.com/dkrasnov/pickpool/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// EntryService handles the participant side: funding an account and
// submitting picks against the entry fee.
type EntryService struct {
	db     *sqlx.DB
	store  *store.ContestStore
	ledger *ledger.Ledger
}

func NewEntryService(db *sqlx.DB, store *store.ContestStore, ledger *ledger.Ledger) *EntryService {
	return &EntryService{db: db, store: store, ledger: ledger}
}

// SubmitEntry records one participant's picks for a published contest and
// captures the entry fee from their balance. One entry per user per
// contest. The fee debit, the entry row and the fee ledger record commit
// together.
func (s *EntryService) SubmitEntry(ctx context.Context, contestID, userID uuid.UUID, picks []contest.Answer) (*contest.ParticipantEntry, error) {
	for _, pick := range picks {
		if pick != contest.AnswerA && pick != contest.AnswerB {
			return nil, fmt.Errorf("pick must be %q or %q, got %q", contest.AnswerA, contest.AnswerB, pick)
		}
	}

	var entry *contest.ParticipantEntry

	err := withTxRetry(contest.OpEnter, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		c, err := s.store.GetContestTx(ctx, tx, contestID)
		if err != nil {
			return err
		}
		if err := c.CheckTransition(contest.OpEnter); err != nil {
			return err
		}
		if len(picks) != len(c.Choices) {
			return &contest.PreconditionError{
				Op:   contest.OpEnter,
				Rule: fmt.Sprintf("entry must answer all %d choices, got %d picks", len(c.Choices), len(picks)),
			}
		}

		exists, err := s.store.HasEntryTx(ctx, tx, contestID, userID)
		if err != nil {
			return err
		}
		if exists {
			return &contest.PreconditionError{Op: contest.OpEnter, Rule: "user already entered this contest"}
		}

		if c.EntryFee.IsPositive() {
			if err := s.ledger.Debit(ctx, tx, userID, c.EntryFee); err != nil {
				return err
			}
		}

		e := &contest.ParticipantEntry{
			ID:          uuid.New(),
			ContestID:   contestID,
			UserID:      userID,
			Picks:       picks,
			EntryTime:   time.Now().UTC(),
			EntryFee:    c.EntryFee,
			PrizeAmount: decimal.Zero,
			Status:      contest.EntryActive,
		}
		if err := s.store.CreateEntry(ctx, tx, e); err != nil {
			return err
		}

		if c.EntryFee.IsPositive() {
			fee := contest.Transaction{
				ID:          uuid.New(),
				UserID:      userID,
				Type:        contest.TransactionEntryFee,
				Amount:      c.EntryFee,
				ContestID:   &c.ID,
				Description: fmt.Sprintf("entry fee: contest %s", c.ID),
				Reference:   fmt.Sprintf("entry:%s:%s", c.ID, userID),
				Status:      contest.TransactionCompleted,
				CreatedAt:   time.Now().UTC(),
			}
			if err := s.store.CreateTransaction(ctx, tx, &fee); err != nil {
				return err
			}
		}

		c.ParticipantCount++
		if err := s.store.UpdateContest(ctx, tx, c); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// Deposit credits a user's balance and records it. Returns the new balance.
func (s *EntryService) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("deposit amount must be positive, got %s", amount)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback()

	if err := s.ledger.Credit(ctx, tx, userID, amount); err != nil {
		return decimal.Zero, err
	}

	deposit := contest.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        contest.TransactionDeposit,
		Amount:      amount,
		Description: "account deposit",
		Reference:   fmt.Sprintf("deposit:%s", uuid.New()),
		Status:      contest.TransactionCompleted,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateTransaction(ctx, tx, &deposit); err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}

	return s.ledger.Balance(ctx, userID)
}

// Balance reports a user's current balance.
func (s *EntryService) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return s.ledger.Balance(ctx, userID)
}
