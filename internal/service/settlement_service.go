package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dkrasnov/pickpool/internal/contest"
	"github.com/dkrasnov/pickpool/internal/ledger"
	"github.com/dkrasnov/pickpool/internal/scoring"
	"github.com/dkrasnov/pickpool/internal/store"
	"github.com/dkrasnov/pickpool/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// SettlementService is the sole writer of settlement fields on contests and
// entries and the sole creator of ledger transaction records. Each terminal
// operation is one transaction: the contest is re-read inside it and the
// transition rule re-checked, so a concurrent duplicate call observes the
// post-transition status and fails its precondition instead of writing
// twice.
//
// Resolve moves no money. Crediting winners is the separate, explicitly
// triggered PayoutWinners step, guarded by the contest's paid_out flag.
type SettlementService struct {
	db        *sqlx.DB
	store     *store.ContestStore
	ledger    *ledger.Ledger
	observers []Observer
}

func NewSettlementService(db *sqlx.DB, store *store.ContestStore, ledger *ledger.Ledger, observers ...Observer) *SettlementService {
	return &SettlementService{db: db, store: store, ledger: ledger, observers: observers}
}

type WinnerSummary struct {
	Rank        int             `json:"rank"`
	UserID      uuid.UUID       `json:"user_id"`
	Score       int             `json:"score"`
	PrizeAmount decimal.Decimal `json:"prize_amount"`
}

type ResolveResult struct {
	TotalEntries int             `json:"total_entries"`
	WinnerCount  int             `json:"winner_count"`
	Winners      []WinnerSummary `json:"winners"`
}

// ResolveContest scores and ranks every entry and marks the contest
// resolved. Requires a locked contest, every choice answered and at least
// one entry. Resolving with fewer than the minimum participants succeeds
// with an empty winner list.
func (s *SettlementService) ResolveContest(ctx context.Context, id uuid.UUID) (*ResolveResult, error) {
	var result *ResolveResult
	var resolved *contest.Contest

	err := withTxRetry(contest.OpResolve, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		c, err := s.store.GetContestTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.CheckTransition(contest.OpResolve); err != nil {
			return err
		}
		if missing := c.UnansweredChoices(); len(missing) > 0 {
			return &contest.PartialInputError{ChoiceIDs: missing}
		}

		entries, err := s.store.GetEntriesTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return &contest.PreconditionError{Op: contest.OpResolve, Rule: "contest has no entries to score"}
		}

		for i := range entries {
			entries[i].FinalScore = scoring.Score(entries[i].Picks, c.Choices)
		}
		ranked := scoring.Allocate(entries, c.PrizePool)

		var winners []WinnerSummary
		for i := range ranked {
			if err := s.store.UpdateEntrySettlement(ctx, tx, &ranked[i]); err != nil {
				return err
			}
			if ranked[i].IsWinner {
				winners = append(winners, WinnerSummary{
					Rank:        utils.OrZero(ranked[i].WinnerRank),
					UserID:      ranked[i].UserID,
					Score:       ranked[i].FinalScore,
					PrizeAmount: ranked[i].PrizeAmount,
				})
			}
		}

		c.ApplyStatus(contest.StatusResolved)
		c.TotalEntries = len(ranked)
		c.WinnerCount = len(winners)
		if err := s.store.UpdateContest(ctx, tx, c); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		resolved = c
		result = &ResolveResult{
			TotalEntries: len(ranked),
			WinnerCount:  len(winners),
			Winners:      winners,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	notifyAll(ctx, s.observers, resolved, contest.OpResolve)
	return result, nil
}

type CancelResult struct {
	RefundedCount int `json:"refunded_count"`
}

// CancelContest aborts a draft or published contest, refunding every entry
// fee. Refund credit, refund record, entry status and contest status all
// commit together or not at all.
func (s *SettlementService) CancelContest(ctx context.Context, id uuid.UUID) (*CancelResult, error) {
	var result *CancelResult
	var cancelled *contest.Contest

	err := withTxRetry(contest.OpCancel, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		c, err := s.store.GetContestTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.CheckTransition(contest.OpCancel); err != nil {
			return err
		}

		entries, err := s.store.GetEntriesTx(ctx, tx, id)
		if err != nil {
			return err
		}

		refunded := 0
		for i := range entries {
			e := &entries[i]
			if e.EntryFee.IsPositive() {
				if err := s.ledger.Credit(ctx, tx, e.UserID, e.EntryFee); err != nil {
					return fmt.Errorf("refund entry %s: %w", e.ID, err)
				}
				refund := contest.Transaction{
					ID:          uuid.New(),
					UserID:      e.UserID,
					Type:        contest.TransactionRefund,
					Amount:      e.EntryFee,
					ContestID:   &c.ID,
					Description: fmt.Sprintf("refund: cancelled contest %s", c.ID),
					Reference:   fmt.Sprintf("refund:%s:%s", c.ID, e.UserID),
					Status:      contest.TransactionCompleted,
					CreatedAt:   time.Now().UTC(),
				}
				if err := s.store.CreateTransaction(ctx, tx, &refund); err != nil {
					return err
				}
				refunded++
			}

			e.Status = contest.EntryRefunded
			if err := s.store.UpdateEntrySettlement(ctx, tx, e); err != nil {
				return err
			}
		}

		c.ApplyStatus(contest.StatusCancelled)
		if err := s.store.UpdateContest(ctx, tx, c); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		cancelled = c
		result = &CancelResult{RefundedCount: refunded}
		return nil
	})
	if err != nil {
		return nil, err
	}

	notifyAll(ctx, s.observers, cancelled, contest.OpCancel)
	return result, nil
}

type PayoutResult struct {
	PaidCount int `json:"paid_count"`
}

// PayoutWinners credits each winner's prize amount. Only legal once per
// resolved contest; the paid_out flag is the in-store guard and the payout
// reference key backs it up at the ledger record level.
func (s *SettlementService) PayoutWinners(ctx context.Context, id uuid.UUID) (*PayoutResult, error) {
	var result *PayoutResult
	var paidOut *contest.Contest

	err := withTxRetry(contest.OpPayout, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		c, err := s.store.GetContestTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.CheckTransition(contest.OpPayout); err != nil {
			return err
		}

		entries, err := s.store.GetEntriesTx(ctx, tx, id)
		if err != nil {
			return err
		}

		paid := 0
		for i := range entries {
			e := &entries[i]
			if !e.IsWinner || !e.PrizeAmount.IsPositive() {
				continue
			}
			if err := s.ledger.Credit(ctx, tx, e.UserID, e.PrizeAmount); err != nil {
				return fmt.Errorf("pay out entry %s: %w", e.ID, err)
			}
			payout := contest.Transaction{
				ID:          uuid.New(),
				UserID:      e.UserID,
				Type:        contest.TransactionPayout,
				Amount:      e.PrizeAmount,
				ContestID:   &c.ID,
				Description: fmt.Sprintf("payout: rank %d in contest %s", utils.OrZero(e.WinnerRank), c.ID),
				Reference:   fmt.Sprintf("payout:%s:%s", c.ID, e.UserID),
				Status:      contest.TransactionCompleted,
				CreatedAt:   time.Now().UTC(),
			}
			if err := s.store.CreateTransaction(ctx, tx, &payout); err != nil {
				return err
			}
			paid++
		}

		c.PaidOut = true
		if err := s.store.UpdateContest(ctx, tx, c); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		paidOut = c
		result = &PayoutResult{PaidCount: paid}
		return nil
	})
	if err != nil {
		return nil, err
	}

	notifyAll(ctx, s.observers, paidOut, contest.OpPayout)
	return result, nil
}

type DeleteResult struct {
	Deleted bool `json:"deleted"`
}

// DeleteContest removes the contest, its entries and its ledger records.
// Only draft and cancelled contests can be deleted. There is no soft-delete
// tier: this is a deliberate simplification, deletion is irreversible.
func (s *SettlementService) DeleteContest(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	var deleted *contest.Contest

	err := withTxRetry(contest.OpDelete, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		c, err := s.store.GetContestTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.CheckTransition(contest.OpDelete); err != nil {
			return err
		}

		if err := s.store.DeleteContestCascade(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		deleted = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	notifyAll(ctx, s.observers, deleted, contest.OpDelete)
	return &DeleteResult{Deleted: true}, nil
}
