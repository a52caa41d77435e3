package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dkrasnov/pickpool/internal/contest"
	"github.com/dkrasnov/pickpool/internal/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ContestService owns the contest state machine: creation, draft edits and
// the non-terminal transitions. Terminal transitions (resolve, cancel,
// delete) live on SettlementService because they fan out across entries and
// the ledger.
type ContestService struct {
	db        *sqlx.DB
	store     *store.ContestStore
	observers []Observer
}

func NewContestService(db *sqlx.DB, store *store.ContestStore, observers ...Observer) *ContestService {
	return &ContestService{db: db, store: store, observers: observers}
}

type ChoiceInput struct {
	OptionA string
	OptionB string
}

func (s *ContestService) CreateContest(ctx context.Context, title string, entryFee, prizePool decimal.Decimal, choices []ChoiceInput) (*contest.Contest, error) {
	if title == "" {
		return nil, fmt.Errorf("contest title must not be empty")
	}
	if entryFee.IsNegative() || prizePool.IsNegative() {
		return nil, fmt.Errorf("entry fee and prize pool must not be negative")
	}

	c := &contest.Contest{
		ID:        uuid.New(),
		Title:     title,
		EntryFee:  entryFee,
		PrizePool: prizePool,
		CreatedAt: time.Now().UTC(),
	}
	c.ApplyStatus(contest.StatusDraft)

	for _, input := range choices {
		c.Choices = append(c.Choices, contest.Choice{
			ID:            uuid.New(),
			OptionA:       input.OptionA,
			OptionB:       input.OptionB,
			CorrectAnswer: contest.AnswerUnset,
		})
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.store.CreateContest(ctx, tx, c); err != nil {
		return nil, err
	}

	return c, tx.Commit()
}

type ContestData struct {
	Contest *contest.Contest
	Entries []contest.ParticipantEntry
}

func (s *ContestService) GetContestData(ctx context.Context, id uuid.UUID) (*ContestData, error) {
	c, err := s.store.GetContest(ctx, id)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.GetEntries(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ContestData{Contest: c, Entries: entries}, nil
}

func (s *ContestService) ListContests(ctx context.Context) ([]contest.Contest, error) {
	return s.store.ListContests(ctx)
}

func (s *ContestService) PublishContest(ctx context.Context, id uuid.UUID) (*contest.Contest, error) {
	return s.transition(ctx, id, contest.OpPublish, contest.StatusPublished)
}

func (s *ContestService) LockContest(ctx context.Context, id uuid.UUID) (*contest.Contest, error) {
	return s.transition(ctx, id, contest.OpLock, contest.StatusLocked)
}

// transition performs a status-only move: one transaction, re-read, rule
// check, status write.
func (s *ContestService) transition(ctx context.Context, id uuid.UUID, op contest.Operation, to contest.Status) (*contest.Contest, error) {
	var updated *contest.Contest

	err := withTxRetry(op, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		c, err := s.store.GetContestTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := c.CheckTransition(op); err != nil {
			return err
		}

		c.ApplyStatus(to)
		if err := s.store.UpdateContest(ctx, tx, c); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	notifyAll(ctx, s.observers, updated, op)
	return updated, nil
}

// SetChoiceAnswer records the correct answer for one choice of a locked
// contest. The contest status does not change; answers can be corrected
// until the contest is resolved.
func (s *ContestService) SetChoiceAnswer(ctx context.Context, contestID, choiceID uuid.UUID, answer contest.Answer) (*contest.Contest, error) {
	if answer != contest.AnswerA && answer != contest.AnswerB {
		return nil, fmt.Errorf("answer must be %q or %q, got %q", contest.AnswerA, contest.AnswerB, answer)
	}

	var updated *contest.Contest

	err := withTxRetry(contest.OpSetAnswer, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		c, err := s.store.GetContestTx(ctx, tx, contestID)
		if err != nil {
			return err
		}
		if err := c.CheckTransition(contest.OpSetAnswer); err != nil {
			return err
		}

		choice := c.FindChoice(choiceID)
		if choice == nil {
			return fmt.Errorf("choice %s: %w", choiceID, contest.ErrNotFound)
		}
		choice.CorrectAnswer = answer

		if err := s.store.UpdateContest(ctx, tx, c); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	notifyAll(ctx, s.observers, updated, contest.OpSetAnswer)
	return updated, nil
}
