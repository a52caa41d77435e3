package service

import (
	"context"
	"testing"
	"time"

	"github.com/dkrasnov/pickpool/internal/contest"
	"github.com/dkrasnov/pickpool/internal/ledger"
	"github.com/dkrasnov/pickpool/internal/store"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

type fixture struct {
	db         *sqlx.DB
	store      *store.ContestStore
	ledger     *ledger.Ledger
	contests   *ContestService
	settlement *SettlementService
	entries    *EntryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	contestStore := store.NewContestStore(db)
	balances := ledger.New(db)

	return &fixture{
		db:         db,
		store:      contestStore,
		ledger:     balances,
		contests:   NewContestService(db, contestStore),
		settlement: NewSettlementService(db, contestStore, balances),
		entries:    NewEntryService(db, contestStore, balances),
	}
}

func (f *fixture) createContest(t *testing.T, entryFee int64, choiceCount int) *contest.Contest {
	t.Helper()

	choices := make([]ChoiceInput, choiceCount)
	for i := range choices {
		choices[i] = ChoiceInput{OptionA: "Option A", OptionB: "Option B"}
	}

	c, err := f.contests.CreateContest(context.Background(), "Test contest",
		decimal.NewFromInt(entryFee), decimal.NewFromInt(1000), choices)
	require.NoError(t, err)
	return c
}

func (f *fixture) fundUser(t *testing.T, userID uuid.UUID, amount int64) {
	t.Helper()
	_, err := f.entries.Deposit(context.Background(), userID, decimal.NewFromInt(amount))
	require.NoError(t, err)
}

// enter funds the user and submits picks through the participant flow.
func (f *fixture) enter(t *testing.T, c *contest.Contest, picks []contest.Answer) uuid.UUID {
	t.Helper()

	userID := uuid.New()
	if c.EntryFee.IsPositive() {
		f.fundUser(t, userID, c.EntryFee.IntPart())
	}
	_, err := f.entries.SubmitEntry(context.Background(), c.ID, userID, picks)
	require.NoError(t, err)
	return userID
}

// insertEntry writes an entry row directly, bypassing the participant flow,
// for tests that need a controlled entry time.
func (f *fixture) insertEntry(t *testing.T, contestID, userID uuid.UUID, picks contest.PickList, entryTime time.Time, fee int64) {
	t.Helper()

	tx, err := f.db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()

	e := &contest.ParticipantEntry{
		ID:          uuid.New(),
		ContestID:   contestID,
		UserID:      userID,
		Picks:       picks,
		EntryTime:   entryTime,
		EntryFee:    decimal.NewFromInt(fee),
		PrizeAmount: decimal.Zero,
		Status:      contest.EntryActive,
	}
	require.NoError(t, f.store.CreateEntry(context.Background(), tx, e))
	require.NoError(t, tx.Commit())
}

func (f *fixture) publish(t *testing.T, c *contest.Contest) {
	t.Helper()
	_, err := f.contests.PublishContest(context.Background(), c.ID)
	require.NoError(t, err)
}

func (f *fixture) lock(t *testing.T, c *contest.Contest) {
	t.Helper()
	_, err := f.contests.LockContest(context.Background(), c.ID)
	require.NoError(t, err)
}

func (f *fixture) answerAll(t *testing.T, c *contest.Contest, answer contest.Answer) {
	t.Helper()
	for _, choice := range c.Choices {
		_, err := f.contests.SetChoiceAnswer(context.Background(), c.ID, choice.ID, answer)
		require.NoError(t, err)
	}
}
