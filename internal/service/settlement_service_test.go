package service

import (
	"context"
	"testing"
	"time"

	"github.com/dkrasnov/pickpool/internal/contest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveContest(t *testing.T) {
	f := newFixture(t)
	c := f.createContest(t, 50, 2)
	f.publish(t, c)

	// Four distinct outcomes: 2, 1, 1 and 0 correct picks. The two ties are
	// separated by submission order.
	u1 := f.enter(t, c, []contest.Answer{contest.AnswerA, contest.AnswerA})
	u2 := f.enter(t, c, []contest.Answer{contest.AnswerA, contest.AnswerB})
	u3 := f.enter(t, c, []contest.Answer{contest.AnswerB, contest.AnswerA})
	u4 := f.enter(t, c, []contest.Answer{contest.AnswerB, contest.AnswerB})

	f.lock(t, c)
	f.answerAll(t, c, contest.AnswerA)

	result, err := f.settlement.ResolveContest(context.Background(), c.ID)
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalEntries)
	assert.Equal(t, 3, result.WinnerCount)
	require.Len(t, result.Winners, 3)

	assert.Equal(t, 1, result.Winners[0].Rank)
	assert.Equal(t, u1, result.Winners[0].UserID)
	assert.Equal(t, 2, result.Winners[0].Score)
	assert.True(t, result.Winners[0].PrizeAmount.Equal(decimal.NewFromInt(500)))

	assert.Equal(t, 2, result.Winners[1].Rank)
	assert.Equal(t, u2, result.Winners[1].UserID, "earlier of the tied entries ranks higher")
	assert.True(t, result.Winners[1].PrizeAmount.Equal(decimal.NewFromInt(300)))

	assert.Equal(t, 3, result.Winners[2].Rank)
	assert.Equal(t, u3, result.Winners[2].UserID)
	assert.True(t, result.Winners[2].PrizeAmount.Equal(decimal.NewFromInt(200)))

	fetched, err := f.store.GetContest(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, contest.StatusResolved, fetched.Status)
	assert.True(t, fetched.Resolved)
	assert.Equal(t, 4, fetched.TotalEntries)
	assert.Equal(t, 3, fetched.WinnerCount)

	entries, err := f.store.GetEntries(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for _, e := range entries {
		if e.UserID == u4 {
			assert.False(t, e.IsWinner)
			assert.Nil(t, e.WinnerRank)
			assert.Equal(t, 0, e.FinalScore)
			assert.True(t, e.PrizeAmount.IsZero())
		}
	}
}

func TestResolveContestTwice(t *testing.T) {
	f := newFixture(t)
	c := f.createContest(t, 50, 2)
	f.publish(t, c)
	for i := 0; i < 4; i++ {
		f.enter(t, c, []contest.Answer{contest.AnswerA, contest.AnswerB})
	}
	f.lock(t, c)
	f.answerAll(t, c, contest.AnswerA)

	_, err := f.settlement.ResolveContest(context.Background(), c.ID)
	require.NoError(t, err)

	before, err := f.store.GetEntries(context.Background(), c.ID)
	require.NoError(t, err)

	_, err = f.settlement.ResolveContest(context.Background(), c.ID)
	var precondition *contest.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, "contest already resolved", precondition.Rule)

	// The failed second attempt must not have touched any entry.
	after, err := f.store.GetEntries(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.Equal(t, before[i].FinalScore, after[i].FinalScore)
		assert.Equal(t, before[i].IsWinner, after[i].IsWinner)
		assert.True(t, before[i].PrizeAmount.Equal(after[i].PrizeAmount))
	}
}

func TestResolveBelowMinimumParticipants(t *testing.T) {
	f := newFixture(t)
	c := f.createContest(t, 50, 2)
	f.publish(t, c)
	for i := 0; i < 3; i++ {
		f.enter(t, c, []contest.Answer{contest.AnswerA, contest.AnswerA})
	}
	f.lock(t, c)
	f.answerAll(t, c, contest.AnswerA)

	result, err := f.settlement.ResolveContest(context.Background(), c.ID)
	require.NoError(t, err)

	// A small field still resolves, it just produces no winners.
	assert.Equal(t, 3, result.TotalEntries)
	assert.Equal(t, 0, result.WinnerCount)
	assert.Empty(t, result.Winners)

	fetched, err := f.store.GetContest(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, contest.StatusResolved, fetched.Status)
}

func TestResolveWithUnansweredChoice(t *testing.T) {
	f := newFixture(t)
	c := f.createContest(t, 50, 3)
	f.publish(t, c)
	for i := 0; i < 4; i++ {
		f.enter(t, c, []contest.Answer{contest.AnswerA, contest.AnswerA, contest.AnswerA})
	}
	f.lock(t, c)

	// Answer two of three; the resolve must name the one left unset.
	_, err := f.contests.SetChoiceAnswer(context.Background(), c.ID, c.Choices[0].ID, contest.AnswerA)
	require.NoError(t, err)
	_, err = f.contests.SetChoiceAnswer(context.Background(), c.ID, c.Choices[2].ID, contest.AnswerB)
	require.NoError(t, err)

	_, err = f.settlement.ResolveContest(context.Background(), c.ID)

	var partial *contest.PartialInputError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.ChoiceIDs, 1)
	assert.Equal(t, c.Choices[1].ID, partial.ChoiceIDs[0])

	fetched, err := f.store.GetContest(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, contest.StatusLocked, fetched.Status, "failed resolve must not move the contest")
}

func TestResolveWithoutEntries(t *testing.T) {
	f := newFixture(t)
	c := f.createContest(t, 50, 2)
	f.publish(t, c)
	f.lock(t, c)
	f.answerAll(t, c, contest.AnswerA)

	_, err := f.settlement.ResolveContest(context.Background(), c.ID)

	var precondition *contest.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Contains(t, precondition.Rule, "no entries")
}

func TestResolveTieBreakByEntryTime(t *testing.T) {
	f := newFixture(t)
	c := f.createContest(t, 0, 2)
	f.publish(t, c)

	base := time.Now().UTC()
	earlier := uuid.New()
	later := uuid.New()
	f.insertEntry(t, c.ID, later, contest.PickList{contest.AnswerA, contest.AnswerA}, base.Add(time.Second), 0)
	f.insertEntry(t, c.ID, earlier, contest.PickList{contest.AnswerA, contest.AnswerA}, base, 0)
	f.insertEntry(t, c.ID, uuid.New(), contest.PickList{contest.AnswerB, contest.AnswerA}, base, 0)
	f.insertEntry(t, c.ID, uuid.New(), contest.PickList{contest.AnswerB, contest.AnswerB}, base, 0)

	f.lock(t, c)
	f.answerAll(t, c, contest.AnswerA)

	result, err := f.settlement.ResolveContest(context.Background(), c.ID)
	require.NoError(t, err)

	require.Len(t, result.Winners, 3)
	assert.Equal(t, earlier, result.Winners[0].UserID, "entry submitted at T ranks above the one at T+1s")
	assert.Equal(t, later, result.Winners[1].UserID)
}

func TestCancelRefundsEntryFees(t *testing.T) {
	f := newFixture(t)
	c := f.createContest(t, 50, 2)
	f.publish(t, c)

	u1 := f.enter(t, c, []contest.Answer{contest.AnswerA, contest.AnswerA})
	u2 := f.enter(t, c, []contest.Answer{contest.AnswerB, contest.AnswerB})

	result, err := f.settlement.CancelContest(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.RefundedCount)

	fetched, err := f.store.GetContest(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, contest.StatusCancelled, fetched.Status)
	assert.True(t, fetched.Cancelled)

	entries, err := f.store.GetEntries(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, contest.EntryRefunded, e.Status)
	}

	// Conservation: refunds equal the fees captured, and the balances are
	// back where they started.
	txns, err := f.store.GetTransactionsByContest(context.Background(), c.ID)
	require.NoError(t, err)
	refundTotal := decimal.Zero
	refundCount := 0
	feeTotal := decimal.Zero
	for _, txn := range txns {
		switch txn.Type {
		case contest.TransactionRefund:
			refundTotal = refundTotal.Add(txn.Amount)
			refundCount++
		case contest.TransactionEntryFee:
			feeTotal = feeTotal.Add(txn.Amount)
		}
	}
	assert.Equal(t, 2, refundCount)
	assert.True(t, refundTotal.Equal(feeTotal), "refunds %s must equal captured fees %s", refundTotal, feeTotal)

	for _, userID := range []uuid.UUID{u1, u2} {
		balance, err := f.ledger.Balance(context.Background(), userID)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(50)), "user %s balance %s", userID, balance)
	}
}

func TestCancelLockedContestFails(t *testing.T) {
	f := newFixture(t)
	c := f.createContest(t, 50, 2)
	f.publish(t, c)
	f.lock(t, c)

	_, err := f.settlement.CancelContest(context.Background(), c.ID)

	var precondition *contest.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, "cannot cancel a locked contest", precondition.Rule)
}

func TestCancelTwice(t *testing.T) {
	f := newFixture(t)
	c := f.createContest(t, 50, 2)
	f.publish(t, c)
	u := f.enter(t, c, []contest.Answer{contest.AnswerA, contest.AnswerA})

	_, err := f.settlement.CancelContest(context.Background(), c.ID)
	require.NoError(t, err)

	_, err = f.settlement.CancelContest(context.Background(), c.ID)
	var precondition *contest.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, "contest already cancelled", precondition.Rule)

	// No double refund.
	balance, err := f.ledger.Balance(context.Background(), u)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(50)))
}

func TestDeletePublishedContestFails(t *testing.T) {
	f := newFixture(t)
	c := f.createContest(t, 50, 2)
	f.publish(t, c)

	_, err := f.settlement.DeleteContest(context.Background(), c.ID)

	var precondition *contest.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, "cannot delete a published contest", precondition.Rule)
}

func TestDeleteCancelledContest(t *testing.T) {
	f := newFixture(t)
	c := f.createContest(t, 50, 2)
	f.publish(t, c)
	f.enter(t, c, []contest.Answer{contest.AnswerA, contest.AnswerA})

	_, err := f.settlement.CancelContest(context.Background(), c.ID)
	require.NoError(t, err)

	result, err := f.settlement.DeleteContest(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, result.Deleted)

	_, err = f.store.GetContest(context.Background(), c.ID)
	assert.ErrorIs(t, err, contest.ErrNotFound)

	entries, err := f.store.GetEntries(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	txns, err := f.store.GetTransactionsByContest(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestDeleteDraftContest(t *testing.T) {
	f := newFixture(t)
	c := f.createContest(t, 50, 2)

	result, err := f.settlement.DeleteContest(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, result.Deleted)
}

func TestPayoutWinners(t *testing.T) {
	f := newFixture(t)
	c := f.createContest(t, 50, 2)
	f.publish(t, c)

	u1 := f.enter(t, c, []contest.Answer{contest.AnswerA, contest.AnswerA})
	u2 := f.enter(t, c, []contest.Answer{contest.AnswerA, contest.AnswerB})
	u3 := f.enter(t, c, []contest.Answer{contest.AnswerB, contest.AnswerA})
	u4 := f.enter(t, c, []contest.Answer{contest.AnswerB, contest.AnswerB})

	f.lock(t, c)
	f.answerAll(t, c, contest.AnswerA)

	_, err := f.settlement.ResolveContest(context.Background(), c.ID)
	require.NoError(t, err)

	// Resolve alone moves no money.
	for _, userID := range []uuid.UUID{u1, u2, u3, u4} {
		balance, err := f.ledger.Balance(context.Background(), userID)
		require.NoError(t, err)
		assert.True(t, balance.IsZero(), "user %s should still be at zero after resolve", userID)
	}

	result, err := f.settlement.PayoutWinners(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.PaidCount)

	b1, err := f.ledger.Balance(context.Background(), u1)
	require.NoError(t, err)
	assert.True(t, b1.Equal(decimal.NewFromInt(500)))

	b2, err := f.ledger.Balance(context.Background(), u2)
	require.NoError(t, err)
	assert.True(t, b2.Equal(decimal.NewFromInt(300)))

	b3, err := f.ledger.Balance(context.Background(), u3)
	require.NoError(t, err)
	assert.True(t, b3.Equal(decimal.NewFromInt(200)))

	b4, err := f.ledger.Balance(context.Background(), u4)
	require.NoError(t, err)
	assert.True(t, b4.IsZero())
}

func TestPayoutTwice(t *testing.T) {
	f := newFixture(t)
	c := f.createContest(t, 50, 2)
	f.publish(t, c)
	u1 := f.enter(t, c, []contest.Answer{contest.AnswerA, contest.AnswerA})
	for i := 0; i < 3; i++ {
		f.enter(t, c, []contest.Answer{contest.AnswerB, contest.AnswerB})
	}
	f.lock(t, c)
	f.answerAll(t, c, contest.AnswerA)

	_, err := f.settlement.ResolveContest(context.Background(), c.ID)
	require.NoError(t, err)

	_, err = f.settlement.PayoutWinners(context.Background(), c.ID)
	require.NoError(t, err)

	_, err = f.settlement.PayoutWinners(context.Background(), c.ID)
	var precondition *contest.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, "winners already paid out", precondition.Rule)

	balance, err := f.ledger.Balance(context.Background(), u1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(500)), "no double credit")
}

func TestPayoutRequiresResolved(t *testing.T) {
	f := newFixture(t)
	c := f.createContest(t, 50, 2)
	f.publish(t, c)
	f.lock(t, c)

	_, err := f.settlement.PayoutWinners(context.Background(), c.ID)

	var precondition *contest.PreconditionError
	require.ErrorAs(t, err, &precondition)
	assert.Equal(t, "cannot pay out a locked contest", precondition.Rule)
}
