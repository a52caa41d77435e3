package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

type Account struct {
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Ledger holds per-user balances. Balances move only through Credit/Debit,
// always inside a transaction the caller owns, so a balance change commits
// or aborts together with the records that explain it.
type Ledger struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Credit(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("credit amount must not be negative, got %s", amount)
	}

	account, err := l.getAccountTx(ctx, tx, userID)
	if err != nil {
		return err
	}

	account.Balance = account.Balance.Add(amount)
	return l.saveAccountTx(ctx, tx, account)
}

func (l *Ledger) Debit(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("debit amount must not be negative, got %s", amount)
	}

	account, err := l.getAccountTx(ctx, tx, userID)
	if err != nil {
		return err
	}

	if account.Balance.LessThan(amount) {
		return fmt.Errorf("%w: balance %s, need %s", ErrInsufficientFunds, account.Balance, amount)
	}

	account.Balance = account.Balance.Sub(amount)
	return l.saveAccountTx(ctx, tx, account)
}

// Balance returns the current balance, zero for users without an account yet.
func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var account Account
	err := l.db.GetContext(ctx, &account, "SELECT * FROM accounts WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get account: %w", err)
	}
	return account.Balance, nil
}

func (l *Ledger) getAccountTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*Account, error) {
	var account Account
	err := tx.GetContext(ctx, &account, "SELECT * FROM accounts WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &Account{UserID: userID, Balance: decimal.Zero}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

func (l *Ledger) saveAccountTx(ctx context.Context, tx *sqlx.Tx, account *Account) error {
	account.UpdatedAt = time.Now().UTC()
	_, err := tx.NamedExecContext(ctx, `INSERT INTO accounts (user_id, balance, updated_at)
		VALUES (:user_id, :balance, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at`, account)
	if err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	return nil
}
