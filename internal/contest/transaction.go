package contest

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionRefund   TransactionType = "refund"
	TransactionPayout   TransactionType = "payout"
	TransactionEntryFee TransactionType = "entry_fee"
	TransactionDeposit  TransactionType = "deposit"
)

// TransactionCompleted is the only status a ledger record ever carries:
// records are written in the same transaction as the balance change.
const TransactionCompleted = "completed"

// Transaction is one append-only ledger record. Never mutated after creation.
type Transaction struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Type      TransactionType `db:"type" json:"type"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	ContestID *uuid.UUID      `db:"contest_id" json:"contest_id"`

	Description string `db:"description" json:"description"`

	// Reference is unique per logical money movement, e.g.
	// "refund:<contestID>:<userID>". A replayed settlement that slips past
	// the status guard trips the unique index instead of crediting twice.
	Reference string `db:"reference" json:"reference"`

	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
