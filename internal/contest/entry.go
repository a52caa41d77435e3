package contest

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EntryStatus string

const (
	EntryActive   EntryStatus = "active"
	EntryRefunded EntryStatus = "refunded"
)

// PickList holds one participant's answers, aligned positionally with the
// contest's choices. Stored as a JSON column.
type PickList []Answer

func (p PickList) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *PickList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	case nil:
		*p = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into PickList", src)
	}
}

type ParticipantEntry struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	ContestID uuid.UUID       `db:"contest_id" json:"contest_id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Picks     PickList        `db:"picks" json:"picks"`
	EntryTime time.Time       `db:"entry_time" json:"entry_time"`
	EntryFee  decimal.Decimal `db:"entry_fee" json:"entry_fee"`

	// Settlement fields, written only by the settlement coordinator.
	FinalScore  int             `db:"final_score" json:"final_score"`
	IsWinner    bool            `db:"is_winner" json:"is_winner"`
	WinnerRank  *int            `db:"winner_rank" json:"winner_rank"`
	PrizeAmount decimal.Decimal `db:"prize_amount" json:"prize_amount"`
	Status      EntryStatus     `db:"status" json:"status"`
}
