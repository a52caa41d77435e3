package contest

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusLocked    Status = "locked"
	StatusResolved  Status = "resolved"
	StatusCancelled Status = "cancelled"
)

type Answer string

const (
	AnswerA     Answer = "A"
	AnswerB     Answer = "B"
	AnswerUnset Answer = ""
)

// Choice is one A/B question within a contest.
type Choice struct {
	ID            uuid.UUID `json:"id"`
	OptionA       string    `json:"option_a"`
	OptionB       string    `json:"option_b"`
	CorrectAnswer Answer    `json:"correct_answer"`
}

// ChoiceList is stored as a single JSON column, ordering is significant:
// participant picks align with choices by position.
type ChoiceList []Choice

func (c ChoiceList) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *ChoiceList) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	case nil:
		*c = nil
		return nil
	default:
		return fmt.Errorf("cannot scan %T into ChoiceList", src)
	}
}

type Contest struct {
	ID      uuid.UUID  `db:"id" json:"id"`
	Title   string     `db:"title" json:"title"`
	Choices ChoiceList `db:"choices" json:"choices"`

	// Status is the single source of truth; the bools below mirror it for
	// legacy readers and must never be written independently.
	Status    Status `db:"status" json:"status"`
	Published bool   `db:"published" json:"published"`
	Locked    bool   `db:"locked" json:"locked"`
	Resolved  bool   `db:"resolved" json:"resolved"`
	Cancelled bool   `db:"cancelled" json:"cancelled"`
	PaidOut   bool   `db:"paid_out" json:"paid_out"`

	EntryFee         decimal.Decimal `db:"entry_fee" json:"entry_fee"`
	PrizePool        decimal.Decimal `db:"prize_pool" json:"prize_pool"`
	ParticipantCount int             `db:"participant_count" json:"participant_count"`
	TotalEntries     int             `db:"total_entries" json:"total_entries"`
	WinnerCount      int             `db:"winner_count" json:"winner_count"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ApplyStatus sets the canonical status and keeps the mirror flags in sync.
func (c *Contest) ApplyStatus(s Status) {
	c.Status = s
	c.Published = s != StatusDraft
	c.Locked = s == StatusLocked
	c.Resolved = s == StatusResolved
	c.Cancelled = s == StatusCancelled
}

// UnansweredChoices returns the ids of choices still missing a correct answer.
func (c *Contest) UnansweredChoices() []uuid.UUID {
	var missing []uuid.UUID
	for _, choice := range c.Choices {
		if choice.CorrectAnswer == AnswerUnset {
			missing = append(missing, choice.ID)
		}
	}
	return missing
}

// FindChoice returns a pointer into c.Choices, or nil if the id is unknown.
func (c *Contest) FindChoice(choiceID uuid.UUID) *Choice {
	for i := range c.Choices {
		if c.Choices[i].ID == choiceID {
			return &c.Choices[i]
		}
	}
	return nil
}
