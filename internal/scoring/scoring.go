package scoring

import (
	"sort"

	"github.com/dkrasnov/pickpool/internal/contest"
	"github.com/dkrasnov/pickpool/internal/utils"
	"github.com/shopspring/decimal"
)

// MinimumParticipants is the smallest field that produces winners. Below it
// a contest still resolves, just with an empty winner list.
const MinimumParticipants = 4

// Prize fractions for ranks 1-3.
var prizeWeights = []decimal.Decimal{
	decimal.New(5, -1),
	decimal.New(3, -1),
	decimal.New(2, -1),
}

// Score counts positions where the pick matches the published correct
// answer. Short or malformed pick lists contribute 0 for the positions they
// miss; nothing here can fail.
func Score(picks []contest.Answer, choices []contest.Choice) int {
	score := 0
	for i, choice := range choices {
		if choice.CorrectAnswer == contest.AnswerUnset {
			continue
		}
		if i >= len(picks) {
			break
		}
		if picks[i] == choice.CorrectAnswer {
			score++
		}
	}
	return score
}

// Allocate orders scored entries and assigns winner ranks and prize amounts
// from prizePool. Ordering is a stable sort on (-FinalScore, EntryTime), so
// an earlier entry wins any tie. The result covers every entry, winners and
// non-winners alike, so the caller can persist all settlement fields in one
// pass. The input slice is not modified.
func Allocate(entries []contest.ParticipantEntry, prizePool decimal.Decimal) []contest.ParticipantEntry {
	ranked := make([]contest.ParticipantEntry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		return ranked[i].EntryTime.Before(ranked[j].EntryTime)
	})

	for i := range ranked {
		ranked[i].IsWinner = false
		ranked[i].WinnerRank = nil
		ranked[i].PrizeAmount = decimal.Zero
	}

	if len(ranked) < MinimumParticipants {
		return ranked
	}

	winners := len(prizeWeights)
	if len(ranked) < winners {
		winners = len(ranked)
	}
	for i := 0; i < winners; i++ {
		ranked[i].IsWinner = true
		ranked[i].WinnerRank = utils.Ptr(i + 1)
		ranked[i].PrizeAmount = prizePool.Mul(prizeWeights[i])
	}

	return ranked
}
