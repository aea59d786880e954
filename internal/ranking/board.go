package ranking

import (
	"time"

	"github.com/meltforce/ironpro/internal/models"
)

// Board is everything the trainer ranking view shows at once.
type Board struct {
	Month            Window                `json:"month"`
	MonthRanking     []models.RankingEntry `json:"month_ranking"`
	Challenge        *models.Competition   `json:"challenge,omitempty"`
	ChallengeWindow  *Window               `json:"challenge_window,omitempty"`
	ChallengeRanking []models.RankingEntry `json:"challenge_ranking"`
	Pending          []models.XPAward      `json:"pending"`
}

// BuildBoard computes the monthly and challenge rankings from the same set of
// awards. active may be nil when the trainer has no running challenge.
func BuildBoard(now time.Time, awards, pending []models.XPAward, active *models.Competition) Board {
	month := MonthWindow(now)
	b := Board{
		Month:            month,
		MonthRanking:     Aggregate(awards, month.Start, month.End),
		ChallengeRanking: []models.RankingEntry{},
		Pending:          pending,
	}
	if b.Pending == nil {
		b.Pending = []models.XPAward{}
	}
	if active != nil {
		w := ChallengeWindow(*active)
		b.Challenge = active
		b.ChallengeWindow = &w
		b.ChallengeRanking = Aggregate(awards, w.Start, w.End)
	}
	return b
}
