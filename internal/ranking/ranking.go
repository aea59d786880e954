// Package ranking turns XP award logs into leaderboards.
package ranking

import (
	"sort"
	"time"

	"github.com/meltforce/ironpro/internal/models"
)

// Window is an inclusive time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies in [Start, End].
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// MonthWindow returns the calendar month containing now, from the first day
// at 00:00:00 to the last day at 23:59:59, in now's location.
func MonthWindow(now time.Time) Window {
	y, m, _ := now.Date()
	loc := now.Location()
	return Window{
		Start: time.Date(y, m, 1, 0, 0, 0, 0, loc),
		End:   time.Date(y, m+1, 0, 23, 59, 59, 0, loc),
	}
}

// ChallengeWindow returns the window of a competition.
func ChallengeWindow(c models.Competition) Window {
	return Window{Start: c.StartDate, End: c.EndDate}
}

// Aggregate sums approved awards per student inside [windowStart, windowEnd]
// and returns them sorted by total XP, highest first. Students tied on XP
// keep the order in which they first appear in awards. Records with no
// student, a non-positive amount or no timestamp are skipped.
//
// When a student's awards carry different display data, the last non-empty
// value seen wins.
func Aggregate(awards []models.XPAward, windowStart, windowEnd time.Time) []models.RankingEntry {
	w := Window{Start: windowStart, End: windowEnd}
	entries := make([]models.RankingEntry, 0)
	index := make(map[string]int)

	for _, a := range awards {
		if a.Status != models.XPApproved || !wellFormed(a) || !w.Contains(a.CreatedAt) {
			continue
		}
		i, ok := index[a.StudentID]
		if !ok {
			i = len(entries)
			index[a.StudentID] = i
			entries = append(entries, models.RankingEntry{StudentID: a.StudentID})
		}
		e := &entries[i]
		e.TotalXP += a.Amount
		if a.StudentName != "" {
			e.DisplayName = a.StudentName
		}
		if a.StudentAvatar != "" {
			e.AvatarRef = a.StudentAvatar
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalXP > entries[j].TotalXP
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func wellFormed(a models.XPAward) bool {
	return a.StudentID != "" && a.Amount > 0 && !a.CreatedAt.IsZero()
}
