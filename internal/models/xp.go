package models

import "time"

// XPStatus is the review state of an XP award.
type XPStatus string

const (
	XPPending  XPStatus = "pending"
	XPApproved XPStatus = "approved"
	XPRejected XPStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s XPStatus) Valid() bool {
	switch s {
	case XPPending, XPApproved, XPRejected:
		return true
	}
	return false
}

// XPAward is a row of the xp_logs table. StudentName and StudentAvatar are
// denormalized from the student's profile when the award is read.
type XPAward struct {
	ID            string     `json:"id"`
	StudentID     string     `json:"student_id"`
	TrainerID     string     `json:"trainer_id"`
	Amount        int        `json:"amount"`
	Status        XPStatus   `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	StudentName   string     `json:"student_name,omitempty"`
	StudentAvatar string     `json:"student_avatar,omitempty"`
}

// RankingEntry is one leaderboard row. Never persisted.
type RankingEntry struct {
	Rank        int    `json:"rank"`
	StudentID   string `json:"student_id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
	TotalXP     int    `json:"total_xp"`
}

// Competition is a trainer-defined challenge window.
type Competition struct {
	ID        string    `json:"id"`
	TrainerID string    `json:"trainer_id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
