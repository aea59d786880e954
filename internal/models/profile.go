package models

import "time"

// Roles stored in profiles.role.
const (
	RoleTrainer = "trainer"
	RoleStudent = "student"
)

// Profile is a row of the profiles table.
type Profile struct {
	ID           string    `json:"id"`
	Login        string    `json:"login"`
	FullName     string    `json:"full_name"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	Role         string    `json:"role"`
	Announcement string    `json:"announcement,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastSeen     time.Time `json:"last_seen"`
}

// StudentLink is a row of student_trainer joined with the student's profile.
type StudentLink struct {
	StudentID string    `json:"student_id"`
	TrainerID string    `json:"trainer_id"`
	PlanName  string    `json:"plan_name"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
