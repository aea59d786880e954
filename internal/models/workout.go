package models

import "time"

// Exercise is one entry of a workout plan.
type Exercise struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Equipment   string `json:"equipment,omitempty"`
	TargetSets  int    `json:"target_sets"`
	TargetReps  string `json:"target_reps"`
	RestSeconds int    `json:"rest_seconds"`
	DefaultLoad string `json:"default_load,omitempty"`
}

// WorkoutTemplate is a named plan in a trainer's library.
type WorkoutTemplate struct {
	ID        string     `json:"id"`
	TrainerID string     `json:"trainer_id"`
	Name      string     `json:"name"`
	Category  string     `json:"category"`
	Exercises []Exercise `json:"exercises"`
	CreatedAt time.Time  `json:"created_at"`
}
