package storage

import (
	"context"
	"fmt"
	"time"
)

// TrainerStats holds dashboard counters for one trainer.
type TrainerStats struct {
	Students      int64          `json:"students"`
	Templates     int64          `json:"templates"`
	PendingAwards int64          `json:"pending_awards"`
	ApprovedXP    int64          `json:"approved_xp"`
	EarliestAward *time.Time     `json:"earliest_award"`
	LatestAward   *time.Time     `json:"latest_award"`
	TopCategories []CategoryStat `json:"top_categories"`
}

// CategoryStat counts templates in one category.
type CategoryStat struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// GetTrainerStats returns aggregate statistics for a trainer's data.
func (db *DB) GetTrainerStats(ctx context.Context, trainerID string) (*TrainerStats, error) {
	stats := &TrainerStats{TopCategories: []CategoryStat{}}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM student_trainer WHERE trainer_id = $1`, trainerID,
	).Scan(&stats.Students)
	if err != nil {
		return nil, fmt.Errorf("counting students: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workout_templates WHERE trainer_id = $1`, trainerID,
	).Scan(&stats.Templates)
	if err != nil {
		return nil, fmt.Errorf("counting templates: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE status = 'pending'),
		        COALESCE(SUM(amount) FILTER (WHERE status = 'approved'), 0),
		        MIN(created_at), MAX(created_at)
		 FROM xp_logs WHERE trainer_id = $1`, trainerID,
	).Scan(&stats.PendingAwards, &stats.ApprovedXP, &stats.EarliestAward, &stats.LatestAward)
	if err != nil {
		return nil, fmt.Errorf("summarizing awards: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT category, COUNT(*)
		 FROM workout_templates
		 WHERE trainer_id = $1
		 GROUP BY category
		 ORDER BY COUNT(*) DESC, category`, trainerID)
	if err != nil {
		return nil, fmt.Errorf("querying template categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s CategoryStat
		if err := rows.Scan(&s.Category, &s.Count); err != nil {
			return nil, fmt.Errorf("scanning category stat: %w", err)
		}
		stats.TopCategories = append(stats.TopCategories, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
