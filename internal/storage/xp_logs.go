package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/ironpro/internal/models"
)

const awardSelect = `SELECT x.id, x.student_id, x.trainer_id, x.amount, x.status, x.created_at, x.reviewed_at,
	COALESCE(p.full_name, ''), COALESCE(p.avatar_url, '')
	FROM xp_logs x
	LEFT JOIN profiles p ON p.id = x.student_id`

func scanAward(row rowScanner) (*models.XPAward, error) {
	var a models.XPAward
	err := row.Scan(&a.ID, &a.StudentID, &a.TrainerID, &a.Amount, &a.Status, &a.CreatedAt, &a.ReviewedAt,
		&a.StudentName, &a.StudentAvatar)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// InsertAward records an XP award. Awards are keyed by ID so a resubmitted
// award is ignored; inserted reports whether a new row was written.
func (db *DB) InsertAward(ctx context.Context, a models.XPAward) (inserted bool, err error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = models.XPPending
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO xp_logs (id, student_id, trainer_id, amount, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		a.ID, a.StudentID, a.TrainerID, a.Amount, a.Status, a.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("inserting award %s: %w", a.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetAward returns a single award by ID.
func (db *DB) GetAward(ctx context.Context, id string) (*models.XPAward, error) {
	a, err := scanAward(db.Pool.QueryRow(ctx, awardSelect+` WHERE x.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "award "+id)
	}
	return a, nil
}

// ListAwards returns a trainer's awards in insertion order. An empty status
// returns every status.
func (db *DB) ListAwards(ctx context.Context, trainerID string, status models.XPStatus) ([]models.XPAward, error) {
	return db.queryAwards(ctx,
		awardSelect+` WHERE x.trainer_id = $1 AND ($2 = '' OR x.status = $2)
		ORDER BY x.created_at, x.id`,
		trainerID, string(status))
}

// ListPendingAwards returns the awards waiting for review, newest first.
func (db *DB) ListPendingAwards(ctx context.Context, trainerID string) ([]models.XPAward, error) {
	return db.queryAwards(ctx,
		awardSelect+` WHERE x.trainer_id = $1 AND x.status = 'pending'
		ORDER BY x.created_at DESC, x.id`,
		trainerID)
}

func (db *DB) queryAwards(ctx context.Context, sql string, args ...any) ([]models.XPAward, error) {
	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying awards: %w", err)
	}
	defer rows.Close()

	result := []models.XPAward{}
	for rows.Next() {
		a, err := scanAward(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning award: %w", err)
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// SetAwardStatus moves a pending award to its reviewed status. Returns
// ErrNotFound if the award does not belong to the trainer and ErrConflict if
// it was already reviewed.
func (db *DB) SetAwardStatus(ctx context.Context, trainerID, id string, status models.XPStatus, at time.Time) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE xp_logs SET status = $3, reviewed_at = $4
		 WHERE id = $1 AND trainer_id = $2 AND status = 'pending'`,
		id, trainerID, string(status), at)
	if err != nil {
		return fmt.Errorf("updating award %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM xp_logs WHERE id = $1 AND trainer_id = $2)`,
		id, trainerID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking award %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("award %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("award %s: %w", id, ErrConflict)
}
