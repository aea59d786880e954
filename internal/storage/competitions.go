package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meltforce/ironpro/internal/models"
)

const competitionColumns = `id, trainer_id, name, start_date, end_date, is_active, created_at`

func scanCompetition(row rowScanner) (*models.Competition, error) {
	var c models.Competition
	if err := row.Scan(&c.ID, &c.TrainerID, &c.Name, &c.StartDate, &c.EndDate, &c.IsActive, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ActiveCompetition returns the trainer's running challenge, or nil if there is none.
func (db *DB) ActiveCompetition(ctx context.Context, trainerID string) (*models.Competition, error) {
	c, err := scanCompetition(db.Pool.QueryRow(ctx,
		`SELECT `+competitionColumns+` FROM competitions
		 WHERE trainer_id = $1 AND is_active`, trainerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying active competition: %w", err)
	}
	return c, nil
}

// StartCompetition ends any running challenge of the trainer and starts a new
// one spanning [start, end].
func (db *DB) StartCompetition(ctx context.Context, trainerID, name string, start, end time.Time) (*models.Competition, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE competitions SET is_active = FALSE WHERE trainer_id = $1 AND is_active`,
		trainerID); err != nil {
		return nil, fmt.Errorf("ending previous competition: %w", err)
	}

	c, err := scanCompetition(tx.QueryRow(ctx,
		`INSERT INTO competitions (id, trainer_id, name, start_date, end_date, is_active)
		 VALUES ($1, $2, $3, $4, $5, TRUE)
		 RETURNING `+competitionColumns,
		uuid.NewString(), trainerID, name, start, end))
	if err != nil {
		return nil, fmt.Errorf("inserting competition: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing competition: %w", err)
	}
	return c, nil
}

// EndCompetition deactivates the trainer's running challenge.
func (db *DB) EndCompetition(ctx context.Context, trainerID string) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE competitions SET is_active = FALSE WHERE trainer_id = $1 AND is_active`,
		trainerID)
	if err != nil {
		return fmt.Errorf("ending competition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("active competition: %w", ErrNotFound)
	}
	return nil
}
