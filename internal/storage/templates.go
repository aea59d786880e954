package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/meltforce/ironpro/internal/models"
)

// InsertTemplate stores a workout template for a trainer. An empty ID is
// replaced with a new UUID. Returns the stored template's ID.
func (db *DB) InsertTemplate(ctx context.Context, t models.WorkoutTemplate) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Exercises == nil {
		t.Exercises = []models.Exercise{}
	}
	exercises, err := json.Marshal(t.Exercises)
	if err != nil {
		return "", fmt.Errorf("marshaling exercises: %w", err)
	}
	_, err = db.Pool.Exec(ctx,
		`INSERT INTO workout_templates (id, trainer_id, name, category, exercises)
		 VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.TrainerID, t.Name, t.Category, exercises)
	if err != nil {
		return "", fmt.Errorf("inserting template %q: %w", t.Name, err)
	}
	return t.ID, nil
}

// ListTemplates returns a trainer's templates ordered by name.
func (db *DB) ListTemplates(ctx context.Context, trainerID string) ([]models.WorkoutTemplate, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, trainer_id, name, category, exercises, created_at
		 FROM workout_templates
		 WHERE trainer_id = $1
		 ORDER BY name, created_at`,
		trainerID)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	result := []models.WorkoutTemplate{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

// GetTemplate returns a single template by ID.
func (db *DB) GetTemplate(ctx context.Context, id string) (*models.WorkoutTemplate, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, trainer_id, name, category, exercises, created_at
		 FROM workout_templates WHERE id = $1`, id)
	t, err := scanTemplate(row)
	if err != nil {
		return nil, notFound(err, "template "+id)
	}
	return t, nil
}

// DeleteTemplate removes one of a trainer's templates.
func (db *DB) DeleteTemplate(ctx context.Context, trainerID, id string) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM workout_templates WHERE id = $1 AND trainer_id = $2`, id, trainerID)
	if err != nil {
		return fmt.Errorf("deleting template %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanTemplate(row rowScanner) (*models.WorkoutTemplate, error) {
	var (
		t   models.WorkoutTemplate
		raw []byte
	)
	if err := row.Scan(&t.ID, &t.TrainerID, &t.Name, &t.Category, &raw, &t.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &t.Exercises); err != nil {
		return nil, fmt.Errorf("decoding exercises of %s: %w", t.ID, err)
	}
	return &t, nil
}
