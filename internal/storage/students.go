package storage

import (
	"context"
	"fmt"

	"github.com/meltforce/ironpro/internal/models"
)

// LinkStudent assigns a student to a trainer. A student has one trainer;
// linking again moves the student.
func (db *DB) LinkStudent(ctx context.Context, trainerID, studentID, planName string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO student_trainer (student_id, trainer_id, plan_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id) DO UPDATE
			SET trainer_id = EXCLUDED.trainer_id, plan_name = EXCLUDED.plan_name`,
		studentID, trainerID, planName)
	if err != nil {
		return fmt.Errorf("linking student %s: %w", studentID, err)
	}
	return nil
}

// UnlinkStudent removes a student from a trainer.
func (db *DB) UnlinkStudent(ctx context.Context, trainerID, studentID string) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM student_trainer WHERE student_id = $1 AND trainer_id = $2`,
		studentID, trainerID)
	if err != nil {
		return fmt.Errorf("unlinking student %s: %w", studentID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("student %s: %w", studentID, ErrNotFound)
	}
	return nil
}

// ListStudents returns a trainer's students ordered by name.
func (db *DB) ListStudents(ctx context.Context, trainerID string) ([]models.StudentLink, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT st.student_id, st.trainer_id, st.plan_name, p.full_name, p.avatar_url, st.created_at
		 FROM student_trainer st
		 JOIN profiles p ON p.id = st.student_id
		 WHERE st.trainer_id = $1
		 ORDER BY p.full_name, st.student_id`,
		trainerID)
	if err != nil {
		return nil, fmt.Errorf("querying students: %w", err)
	}
	defer rows.Close()

	result := []models.StudentLink{}
	for rows.Next() {
		var s models.StudentLink
		if err := rows.Scan(&s.StudentID, &s.TrainerID, &s.PlanName, &s.FullName, &s.AvatarURL, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning student: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// TrainerForStudent returns the ID of the student's trainer.
func (db *DB) TrainerForStudent(ctx context.Context, studentID string) (string, error) {
	var trainerID string
	err := db.Pool.QueryRow(ctx,
		`SELECT trainer_id FROM student_trainer WHERE student_id = $1`, studentID,
	).Scan(&trainerID)
	if err != nil {
		return "", notFound(err, "trainer for student "+studentID)
	}
	return trainerID, nil
}
