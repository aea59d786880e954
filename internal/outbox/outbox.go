// Package outbox keeps pending XP awards on disk until the server accepts them.
package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/meltforce/ironpro/internal/models"
	_ "modernc.org/sqlite"
)

// Outbox is a SQLite queue of awards that could not be submitted.
type Outbox struct {
	db *sql.DB
}

// Open opens (or creates) the outbox database at dir/outbox.db.
func Open(dir string) (*Outbox, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating outbox dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "outbox.db"))
	if err != nil {
		return nil, fmt.Errorf("opening outbox db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS pending_awards (
		id          TEXT PRIMARY KEY,
		student_id  TEXT NOT NULL,
		trainer_id  TEXT NOT NULL,
		amount      INTEGER NOT NULL,
		created_at  TEXT NOT NULL,
		attempts    INTEGER NOT NULL DEFAULT 0,
		last_error  TEXT NOT NULL DEFAULT '',
		queued_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating outbox table: %w", err)
	}

	return &Outbox{db: db}, nil
}

// Enqueue stores an award. Enqueueing the same award twice keeps one copy.
func (o *Outbox) Enqueue(a models.XPAward, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := o.db.Exec(
		`INSERT INTO pending_awards (id, student_id, trainer_id, amount, created_at, last_error)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET last_error = excluded.last_error`,
		a.ID, a.StudentID, a.TrainerID, a.Amount, a.CreatedAt.UTC().Format(time.RFC3339Nano), msg,
	)
	if err != nil {
		return fmt.Errorf("queueing award %s: %w", a.ID, err)
	}
	return nil
}

// Pending returns the queued awards, oldest first.
func (o *Outbox) Pending() ([]models.XPAward, error) {
	rows, err := o.db.Query(
		`SELECT id, student_id, trainer_id, amount, created_at FROM pending_awards ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying outbox: %w", err)
	}
	defer rows.Close()

	var result []models.XPAward
	for rows.Next() {
		var (
			a       models.XPAward
			created string
		)
		if err := rows.Scan(&a.ID, &a.StudentID, &a.TrainerID, &a.Amount, &created); err != nil {
			return nil, fmt.Errorf("scanning outbox row: %w", err)
		}
		a.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at of %s: %w", a.ID, err)
		}
		a.Status = models.XPPending
		result = append(result, a)
	}
	return result, rows.Err()
}

// MarkFailed records a failed delivery attempt.
func (o *Outbox) MarkFailed(id string, cause error) error {
	_, err := o.db.Exec(
		`UPDATE pending_awards SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		cause.Error(), id)
	return err
}

// Remove deletes a delivered award.
func (o *Outbox) Remove(id string) error {
	_, err := o.db.Exec(`DELETE FROM pending_awards WHERE id = ?`, id)
	return err
}

// Close closes the outbox database.
func (o *Outbox) Close() error {
	return o.db.Close()
}

// Submitter delivers an award to the server.
type Submitter interface {
	SubmitAward(ctx context.Context, a models.XPAward) error
}

// FlushResult counts the outcome of a Flush.
type FlushResult struct {
	Sent     int
	Dropped  int
	Remained int
}

// Flush tries to deliver every queued award. Delivered awards are removed.
// Awards the server refuses permanently (isPermanent reports true) are
// dropped and logged; others stay queued for the next run.
func (o *Outbox) Flush(ctx context.Context, sub Submitter, isPermanent func(error) bool, log *slog.Logger) (FlushResult, error) {
	var res FlushResult
	pending, err := o.Pending()
	if err != nil {
		return res, err
	}

	for _, a := range pending {
		if err := ctx.Err(); err != nil {
			res.Remained += len(pending) - res.Sent - res.Dropped - res.Remained
			return res, err
		}
		err := sub.SubmitAward(ctx, a)
		switch {
		case err == nil:
			if err := o.Remove(a.ID); err != nil {
				return res, fmt.Errorf("removing delivered award %s: %w", a.ID, err)
			}
			res.Sent++
		case isPermanent != nil && isPermanent(err):
			log.Warn("dropping award refused by server", "award", a.ID, "error", err)
			if err := o.Remove(a.ID); err != nil {
				return res, fmt.Errorf("removing refused award %s: %w", a.ID, err)
			}
			res.Dropped++
		default:
			log.Warn("award still pending", "award", a.ID, "error", err)
			if err := o.MarkFailed(a.ID, err); err != nil {
				return res, fmt.Errorf("marking award %s: %w", a.ID, err)
			}
			res.Remained++
		}
	}
	return res, nil
}

// Recorder submits awards through sub and queues them in the outbox when
// delivery fails, so finishing a workout never loses the award.
type Recorder struct {
	Sub Submitter
	Box *Outbox
	Log *slog.Logger

	// Permanent reports errors that must not be retried later.
	Permanent func(error) bool

	// Queued is set when the last award went to the outbox.
	Queued bool
}

// RecordAward implements workout.AwardRecorder. It only fails when the award
// could neither be delivered nor queued, or the server refused it.
func (r *Recorder) RecordAward(ctx context.Context, a models.XPAward) error {
	r.Queued = false
	err := r.Sub.SubmitAward(ctx, a)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || (r.Permanent != nil && r.Permanent(err)) {
		return err
	}
	r.Log.Warn("submit failed, queueing award", "award", a.ID, "error", err)
	if qerr := r.Box.Enqueue(a, err); qerr != nil {
		return errors.Join(err, qerr)
	}
	r.Queued = true
	return nil
}
