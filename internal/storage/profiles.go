package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/meltforce/ironpro/internal/models"
)

const profileColumns = `id, login, full_name, avatar_url, role, announcement, created_at, last_seen`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.Login, &p.FullName, &p.AvatarURL, &p.Role, &p.Announcement, &p.CreatedAt, &p.LastSeen)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOrCreateProfile finds or creates a profile by network login name.
// Updates last_seen and full_name on each call.
func (db *DB) GetOrCreateProfile(ctx context.Context, login, displayName string) (*models.Profile, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO profiles (id, login, full_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (login) DO UPDATE
			SET last_seen = NOW(), full_name = COALESCE(NULLIF($3, ''), profiles.full_name)
		RETURNING `+profileColumns,
		uuid.NewString(), login, displayName)
	p, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("upserting profile %s: %w", login, err)
	}
	return p, nil
}

// GetProfile returns a profile by ID.
func (db *DB) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	p, err := scanProfile(db.Pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "profile "+id)
	}
	return p, nil
}

// GetProfileByLogin returns a profile by login name (case-insensitive).
func (db *DB) GetProfileByLogin(ctx context.Context, login string) (*models.Profile, error) {
	p, err := scanProfile(db.Pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE lower(login) = lower($1)`, login))
	if err != nil {
		return nil, notFound(err, "profile "+login)
	}
	return p, nil
}

// SetRole changes a profile's role.
func (db *DB) SetRole(ctx context.Context, id, role string) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE profiles SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return fmt.Errorf("setting role for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetAnnouncement stores the notice a trainer shows to all students.
func (db *DB) SetAnnouncement(ctx context.Context, trainerID, text string) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE profiles SET announcement = $2 WHERE id = $1`, trainerID, text)
	if err != nil {
		return fmt.Errorf("setting announcement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %s: %w", trainerID, ErrNotFound)
	}
	return nil
}
