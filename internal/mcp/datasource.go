package mcp

import (
	"context"

	"github.com/meltforce/ironpro/internal/models"
	"github.com/meltforce/ironpro/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListAwards(ctx context.Context, trainerID string, status models.XPStatus) ([]models.XPAward, error)
	ListPendingAwards(ctx context.Context, trainerID string) ([]models.XPAward, error)
	ActiveCompetition(ctx context.Context, trainerID string) (*models.Competition, error)
	ListTemplates(ctx context.Context, trainerID string) ([]models.WorkoutTemplate, error)
	ListStudents(ctx context.Context, trainerID string) ([]models.StudentLink, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
