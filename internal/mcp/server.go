package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const trainerIDKey contextKey = iota

// TrainerIDFromContext extracts the trainer ID injected by the transport layer.
func TrainerIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(trainerIDKey).(string)
	return id
}

// WithTrainerID returns a context with the given trainer ID.
func WithTrainerID(ctx context.Context, trainerID string) context.Context {
	return context.WithValue(ctx, trainerIDKey, trainerID)
}

// New creates an MCP server with all tools and resources registered. loc is
// the timezone month rankings are computed in.
func New(ds DataSource, version string, loc *time.Location, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("IronPro", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("IronPro trainer server. Query XP rankings, pending XP awards, the running challenge, workout templates and students. All data is scoped to the authenticated trainer."),
	)

	h := newHandlers(ds, loc, log)

	s.AddTools(
		server.ServerTool{Tool: toolGetRanking, Handler: h.getRanking},
		server.ServerTool{Tool: toolListPendingXP, Handler: h.listPendingXP},
		server.ServerTool{Tool: toolGetActiveChallenge, Handler: h.getActiveChallenge},
		server.ServerTool{Tool: toolListWorkoutTemplates, Handler: h.listWorkoutTemplates},
		server.ServerTool{Tool: toolListStudents, Handler: h.listStudents},
	)

	s.AddResources(
		server.ServerResource{Resource: resRankingBoard, Handler: h.rankingBoard},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
	loc *time.Location
	now func() time.Time
}

func newHandlers(ds DataSource, loc *time.Location, log *slog.Logger) *handlers {
	if loc == nil {
		loc = time.UTC
	}
	return &handlers{ds: ds, log: log, loc: loc, now: time.Now}
}

// --- Resource definitions ---

var resRankingBoard = mcp.NewResource(
	"ironpro://ranking_board",
	"Ranking Board",
	mcp.WithResourceDescription("Monthly XP ranking, the running challenge with its ranking, and XP awards waiting for review"),
	mcp.WithMIMEType("application/json"),
)
