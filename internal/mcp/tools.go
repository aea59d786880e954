package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/ironpro/internal/models"
	"github.com/meltforce/ironpro/internal/ranking"
)

func parseFlexTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.ParseInLocation("2006-01-02", s, loc)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetRanking = mcp.NewTool("get_ranking",
	mcp.WithDescription("XP leaderboard of the trainer's students. Only approved awards count. Students are ordered by total XP, highest first."),
	mcp.WithString("period", mcp.Description("Which window to rank. Ignored when start and end are given. Defaults to month."), mcp.Enum("month", "challenge")),
	mcp.WithString("start", mcp.Description("Custom window start (ISO 8601 or YYYY-MM-DD).")),
	mcp.WithString("end", mcp.Description("Custom window end (ISO 8601 or YYYY-MM-DD). A plain date covers the whole day.")),
)

var toolListPendingXP = mcp.NewTool("list_pending_xp",
	mcp.WithDescription("XP awards waiting for the trainer's approval, newest first."),
)

var toolGetActiveChallenge = mcp.NewTool("get_active_challenge",
	mcp.WithDescription("The running challenge (name and date window), if any."),
)

var toolListWorkoutTemplates = mcp.NewTool("list_workout_templates",
	mcp.WithDescription("Workout templates in the trainer's library with their exercises, sets, reps and rest times."),
	mcp.WithString("category", mcp.Description("Filter by category (case-insensitive partial match, e.g. 'peito')")),
)

var toolListStudents = mcp.NewTool("list_students",
	mcp.WithDescription("Students linked to the trainer with their plan names."),
)

// rankingResult is what get_ranking returns.
type rankingResult struct {
	Period      string                `json:"period"`
	Window      ranking.Window        `json:"window"`
	Competition *models.Competition   `json:"competition,omitempty"`
	Entries     []models.RankingEntry `json:"entries"`
}

// errNoChallenge is reported when a challenge ranking is asked for without a
// running challenge.
var errNoChallenge = errors.New("no active challenge")

func (h *handlers) ranking(ctx context.Context, trainerID, period, startStr, endStr string) (*rankingResult, error) {
	res := &rankingResult{Period: period}
	switch {
	case startStr != "" || endStr != "":
		if startStr == "" || endStr == "" {
			return nil, fmt.Errorf("start and end must be given together")
		}
		start, err := parseFlexTime(startStr, h.loc)
		if err != nil {
			return nil, fmt.Errorf("invalid start: %w", err)
		}
		end, err := parseFlexTime(endStr, h.loc)
		if err != nil {
			return nil, fmt.Errorf("invalid end: %w", err)
		}
		if !strings.Contains(endStr, "T") {
			y, m, d := end.Date()
			end = time.Date(y, m, d, 23, 59, 59, 0, h.loc)
		}
		res.Period = "custom"
		res.Window = ranking.Window{Start: start, End: end}
	case period == "" || period == "month":
		res.Period = "month"
		res.Window = ranking.MonthWindow(h.now().In(h.loc))
	case period == "challenge":
		c, err := h.ds.ActiveCompetition(ctx, trainerID)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, errNoChallenge
		}
		res.Competition = c
		res.Window = ranking.ChallengeWindow(*c)
	default:
		return nil, fmt.Errorf("period must be month or challenge")
	}

	awards, err := h.ds.ListAwards(ctx, trainerID, models.XPApproved)
	if err != nil {
		return nil, err
	}
	res.Entries = ranking.Aggregate(awards, res.Window.Start, res.Window.End)
	return res, nil
}

// --- Tool handlers ---

func (h *handlers) getRanking(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := h.ranking(ctx, TrainerIDFromContext(ctx),
		req.GetString("period", ""), req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		h.log.Error("mcp get_ranking", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(res)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listPendingXP(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	awards, err := h.ds.ListPendingAwards(ctx, TrainerIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp list_pending_xp", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"count":  len(awards),
		"awards": awards,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getActiveChallenge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := h.ds.ActiveCompetition(ctx, TrainerIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_active_challenge", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if c == nil {
		return mcp.NewToolResultText("No challenge is running."), nil
	}

	now := h.now()
	daysLeft := int(c.EndDate.Sub(now).Hours() / 24)
	if daysLeft < 0 {
		daysLeft = 0
	}
	result, err := mcp.NewToolResultJSON(map[string]any{
		"challenge": c,
		"days_left": daysLeft,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listWorkoutTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	templates, err := h.ds.ListTemplates(ctx, TrainerIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp list_workout_templates", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	if category := strings.ToLower(req.GetString("category", "")); category != "" {
		filtered := []models.WorkoutTemplate{}
		for _, t := range templates {
			if strings.Contains(strings.ToLower(t.Category), category) {
				filtered = append(filtered, t)
			}
		}
		templates = filtered
	}

	result, err := mcp.NewToolResultJSON(templates)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listStudents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	students, err := h.ds.ListStudents(ctx, TrainerIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp list_students", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(students)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
