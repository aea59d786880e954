package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/ironpro/internal/models"
	"github.com/meltforce/ironpro/internal/ranking"
)

type fakeSource struct {
	awards    []models.XPAward
	active    *models.Competition
	templates []models.WorkoutTemplate
	students  []models.StudentLink
	err       error
}

func (f *fakeSource) ListAwards(_ context.Context, trainerID string, status models.XPStatus) ([]models.XPAward, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.XPAward
	for _, a := range f.awards {
		if a.TrainerID == trainerID && (status == "" || a.Status == status) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeSource) ListPendingAwards(ctx context.Context, trainerID string) ([]models.XPAward, error) {
	return f.ListAwards(ctx, trainerID, models.XPPending)
}

func (f *fakeSource) ActiveCompetition(context.Context, string) (*models.Competition, error) {
	return f.active, nil
}

func (f *fakeSource) ListTemplates(context.Context, string) ([]models.WorkoutTemplate, error) {
	return f.templates, f.err
}

func (f *fakeSource) ListStudents(context.Context, string) ([]models.StudentLink, error) {
	return f.students, f.err
}

func newTestHandlers(ds DataSource) *handlers {
	h := newHandlers(ds, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.now = func() time.Time { return time.Date(2024, 1, 25, 12, 0, 0, 0, time.UTC) }
	return h
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func sampleSource() *fakeSource {
	at := func(d int) time.Time { return time.Date(2024, 1, d, 9, 0, 0, 0, time.UTC) }
	return &fakeSource{
		awards: []models.XPAward{
			{ID: "a1", StudentID: "s1", TrainerID: "t1", Amount: 50, Status: models.XPApproved, CreatedAt: at(5)},
			{ID: "a2", StudentID: "s1", TrainerID: "t1", Amount: 30, Status: models.XPApproved, CreatedAt: at(20)},
			{ID: "a3", StudentID: "s2", TrainerID: "t1", Amount: 100, Status: models.XPApproved, CreatedAt: at(10)},
			{ID: "a4", StudentID: "s1", TrainerID: "t1", Amount: 999, Status: models.XPPending, CreatedAt: at(15)},
			{ID: "a5", StudentID: "s3", TrainerID: "other", Amount: 500, Status: models.XPApproved, CreatedAt: at(15)},
		},
	}
}

// TestTrainerIDFromContext verifies the trainer ID round-trips through the context.
func TestTrainerIDFromContext(t *testing.T) {
	if id := TrainerIDFromContext(context.Background()); id != "" {
		t.Errorf("TrainerIDFromContext(empty) = %q, want empty", id)
	}
	ctx := WithTrainerID(context.Background(), "t1")
	if id := TrainerIDFromContext(ctx); id != "t1" {
		t.Errorf("TrainerIDFromContext = %q, want t1", id)
	}
}

func TestRankingMonth(t *testing.T) {
	h := newTestHandlers(sampleSource())
	res, err := h.ranking(context.Background(), "t1", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Period != "month" {
		t.Errorf("period = %q, want month", res.Period)
	}
	if len(res.Entries) != 2 || res.Entries[0].StudentID != "s2" || res.Entries[1].TotalXP != 80 {
		t.Errorf("entries = %+v", res.Entries)
	}
}

func TestRankingCustomWindow(t *testing.T) {
	h := newTestHandlers(sampleSource())
	res, err := h.ranking(context.Background(), "t1", "", "2024-01-01", "2024-01-05")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Entries) != 1 || res.Entries[0].TotalXP != 50 {
		t.Errorf("entries = %+v, want s1 with 50 (end date inclusive)", res.Entries)
	}

	if _, err := h.ranking(context.Background(), "t1", "", "2024-01-01", ""); err == nil {
		t.Error("expected error for start without end")
	}
	if _, err := h.ranking(context.Background(), "t1", "year", "", ""); err == nil {
		t.Error("expected error for unknown period")
	}
}

func TestRankingChallenge(t *testing.T) {
	src := sampleSource()
	h := newTestHandlers(src)
	if _, err := h.ranking(context.Background(), "t1", "challenge", "", ""); !errors.Is(err, errNoChallenge) {
		t.Errorf("err = %v, want errNoChallenge", err)
	}

	src.active = &models.Competition{
		ID: "c1", Name: "Sprint", IsActive: true,
		StartDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	res, err := h.ranking(context.Background(), "t1", "challenge", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Competition == nil || len(res.Entries) != 2 || res.Entries[0].TotalXP != 100 {
		t.Errorf("result = %+v", res)
	}
}

// TestGetRankingToolError verifies user errors come back as tool errors,
// not Go errors.
func TestGetRankingToolError(t *testing.T) {
	h := newTestHandlers(sampleSource())
	res, err := h.getRanking(WithTrainerID(context.Background(), "t1"), callTool(map[string]any{"period": "challenge"}))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	if !res.IsError {
		t.Error("expected tool error when no challenge is running")
	}
}

func TestListPendingTool(t *testing.T) {
	h := newTestHandlers(sampleSource())
	res, err := h.listPendingXP(WithTrainerID(context.Background(), "t1"), callTool(nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res)
	}

	h = newTestHandlers(&fakeSource{err: errors.New("db down")})
	res, err = h.listPendingXP(context.Background(), callTool(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected tool error when the data source fails")
	}
}

func TestRankingBoardResource(t *testing.T) {
	h := newTestHandlers(sampleSource())
	var req mcp.ReadResourceRequest
	req.Params.URI = "ironpro://ranking_board"

	contents, err := h.rankingBoard(WithTrainerID(context.Background(), "t1"), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content type = %T", contents[0])
	}
	var b ranking.Board
	if err := json.Unmarshal([]byte(text.Text), &b); err != nil {
		t.Fatal(err)
	}
	if len(b.MonthRanking) != 2 || len(b.Pending) != 1 || b.Challenge != nil {
		t.Errorf("board = %+v", b)
	}
}

// TestRankingCustomWindowDST verifies a plain end date closes at 23:59:59
// local time on a day with a clock change.
func TestRankingCustomWindowDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	h := newHandlers(sampleSource(), loc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	res, err := h.ranking(context.Background(), "t1", "", "2024-03-01", "2024-03-10")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 3, 10, 23, 59, 59, 0, loc)
	if !res.Window.End.Equal(want) {
		t.Errorf("window end = %v, want %v", res.Window.End, want)
	}
}
