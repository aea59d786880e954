package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meltforce/ironpro/internal/models"
	"github.com/meltforce/ironpro/internal/ranking"
	"golang.org/x/sync/errgroup"
)

// rankingResponse is a leaderboard over one window.
type rankingResponse struct {
	Period      string                `json:"period"`
	Window      ranking.Window        `json:"window"`
	Competition *models.Competition   `json:"competition,omitempty"`
	Entries     []models.RankingEntry `json:"entries"`
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	trainerID, ok := s.trainerScope(w, r)
	if !ok {
		return
	}

	resp := rankingResponse{Period: r.URL.Query().Get("period")}
	switch {
	case r.URL.Query().Get("start") != "":
		start, end, err := parseTimeRange(r, s.opts.Location)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		resp.Period = "custom"
		resp.Window = ranking.Window{Start: start, End: end}
	case resp.Period == "" || resp.Period == "month":
		resp.Period = "month"
		resp.Window = ranking.MonthWindow(s.now())
	case resp.Period == "challenge":
		c, err := s.db.ActiveCompetition(r.Context(), trainerID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if c == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active challenge"})
			return
		}
		resp.Competition = c
		resp.Window = ranking.ChallengeWindow(*c)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "period must be month or challenge"})
		return
	}

	awards, err := s.db.ListAwards(r.Context(), trainerID, models.XPApproved)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp.Entries = ranking.Aggregate(awards, resp.Window.Start, resp.Window.End)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	p, ok := mustTrainer(w, r)
	if !ok {
		return
	}

	var (
		awards  []models.XPAward
		pending []models.XPAward
		active  *models.Competition
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		awards, err = s.db.ListAwards(ctx, p.ID, models.XPApproved)
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = s.db.ListPendingAwards(ctx, p.ID)
		return err
	})
	g.Go(func() error {
		var err error
		active, err = s.db.ActiveCompetition(ctx, p.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ranking.BuildBoard(s.now(), awards, pending, active))
}

func (s *Server) handleListXP(w http.ResponseWriter, r *http.Request) {
	p, ok := mustTrainer(w, r)
	if !ok {
		return
	}
	status := models.XPStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status must be pending, approved or rejected"})
		return
	}
	if status == models.XPPending {
		awards, err := s.db.ListPendingAwards(r.Context(), p.ID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, awards)
		return
	}
	awards, err := s.db.ListAwards(r.Context(), p.ID, status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, awards)
}

func (s *Server) handleReviewXP(w http.ResponseWriter, r *http.Request) {
	p, ok := mustTrainer(w, r)
	if !ok {
		return
	}
	var body struct {
		Decision string `json:"decision"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	decision, err := ranking.ParseDecision(body.Decision)
	if err != nil {
		s.writeError(w, err)
		return
	}

	award, err := s.db.GetAward(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if award.TrainerID != p.ID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "award not found"})
		return
	}
	if err := ranking.Review(award, decision, s.now()); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.db.SetAwardStatus(r.Context(), p.ID, award.ID, award.Status, *award.ReviewedAt); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("award reviewed", "award", award.ID, "status", award.Status, "amount", award.Amount)
	writeJSON(w, http.StatusOK, award)
}

func (s *Server) handleActiveCompetition(w http.ResponseWriter, r *http.Request) {
	trainerID, ok := s.trainerScope(w, r)
	if !ok {
		return
	}
	c, err := s.db.ActiveCompetition(r.Context(), trainerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active challenge"})
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleStartCompetition(w http.ResponseWriter, r *http.Request) {
	p, ok := mustTrainer(w, r)
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name"`
		Days int    `json:"days"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name required"})
		return
	}
	if body.Days < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "days must be positive"})
		return
	}
	if body.Days == 0 {
		body.Days = s.opts.ChallengeDays
	}

	start := s.now()
	c, err := s.db.StartCompetition(r.Context(), p.ID, body.Name, start, start.AddDate(0, 0, body.Days))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("challenge started", "competition", c.ID, "days", body.Days)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleEndCompetition(w http.ResponseWriter, r *http.Request) {
	p, ok := mustTrainer(w, r)
	if !ok {
		return
	}
	if err := s.db.EndCompetition(r.Context(), p.ID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Submission is a pending award reported by the terminal workout runner.
type Submission struct {
	ID           string    `json:"id"`
	StudentLogin string    `json:"student_login"`
	Amount       int       `json:"amount"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Server) handleSubmitXP(w http.ResponseWriter, r *http.Request) {
	var sub Submission
	if !decodeBody(w, r, &sub) {
		return
	}
	if _, err := uuid.Parse(sub.ID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id must be a UUID"})
		return
	}
	if sub.Amount <= 0 || sub.StudentLogin == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "student_login and a positive amount are required"})
		return
	}

	student, err := s.db.GetProfileByLogin(r.Context(), sub.StudentLogin)
	if err != nil {
		s.writeError(w, err)
		return
	}
	trainerID, err := s.db.TrainerForStudent(r.Context(), student.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	award := models.XPAward{
		ID:        sub.ID,
		StudentID: student.ID,
		TrainerID: trainerID,
		Amount:    sub.Amount,
		Status:    models.XPPending,
		CreatedAt: sub.CreatedAt,
	}
	inserted, err := s.db.InsertAward(r.Context(), award)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
		s.log.Info("award submitted", "award", award.ID, "student", student.Login, "amount", award.Amount)
	}
	writeJSON(w, status, map[string]any{"id": award.ID, "inserted": inserted})
}

func (s *Server) handleSubmitTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.db.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
