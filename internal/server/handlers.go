package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/ironpro/internal/models"
	"github.com/meltforce/ironpro/internal/ranking"
	"github.com/meltforce/ironpro/internal/storage"
	"github.com/meltforce/ironpro/internal/workout"
)

// meResponse is the caller's identity plus what the home screen shows.
type meResponse struct {
	UserInfo
	Profile      *models.Profile `json:"profile"`
	TrainerID    string          `json:"trainer_id,omitempty"`
	Announcement string          `json:"announcement,omitempty"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := mustProfile(w, r)
	if !ok {
		return
	}
	resp := meResponse{UserInfo: userInfoFromContext(r), Profile: p}
	if p.Role == models.RoleTrainer {
		resp.Announcement = p.Announcement
		writeJSON(w, http.StatusOK, resp)
		return
	}

	trainerID, err := s.db.TrainerForStudent(r.Context(), p.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, err)
		return
	}
	if trainerID != "" {
		resp.TrainerID = trainerID
		if trainer, err := s.db.GetProfile(r.Context(), trainerID); err == nil {
			resp.Announcement = trainer.Announcement
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetAnnouncement(w http.ResponseWriter, r *http.Request) {
	p, ok := mustTrainer(w, r)
	if !ok {
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.db.SetAnnouncement(r.Context(), p.ID, strings.TrimSpace(body.Text)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	p, ok := mustTrainer(w, r)
	if !ok {
		return
	}
	stats, err := s.db.GetTrainerStats(r.Context(), p.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	p, ok := mustTrainer(w, r)
	if !ok {
		return
	}
	students, err := s.db.ListStudents(r.Context(), p.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, students)
}

func (s *Server) handleLinkStudent(w http.ResponseWriter, r *http.Request) {
	p, ok := mustTrainer(w, r)
	if !ok {
		return
	}
	var body struct {
		Login    string `json:"login"`
		PlanName string `json:"plan_name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Login == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "login required"})
		return
	}
	student, err := s.db.GetProfileByLogin(r.Context(), body.Login)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if student.ID == p.ID || student.Role == models.RoleTrainer {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "only students can be linked"})
		return
	}
	if err := s.db.LinkStudent(r.Context(), p.ID, student.ID, body.PlanName); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.StudentLink{
		StudentID: student.ID,
		TrainerID: p.ID,
		PlanName:  body.PlanName,
		FullName:  student.FullName,
		AvatarURL: student.AvatarURL,
		CreatedAt: s.now(),
	})
}

func (s *Server) handleUnlinkStudent(w http.ResponseWriter, r *http.Request) {
	p, ok := mustTrainer(w, r)
	if !ok {
		return
	}
	if err := s.db.UnlinkStudent(r.Context(), p.ID, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	trainerID, ok := s.trainerScope(w, r)
	if !ok {
		return
	}
	templates, err := s.db.ListTemplates(r.Context(), trainerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	trainerID, ok := s.trainerScope(w, r)
	if !ok {
		return
	}
	t, err := s.db.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if t.TrainerID != trainerID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "template not found"})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	p, ok := mustTrainer(w, r)
	if !ok {
		return
	}
	if err := s.db.DeleteTemplate(r.Context(), p.ID, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// trainerScope returns the trainer whose data the caller sees: themselves
// for a trainer, their trainer for a student.
func (s *Server) trainerScope(w http.ResponseWriter, r *http.Request) (string, bool) {
	p, ok := mustProfile(w, r)
	if !ok {
		return "", false
	}
	if p.Role == models.RoleTrainer {
		return p.ID, true
	}
	trainerID, err := s.db.TrainerForStudent(r.Context(), p.ID)
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no trainer linked"})
		return "", false
	}
	if err != nil {
		s.writeError(w, err)
		return "", false
	}
	return trainerID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workout.ErrInvalidState),
		errors.Is(err, workout.ErrNothingCompleted),
		errors.Is(err, workout.ErrClosed),
		errors.Is(err, storage.ErrConflict),
		errors.Is(err, ranking.ErrAlreadyReviewed):
		status = http.StatusConflict
	case errors.Is(err, workout.ErrDegenerateDuration),
		errors.Is(err, ranking.ErrInvalidDecision):
		status = http.StatusBadRequest
	case errors.Is(err, workout.ErrUnknownExercise),
		errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	msg := err.Error()
	if errors.Is(err, workout.ErrInvalidState) {
		msg = workout.ErrInvalidState.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// parseTimeRange reads start/end query parameters as RFC 3339 or plain
// dates. A plain end date covers that whole day.
func parseTimeRange(r *http.Request, loc *time.Location) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("start and end are both required")
	}

	start, err = parseTime(startStr, loc, false)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err = parseTime(endStr, loc, true)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end before start")
	}
	return start, end, nil
}

func parseTime(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		y, m, d := t.Date()
		t = time.Date(y, m, d, 23, 59, 59, 0, loc)
	}
	return t, nil
}
