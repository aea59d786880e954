package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/ironpro/internal/models"
	"github.com/meltforce/ironpro/internal/storage"
	"github.com/meltforce/ironpro/internal/workout"
)

// sessionResponse is a session's identity plus its current state.
type sessionResponse struct {
	ID         string `json:"id"`
	TemplateID string `json:"template_id"`
	workout.State
}

func (ls *liveSession) response() sessionResponse {
	return sessionResponse{ID: ls.id, TemplateID: ls.templateID, State: ls.session.Snapshot()}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	p, ok := mustProfile(w, r)
	if !ok {
		return
	}
	var body struct {
		TemplateID string `json:"template_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.TemplateID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "template_id required"})
		return
	}

	trainerID := p.ID
	if p.Role != models.RoleTrainer {
		id, err := s.db.TrainerForStudent(r.Context(), p.ID)
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no trainer linked"})
			return
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		trainerID = id
	}

	tmpl, err := s.db.GetTemplate(r.Context(), body.TemplateID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if tmpl.TrainerID != trainerID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "template not found"})
		return
	}

	ls := s.sessions.add(p.ID, trainerID, tmpl, func(id string) *workout.Session {
		return workout.New(tmpl.Exercises,
			workout.WithScheduler(s.opts.Scheduler),
			workout.WithClock(s.opts.Now),
			workout.WithLogger(s.log.With("session", id)),
			workout.WithOnExpired(func(exerciseID string) {
				s.broker.Publish(id, Event{Type: EventRestExpired, ExerciseID: exerciseID})
			}),
		)
	})
	s.log.Info("session created", "session", ls.id, "template", tmpl.ID, "owner", p.ID)
	writeJSON(w, http.StatusCreated, ls.response())
}

// liveFromRequest resolves the {id} session of the caller, writing 404 if
// it does not exist.
func (s *Server) liveFromRequest(w http.ResponseWriter, r *http.Request) (*liveSession, bool) {
	p, ok := mustProfile(w, r)
	if !ok {
		return nil, false
	}
	ls, ok := s.sessions.get(chi.URLParam(r, "id"), p.ID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return nil, false
	}
	return ls, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.liveFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ls.response())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	p, ok := mustProfile(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if !s.sessions.remove(id, p.ID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	s.broker.End(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.liveFromRequest(w, r)
	if !ok {
		return
	}
	ls.session.StartSession()
	writeJSON(w, http.StatusOK, ls.response())
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.liveFromRequest(w, r)
	if !ok {
		return
	}
	ls.session.StopSession()
	writeJSON(w, http.StatusOK, ls.response())
}

func (s *Server) handleToggleRest(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.liveFromRequest(w, r)
	if !ok {
		return
	}
	exerciseID := chi.URLParam(r, "exerciseID")
	exercise, known := ls.plan[exerciseID]
	if !known {
		s.writeError(w, fmt.Errorf("%w: %s", workout.ErrUnknownExercise, exerciseID))
		return
	}
	var body struct {
		Seconds *int `json:"seconds"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	seconds := exercise.RestSeconds
	if body.Seconds != nil {
		seconds = *body.Seconds
	}

	if _, err := ls.session.ToggleRest(exerciseID, seconds); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ls.response())
}

func (s *Server) handleToggleCompleted(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.liveFromRequest(w, r)
	if !ok {
		return
	}
	if _, err := ls.session.ToggleExerciseCompleted(chi.URLParam(r, "exerciseID")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ls.response())
}

func (s *Server) handleSetWeight(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.liveFromRequest(w, r)
	if !ok {
		return
	}
	var body struct {
		Weight string `json:"weight"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := ls.session.SetLoggedWeight(chi.URLParam(r, "exerciseID"), body.Weight); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ls.response())
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.liveFromRequest(w, r)
	if !ok {
		return
	}
	rec := workout.AwardRecorderFunc(func(ctx context.Context, a models.XPAward) error {
		_, err := s.db.InsertAward(ctx, a)
		return err
	})
	award, err := ls.session.Finalize(r.Context(), rec, workout.FinalizeRequest{
		StudentID:     ls.ownerID,
		TrainerID:     ls.trainerID,
		XPPerExercise: s.opts.XPPerExercise,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.broker.Publish(ls.id, Event{Type: EventFinalized, AwardID: award.ID})
	s.sessions.remove(ls.id, ls.ownerID)
	s.broker.End(ls.id)
	writeJSON(w, http.StatusCreated, award)
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	ls, ok := s.liveFromRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()

	events, cancel := s.broker.Subscribe(ls.id)
	defer cancel()

	// The session may have ended between lookup and subscribe.
	if _, ok := s.sessions.get(ls.id, ls.ownerID); !ok {
		return
	}

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.log.Error("encoding session event", "error", err)
				return
			}
			fmt.Fprintf(w, "event: session\ndata: %s\n\n", data)
			flusher.Flush()
			if ev.Type == EventClosed {
				return
			}
		case <-ping.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
