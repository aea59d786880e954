package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/ironpro/internal/models"
	"github.com/meltforce/ironpro/internal/workout"
)

// liveSession is a workout.Session owned by one user.
type liveSession struct {
	id         string
	ownerID    string
	trainerID  string
	templateID string
	plan       map[string]models.Exercise
	session    *workout.Session

	// lastSeen is guarded by the registry lock.
	lastSeen time.Time
}

// registry owns every server-side workout session.
type registry struct {
	mu       sync.Mutex
	now      func() time.Time
	sessions map[string]*liveSession
}

func newRegistry(now func() time.Time) *registry {
	return &registry{now: now, sessions: make(map[string]*liveSession)}
}

// add creates and registers a session. build receives the new session's ID
// so callbacks can be bound to it.
func (r *registry) add(ownerID, trainerID string, tmpl *models.WorkoutTemplate, build func(id string) *workout.Session) *liveSession {
	ls := &liveSession{
		id:         uuid.NewString(),
		ownerID:    ownerID,
		trainerID:  trainerID,
		templateID: tmpl.ID,
		plan:       make(map[string]models.Exercise, len(tmpl.Exercises)),
	}
	for _, e := range tmpl.Exercises {
		ls.plan[e.ID] = e
	}
	ls.session = build(ls.id)

	r.mu.Lock()
	ls.lastSeen = r.now()
	r.sessions[ls.id] = ls
	r.mu.Unlock()
	return ls
}

// get returns the session if it exists and belongs to ownerID.
func (r *registry) get(id, ownerID string) (*liveSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ls, ok := r.sessions[id]
	if !ok || ls.ownerID != ownerID {
		return nil, false
	}
	ls.lastSeen = r.now()
	return ls, true
}

// remove closes and forgets a session.
func (r *registry) remove(id, ownerID string) bool {
	r.mu.Lock()
	ls, ok := r.sessions[id]
	if ok && ls.ownerID == ownerID {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok || ls.ownerID != ownerID {
		return false
	}
	ls.session.Close()
	return true
}

// sweep closes and forgets sessions not touched since cutoff, except those
// keep reports as still in use. It returns the removed IDs.
func (r *registry) sweep(cutoff time.Time, keep func(id string) bool) []string {
	var idle []*liveSession
	r.mu.Lock()
	for id, ls := range r.sessions {
		if ls.lastSeen.Before(cutoff) && !keep(id) {
			delete(r.sessions, id)
			idle = append(idle, ls)
		}
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(idle))
	for _, ls := range idle {
		ls.session.Close()
		ids = append(ids, ls.id)
	}
	return ids
}

// closeAll tears down every session and returns their IDs.
func (r *registry) closeAll() []string {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*liveSession)
	r.mu.Unlock()

	ids := make([]string, 0, len(all))
	for id, ls := range all {
		ls.session.Close()
		ids = append(ids, id)
	}
	return ids
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
