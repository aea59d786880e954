// Package workout tracks a single workout session: the elapsed session clock,
// a single-slot rest countdown, and per-exercise progress.
package workout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/ironpro/internal/models"
)

// DefaultXPPerExercise is used when a FinalizeRequest does not set a rate.
const DefaultXPPerExercise = 25

const tickPeriod = time.Second

var (
	// ErrInvalidState is returned for mutations attempted before the session
	// clock was started.
	ErrInvalidState = errors.New("start the session first")
	// ErrDegenerateDuration is returned when a rest timer is requested with a
	// non-positive duration. No timer is started.
	ErrDegenerateDuration = errors.New("rest duration must be positive")
	// ErrUnknownExercise is returned for exercise IDs that are not in the plan.
	ErrUnknownExercise = errors.New("unknown exercise")
	// ErrNothingCompleted is returned by Finalize when no exercise is marked done.
	ErrNothingCompleted = errors.New("no exercise completed")
	// ErrClosed is returned by operations on a session after Close.
	ErrClosed = errors.New("session closed")
)

// ExerciseState is an exercise from the plan plus what the user logged.
type ExerciseState struct {
	models.Exercise
	LoggedWeight string `json:"logged_weight"`
	Completed    bool   `json:"completed"`
}

// RestState describes the active rest countdown.
type RestState struct {
	ExerciseID       string `json:"exercise_id"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// State is a point-in-time copy of a session.
type State struct {
	Started        bool            `json:"started"`
	ElapsedSeconds int             `json:"elapsed_seconds"`
	Elapsed        string          `json:"elapsed"`
	Rest           *RestState      `json:"rest,omitempty"`
	Exercises      []ExerciseState `json:"exercises"`
	Completed      int             `json:"completed"`
}

// AwardRecorder persists the pending award produced by Finalize.
type AwardRecorder interface {
	RecordAward(ctx context.Context, award models.XPAward) error
}

// AwardRecorderFunc adapts a function to AwardRecorder.
type AwardRecorderFunc func(ctx context.Context, award models.XPAward) error

// RecordAward implements AwardRecorder.
func (f AwardRecorderFunc) RecordAward(ctx context.Context, award models.XPAward) error {
	return f(ctx, award)
}

// FinalizeRequest identifies who receives the award and how it is sized.
type FinalizeRequest struct {
	StudentID     string
	TrainerID     string
	XPPerExercise int
}

// Option configures a Session.
type Option func(*Session)

// WithScheduler replaces the default TickerScheduler.
func WithScheduler(s Scheduler) Option {
	return func(sess *Session) { sess.sched = s }
}

// WithClock replaces time.Now for award timestamps.
func WithClock(now func() time.Time) Option {
	return func(sess *Session) { sess.now = now }
}

// WithOnExpired registers the callback fired once when a rest timer reaches zero.
func WithOnExpired(fn func(exerciseID string)) Option {
	return func(sess *Session) { sess.onExpired = fn }
}

// WithLogger sets the session logger.
func WithLogger(log *slog.Logger) Option {
	return func(sess *Session) { sess.log = log }
}

// Session owns the clocks and exercise progress of one workout. It is safe
// for concurrent use; tick callbacks arrive on scheduler goroutines.
type Session struct {
	mu        sync.Mutex
	sched     Scheduler
	now       func() time.Time
	onExpired func(string)
	log       *slog.Logger

	order     []string
	exercises map[string]*ExerciseState

	started    bool
	elapsed    int
	stopClock  func()
	clockGen   uint64
	finalizing bool
	closed     bool

	restID        string
	restRemaining int
	stopRestTick  func()
	restGen       uint64
}

// New creates a session for the given plan. The clock is not started.
func New(plan []models.Exercise, opts ...Option) *Session {
	s := &Session{
		sched:     TickerScheduler{},
		now:       time.Now,
		log:       slog.New(slog.DiscardHandler),
		exercises: make(map[string]*ExerciseState, len(plan)),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, ex := range plan {
		if _, dup := s.exercises[ex.ID]; dup {
			continue
		}
		s.order = append(s.order, ex.ID)
		s.exercises[ex.ID] = &ExerciseState{Exercise: ex, LoggedWeight: ex.DefaultLoad}
	}
	return s
}

// StartSession starts the elapsed clock. Calling it again while running is a no-op.
func (s *Session) StartSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.started {
		return
	}
	s.started = true
	s.clockGen++
	gen := s.clockGen
	s.stopClock = s.sched.Every(tickPeriod, func() { s.tickClock(gen) })
	s.log.Debug("session started")
}

// StopSession cancels the elapsed clock and resets it to zero. An active
// rest timer keeps running.
func (s *Session) StopSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopClockLocked()
}

func (s *Session) stopClockLocked() {
	if s.stopClock != nil {
		s.stopClock()
		s.stopClock = nil
	}
	s.clockGen++
	s.started = false
	s.elapsed = 0
}

func (s *Session) tickClock(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.clockGen || !s.started {
		return
	}
	s.elapsed++
}

// Elapsed returns the seconds counted since StartSession.
func (s *Session) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Started reports whether the session clock is running.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// StartRest starts a countdown for exerciseID, silently cancelling any other
// active countdown. Starting the exercise that is already counting restarts it.
func (s *Session) StartRest(exerciseID string, seconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startRestLocked(exerciseID, seconds)
}

func (s *Session) startRestLocked(exerciseID string, seconds int) error {
	if s.closed {
		return ErrClosed
	}
	if seconds <= 0 {
		return ErrDegenerateDuration
	}
	if _, ok := s.exercises[exerciseID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownExercise, exerciseID)
	}
	if s.restID != "" && s.restID != exerciseID {
		s.log.Debug("rest timer preempted", "previous", s.restID, "next", exerciseID)
	}
	s.cancelRestLocked()

	s.restID = exerciseID
	s.restRemaining = seconds
	gen := s.restGen
	s.stopRestTick = s.sched.Every(tickPeriod, func() { s.tickRest(gen) })
	return nil
}

// StopRest cancels the countdown if it belongs to exerciseID.
func (s *Session) StopRest(exerciseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exerciseID != "" && s.restID == exerciseID {
		s.cancelRestLocked()
	}
}

// ToggleRest stops the countdown if exerciseID is the active one, otherwise
// starts it. It returns whether a countdown for exerciseID is now active.
func (s *Session) ToggleRest(exerciseID string, seconds int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exerciseID != "" && s.restID == exerciseID {
		s.cancelRestLocked()
		return false, nil
	}
	if err := s.startRestLocked(exerciseID, seconds); err != nil {
		return false, err
	}
	return true, nil
}

// RestStatus returns the active countdown, if any.
func (s *Session) RestStatus() (exerciseID string, remaining int, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restID, s.restRemaining, s.restID != ""
}

func (s *Session) cancelRestLocked() {
	if s.stopRestTick != nil {
		s.stopRestTick()
		s.stopRestTick = nil
	}
	s.restGen++
	s.restID = ""
	s.restRemaining = 0
}

func (s *Session) tickRest(gen uint64) {
	s.mu.Lock()
	if gen != s.restGen || s.restID == "" {
		s.mu.Unlock()
		return
	}
	s.restRemaining--
	if s.restRemaining > 0 {
		s.mu.Unlock()
		return
	}

	id := s.restID
	s.cancelRestLocked()
	cb := s.onExpired
	s.mu.Unlock()

	s.log.Debug("rest timer expired", "exercise", id)
	if cb != nil {
		cb(id)
	}
}

// ToggleExerciseCompleted flips the completed flag and returns the new value.
func (s *Session) ToggleExerciseCompleted(exerciseID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, err := s.mutableLocked(exerciseID)
	if err != nil {
		return false, err
	}
	ex.Completed = !ex.Completed
	return ex.Completed, nil
}

// SetLoggedWeight records the load the user actually lifted.
func (s *Session) SetLoggedWeight(exerciseID, weight string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, err := s.mutableLocked(exerciseID)
	if err != nil {
		return err
	}
	ex.LoggedWeight = weight
	return nil
}

func (s *Session) mutableLocked(exerciseID string) (*ExerciseState, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if !s.started {
		return nil, ErrInvalidState
	}
	ex, ok := s.exercises[exerciseID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExercise, exerciseID)
	}
	return ex, nil
}

// CompletedCount returns the number of exercises marked done.
func (s *Session) CompletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completedLocked()
}

func (s *Session) completedLocked() int {
	n := 0
	for _, ex := range s.exercises {
		if ex.Completed {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Started:        s.started,
		ElapsedSeconds: s.elapsed,
		Elapsed:        FormatElapsed(s.elapsed),
		Exercises:      make([]ExerciseState, 0, len(s.order)),
		Completed:      s.completedLocked(),
	}
	if s.restID != "" {
		st.Rest = &RestState{ExerciseID: s.restID, RemainingSeconds: s.restRemaining}
	}
	for _, id := range s.order {
		st.Exercises = append(st.Exercises, *s.exercises[id])
	}
	return st
}

// Finalize builds a pending XP award from the completed exercises, hands it
// to rec and, once recorded, resets the session clock and the exercise
// progress. If rec fails the session is left as it was.
func (s *Session) Finalize(ctx context.Context, rec AwardRecorder, req FinalizeRequest) (*models.XPAward, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if !s.started {
		s.mu.Unlock()
		return nil, ErrInvalidState
	}
	if s.finalizing {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: finalize already in progress", ErrInvalidState)
	}
	completed := s.completedLocked()
	if completed == 0 {
		s.mu.Unlock()
		return nil, ErrNothingCompleted
	}
	s.finalizing = true
	s.mu.Unlock()

	rate := req.XPPerExercise
	if rate <= 0 {
		rate = DefaultXPPerExercise
	}
	award := models.XPAward{
		ID:        uuid.NewString(),
		StudentID: req.StudentID,
		TrainerID: req.TrainerID,
		Amount:    completed * rate,
		Status:    models.XPPending,
		CreatedAt: s.now().UTC(),
	}

	err := rec.RecordAward(ctx, award)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizing = false
	if err != nil {
		return nil, fmt.Errorf("recording award: %w", err)
	}
	s.stopClockLocked()
	for _, ex := range s.exercises {
		ex.Completed = false
		ex.LoggedWeight = ex.DefaultLoad
	}
	s.log.Info("session finalized", "award", award.ID, "amount", award.Amount, "completed", completed)
	return &award, nil
}

// Close cancels both clocks. The session rejects further mutations.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopClockLocked()
	s.cancelRestLocked()
	s.closed = true
}

// FormatElapsed renders seconds as zero-padded MM:SS. Minutes do not roll
// over into hours.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
