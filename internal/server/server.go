package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/ironpro/internal/models"
	"github.com/meltforce/ironpro/internal/storage"
	"github.com/meltforce/ironpro/internal/workout"
)

// Store is the persistence the HTTP API needs. *storage.DB implements it.
type Store interface {
	ProfileResolver
	GetProfileByLogin(ctx context.Context, login string) (*models.Profile, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	SetAnnouncement(ctx context.Context, trainerID, text string) error

	LinkStudent(ctx context.Context, trainerID, studentID, planName string) error
	UnlinkStudent(ctx context.Context, trainerID, studentID string) error
	ListStudents(ctx context.Context, trainerID string) ([]models.StudentLink, error)
	TrainerForStudent(ctx context.Context, studentID string) (string, error)

	ListTemplates(ctx context.Context, trainerID string) ([]models.WorkoutTemplate, error)
	GetTemplate(ctx context.Context, id string) (*models.WorkoutTemplate, error)
	DeleteTemplate(ctx context.Context, trainerID, id string) error

	InsertAward(ctx context.Context, a models.XPAward) (bool, error)
	GetAward(ctx context.Context, id string) (*models.XPAward, error)
	ListAwards(ctx context.Context, trainerID string, status models.XPStatus) ([]models.XPAward, error)
	ListPendingAwards(ctx context.Context, trainerID string) ([]models.XPAward, error)
	SetAwardStatus(ctx context.Context, trainerID, id string, status models.XPStatus, at time.Time) error

	ActiveCompetition(ctx context.Context, trainerID string) (*models.Competition, error)
	StartCompetition(ctx context.Context, trainerID, name string, start, end time.Time) (*models.Competition, error)
	EndCompetition(ctx context.Context, trainerID string) error

	GetTrainerStats(ctx context.Context, trainerID string) (*storage.TrainerStats, error)
}

// Options tunes server behavior. Zero values select defaults.
type Options struct {
	APIKey        string
	DevLogin      string
	XPPerExercise int
	ChallengeDays int
	Location      *time.Location
	// Scheduler drives workout session clocks. Defaults to real tickers.
	Scheduler workout.Scheduler
	Now       func() time.Time
	// IdleTimeout is how long a workout session may go untouched, with no
	// event stream open, before it is closed. Defaults to 2h.
	IdleTimeout time.Duration
}

const sweepPeriod = time.Minute

// Server holds dependencies for HTTP handlers.
type Server struct {
	db       Store
	log      *slog.Logger
	opts     Options
	whois    WhoIser
	broker   *Broker
	sessions *registry
	router   chi.Router

	stopSweep chan struct{}
	closeOnce sync.Once
}

// New creates a new Server with all routes configured.
func New(db Store, opts Options, log *slog.Logger) *Server {
	if opts.XPPerExercise <= 0 {
		opts.XPPerExercise = workout.DefaultXPPerExercise
	}
	if opts.ChallengeDays <= 0 {
		opts.ChallengeDays = 30
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Scheduler == nil {
		opts.Scheduler = workout.TickerScheduler{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 2 * time.Hour
	}
	s := &Server{
		db:        db,
		log:       log,
		opts:      opts,
		broker:    NewBroker(),
		sessions:  newRegistry(opts.Now),
		router:    chi.NewRouter(),
		stopSweep: make(chan struct{}),
	}
	s.routes()
	go s.sweepLoop()
	return s
}

// SetTailscale switches caller identification from the dev login to
// tailnet WhoIs lookups.
func (s *Server) SetTailscale(lc WhoIser) {
	s.whois = lc
}

// Close stops the idle sweeper and tears down all live workout sessions.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.stopSweep) })
	for _, id := range s.sessions.closeAll() {
		s.broker.End(id)
	}
}

func (s *Server) sweepLoop() {
	t := time.NewTicker(sweepPeriod)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.sweepIdle(s.opts.Now())
		case <-s.stopSweep:
			return
		}
	}
}

// sweepIdle closes sessions idle for longer than IdleTimeout at now. A
// session with an open event stream is never idle.
func (s *Server) sweepIdle(now time.Time) int {
	ids := s.sessions.sweep(now.Add(-s.opts.IdleTimeout), func(id string) bool {
		return s.broker.subscribers(id) > 0
	})
	for _, id := range ids {
		s.broker.End(id)
		s.log.Info("idle session closed", "session", id)
	}
	return len(ids)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

// identify picks the identity middleware per request so SetTailscale may be
// called after New.
func (s *Server) identify(next http.Handler) http.Handler {
	dev := DevIdentity(s.opts.DevLogin, s.db, s.log)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.whois != nil {
			TailscaleIdentity(s.whois, s.db, s.log)(next).ServeHTTP(w, r)
			return
		}
		dev.ServeHTTP(w, r)
	})
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Machine submissions from the workout runner (API key required)
	s.router.Route("/api/v1/submit", func(r chi.Router) {
		r.Use(APIKeyAuth(s.opts.APIKey))
		r.Post("/xp", s.handleSubmitXP)
		r.Get("/templates/{id}", s.handleSubmitTemplate)
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.identify)

		r.Get("/me", s.handleMe)
		r.Put("/announcement", s.handleSetAnnouncement)
		r.Get("/stats", s.handleStats)

		r.Get("/students", s.handleListStudents)
		r.Post("/students", s.handleLinkStudent)
		r.Delete("/students/{id}", s.handleUnlinkStudent)

		r.Get("/templates", s.handleListTemplates)
		r.Get("/templates/{id}", s.handleGetTemplate)
		r.Delete("/templates/{id}", s.handleDeleteTemplate)

		r.Get("/ranking", s.handleRanking)
		r.Get("/ranking/board", s.handleBoard)

		r.Get("/xp", s.handleListXP)
		r.Post("/xp/{id}/review", s.handleReviewXP)

		r.Get("/competitions/active", s.handleActiveCompetition)
		r.Post("/competitions", s.handleStartCompetition)
		r.Post("/competitions/active/end", s.handleEndCompetition)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Get("/events", s.handleSessionEvents)
				r.Post("/start", s.handleStartSession)
				r.Post("/stop", s.handleStopSession)
				r.Post("/rest/{exerciseID}/toggle", s.handleToggleRest)
				r.Post("/exercises/{exerciseID}/complete", s.handleToggleCompleted)
				r.Put("/exercises/{exerciseID}/weight", s.handleSetWeight)
				r.Post("/finalize", s.handleFinalize)
			})
		})
	})
}
