package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/ironpro/internal/models"
	"github.com/meltforce/ironpro/internal/storage"
	"github.com/meltforce/ironpro/internal/workout"
)

// fakeStore is an in-memory Store.
type fakeStore struct {
	mu           sync.Mutex
	profiles     map[string]*models.Profile // by ID
	links        map[string]models.StudentLink
	templates    map[string]models.WorkoutTemplate
	awards       []models.XPAward
	competitions []models.Competition
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles:  make(map[string]*models.Profile),
		links:     make(map[string]models.StudentLink),
		templates: make(map[string]models.WorkoutTemplate),
	}
}

func (f *fakeStore) GetOrCreateProfile(_ context.Context, login, displayName string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.Login == login {
			cp := *p
			return &cp, nil
		}
	}
	p := &models.Profile{ID: uuid.NewString(), Login: login, FullName: displayName, Role: models.RoleStudent}
	f.profiles[p.ID] = p
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetProfileByLogin(_ context.Context, login string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if strings.EqualFold(p.Login, login) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("profile %s: %w", login, storage.ErrNotFound)
}

func (f *fakeStore) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, storage.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) SetAnnouncement(_ context.Context, trainerID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[trainerID]
	if !ok {
		return storage.ErrNotFound
	}
	p.Announcement = text
	return nil
}

func (f *fakeStore) LinkStudent(_ context.Context, trainerID, studentID, planName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[studentID] = models.StudentLink{StudentID: studentID, TrainerID: trainerID, PlanName: planName}
	return nil
}

func (f *fakeStore) UnlinkStudent(_ context.Context, trainerID, studentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.links[studentID]
	if !ok || l.TrainerID != trainerID {
		return storage.ErrNotFound
	}
	delete(f.links, studentID)
	return nil
}

func (f *fakeStore) ListStudents(_ context.Context, trainerID string) ([]models.StudentLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []models.StudentLink{}
	for _, l := range f.links {
		if l.TrainerID == trainerID {
			l.FullName = f.profiles[l.StudentID].FullName
			result = append(result, l)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FullName < result[j].FullName })
	return result, nil
}

func (f *fakeStore) TrainerForStudent(_ context.Context, studentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.links[studentID]
	if !ok {
		return "", fmt.Errorf("trainer for student %s: %w", studentID, storage.ErrNotFound)
	}
	return l.TrainerID, nil
}

func (f *fakeStore) ListTemplates(_ context.Context, trainerID string) ([]models.WorkoutTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []models.WorkoutTemplate{}
	for _, t := range f.templates {
		if t.TrainerID == trainerID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (f *fakeStore) GetTemplate(_ context.Context, id string) (*models.WorkoutTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, storage.ErrNotFound)
	}
	return &t, nil
}

func (f *fakeStore) DeleteTemplate(_ context.Context, trainerID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[id]
	if !ok || t.TrainerID != trainerID {
		return storage.ErrNotFound
	}
	delete(f.templates, id)
	return nil
}

func (f *fakeStore) InsertAward(_ context.Context, a models.XPAward) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.awards {
		if existing.ID == a.ID {
			return false, nil
		}
	}
	f.awards = append(f.awards, a)
	return true, nil
}

func (f *fakeStore) GetAward(_ context.Context, id string) (*models.XPAward, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.awards {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("award %s: %w", id, storage.ErrNotFound)
}

func (f *fakeStore) ListAwards(_ context.Context, trainerID string, status models.XPStatus) ([]models.XPAward, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []models.XPAward{}
	for _, a := range f.awards {
		if a.TrainerID == trainerID && (status == "" || a.Status == status) {
			if p, ok := f.profiles[a.StudentID]; ok {
				a.StudentName = p.FullName
			}
			result = append(result, a)
		}
	}
	return result, nil
}

func (f *fakeStore) ListPendingAwards(ctx context.Context, trainerID string) ([]models.XPAward, error) {
	return f.ListAwards(ctx, trainerID, models.XPPending)
}

func (f *fakeStore) SetAwardStatus(_ context.Context, trainerID, id string, status models.XPStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.awards {
		a := &f.awards[i]
		if a.ID != id || a.TrainerID != trainerID {
			continue
		}
		if a.Status != models.XPPending {
			return storage.ErrConflict
		}
		a.Status = status
		a.ReviewedAt = &at
		return nil
	}
	return storage.ErrNotFound
}

func (f *fakeStore) ActiveCompetition(_ context.Context, trainerID string) (*models.Competition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.competitions {
		if c.TrainerID == trainerID && c.IsActive {
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) StartCompetition(_ context.Context, trainerID, name string, start, end time.Time) (*models.Competition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.competitions {
		if f.competitions[i].TrainerID == trainerID {
			f.competitions[i].IsActive = false
		}
	}
	c := models.Competition{ID: uuid.NewString(), TrainerID: trainerID, Name: name, StartDate: start, EndDate: end, IsActive: true}
	f.competitions = append(f.competitions, c)
	return &c, nil
}

func (f *fakeStore) EndCompetition(_ context.Context, trainerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.competitions {
		if f.competitions[i].TrainerID == trainerID && f.competitions[i].IsActive {
			f.competitions[i].IsActive = false
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) GetTrainerStats(_ context.Context, trainerID string) (*storage.TrainerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &storage.TrainerStats{TopCategories: []storage.CategoryStat{}}
	for _, l := range f.links {
		if l.TrainerID == trainerID {
			stats.Students++
		}
	}
	for _, a := range f.awards {
		if a.TrainerID == trainerID && a.Status == models.XPPending {
			stats.PendingAwards++
		}
	}
	return stats, nil
}

// addProfile stores a profile with a fixed role and returns it.
func (f *fakeStore) addProfile(login, name, role string) *models.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &models.Profile{ID: uuid.NewString(), Login: login, FullName: name, Role: role}
	f.profiles[p.ID] = p
	cp := *p
	return &cp
}

func (f *fakeStore) addTemplate(t models.WorkoutTemplate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates[t.ID] = t
}

func (f *fakeStore) awardList() []models.XPAward {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.XPAward(nil), f.awards...)
}

// fixture is a server with one trainer, one linked student and one template.
type fixture struct {
	store   *fakeStore
	sched   *workout.ManualScheduler
	trainer *models.Profile
	student *models.Profile
	srv     *Server
}

var t0ctx = context.Background()

var fixtureNow = time.Date(2024, 1, 25, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, devLogin string) *fixture {
	t.Helper()
	f := &fixture{store: newFakeStore(), sched: &workout.ManualScheduler{}}
	f.trainer = f.store.addProfile("coach@example.com", "Coach Ana", models.RoleTrainer)
	f.student = f.store.addProfile("dino@example.com", "Dino", models.RoleStudent)
	f.store.LinkStudent(context.Background(), f.trainer.ID, f.student.ID, "Hipertrofia")
	f.store.addTemplate(models.WorkoutTemplate{
		ID:        "tmpl-a",
		TrainerID: f.trainer.ID,
		Name:      "Treino A",
		Category:  "Peito",
		Exercises: []models.Exercise{
			{ID: "e1", Name: "Supino Reto", TargetSets: 4, TargetReps: "10-12", RestSeconds: 90},
			{ID: "e2", Name: "Crucifixo", TargetSets: 3, TargetReps: "12", RestSeconds: 60},
		},
	})

	f.srv = New(f.store, Options{
		APIKey:    "test-key",
		DevLogin:  devLogin,
		Scheduler: f.sched,
		Now:       func() time.Time { return fixtureNow },
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(f.srv.Close)
	return f
}
