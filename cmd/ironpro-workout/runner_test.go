package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/meltforce/ironpro/internal/models"
	"github.com/meltforce/ironpro/internal/outbox"
	"github.com/meltforce/ironpro/internal/workout"
)

var plan = []models.Exercise{
	{ID: "e1", Name: "Supino Reto", TargetSets: 4, TargetReps: "10-12", RestSeconds: 90, DefaultLoad: "24kg"},
	{ID: "e2", Name: "Crucifixo", TargetSets: 3, TargetReps: "12", RestSeconds: 3},
}

type captureRecorder struct {
	awards []models.XPAward
	err    error
}

func (c *captureRecorder) RecordAward(_ context.Context, a models.XPAward) error {
	if c.err != nil {
		return c.err
	}
	c.awards = append(c.awards, a)
	return nil
}

func newTestRunner(rec workout.AwardRecorder) (*runner, *workout.ManualScheduler, *bytes.Buffer) {
	var out bytes.Buffer
	sched := &workout.ManualScheduler{}
	r := newRunner(&out, rec, sched, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.load("Push Day", plan)
	return r, sched, &out
}

func mustExec(t *testing.T, r *runner, line string) bool {
	t.Helper()
	done, err := r.exec(context.Background(), line)
	if err != nil {
		t.Fatalf("exec(%q): %v", line, err)
	}
	return done
}

func TestRunnerFinish(t *testing.T) {
	rec := &captureRecorder{}
	r, sched, out := newTestRunner(rec)

	if _, err := r.exec(context.Background(), "done 1"); !errors.Is(err, workout.ErrInvalidState) {
		t.Fatalf("done before start: err = %v, want ErrInvalidState", err)
	}

	mustExec(t, r, "start")
	sched.Advance(75)
	mustExec(t, r, "done 1")
	mustExec(t, r, "done 2")
	mustExec(t, r, "weight 1 26 kg")
	mustExec(t, r, "status")

	if !strings.Contains(out.String(), "01:15") {
		t.Errorf("status output missing elapsed time:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "@ 26 kg") {
		t.Errorf("status output missing logged weight:\n%s", out.String())
	}

	if done := mustExec(t, r, "finish"); !done {
		t.Error("finish did not end the runner")
	}
	if len(rec.awards) != 1 || rec.awards[0].Amount != 2*workout.DefaultXPPerExercise {
		t.Errorf("awards = %+v", rec.awards)
	}
}

func TestRunnerRest(t *testing.T) {
	r, sched, out := newTestRunner(&captureRecorder{})

	mustExec(t, r, "rest 2")
	sched.Advance(3)
	if !strings.Contains(out.String(), "rest over for Crucifixo") {
		t.Errorf("expiry not announced:\n%s", out.String())
	}

	mustExec(t, r, "rest 1 30")
	mustExec(t, r, "rest 1")
	if _, _, active := r.session.RestStatus(); active {
		t.Error("second rest toggle left the timer running")
	}

	if _, err := r.exec(context.Background(), "rest 1 0"); !errors.Is(err, workout.ErrDegenerateDuration) {
		t.Errorf("rest 0s: err = %v, want ErrDegenerateDuration", err)
	}
}

func TestRunnerBadInput(t *testing.T) {
	r, _, _ := newTestRunner(&captureRecorder{})
	for _, line := range []string{"done 9", "done x", "rest", "weight 1", "dance"} {
		if _, err := r.exec(context.Background(), line); err == nil {
			t.Errorf("exec(%q): expected error", line)
		}
	}
	if done := mustExec(t, r, "   "); done {
		t.Error("blank line ended the runner")
	}
	if done := mustExec(t, r, "quit"); !done {
		t.Error("quit did not end the runner")
	}
}

type downSubmitter struct{}

func (downSubmitter) SubmitAward(context.Context, models.XPAward) error {
	return errors.New("connection refused")
}

func TestRunnerFinishQueuesWhenOffline(t *testing.T) {
	box, err := outbox.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer box.Close()

	rec := &outbox.Recorder{Sub: downSubmitter{}, Box: box, Log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	r, _, out := newTestRunner(rec)
	mustExec(t, r, "start")
	mustExec(t, r, "done 1")
	mustExec(t, r, "finish")

	if !strings.Contains(out.String(), "queued") {
		t.Errorf("output = %q, want queued notice", out.String())
	}
	pending, err := box.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Amount != workout.DefaultXPPerExercise {
		t.Errorf("pending = %+v", pending)
	}
}
