package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/meltforce/ironpro/internal/models"
	"github.com/meltforce/ironpro/internal/outbox"
	"github.com/meltforce/ironpro/internal/workout"
)

const helpText = `commands:
  start                  start the session clock
  stop                   stop the session clock
  rest <n> [seconds]     toggle the rest timer of exercise n
  done <n>               toggle exercise n completed
  weight <n> <value>     log the weight used for exercise n
  status                 show the session
  finish                 submit the XP award and exit
  quit                   exit without submitting`

// runner drives one workout session from text commands.
type runner struct {
	out     io.Writer
	mu      sync.Mutex
	rec     workout.AwardRecorder
	sched   workout.Scheduler
	log     *slog.Logger
	name    string
	plan    []models.Exercise
	session *workout.Session
}

func newRunner(out io.Writer, rec workout.AwardRecorder, sched workout.Scheduler, log *slog.Logger) *runner {
	return &runner{out: out, rec: rec, sched: sched, log: log}
}

func (r *runner) load(name string, plan []models.Exercise) {
	r.name = name
	r.plan = plan
	r.session = workout.New(plan,
		workout.WithScheduler(r.sched),
		workout.WithLogger(r.log),
		workout.WithOnExpired(func(id string) {
			r.printf("rest over for %s\n", r.exerciseName(id))
		}),
	)
}

func (r *runner) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func (r *runner) exerciseName(id string) string {
	for _, e := range r.plan {
		if e.ID == id {
			return e.Name
		}
	}
	return id
}

// exercise resolves a 1-based position in the plan.
func (r *runner) exercise(arg string) (models.Exercise, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(r.plan) {
		return models.Exercise{}, fmt.Errorf("no exercise %q (1-%d)", arg, len(r.plan))
	}
	return r.plan[n-1], nil
}

// exec runs one command line. It reports true when the runner should exit.
func (r *runner) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	args := fields[1:]

	switch fields[0] {
	case "help", "?":
		r.printf("%s\n", helpText)

	case "start":
		r.session.StartSession()
		r.printf("session started\n")

	case "stop":
		elapsed := r.session.Elapsed()
		r.session.StopSession()
		r.printf("session stopped at %s\n", workout.FormatElapsed(elapsed))

	case "rest":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: rest <n> [seconds]")
		}
		e, err := r.exercise(args[0])
		if err != nil {
			return false, err
		}
		seconds := e.RestSeconds
		if len(args) > 1 {
			if seconds, err = strconv.Atoi(args[1]); err != nil {
				return false, fmt.Errorf("invalid seconds %q", args[1])
			}
		}
		started, err := r.session.ToggleRest(e.ID, seconds)
		if err != nil {
			return false, err
		}
		if started {
			r.printf("resting %ds after %s\n", seconds, e.Name)
		} else {
			r.printf("rest cancelled\n")
		}

	case "done":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: done <n>")
		}
		e, err := r.exercise(args[0])
		if err != nil {
			return false, err
		}
		completed, err := r.session.ToggleExerciseCompleted(e.ID)
		if err != nil {
			return false, err
		}
		mark := "open"
		if completed {
			mark = "done"
		}
		r.printf("%s: %s (%d/%d)\n", e.Name, mark, r.session.CompletedCount(), len(r.plan))

	case "weight":
		if len(args) < 2 {
			return false, fmt.Errorf("usage: weight <n> <value>")
		}
		e, err := r.exercise(args[0])
		if err != nil {
			return false, err
		}
		if err := r.session.SetLoggedWeight(e.ID, strings.Join(args[1:], " ")); err != nil {
			return false, err
		}

	case "status":
		r.printStatus()

	case "finish":
		award, err := r.session.Finalize(ctx, r.rec, workout.FinalizeRequest{})
		if err != nil {
			return false, err
		}
		if rec, ok := r.rec.(*outbox.Recorder); ok && rec.Queued {
			r.printf("server unreachable: %d XP queued, it will be sent next time\n", award.Amount)
		} else {
			r.printf("%d XP submitted for review\n", award.Amount)
		}
		return true, nil

	case "quit", "exit":
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %q, try help", fields[0])
	}
	return false, nil
}

func (r *runner) printStatus() {
	st := r.session.Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s", r.name, st.Elapsed)
	if !st.Started {
		b.WriteString(" (stopped)")
	}
	b.WriteString("\n")
	for i, e := range st.Exercises {
		mark := " "
		if e.Completed {
			mark = "x"
		}
		fmt.Fprintf(&b, "  [%s] %d. %s  %dx%s", mark, i+1, e.Name, e.TargetSets, e.TargetReps)
		if w := e.LoggedWeight; w != "" {
			fmt.Fprintf(&b, "  @ %s", w)
		} else if e.DefaultLoad != "" {
			fmt.Fprintf(&b, "  (%s)", e.DefaultLoad)
		}
		if st.Rest != nil && st.Rest.ExerciseID == e.ID {
			fmt.Fprintf(&b, "  rest %ds", st.Rest.RemainingSeconds)
		}
		b.WriteString("\n")
	}
	r.printf("%s", b.String())
}
