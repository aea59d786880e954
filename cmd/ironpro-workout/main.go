package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/meltforce/ironpro/internal/client"
	"github.com/meltforce/ironpro/internal/outbox"
	"github.com/meltforce/ironpro/internal/workout"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Config is read from the environment.
type Config struct {
	ServerURL  string        `env:"IRONPRO_SERVER_URL,required"`
	APIKey     string        `env:"IRONPRO_API_KEY,required"`
	Login      string        `env:"IRONPRO_LOGIN,required"`
	TemplateID string        `env:"IRONPRO_TEMPLATE,required"`
	OutboxDir  string        `env:"IRONPRO_OUTBOX_DIR,expand" envDefault:"${HOME}/.ironpro-workout"`
	LogLevel   slog.Level    `env:"IRONPRO_LOG_LEVEL" envDefault:"INFO"`
	Timeout    time.Duration `env:"IRONPRO_TIMEOUT" envDefault:"30s"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	log.Info("ironpro-workout starting", "version", Version, "server", cfg.ServerURL)

	box, err := outbox.Open(cfg.OutboxDir)
	if err != nil {
		return err
	}
	defer box.Close()

	c := client.NewClient(cfg.ServerURL, cfg.APIKey, cfg.Login)
	isRejected := func(err error) bool { return errors.Is(err, client.ErrRejected) }

	flushCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	res, err := box.Flush(flushCtx, c, isRejected, log)
	cancel()
	if err != nil {
		log.Warn("outbox flush interrupted", "error", err)
	} else if res.Sent+res.Dropped+res.Remained > 0 {
		log.Info("outbox flushed", "sent", res.Sent, "dropped", res.Dropped, "remaining", res.Remained)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	tmpl, err := c.FetchTemplate(fetchCtx, cfg.TemplateID)
	cancel()
	if err != nil {
		return fmt.Errorf("fetching template: %w", err)
	}

	rec := &outbox.Recorder{Sub: c, Box: box, Log: log, Permanent: isRejected}
	r := newRunner(out, rec, workout.TickerScheduler{}, log)
	r.load(tmpl.Name, tmpl.Exercises)
	defer r.session.Close()

	fmt.Fprintf(out, "%s: %d exercises. Type \"help\" for commands.\n", tmpl.Name, len(tmpl.Exercises))

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			done, err := r.exec(ctx, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if done {
				return nil
			}
		}
	}
}
