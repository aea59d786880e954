package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/meltforce/ironpro/internal/config"
	"github.com/meltforce/ironpro/internal/models"
	"github.com/meltforce/ironpro/internal/storage"
	"github.com/meltforce/ironpro/internal/templates"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	path := flag.String("path", "", "plan export file or directory of exports (required)")
	trainer := flag.String("trainer", "", "login of the trainer who owns the templates (required)")
	dryRun := flag.Bool("dry-run", false, "parse and report without inserting into database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *path == "" || *trainer == "" {
		fmt.Fprintf(os.Stderr, "Usage: ironpro-import -config config.yaml -trainer <login> -path <export> [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode, no data will be written to the database")
	}

	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	owner, err := db.GetOrCreateProfile(ctx, *trainer, *trainer)
	if err != nil {
		log.Error("failed to resolve trainer", "login", *trainer, "error", err)
		os.Exit(1)
	}
	if owner.Role != models.RoleTrainer && !*dryRun {
		if err := db.SetRole(ctx, owner.ID, models.RoleTrainer); err != nil {
			log.Error("failed to promote trainer", "login", *trainer, "error", err)
			os.Exit(1)
		}
		log.Info("profile promoted to trainer", "login", owner.Login)
	}

	imp := templates.NewImporter(db, log, *dryRun)
	stats, err := imp.Import(ctx, *path, owner.ID)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(stats)
		os.Exit(1)
	}

	printStats(stats)
	log.Info("import complete")
}

func printStats(stats *templates.Stats) {
	fmt.Println()
	fmt.Println("=== Import Summary ===")
	fmt.Printf("  Files processed:  %d\n", stats.FilesProcessed)
	fmt.Printf("  Files errored:    %d\n", stats.FilesErrored)
	fmt.Println()
	fmt.Printf("  Templates added:  %d\n", stats.TemplatesInserted)
	fmt.Printf("  Duplicates:       %d (name already in library)\n", stats.TemplatesDuplicated)
	fmt.Printf("  Exercises:        %d\n", stats.ExercisesInserted)
	fmt.Println()
}
