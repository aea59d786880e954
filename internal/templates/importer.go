package templates

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/meltforce/ironpro/internal/models"
)

// Store is the part of the database the importer writes to.
type Store interface {
	ListTemplates(ctx context.Context, trainerID string) ([]models.WorkoutTemplate, error)
	InsertTemplate(ctx context.Context, t models.WorkoutTemplate) (string, error)
}

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesErrored   int

	TemplatesInserted   int
	TemplatesDuplicated int
	ExercisesInserted   int
}

// Importer loads plan exports into a trainer's template library.
type Importer struct {
	db     Store
	log    *slog.Logger
	dryRun bool
	stats  Stats
}

// NewImporter creates a new Importer.
func NewImporter(db Store, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{db: db, log: log, dryRun: dryRun}
}

// Import reads every export under path (a file, or a directory of .txt and
// .csv files) and inserts the templates for trainerID. Templates whose name
// already exists in the library are skipped.
func (imp *Importer) Import(ctx context.Context, path, trainerID string) (*Stats, error) {
	files, err := exportFiles(path)
	if err != nil {
		return &imp.stats, err
	}

	existing, err := imp.db.ListTemplates(ctx, trainerID)
	if err != nil {
		return &imp.stats, fmt.Errorf("listing templates: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[strings.ToLower(t.Name)] = true
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return &imp.stats, err
		}
		if err := imp.importFile(ctx, file, trainerID, seen); err != nil {
			imp.log.Error("import failed", "file", file, "error", err)
			imp.stats.FilesErrored++
			continue
		}
		imp.stats.FilesProcessed++
	}
	return &imp.stats, nil
}

func (imp *Importer) importFile(ctx context.Context, file, trainerID string, seen map[string]bool) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	parsed, err := Parse(f)
	if err != nil {
		return err
	}

	for _, t := range parsed {
		key := strings.ToLower(t.Name)
		if seen[key] {
			imp.log.Info("template exists, skipping", "name", t.Name)
			imp.stats.TemplatesDuplicated++
			continue
		}
		seen[key] = true

		if !imp.dryRun {
			t.TrainerID = trainerID
			id, err := imp.db.InsertTemplate(ctx, t)
			if err != nil {
				return fmt.Errorf("inserting %q: %w", t.Name, err)
			}
			imp.log.Info("template imported", "name", t.Name, "id", id, "exercises", len(t.Exercises))
		}
		imp.stats.TemplatesInserted++
		imp.stats.ExercisesInserted += len(t.Exercises)
	}
	return nil
}

func exportFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".txt" && ext != ".csv") {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
