// Package templates reads a trainer's plan export into workout templates.
//
// The export is a semicolon separated text file. Each template starts with a
// header line, followed by one line per exercise:
//
//	"Push Day";"Strength"
//	"1. Supino Reto · Halteres · 4 x 10-12 · 90s";"24kg"
//	"2. Crucifixo · 3 x 12"
//
// A blank line ends a template.
package templates

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/meltforce/ironpro/internal/models"
)

// DefaultRestSeconds is used when an exercise line carries no rest period.
const DefaultRestSeconds = 60

var (
	// exerciseRe matches: "1. Name[ · Equipment] · 4 x 10-12[ · 90s]"[;"24kg"]
	exerciseRe = regexp.MustCompile(`^"(\d+)\.\s+(.+?)(?:\s+·\s+(\S.*?))?\s+·\s+(\d+)\s*x\s*(\d+(?:-\d+)?)(?:\s+·\s+(\d+)\s*s)?"(?:;"(.*)")?$`)

	// headerRe matches: "Template Name";"Category"
	headerRe = regexp.MustCompile(`^"([^"]+)";"([^"]*)"$`)
)

// Parse reads a plan export and returns the templates it contains. Lines
// that match neither a header nor an exercise are skipped.
func Parse(r io.Reader) ([]models.WorkoutTemplate, error) {
	scanner := bufio.NewScanner(r)
	var (
		result  []models.WorkoutTemplate
		current *models.WorkoutTemplate
		lineNo  int
	)

	flush := func() {
		if current != nil {
			result = append(result, *current)
			current = nil
		}
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			flush()
			continue
		}

		if m := exerciseRe.FindStringSubmatch(line); m != nil {
			if current == nil {
				return nil, fmt.Errorf("line %d: exercise without template: %q", lineNo, line)
			}
			num, _ := strconv.Atoi(m[1])
			sets, _ := strconv.Atoi(m[4])
			rest := DefaultRestSeconds
			if m[6] != "" {
				rest, _ = strconv.Atoi(m[6])
			}
			for _, e := range current.Exercises {
				if e.ID == exerciseID(num) {
					return nil, fmt.Errorf("line %d: duplicate exercise number %d in %q", lineNo, num, current.Name)
				}
			}
			current.Exercises = append(current.Exercises, models.Exercise{
				ID:          exerciseID(num),
				Name:        strings.TrimSpace(m[2]),
				Equipment:   strings.TrimSpace(m[3]),
				TargetSets:  sets,
				TargetReps:  m[5],
				RestSeconds: rest,
				DefaultLoad: strings.TrimSpace(m[7]),
			})
			continue
		}

		if m := headerRe.FindStringSubmatch(line); m != nil {
			flush()
			current = &models.WorkoutTemplate{
				Name:      strings.TrimSpace(m[1]),
				Category:  strings.TrimSpace(m[2]),
				Exercises: []models.Exercise{},
			}
			continue
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	return result, nil
}

func exerciseID(num int) string {
	return "e" + strconv.Itoa(num)
}
