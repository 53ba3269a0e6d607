// Package report aggregates batch build results.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fulmenhq/mcpenv/pkg/ascii"
	"github.com/fulmenhq/mcpenv/pkg/builder"
)

// ErrEmptyBatch indicates a report over zero results
var ErrEmptyBatch = errors.New("empty batch: nothing to report")

// Summary is the aggregate of one batch.
type Summary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	// SuccessRate is 100*Successful/Total, floored.
	SuccessRate int     `json:"successRate"`
	Details     Details `json:"details"`
	// Errors maps failed names to their error text.
	Errors map[string]string `json:"-"`
	// Phases maps failed names to the build phase that failed, when known.
	Phases map[string]builder.Phase `json:"-"`
}

// Details lists names by outcome, in result order.
type Details struct {
	Successful []string `json:"successful"`
	Failed     []string `json:"failed"`
}

// Report summarizes results. An empty batch is an error.
func Report(results []builder.Result) (*Summary, error) {
	if len(results) == 0 {
		return nil, ErrEmptyBatch
	}
	s := &Summary{
		Total:   len(results),
		Details: Details{Successful: []string{}, Failed: []string{}},
		Errors:  map[string]string{},
		Phases:  map[string]builder.Phase{},
	}
	for _, r := range results {
		if r.Succeeded() {
			s.Successful++
			s.Details.Successful = append(s.Details.Successful, r.Name)
			continue
		}
		s.Failed++
		s.Details.Failed = append(s.Details.Failed, r.Name)
		var be *builder.BuildError
		switch {
		case errors.As(r.Err, &be):
			s.Phases[r.Name] = be.Phase
			s.Errors[r.Name] = be.Err.Error()
		case r.Err != nil:
			s.Errors[r.Name] = r.Err.Error()
		}
	}
	s.SuccessRate = 100 * s.Successful / s.Total
	return s, nil
}

// WriteJSON writes the summary as indented JSON.
func WriteJSON(w io.Writer, s *Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// maxLineWidth caps box lines so long error messages stay readable.
const maxLineWidth = 96

// WriteText writes the summary as a box.
func WriteText(w io.Writer, s *Summary) error {
	lines := []string{
		"Batch Build Report",
		"",
		fmt.Sprintf("Total:        %d", s.Total),
		fmt.Sprintf("Successful:   %d", s.Successful),
		fmt.Sprintf("Failed:       %d", s.Failed),
		fmt.Sprintf("Success rate: %d%%", s.SuccessRate),
	}
	if len(s.Details.Successful) > 0 {
		lines = append(lines, "", "Built:")
		for _, n := range s.Details.Successful {
			lines = append(lines, "  ✓ "+n)
		}
	}
	if len(s.Details.Failed) > 0 {
		title := cases.Title(language.English)
		lines = append(lines, "", "Failed:")
		for _, n := range s.Details.Failed {
			line := "  ✗ " + n
			if phase, ok := s.Phases[n]; ok && phase != "" {
				line += " [" + title.String(string(phase)) + "]"
			}
			if msg, ok := s.Errors[n]; ok {
				line += ": " + msg
			}
			lines = append(lines, ascii.TruncateForBox(line, maxLineWidth))
		}
	}
	_, err := io.WriteString(w, ascii.Box(lines))
	return err
}
