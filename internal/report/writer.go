// Package report builds and checks the JSON summary of a refblend run.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileName is the report's name inside the output directory.
const FileName = "refblend.report.json"

// New creates an empty report with defaults.
func New(profileName string, params Params) *Report {
	return &Report{
		Version:     SupportedReportVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		RunID:       uuid.NewString(),
		Profile:     profileName,
		Params:      params,
		Frames:      []FrameStats{},
	}
}

// Millis converts a duration to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// ComputeStats recalculates aggregate statistics from frames. Dropped is
// not derivable from frames and is kept.
func (r *Report) ComputeStats() {
	s := Stats{Dropped: r.Stats.Dropped}
	s.TotalFrames = len(r.Frames)
	var total float64
	for _, f := range r.Frames {
		if f.Reindexed {
			s.Reindexes++
		}
		s.TotalBlocks += f.Blocks
		s.Interpolated += f.Interpolated
		s.Faults += f.Faults
		s.TotalOutputBytes += f.Size
		total += f.Timing.Total
		if f.Timing.OverheadWarn || f.Timing.CrossGapWarn {
			s.TimingWarnings++
		}
	}
	if s.TotalFrames > 0 {
		s.MeanFrameMS = total / float64(s.TotalFrames)
		last := r.Frames[len(r.Frames)-1]
		r.EMA = last.EMA
	}
	r.Stats = s
}

// WriteJSON serializes the report to a JSON file.
func WriteJSON(r *Report, path string) error {
	r.ComputeStats()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// Read loads a report from path, or from FileName inside path when it
// is a directory.
func Read(path string) (*Report, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		path = filepath.Join(path, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, "", fmt.Errorf("parse report: %w", err)
	}
	return &r, path, nil
}
