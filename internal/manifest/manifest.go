// Package manifest records one JSON document per pipeline run so every gold
// artifact can be traced back to the exact inputs that produced it.
package manifest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"fudata/internal/config"
	"fudata/internal/fetch"
)

// Step is one recorded unit of work inside a run.
type Step struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Manifest is the persisted record of one run.
type Manifest struct {
	RunID      string         `json:"run_id"`
	Command    string         `json:"command"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Inputs     []fetch.Result `json:"inputs,omitempty"`
	Steps      []Step         `json:"steps,omitempty"`
}

// Recorder accumulates a manifest during a run and persists it once at the
// end.
type Recorder struct {
	paths    *config.Paths
	logger   *slog.Logger
	manifest Manifest
}

// NewRecorder starts a manifest for one command invocation.
func NewRecorder(command string, paths *config.Paths, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		paths:  paths,
		logger: logger,
		manifest: Manifest{
			RunID:     uuid.NewString(),
			Command:   command,
			StartedAt: time.Now().UTC(),
			Status:    "running",
		},
	}
}

// RunID returns the run identifier for log correlation.
func (r *Recorder) RunID() string {
	return r.manifest.RunID
}

// RecordInput attaches a fetched artifact to the run.
func (r *Recorder) RecordInput(res fetch.Result) {
	r.manifest.Inputs = append(r.manifest.Inputs, res)
}

// RecordStep appends a completed step. A nil err marks the step ok.
func (r *Recorder) RecordStep(name string, detail string, duration time.Duration, err error) {
	step := Step{Name: name, Detail: detail, Duration: duration, Status: "ok"}
	if err != nil {
		step.Status = "failed"
		if step.Detail == "" {
			step.Detail = err.Error()
		} else {
			step.Detail = fmt.Sprintf("%s: %v", detail, err)
		}
	}
	r.manifest.Steps = append(r.manifest.Steps, step)
}

// Close finalizes the manifest with the run outcome and writes it to the
// manifests directory.
func (r *Recorder) Close(runErr error) error {
	r.manifest.FinishedAt = time.Now().UTC()
	r.manifest.Status = "completed"
	if runErr != nil {
		r.manifest.Status = "failed"
		r.manifest.Error = runErr.Error()
	}

	if err := os.MkdirAll(r.paths.ManifestsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create manifests directory: %w", err)
	}

	name := fmt.Sprintf("run_%s_%s.json",
		r.manifest.StartedAt.Format("20060102T150405Z"), r.manifest.RunID)
	path := filepath.Join(r.paths.ManifestsDir(), name)

	data, err := json.MarshalIndent(r.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	r.logger.Info("run manifest written",
		slog.String("run_id", r.manifest.RunID),
		slog.String("status", r.manifest.Status),
		slog.String("path", path))
	return nil
}

// List returns the manifests on disk, newest first.
func List(paths *config.Paths) ([]Manifest, error) {
	entries, err := os.ReadDir(paths.ManifestsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifests directory: %w", err)
	}

	var manifests []Manifest
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(paths.ManifestsDir(), entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest %s: %w", entry.Name(), err)
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to decode manifest %s: %w", entry.Name(), err)
		}
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].StartedAt.After(manifests[j].StartedAt)
	})
	return manifests, nil
}
