// Package store persists the run log: one row per pipeline run and one row
// per track outcome, so the provenance of each artifact (dataset id, live or
// fallback) can be audited after the fact.
package store

import (
	"context"
	"time"
)

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// TrackStatus describes how a track concluded.
type TrackStatus string

const (
	// TrackStatusLive means live retrieval produced the artifact.
	TrackStatusLive TrackStatus = "live"
	// TrackStatusFallback means a bundled reference file produced the artifact.
	TrackStatusFallback TrackStatus = "fallback"
	// TrackStatusSkipped means no data and no bundled file; the artifact was omitted.
	TrackStatusSkipped TrackStatus = "skipped"
)

// Run is one pipeline invocation for a budget year.
type Run struct {
	ID        string    `json:"id"`
	Year      int       `json:"year"`
	Status    RunStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TrackResult is the recorded outcome of one track within a run.
type TrackResult struct {
	Track     string      `json:"track"`
	Status    TrackStatus `json:"status"`
	DatasetID string      `json:"dataset_id,omitempty"`
	Rows      int         `json:"rows"`
	Artifact  string      `json:"artifact,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Store defines the run-log persistence interface.
type Store interface {
	CreateRun(ctx context.Context, year int) (*Run, error)
	CompleteRun(ctx context.Context, runID string, status RunStatus) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	RecordTrack(ctx context.Context, runID string, result TrackResult) error
	ListTracks(ctx context.Context, runID string) ([]TrackResult, error)

	Migrate(ctx context.Context) error
	Close() error
}
