// Package catalog records pipeline runs: which sites were processed, how
// many observations each produced, and which artifacts a run left behind.
// The catalog is bookkeeping around the pipeline, not a data store the
// pipeline reads from; losing it never corrupts outputs.
package catalog

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"
)

// RunStatus describes the lifecycle stage of a pipeline run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// SiteResult summarizes one site within a run.
type SiteResult struct {
	Site               string `json:"site"`
	Households         int    `json:"households"`
	Participants       int    `json:"participants"`
	Observations       int    `json:"observations"`
	MicroscopyPositive int    `json:"microscopy_positive"`
	ArtifactKey        string `json:"artifact_key,omitempty"`
	ETag               string `json:"etag,omitempty"`
}

// Run is one invocation of a pipeline stage.
type Run struct {
	ID         string       `json:"id"`
	Stage      string       `json:"stage"` // "reshape", "render" or "run"
	Status     RunStatus    `json:"status"`
	Error      string       `json:"error,omitempty"`
	Sites      []SiteResult `json:"sites,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// Store persists run records. Save is an upsert keyed by run ID so a run can
// be recorded as running and later updated with its outcome.
type Store interface {
	Save(ctx context.Context, run Run) error
	Get(ctx context.Context, id string) (Run, bool, error)
	// List returns all runs, most recently started first.
	List(ctx context.Context) ([]Run, error)
	Close() error
}

// NewRunID returns a random 128-bit hex identifier.
func NewRunID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}

// Memory is an in-memory Store for tests and the default no-catalog setup.
type Memory struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewMemory returns an in-memory run catalog.
func NewMemory() *Memory { return &Memory{runs: make(map[string]Run)} }

func (m *Memory) Save(_ context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id required")
	}
	m.mu.Lock()
	m.runs[run.ID] = cloneRun(run)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Run, bool, error) {
	m.mu.RLock()
	run, ok := m.runs[id]
	m.mu.RUnlock()
	if !ok {
		return Run{}, false, nil
	}
	return cloneRun(run), true, nil
}

func (m *Memory) List(_ context.Context) ([]Run, error) {
	m.mu.RLock()
	out := make([]Run, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, cloneRun(run))
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) Close() error { return nil }

func cloneRun(run Run) Run {
	dup := run
	if len(run.Sites) > 0 {
		dup.Sites = append([]SiteResult(nil), run.Sites...)
	}
	if run.FinishedAt != nil {
		t := *run.FinishedAt
		dup.FinishedAt = &t
	}
	return dup
}
