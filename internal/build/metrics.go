package build

import (
	"sync"
	"time"
)

// MetricsSnapshot is a copy of the build counters at one point in time.
type MetricsSnapshot struct {
	Builds          int64         `json:"builds"`
	Failures        int64         `json:"failures"`
	SuccessRate     float64       `json:"success_rate"`
	LastSuccess     bool          `json:"last_success"`
	LastDuration    time.Duration `json:"last_duration_ns"`
	AverageDuration time.Duration `json:"average_duration_ns"`
	LastBuildAt     time.Time     `json:"last_build_at,omitempty"`
}

// BuildMetrics counts the rebuilds of one Trigger.
type BuildMetrics struct {
	mu            sync.RWMutex
	builds        int64
	failures      int64
	totalDuration time.Duration
	lastDuration  time.Duration
	lastSuccess   bool
	lastBuildAt   time.Time
	now           func() time.Time
}

// NewBuildMetrics creates empty build metrics.
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{now: time.Now}
}

// RecordBuild records a finished rebuild.
func (bm *BuildMetrics) RecordBuild(outcome Outcome) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	bm.builds++
	if !outcome.Success {
		bm.failures++
	}
	bm.totalDuration += outcome.Duration
	bm.lastDuration = outcome.Duration
	bm.lastSuccess = outcome.Success
	bm.lastBuildAt = bm.now()
}

// Snapshot returns the current counters. The success rate is a percentage,
// zero before the first build.
func (bm *BuildMetrics) Snapshot() MetricsSnapshot {
	bm.mu.RLock()
	defer bm.mu.RUnlock()

	s := MetricsSnapshot{
		Builds:       bm.builds,
		Failures:     bm.failures,
		LastSuccess:  bm.lastSuccess,
		LastDuration: bm.lastDuration,
		LastBuildAt:  bm.lastBuildAt,
	}
	if bm.builds > 0 {
		s.SuccessRate = float64(bm.builds-bm.failures) / float64(bm.builds) * 100
		s.AverageDuration = bm.totalDuration / time.Duration(bm.builds)
	}
	return s
}
