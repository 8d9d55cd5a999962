package pipeline

import (
	"context"
	"log/slog"
	"sync"
)

// Stage names a step of the recognition state machine.
type Stage string

const (
	StageInit           Stage = "INIT"
	StageLowResScan     Stage = "LOW_RES_SCAN"
	StageROISelect      Stage = "ROI_SELECT"
	StageCropEnhance    Stage = "CROP_ENHANCE"
	StageRotationSearch Stage = "ROTATION_SEARCH"
	StageDone           Stage = "DONE"
	StageCancelled      Stage = "CANCELLED"
	StageFailed         Stage = "FAILED"
)

// ProgressSink receives advisory progress in [0,1]. Values delivered to a
// sink by Run never decrease.
type ProgressSink interface {
	OnProgress(stage Stage, fraction float64)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(stage Stage, fraction float64)

func (f ProgressFunc) OnProgress(stage Stage, fraction float64) { f(stage, fraction) }

// NoOpProgress discards all progress.
type NoOpProgress struct{}

func (NoOpProgress) OnProgress(Stage, float64) {}

// LogProgress logs progress updates using slog.
type LogProgress struct {
	logger *slog.Logger
	level  slog.Level
	key    string
}

// NewLogProgress creates a log-based progress reporter tagged with key.
func NewLogProgress(logger *slog.Logger, level slog.Level, key string) *LogProgress {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgress{logger: logger, level: level, key: key}
}

func (l *LogProgress) OnProgress(stage Stage, fraction float64) {
	l.logger.Log(context.Background(), l.level, "Recognition progress",
		"key", l.key, "stage", string(stage), "progress", fraction)
}

// MultiProgress fans progress out to several sinks.
type MultiProgress []ProgressSink

func (m MultiProgress) OnProgress(stage Stage, fraction float64) {
	for _, s := range m {
		s.OnProgress(stage, fraction)
	}
}

// monotonic drops updates that would move progress backwards.
type monotonic struct {
	mu   sync.Mutex
	sink ProgressSink
	last float64
}

func newMonotonic(sink ProgressSink) *monotonic {
	if sink == nil {
		sink = NoOpProgress{}
	}
	return &monotonic{sink: sink, last: -1}
}

func (m *monotonic) OnProgress(stage Stage, fraction float64) {
	fraction = min(1, max(0, fraction))
	m.mu.Lock()
	defer m.mu.Unlock()
	if fraction < m.last {
		return
	}
	m.last = fraction
	m.sink.OnProgress(stage, fraction)
}

// current returns the last delivered value, or 0.
func (m *monotonic) current() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return max(0, m.last)
}
