package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"tap-appstore/internal/model"
)

// RunRecorder persists run progress.
type RunRecorder interface {
	SaveRunError(e model.RunError) error
	SaveRunStream(runID string, m model.StreamMetrics) error
}

// Tracker counts records and windows per stream for one run. The recorder
// is optional; recorder failures are logged and never fail the run.
type Tracker struct {
	runID    string
	recorder RunRecorder
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	streams  map[string]*model.StreamMetrics
	order    []string
	attempts int
}

// NewTracker returns a tracker for runID. recorder may be nil.
func NewTracker(runID string, recorder RunRecorder, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		runID:    runID,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
		streams:  make(map[string]*model.StreamMetrics),
	}
}

// RunID returns the id of the tracked run.
func (t *Tracker) RunID() string { return t.runID }

func (t *Tracker) metrics(stream string) *model.StreamMetrics {
	m, ok := t.streams[stream]
	if !ok {
		m = &model.StreamMetrics{Stream: stream, StartedAt: t.now().UTC()}
		t.streams[stream] = m
		t.order = append(t.order, stream)
	}
	return m
}

// Attempt records the number of the sync attempt in progress.
func (t *Tracker) Attempt(n int) {
	t.mu.Lock()
	t.attempts = n
	t.mu.Unlock()
}

// Attempts returns the last recorded attempt number.
func (t *Tracker) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// StreamStarted registers a stream before its first window.
func (t *Tracker) StreamStarted(stream string) {
	t.mu.Lock()
	t.metrics(stream)
	t.mu.Unlock()
}

// WindowFetched counts a processed window and its records.
func (t *Tracker) WindowFetched(stream string, records int) {
	t.mu.Lock()
	m := t.metrics(stream)
	m.WindowsFetched++
	m.Records += int64(records)
	t.mu.Unlock()
}

// WindowSkipped counts a skipped window and records why.
func (t *Tracker) WindowSkipped(stream, reportDate string, err error) {
	t.mu.Lock()
	t.metrics(stream).WindowsSkipped++
	t.mu.Unlock()

	if t.recorder == nil || err == nil {
		return
	}
	rec := model.RunError{
		RunID:      t.runID,
		Stream:     stream,
		ReportDate: reportDate,
		Message:    err.Error(),
		CreatedAt:  t.now().UTC(),
	}
	if err := t.recorder.SaveRunError(rec); err != nil {
		t.logger.Warn("could not record skipped window", "stream", stream, "report_date", reportDate, "error", err)
	}
}

// Checkpoint notes the last checkpoint flushed for a stream.
func (t *Tracker) Checkpoint(stream, value string) {
	t.mu.Lock()
	t.metrics(stream).Checkpoint = value
	t.mu.Unlock()
}

// StreamFinished stamps the stream and persists its metrics.
func (t *Tracker) StreamFinished(stream string) {
	t.mu.Lock()
	m := t.metrics(stream)
	m.FinishedAt = t.now().UTC()
	snapshot := *m
	t.mu.Unlock()

	if t.recorder == nil {
		return
	}
	if err := t.recorder.SaveRunStream(t.runID, snapshot); err != nil {
		t.logger.Warn("could not record stream metrics", "stream", stream, "error", err)
	}
}

// Streams returns a copy of the metrics in the order streams started.
func (t *Tracker) Streams() []model.StreamMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.StreamMetrics, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.streams[name])
	}
	return out
}

// Records is the total record count across streams.
func (t *Tracker) Records() int64 {
	var total int64
	for _, m := range t.Streams() {
		total += m.Records
	}
	return total
}

// LogCounts writes one summary line per stream.
func (t *Tracker) LogCounts() {
	for _, m := range t.Streams() {
		t.logger.Info("stream summary",
			"stream", m.Stream,
			"records", m.Records,
			"windows_fetched", m.WindowsFetched,
			"windows_skipped", m.WindowsSkipped,
			"checkpoint", m.Checkpoint,
		)
	}
}
