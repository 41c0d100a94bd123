package pipeline_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/require"

	"tap-appstore/internal/appstore"
	"tap-appstore/internal/model"
	"tap-appstore/internal/pipeline"
	"tap-appstore/internal/schema"
)

type response struct {
	text   string
	object map[string]any
	err    error
}

// fakeClient answers from a table keyed by "<reportType>@<reportDate>".
// Each key holds a queue; the last response of a queue repeats.
type fakeClient struct {
	mu        sync.Mutex
	responses map[string][]response
	calls     []map[string]string
}

func newFakeClient() *fakeClient {
	return &fakeClient{responses: make(map[string][]response)}
}

func (f *fakeClient) on(reportType, reportDate string, r ...response) *fakeClient {
	key := reportType + "@" + reportDate
	f.responses[key] = append(f.responses[key], r...)
	return f
}

func (f *fakeClient) answer(filters map[string]string) (*appstore.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := make(map[string]string, len(filters))
	for k, v := range filters {
		copied[k] = v
	}
	f.calls = append(f.calls, copied)

	key := filters["reportType"] + "@" + filters["reportDate"]
	queue := f.responses[key]
	if len(queue) == 0 {
		return &appstore.Report{}, nil
	}
	r := queue[0]
	if len(queue) > 1 {
		f.responses[key] = queue[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.object != nil {
		return &appstore.Report{Object: r.object}, nil
	}
	return &appstore.Report{Text: r.text}, nil
}

func (f *fakeClient) DownloadSalesReport(_ context.Context, filters map[string]string) (*appstore.Report, error) {
	return f.answer(filters)
}

func (f *fakeClient) DownloadFinanceReport(_ context.Context, filters map[string]string) (*appstore.Report, error) {
	filters["endpoint"] = "finance"
	return f.answer(filters)
}

func (f *fakeClient) reportDates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c["reportDate"])
	}
	return out
}

type emitted struct {
	stream string
	record model.Record
}

// recordingSink keeps every message and a copy of every flushed state.
type recordingSink struct {
	schemas []string
	records []emitted
	states  []*model.State
	failOn  int // fail the n-th WriteState when > 0
}

func (r *recordingSink) WriteSchema(stream string, _ *jsonschema.Schema, _ []string) error {
	r.schemas = append(r.schemas, stream)
	return nil
}

func (r *recordingSink) WriteRecord(stream string, rec model.Record, _ time.Time) error {
	r.records = append(r.records, emitted{stream: stream, record: rec})
	return nil
}

func (r *recordingSink) WriteState(state *model.State) error {
	if r.failOn > 0 && len(r.states)+1 == r.failOn {
		r.failOn = 0
		return errDisk
	}
	r.states = append(r.states, state.Clone())
	return nil
}

func (r *recordingSink) checkpoints(stream string) []string {
	out := make([]string, 0, len(r.states))
	for _, s := range r.states {
		v, _ := s.StartDate(stream)
		out = append(out, v)
	}
	return out
}

func (r *recordingSink) recordsOf(stream string) []model.Record {
	var out []model.Record
	for _, e := range r.records {
		if e.stream == stream {
			out = append(out, e.record)
		}
	}
	return out
}

type stubError string

func (e stubError) Error() string { return string(e) }

const errDisk = stubError("disk full")

func date(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedClock(s string) func() time.Time {
	t := date(s)
	return func() time.Time { return t }
}

// captureLogger returns a logger writing text to buf at debug level.
func captureLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: pipeline.ReplaceLevel,
	}))
}

// catalogFor builds a catalog from the embedded schemas with the named
// streams selected.
func catalogFor(t *testing.T, names ...string) *model.Catalog {
	t.Helper()
	schemas, err := schema.Load()
	require.NoError(t, err)

	catalog := &model.Catalog{}
	for _, name := range names {
		s, ok := schemas[name]
		if !ok {
			s = &jsonschema.Schema{}
		}
		entry := schema.Entry(name, s)
		entry.Metadata[0].Metadata["selected"] = true
		catalog.Streams = append(catalog.Streams, entry)
	}
	return catalog
}

func newEngine(client pipeline.ReportClient, sink pipeline.Sink, now, start string, buf *bytes.Buffer) *pipeline.Engine {
	if buf == nil {
		buf = &bytes.Buffer{}
	}
	logger := captureLogger(buf)
	return &pipeline.Engine{
		Registry:  pipeline.DefaultRegistry(),
		Client:    client,
		Sink:      sink,
		Tracker:   pipeline.NewTracker("test-run", nil, logger),
		Logger:    logger,
		Clock:     fixedClock(now),
		Vendor:    "85012345",
		StartDate: date(start),
		Retry:     model.RetryConfig{MaxAttempts: 3},
	}
}
