// Package pipeline is the incremental extraction engine: it walks report
// windows per stream, turns vendor reports into records and flushes a
// bookmark after every window.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tap-appstore/internal/model"
)

// Engine runs discovery and syncs. Streams and windows are processed one at
// a time on the calling goroutine.
type Engine struct {
	Registry     Registry
	Client       ReportClient
	Sink         Sink
	Tracker      *Tracker
	Logger       *slog.Logger
	Clock        func() time.Time
	Vendor       string
	StartDate    time.Time
	LookbackDays int
	Retry        model.RetryConfig
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now().UTC()
	}
	return e.Clock().UTC()
}

func (e *Engine) tracker() *Tracker {
	if e.Tracker == nil {
		e.Tracker = NewTracker("", nil, e.logger())
	}
	return e.Tracker
}

type plannedStream struct {
	entry      model.CatalogEntry
	descriptor model.StreamDescriptor
	conformer  *Conformer
}

// plan resolves every selected stream before anything is emitted, so an
// unknown stream fails the run up front.
func (e *Engine) plan(catalog *model.Catalog) ([]plannedStream, error) {
	var out []plannedStream
	for _, entry := range SelectStreams(catalog, e.logger()) {
		d, err := e.Registry.Lookup(entry.TapStreamID)
		if err != nil {
			return nil, err
		}
		conformer, err := NewConformer(d.Name, entry.Schema)
		if err != nil {
			return nil, err
		}
		out = append(out, plannedStream{entry: entry, descriptor: d, conformer: conformer})
	}
	return out, nil
}

// Sync runs one attempt over the selected streams of catalog, mutating
// state in place and flushing it through sink.
func (e *Engine) Sync(ctx context.Context, catalog *model.Catalog, state *model.State) error {
	return e.sync(ctx, catalog, state, e.Sink)
}

func (e *Engine) sync(ctx context.Context, catalog *model.Catalog, state *model.State, sink Sink) error {
	streams, err := e.plan(catalog)
	if err != nil {
		return err
	}
	tracker := e.tracker()
	fetcher := NewFetcher(e.Client, e.Vendor, e.logger(), tracker.WindowSkipped)

	for _, ps := range streams {
		name := ps.descriptor.Name
		log := e.logger().With("stream", name)
		log.Info("starting sync")

		if err := sink.WriteSchema(name, ps.entry.Schema, ps.entry.KeyProperties); err != nil {
			return fmt.Errorf("stream %s: write schema: %w", name, err)
		}
		tracker.StreamStarted(name)

		s := &Stream{
			descriptor:   ps.descriptor,
			fetcher:      fetcher,
			conformer:    ps.conformer,
			sink:         sink,
			state:        state,
			tracker:      tracker,
			logger:       log,
			startDate:    e.StartDate,
			lookbackDays: e.LookbackDays,
			vendor:       e.Vendor,
			now:          e.now(),
		}
		err := s.Run(ctx)
		tracker.StreamFinished(name)
		if err != nil {
			return err
		}
		log.Info("finished sync")
	}
	return nil
}

// SyncWithRetry wraps Sync in the bounded retry. Every attempt starts from
// the last state that reached the sink, never from a mutated copy.
func (e *Engine) SyncWithRetry(ctx context.Context, catalog *model.Catalog, initial *model.State) error {
	snap := newSnapshotSink(e.Sink, initial)
	err := Retry(ctx, e.Retry, e.logger(), func(ctx context.Context, attempt int) error {
		e.tracker().Attempt(attempt)
		return e.sync(ctx, catalog, snap.Load(), snap)
	})
	e.tracker().LogCounts()
	return err
}
