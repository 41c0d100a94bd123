package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"tap-appstore/internal/model"
)

// Sink receives everything a sync emits. WriteState is the flush point:
// once it returns, the checkpoint it carries is durable.
type Sink interface {
	WriteSchema(stream string, schema *jsonschema.Schema, keyProperties []string) error
	WriteRecord(stream string, rec model.Record, timeExtracted time.Time) error
	WriteState(state *model.State) error
}

// ------------------- Singer Output -------------------

type schemaMessage struct {
	Type          string             `json:"type"`
	Stream        string             `json:"stream"`
	Schema        *jsonschema.Schema `json:"schema"`
	KeyProperties []string           `json:"key_properties"`
}

type recordMessage struct {
	Type          string       `json:"type"`
	Stream        string       `json:"stream"`
	Record        model.Record `json:"record"`
	TimeExtracted string       `json:"time_extracted"`
}

type stateMessage struct {
	Type  string       `json:"type"`
	Value *model.State `json:"value"`
}

// SingerWriter writes SCHEMA, RECORD and STATE messages as JSON lines.
type SingerWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewSingerWriter writes messages to w, usually stdout.
func NewSingerWriter(w io.Writer) *SingerWriter {
	return &SingerWriter{enc: json.NewEncoder(w)}
}

func (s *SingerWriter) write(msg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (s *SingerWriter) WriteSchema(stream string, schema *jsonschema.Schema, keyProperties []string) error {
	if keyProperties == nil {
		keyProperties = []string{}
	}
	return s.write(schemaMessage{Type: "SCHEMA", Stream: stream, Schema: schema, KeyProperties: keyProperties})
}

func (s *SingerWriter) WriteRecord(stream string, rec model.Record, timeExtracted time.Time) error {
	return s.write(recordMessage{
		Type:          "RECORD",
		Stream:        stream,
		Record:        rec,
		TimeExtracted: timeExtracted.UTC().Format(time.RFC3339),
	})
}

func (s *SingerWriter) WriteState(state *model.State) error {
	return s.write(stateMessage{Type: "STATE", Value: state})
}

// ------------------- Fan-out -------------------

type teeSink []Sink

// Tee forwards every call to each sink in order and stops at the first error.
func Tee(sinks ...Sink) Sink {
	out := make(teeSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (t teeSink) WriteSchema(stream string, schema *jsonschema.Schema, keyProperties []string) error {
	for _, s := range t {
		if err := s.WriteSchema(stream, schema, keyProperties); err != nil {
			return err
		}
	}
	return nil
}

func (t teeSink) WriteRecord(stream string, rec model.Record, timeExtracted time.Time) error {
	for _, s := range t {
		if err := s.WriteRecord(stream, rec, timeExtracted); err != nil {
			return err
		}
	}
	return nil
}

func (t teeSink) WriteState(state *model.State) error {
	for _, s := range t {
		if err := s.WriteState(state); err != nil {
			return err
		}
	}
	return nil
}

// ------------------- Bookmark Persistence -------------------

// BookmarkStore persists the bookmarks of every flushed state.
type BookmarkStore interface {
	SaveBookmarks(state *model.State) error
}

// BookmarkSink mirrors state flushes into a BookmarkStore and ignores
// schemas and records.
type BookmarkSink struct {
	Store BookmarkStore
}

func (b BookmarkSink) WriteSchema(string, *jsonschema.Schema, []string) error { return nil }

func (b BookmarkSink) WriteRecord(string, model.Record, time.Time) error { return nil }

func (b BookmarkSink) WriteState(state *model.State) error {
	if err := b.Store.SaveBookmarks(state); err != nil {
		return fmt.Errorf("save bookmarks: %w", err)
	}
	return nil
}

// snapshotSink keeps a copy of the last state that reached the sink, so a
// retried attempt starts from what was actually flushed.
type snapshotSink struct {
	Sink
	mu   sync.Mutex
	last *model.State
}

func newSnapshotSink(next Sink, initial *model.State) *snapshotSink {
	if initial == nil {
		initial = model.NewState()
	}
	return &snapshotSink{Sink: next, last: initial.Clone()}
}

func (s *snapshotSink) WriteState(state *model.State) error {
	if err := s.Sink.WriteState(state); err != nil {
		return err
	}
	s.mu.Lock()
	s.last = state.Clone()
	s.mu.Unlock()
	return nil
}

// Load returns a fresh copy of the last flushed state.
func (s *snapshotSink) Load() *model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Clone()
}

// Closer is implemented by sinks holding files open.
type Closer interface {
	Close() error
}

// CloseAll closes every sink that implements Closer and joins the errors.
func CloseAll(sinks ...Sink) error {
	var errs []error
	for _, s := range sinks {
		if c, ok := s.(Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
