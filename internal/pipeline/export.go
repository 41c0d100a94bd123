package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"tap-appstore/internal/model"
	"tap-appstore/pkg/utils"
)

// ------------------- CSV Export -------------------

type csvFile struct {
	file   *os.File
	writer *csv.Writer
	header []string
	rows   int
}

// CSVExporter writes the records of every stream to <dir>/<stream>.csv.
// Rows are flushed to disk whenever a state is flushed.
type CSVExporter struct {
	out    *utils.OutputManager
	logger *slog.Logger
	files  map[string]*csvFile
}

// NewCSVExporter creates dir if needed.
func NewCSVExporter(dir string, logger *slog.Logger) (*CSVExporter, error) {
	om := utils.NewOutputManager(dir)
	if err := om.EnsureOutputDirExists(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVExporter{out: om, logger: logger, files: make(map[string]*csvFile)}, nil
}

// WriteSchema opens the stream file and writes the header. A stream that is
// already open keeps its file, so a retried attempt appends.
func (e *CSVExporter) WriteSchema(stream string, schema *jsonschema.Schema, _ []string) error {
	if _, ok := e.files[stream]; ok {
		return nil
	}
	header := make([]string, 0)
	if schema != nil {
		for name := range schema.Properties {
			header = append(header, name)
		}
	}
	sort.Strings(header)

	path := e.out.GetOutputFilePath(stream, ".csv")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	w := csv.NewWriter(file)
	if len(header) > 0 {
		if err := w.Write(header); err != nil {
			file.Close()
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	e.files[stream] = &csvFile{file: file, writer: w, header: header}
	return nil
}

func (e *CSVExporter) WriteRecord(stream string, rec model.Record, _ time.Time) error {
	f, ok := e.files[stream]
	if !ok {
		return fmt.Errorf("csv export: record for %s before its schema", stream)
	}
	if len(f.header) == 0 {
		f.header = recordKeys(rec)
		if err := f.writer.Write(f.header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	row := make([]string, len(f.header))
	for i, key := range f.header {
		row[i] = formatCell(rec[key])
	}
	if err := f.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	f.rows++
	return nil
}

func (e *CSVExporter) WriteState(*model.State) error {
	for stream, f := range e.files {
		f.writer.Flush()
		if err := f.writer.Error(); err != nil {
			return fmt.Errorf("csv export %s: %w", stream, err)
		}
	}
	return nil
}

// Close flushes and closes every file.
func (e *CSVExporter) Close() error {
	var firstErr error
	for stream, f := range e.files {
		f.writer.Flush()
		if err := f.writer.Error(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := f.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		size, _ := e.out.GetFileSize(f.file.Name())
		e.logger.Info("csv export written", "stream", stream, "path", f.file.Name(), "rows", f.rows, "bytes", size)
	}
	e.files = make(map[string]*csvFile)
	return firstErr
}

func recordKeys(rec model.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
