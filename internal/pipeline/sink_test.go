package pipeline_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"tap-appstore/internal/model"
	"tap-appstore/internal/pipeline"
	"tap-appstore/internal/schema"
)

func TestSingerWriter_Messages(t *testing.T) {
	var buf bytes.Buffer
	w := pipeline.NewSingerWriter(&buf)
	schemas, err := schema.Load()
	require.NoError(t, err)

	state := model.NewState()
	state.SetStartDate("sales_report", "2023-05-02T00:00:00Z")

	require.NoError(t, w.WriteSchema("sales_report", schemas["sales_report"], nil))
	require.NoError(t, w.WriteRecord("sales_report", model.Record{"units": json.Number("3")}, date("2023-05-03T10:00:00Z")))
	require.NoError(t, w.WriteState(state))

	var msgs []map[string]any
	sc := bufio.NewScanner(&buf)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		msgs = append(msgs, m)
	}
	require.Len(t, msgs, 3)

	require.Equal(t, "SCHEMA", msgs[0]["type"])
	require.Equal(t, []any{}, msgs[0]["key_properties"])
	require.Contains(t, msgs[0]["schema"].(map[string]any)["properties"], "units")

	require.Equal(t, "RECORD", msgs[1]["type"])
	require.Equal(t, "2023-05-03T10:00:00Z", msgs[1]["time_extracted"])
	require.Equal(t, float64(3), msgs[1]["record"].(map[string]any)["units"])

	require.Equal(t, "STATE", msgs[2]["type"])
	require.Equal(t, map[string]any{
		"bookmarks": map[string]any{
			"sales_report": map[string]any{"start_date": "2023-05-02T00:00:00Z"},
		},
	}, msgs[2]["value"])
}

type memBookmarks struct{ saved []*model.State }

func (m *memBookmarks) SaveBookmarks(s *model.State) error {
	m.saved = append(m.saved, s.Clone())
	return nil
}

func TestTee_ForwardsToEverySink(t *testing.T) {
	rec := &recordingSink{}
	books := &memBookmarks{}
	sink := pipeline.Tee(rec, nil, pipeline.BookmarkSink{Store: books})

	state := model.NewState()
	state.SetStartDate("sales_report", "2023-05-02T00:00:00Z")
	require.NoError(t, sink.WriteSchema("sales_report", nil, nil))
	require.NoError(t, sink.WriteRecord("sales_report", model.Record{"a": 1}, date("2023-05-03T00:00:00Z")))
	require.NoError(t, sink.WriteState(state))

	require.Len(t, rec.records, 1)
	require.Len(t, rec.states, 1)
	require.Len(t, books.saved, 1)
}

func TestCSVExporter(t *testing.T) {
	dir := t.TempDir()
	exp, err := pipeline.NewCSVExporter(filepath.Join(dir, "out"), nil)
	require.NoError(t, err)

	schemas, err := schema.Load()
	require.NoError(t, err)
	s := schemas["financial_report"]

	require.NoError(t, exp.WriteSchema("financial_report", s, nil))
	require.NoError(t, exp.WriteRecord("financial_report", model.Record{
		"title":      "App, One",
		"quantity":   json.Number("2"),
		"_line_id":   int64(1),
		"promo_code": nil,
	}, date("2023-07-01T00:00:00Z")))
	require.NoError(t, exp.WriteState(model.NewState()))

	// retried attempts keep appending to the open file
	require.NoError(t, exp.WriteSchema("financial_report", s, nil))
	require.NoError(t, exp.Close())

	data, err := os.ReadFile(filepath.Join(dir, "out", "financial_report.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	header := strings.Split(lines[0], ",")
	require.Equal(t, schema.Properties(s), header)
	require.Contains(t, lines[1], `"App, One"`)
}

func TestCSVExporter_RecordBeforeSchema(t *testing.T) {
	exp, err := pipeline.NewCSVExporter(t.TempDir(), nil)
	require.NoError(t, err)
	require.Error(t, exp.WriteRecord("sales_report", model.Record{}, date("2023-07-01T00:00:00Z")))
}
