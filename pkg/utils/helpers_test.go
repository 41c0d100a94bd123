package utils

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseInteger(t *testing.T) {
	n, err := ParseInteger(" 42 ")
	require.NoError(t, err)
	require.Equal(t, int64(42), n)

	n, err = ParseInteger("3.0")
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	_, err = ParseInteger("3.5")
	require.Error(t, err)
	_, err = ParseInteger("abc")
	require.Error(t, err)
}

func TestParseDecimal(t *testing.T) {
	n, err := ParseDecimal("0.70")
	require.NoError(t, err)
	require.Equal(t, json.Number("0.70"), n)

	n, err = ParseDecimal("+1.5")
	require.NoError(t, err)
	require.Equal(t, json.Number("1.5"), n)

	_, err = ParseDecimal("NaN")
	require.Error(t, err)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2023-05-01", "05/01/2023", "2023-05-01T00:00:00Z", "2023-05-01 00:00:00"} {
		got, err := ParseTimestamp(s)
		require.NoError(t, err, s)
		require.Equal(t, want, got, s)
	}
	_, err := ParseTimestamp("yesterday")
	require.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	require.Equal(t, 5*time.Second, ParseDuration("5s", time.Minute))
	require.Equal(t, time.Minute, ParseDuration("", time.Minute))
	require.Equal(t, time.Minute, ParseDuration("soon", time.Minute))
}

func TestOutputManager(t *testing.T) {
	om := NewOutputManager(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, om.EnsureOutputDirExists())

	path := om.GetOutputFilePath("../sales_report", ".csv")
	require.Equal(t, filepath.Join(om.BaseOutputDir, "sales_report.csv"), path)

	_, err := om.GetFileSize(path)
	require.Error(t, err)
}
