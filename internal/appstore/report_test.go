package appstore

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDecodeReport_SizeLimit(t *testing.T) {
	text := "Provider\tUnits\nAPPLE\t1\n"

	r, err := decodeReport(gzipped(t, text), int64(len(text)))
	require.NoError(t, err)
	require.Equal(t, text, r.Text)

	_, err = decodeReport(gzipped(t, text), int64(len(text)-1))
	require.ErrorIs(t, err, ErrReportTooLarge)
}

func TestReadLimited(t *testing.T) {
	data, err := readLimited(strings.NewReader("abcd"), 4)
	require.NoError(t, err)
	require.Equal(t, "abcd", string(data))

	_, err = readLimited(strings.NewReader("abcde"), 4)
	require.ErrorIs(t, err, ErrReportTooLarge)
}
