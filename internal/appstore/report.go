package appstore

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrReportTooLarge is returned instead of a truncated report.
var ErrReportTooLarge = errors.New("appstore: report exceeds size limit")

// Report is a successful vendor response: tabular text, or a structured
// object when the vendor answered with JSON instead of a report.
type Report struct {
	Text   string
	Object map[string]any
}

// Tabular reports whether the response carries report text.
func (r *Report) Tabular() bool {
	return r.Object == nil
}

var gzipMagic = []byte{0x1f, 0x8b}

func decodeReport(body []byte, maxBytes int64) (*Report, error) {
	if bytes.HasPrefix(body, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("appstore: gzip: %w", err)
		}
		defer zr.Close()
		text, err := readLimited(zr, maxBytes)
		if err != nil {
			return nil, fmt.Errorf("appstore: gunzip: %w", err)
		}
		return &Report{Text: string(text)}, nil
	}

	trimmed := bytes.TrimSpace(body)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			return &Report{Object: obj}, nil
		}
	}
	return &Report{Text: string(body)}, nil
}

// readLimited reads all of r, failing when it holds more than maxBytes.
func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrReportTooLarge, maxBytes)
	}
	return data, nil
}
