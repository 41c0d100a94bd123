package pipeline

import (
	"strings"

	"tap-appstore/internal/model"
)

// ------------------- Report Parsing -------------------

// ParseReport turns tab separated report text into lines keyed by
// normalized header name. A zero-length line is skipped. A short row omits
// the missing columns and cells beyond the header are ignored.
func ParseReport(raw string) []model.RawReportLine {
	lines := strings.Split(raw, "\n")
	header := parseHeader(lines[0])

	out := make([]model.RawReportLine, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if len(line) == 0 {
			continue
		}
		cells := strings.Split(line, "\t")
		row := make(model.RawReportLine, len(header))
		for i, column := range header {
			if i >= len(cells) {
				break
			}
			row[column] = strings.TrimSpace(cells[i])
		}
		out = append(out, row)
	}
	return out
}

func parseHeader(line string) []string {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return nil
	}
	cols := strings.Split(line, "\t")
	for i, c := range cols {
		cols[i] = NormalizeColumn(c)
	}
	return cols
}

// NormalizeColumn lowercases a header name and maps spaces and hyphens to
// underscores.
func NormalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}
