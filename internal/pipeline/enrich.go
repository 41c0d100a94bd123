package pipeline

import (
	"time"

	"tap-appstore/internal/model"
)

// TimeExtractedLayout is the format of the _time_extracted field.
const TimeExtractedLayout = time.RFC3339

// Enrich adds the synthetic fields to every line of one window. Line ids
// start at 1 and follow report order. A report column with the same name as
// a synthetic field keeps the report's value.
func Enrich(lines []model.RawReportLine, reportDate string, extracted time.Time, vendor string) []model.Record {
	stamp := extracted.UTC().Format(TimeExtractedLayout)
	out := make([]model.Record, 0, len(lines))
	for i, line := range lines {
		rec := make(model.Record, len(line)+4)
		rec[model.FieldLineID] = i + 1
		rec[model.FieldTimeExtracted] = stamp
		rec[model.FieldReportDate] = reportDate
		rec[model.FieldVendorNumber] = vendor
		for k, v := range line {
			rec[k] = v
		}
		out = append(out, rec)
	}
	return out
}
