package model

import "time"

// RawReportLine is one row of a vendor report keyed by normalized column name.
type RawReportLine map[string]string

// Record is a schema-agnostic output row.
type Record map[string]interface{}

// Synthetic fields added to every output record.
const (
	FieldLineID        = "_line_id"
	FieldTimeExtracted = "_time_extracted"
	FieldReportDate    = "_api_report_date"
	FieldVendorNumber  = "vendor_number"
)

// BookmarkLayout is the persisted checkpoint format.
const BookmarkLayout = "2006-01-02T15:04:05Z"

// Window is one contiguous report period [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
