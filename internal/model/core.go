package model

import "fmt"

// ReportFamily selects which vendor endpoint serves a stream.
type ReportFamily string

const (
	FamilySales     ReportFamily = "SALES"
	FamilyFinancial ReportFamily = "FINANCIAL"
)

// Granularity is the width of one extraction window.
type Granularity string

const (
	GranularityDay   Granularity = "DAY"
	GranularityMonth Granularity = "MONTH"
)

// StreamDescriptor identifies one report type. Descriptors are defined
// statically and never persisted.
type StreamDescriptor struct {
	Name            string            `json:"name"`
	Family          ReportFamily      `json:"report_family"`
	Granularity     Granularity       `json:"window_granularity"`
	RequestTemplate map[string]string `json:"api_request_template"` // fixed filters: reportType, frequency, ...
}

// Validate reports descriptors whose family and granularity disagree.
func (d StreamDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("stream descriptor: name is required")
	}
	switch d.Family {
	case FamilySales:
		if d.Granularity != GranularityDay {
			return fmt.Errorf("stream %s: sales reports are daily, got %s", d.Name, d.Granularity)
		}
	case FamilyFinancial:
		if d.Granularity != GranularityMonth {
			return fmt.Errorf("stream %s: financial reports are monthly, got %s", d.Name, d.Granularity)
		}
	default:
		return fmt.Errorf("stream %s: unknown report family %q", d.Name, d.Family)
	}
	return nil
}

// Filters returns a copy of the request template.
func (d StreamDescriptor) Filters() map[string]string {
	out := make(map[string]string, len(d.RequestTemplate)+2)
	for k, v := range d.RequestTemplate {
		out[k] = v
	}
	return out
}
