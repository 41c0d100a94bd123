package pipeline

import (
	"fmt"
	"sort"

	"tap-appstore/internal/model"
)

// Registry maps stream names to descriptors. It is built once and only read
// afterwards.
type Registry struct {
	streams map[string]model.StreamDescriptor
}

// NewRegistry validates and indexes descriptors.
func NewRegistry(descriptors ...model.StreamDescriptor) (Registry, error) {
	streams := make(map[string]model.StreamDescriptor, len(descriptors))
	for _, d := range descriptors {
		if err := d.Validate(); err != nil {
			return Registry{}, err
		}
		if _, dup := streams[d.Name]; dup {
			return Registry{}, fmt.Errorf("stream %s registered twice", d.Name)
		}
		d.RequestTemplate = d.Filters()
		streams[d.Name] = d
	}
	return Registry{streams: streams}, nil
}

// Lookup returns the descriptor of name or ErrUnknownStream.
func (r Registry) Lookup(name string) (model.StreamDescriptor, error) {
	d, ok := r.streams[name]
	if !ok {
		return model.StreamDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownStream, name)
	}
	d.RequestTemplate = d.Filters()
	return d, nil
}

// Names lists registered streams in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r.streams))
	for name := range r.streams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns every descriptor sorted by name.
func (r Registry) Descriptors() []model.StreamDescriptor {
	out := make([]model.StreamDescriptor, 0, len(r.streams))
	for _, name := range r.Names() {
		d, _ := r.Lookup(name)
		out = append(out, d)
	}
	return out
}

func salesStream(name, reportType, subType, version string) model.StreamDescriptor {
	return model.StreamDescriptor{
		Name:        name,
		Family:      model.FamilySales,
		Granularity: model.GranularityDay,
		RequestTemplate: map[string]string{
			"reportType":    reportType,
			"frequency":     "DAILY",
			"reportSubType": subType,
			"version":       version,
		},
	}
}

// DefaultRegistry holds every report stream the tap knows about.
func DefaultRegistry() Registry {
	r, err := NewRegistry(
		salesStream("subscription_event_report", "SUBSCRIPTION_EVENT", "SUMMARY", "1_3"),
		salesStream("subscriber_report", "SUBSCRIBER", "DETAILED", "1_3"),
		salesStream("subscription_report", "SUBSCRIPTION", "SUMMARY", "1_3"),
		salesStream("sales_report", "SALES", "SUMMARY", "1_0"),
		salesStream("subscription_offer_code_redemption_report", "SUBSCRIPTION_OFFER_CODE_REDEMPTION", "SUMMARY", "1_0"),
		salesStream("newsstand_report", "NEWSSTAND", "DETAILED", "1_0"),
		salesStream("pre_order_report", "PRE_ORDER", "SUMMARY", "1_0"),
		model.StreamDescriptor{
			Name:        "financial_report",
			Family:      model.FamilyFinancial,
			Granularity: model.GranularityMonth,
			RequestTemplate: map[string]string{
				"reportType": "FINANCIAL",
				"regionCode": "ZZ",
			},
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}
