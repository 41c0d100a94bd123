package pipeline

import (
	"context"
	"fmt"

	"tap-appstore/internal/model"
	"tap-appstore/internal/schema"
)

// Discover builds the catalog. Every stream with a schema is probed once at
// the start date window; streams the vendor rejects are left out.
// Transport failures abort discovery.
func (e *Engine) Discover(ctx context.Context) (*model.Catalog, error) {
	log := e.logger()
	log.Info("running discover")

	schemas, err := schema.Load()
	if err != nil {
		return nil, Permanent(err)
	}
	fetcher := NewFetcher(e.Client, e.Vendor, log, nil)

	catalog := &model.Catalog{Streams: []model.CatalogEntry{}}
	for _, name := range schema.Names(schemas) {
		d, err := e.Registry.Lookup(name)
		if err != nil {
			log.Warn("schema has no registered stream", "stream", name)
			continue
		}
		b, err := behaviorOf(d.Family)
		if err != nil {
			return nil, err
		}

		start := Align(e.StartDate, b.granularity)
		log.Info("probing report", "stream", name, "report_date", start.Format(b.dateLayout))
		_, ok, err := fetcher.Fetch(ctx, d, start)
		if err != nil {
			return nil, fmt.Errorf("discover %s: %w", name, err)
		}
		if !ok {
			log.Warn("report probe failed, stream left out of catalog", "stream", name)
			continue
		}
		catalog.Streams = append(catalog.Streams, schema.Entry(name, schemas[name]))
	}

	if len(catalog.Streams) == 0 {
		log.Warn("could not find any report types to download for the input configuration")
	}
	log.Info("completed discover", "streams", len(catalog.Streams))
	return catalog, nil
}
