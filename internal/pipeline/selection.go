package pipeline

import (
	"log/slog"
	"strings"

	"tap-appstore/internal/model"
)

// SelectStreams returns the catalog entries selected at stream level, in
// catalog order. Field-level selection is reported but not applied.
func SelectStreams(catalog *model.Catalog, logger *slog.Logger) []model.CatalogEntry {
	if logger == nil {
		logger = slog.Default()
	}
	var selected []model.CatalogEntry
	for _, entry := range catalog.Streams {
		if !entry.Selected() {
			logger.Info("skipping deselected stream", "stream", entry.TapStreamID)
			continue
		}
		if fields := entry.DeselectedFields(); len(fields) > 0 {
			logger.Warn("field-level selection is not supported; stream synced in full",
				"stream", entry.TapStreamID,
				"fields", strings.Join(fields, ","),
			)
		}
		selected = append(selected, entry)
	}
	return selected
}

// SelectAll marks every stream of catalog as selected.
func SelectAll(catalog *model.Catalog) {
	for i := range catalog.Streams {
		markSelected(&catalog.Streams[i])
	}
}

func markSelected(entry *model.CatalogEntry) {
	for i := range entry.Metadata {
		if len(entry.Metadata[i].Breadcrumb) != 0 {
			continue
		}
		if entry.Metadata[i].Metadata == nil {
			entry.Metadata[i].Metadata = make(map[string]interface{})
		}
		entry.Metadata[i].Metadata["selected"] = true
		return
	}
	entry.Metadata = append(entry.Metadata, model.MetadataEntry{
		Breadcrumb: []string{},
		Metadata:   map[string]interface{}{"selected": true},
	})
}
