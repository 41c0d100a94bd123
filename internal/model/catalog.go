package model

import (
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
)

// Catalog is the Singer catalog document.
type Catalog struct {
	Streams []CatalogEntry `json:"streams"`
}

// CatalogEntry describes one discovered stream.
type CatalogEntry struct {
	Stream        string             `json:"stream"`
	TapStreamID   string             `json:"tap_stream_id"`
	Schema        *jsonschema.Schema `json:"schema"`
	KeyProperties []string           `json:"key_properties"`
	Metadata      []MetadataEntry    `json:"metadata"`
}

// MetadataEntry attaches metadata to a breadcrumb. The empty breadcrumb
// addresses the stream itself; ["properties", name] addresses a field.
type MetadataEntry struct {
	Breadcrumb []string               `json:"breadcrumb"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// StreamMetadata returns the metadata of the empty breadcrumb, or nil.
func (e CatalogEntry) StreamMetadata() map[string]interface{} {
	for _, m := range e.Metadata {
		if len(m.Breadcrumb) == 0 {
			return m.Metadata
		}
	}
	return nil
}

// Selected reports whether the stream-level breadcrumb is marked selected.
func (e CatalogEntry) Selected() bool {
	selected, _ := e.StreamMetadata()["selected"].(bool)
	return selected
}

// DeselectedFields lists fields whose own metadata sets selected=false.
func (e CatalogEntry) DeselectedFields() []string {
	var fields []string
	for _, m := range e.Metadata {
		if len(m.Breadcrumb) != 2 || m.Breadcrumb[0] != "properties" {
			continue
		}
		if selected, ok := m.Metadata["selected"].(bool); ok && !selected {
			fields = append(fields, m.Breadcrumb[1])
		}
	}
	sort.Strings(fields)
	return fields
}

// Entry returns the catalog entry with the given tap_stream_id.
func (c *Catalog) Entry(name string) (CatalogEntry, bool) {
	for _, e := range c.Streams {
		if e.TapStreamID == name {
			return e, true
		}
	}
	return CatalogEntry{}, false
}
