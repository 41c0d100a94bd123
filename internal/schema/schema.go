// Package schema holds the JSON schema of every report stream and builds
// the catalog metadata that goes with it.
package schema

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"tap-appstore/internal/model"
)

//go:embed schemas/*.json
var files embed.FS

// Load parses every embedded schema, keyed by stream name.
func Load() (map[string]*jsonschema.Schema, error) {
	entries, err := files.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("schema: list: %w", err)
	}
	out := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		data, err := files.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("schema: read %s: %w", e.Name(), err)
		}
		var s jsonschema.Schema
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("schema: decode %s: %w", e.Name(), err)
		}
		out[strings.TrimSuffix(e.Name(), ".json")] = &s
	}
	return out, nil
}

// Names returns the embedded stream names in sorted order.
func Names(schemas map[string]*jsonschema.Schema) []string {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Properties returns the top-level property names of s, sorted.
func Properties(s *jsonschema.Schema) []string {
	if s == nil {
		return nil
	}
	props := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		props = append(props, name)
	}
	sort.Strings(props)
	return props
}

// StandardMetadata builds the stream breadcrumb plus one entry per field.
// Key properties are marked automatic; every other field is available.
func StandardMetadata(s *jsonschema.Schema, keyProperties []string) []model.MetadataEntry {
	keys := make(map[string]bool, len(keyProperties))
	for _, k := range keyProperties {
		keys[k] = true
	}

	mdata := []model.MetadataEntry{{
		Breadcrumb: []string{},
		Metadata: map[string]interface{}{
			"inclusion":                 "available",
			"table-key-properties":      keyProperties,
			"forced-replication-method": "INCREMENTAL",
		},
	}}
	for _, field := range Properties(s) {
		inclusion := "available"
		if keys[field] {
			inclusion = "automatic"
		}
		mdata = append(mdata, model.MetadataEntry{
			Breadcrumb: []string{"properties", field},
			Metadata:   map[string]interface{}{"inclusion": inclusion},
		})
	}
	return mdata
}

// Entry assembles the catalog entry of one stream.
func Entry(name string, s *jsonschema.Schema) model.CatalogEntry {
	keyProperties := []string{}
	return model.CatalogEntry{
		Stream:        name,
		TapStreamID:   name,
		Schema:        s,
		KeyProperties: keyProperties,
		Metadata:      StandardMetadata(s, keyProperties),
	}
}
