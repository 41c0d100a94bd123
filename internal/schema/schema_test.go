package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"tap-appstore/internal/model"
	"tap-appstore/internal/schema"
)

func TestLoad_AllStreams(t *testing.T) {
	schemas, err := schema.Load()
	require.NoError(t, err)
	require.Equal(t, []string{
		"financial_report",
		"newsstand_report",
		"pre_order_report",
		"sales_report",
		"subscriber_report",
		"subscription_event_report",
		"subscription_offer_code_redemption_report",
		"subscription_report",
	}, schema.Names(schemas))

	for name, s := range schemas {
		props := schema.Properties(s)
		for _, field := range []string{model.FieldLineID, model.FieldTimeExtracted, model.FieldReportDate, model.FieldVendorNumber} {
			require.Contains(t, props, field, name)
		}
		_, err := s.Resolve(nil)
		require.NoError(t, err, name)
	}
}

func TestStandardMetadata(t *testing.T) {
	schemas, err := schema.Load()
	require.NoError(t, err)

	entry := schema.Entry("financial_report", schemas["financial_report"])
	require.Equal(t, "financial_report", entry.TapStreamID)
	require.Empty(t, entry.KeyProperties)
	require.False(t, entry.Selected())

	md := entry.StreamMetadata()
	require.Equal(t, "available", md["inclusion"])
	require.Equal(t, "INCREMENTAL", md["forced-replication-method"])
	require.Len(t, entry.Metadata, 1+len(schema.Properties(schemas["financial_report"])))
	require.Equal(t, []string{"properties", "_api_report_date"}, entry.Metadata[1].Breadcrumb)
}

func TestStandardMetadata_KeyPropertiesAutomatic(t *testing.T) {
	schemas, err := schema.Load()
	require.NoError(t, err)

	md := schema.StandardMetadata(schemas["sales_report"], []string{"sku"})
	for _, m := range md {
		if len(m.Breadcrumb) == 2 && m.Breadcrumb[1] == "sku" {
			require.Equal(t, "automatic", m.Metadata["inclusion"])
			return
		}
	}
	t.Fatal("sku metadata not found")
}

func TestEntry_MarshalsAsSingerCatalog(t *testing.T) {
	schemas, err := schema.Load()
	require.NoError(t, err)

	data, err := json.Marshal(model.Catalog{Streams: []model.CatalogEntry{schema.Entry("sales_report", schemas["sales_report"])}})
	require.NoError(t, err)

	var decoded model.Catalog
	require.NoError(t, json.Unmarshal(data, &decoded))
	e, ok := decoded.Entry("sales_report")
	require.True(t, ok)
	require.Contains(t, e.Schema.Properties, "units")
	require.Equal(t, []string{"null", "number"}, e.Schema.Properties["units"].Types)
}
