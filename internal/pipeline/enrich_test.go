package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tap-appstore/internal/model"
	"tap-appstore/internal/pipeline"
)

func TestEnrich_Deterministic(t *testing.T) {
	extracted := date("2023-07-01T08:15:00Z")
	lines := []model.RawReportLine{{"sku": "a"}, {"sku": "b"}}

	records := pipeline.Enrich(lines, "2023-06-30", extracted, "85012345")
	require.Len(t, records, 2)
	require.Equal(t, 1, records[0][model.FieldLineID])
	require.Equal(t, 2, records[1][model.FieldLineID])
	for _, rec := range records {
		require.Equal(t, "2023-07-01T08:15:00Z", rec[model.FieldTimeExtracted])
		require.Equal(t, "2023-06-30", rec[model.FieldReportDate])
		require.Equal(t, "85012345", rec[model.FieldVendorNumber])
	}
	require.Equal(t, "a", records[0]["sku"])

	again := pipeline.Enrich(lines, "2023-06-30", extracted, "85012345")
	require.Equal(t, records, again)
	_, touched := lines[0][model.FieldLineID]
	require.False(t, touched)
}

func TestEnrich_ReportColumnWins(t *testing.T) {
	lines := []model.RawReportLine{{"vendor_number": "99999999", "sku": "a"}}

	records := pipeline.Enrich(lines, "2023-06-30", date("2023-07-01T00:00:00Z"), "85012345")
	require.Equal(t, "99999999", records[0][model.FieldVendorNumber])
	require.Equal(t, 1, records[0][model.FieldLineID])
}
