package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tap-appstore/internal/model"
	"tap-appstore/internal/pipeline"
)

func TestParseReport_ShortRowOmitsKey(t *testing.T) {
	lines := pipeline.ParseReport("A\tB\n1\t2\n3")
	require.Equal(t, []model.RawReportLine{
		{"a": "1", "b": "2"},
		{"a": "3"},
	}, lines)
	_, ok := lines[1]["b"]
	require.False(t, ok)
}

func TestParseReport_TrailingBlankLineSkipped(t *testing.T) {
	lines := pipeline.ParseReport("A\tB\n1\t2\n3\t4\n")
	require.Len(t, lines, 2)
}

func TestParseReport_EmptyInput(t *testing.T) {
	require.Empty(t, pipeline.ParseReport(""))
	require.Empty(t, pipeline.ParseReport("Provider\tUnits\n"))
}

func TestParseReport_HeaderNormalization(t *testing.T) {
	lines := pipeline.ParseReport("Provider Country\tMarketing Opt-In Duration\tSKU\n US \t 7 \tcom.app\n")
	require.Equal(t, []model.RawReportLine{{
		"provider_country":          "US",
		"marketing_opt_in_duration": "7",
		"sku":                       "com.app",
	}}, lines)
}

func TestParseReport_CRLFAndExtraCells(t *testing.T) {
	lines := pipeline.ParseReport("A\tB\r\n1\t2\t3\r\n")
	require.Equal(t, []model.RawReportLine{{"a": "1", "b": "2"}}, lines)
}

func TestNormalizeColumn(t *testing.T) {
	require.Equal(t, "pre_order_start_date", pipeline.NormalizeColumn("Pre-Order Start Date"))
	require.Equal(t, "isrc/isbn", pipeline.NormalizeColumn("ISRC/ISBN"))
}
