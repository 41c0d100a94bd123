package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"tap-appstore/internal/appstore"
	"tap-appstore/internal/model"
	"tap-appstore/internal/pipeline"
)

func TestDiscover_LeavesOutRejectedStreams(t *testing.T) {
	notFound := &appstore.APIError{StatusCode: http.StatusNotFound}
	client := newFakeClient().
		on("NEWSSTAND", "2023-05-01", response{err: notFound}).
		on("PRE_ORDER", "2023-05-01", response{object: map[string]any{"data": nil}})
	var logs bytes.Buffer
	e := newEngine(client, &recordingSink{}, "2023-07-01T00:00:00Z", "2023-05-01T00:00:00Z", &logs)

	catalog, err := e.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, client.calls, 8)

	var names []string
	for _, s := range catalog.Streams {
		names = append(names, s.TapStreamID)
		require.Empty(t, s.KeyProperties)
		require.NotNil(t, s.Schema)
		require.False(t, s.Selected())
	}
	require.Equal(t, []string{
		"financial_report",
		"sales_report",
		"subscriber_report",
		"subscription_event_report",
		"subscription_offer_code_redemption_report",
		"subscription_report",
	}, names)
	require.Contains(t, logs.String(), "stream=newsstand_report")
	require.Contains(t, logs.String(), "stream=pre_order_report")
}

func TestDiscover_ProbesAtStartDateWindow(t *testing.T) {
	client := newFakeClient()
	e := newEngine(client, &recordingSink{}, "2023-07-01T00:00:00Z", "2023-05-15T00:00:00Z", nil)

	_, err := e.Discover(context.Background())
	require.NoError(t, err)
	for _, c := range client.calls {
		if c["endpoint"] == "finance" {
			require.Equal(t, "2023-05", c["reportDate"])
		} else {
			require.Equal(t, "2023-05-15", c["reportDate"])
		}
	}
}

func TestDiscover_NoStreamsWarns(t *testing.T) {
	notFound := &appstore.APIError{StatusCode: http.StatusNotFound}
	client := newFakeClient()
	for _, d := range pipeline.DefaultRegistry().Descriptors() {
		reportDate := "2023-05-01"
		if d.Family == model.FamilyFinancial {
			reportDate = "2023-05"
		}
		client.on(d.RequestTemplate["reportType"], reportDate, response{err: notFound})
	}
	var logs bytes.Buffer
	e := newEngine(client, &recordingSink{}, "2023-07-01T00:00:00Z", "2023-05-01T00:00:00Z", &logs)

	catalog, err := e.Discover(context.Background())
	require.NoError(t, err)
	require.Empty(t, catalog.Streams)
	require.Contains(t, logs.String(), "could not find any report types")
}

func TestDiscover_TransportErrorIsFatal(t *testing.T) {
	boom := errors.New("dial tcp: no route to host")
	client := newFakeClient().on("FINANCIAL", "2023-05", response{err: boom})
	e := newEngine(client, &recordingSink{}, "2023-07-01T00:00:00Z", "2023-05-01T00:00:00Z", nil)

	_, err := e.Discover(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestSelectAll(t *testing.T) {
	catalog := catalogFor(t, "sales_report")
	catalog.Streams[0].Metadata[0].Metadata["selected"] = false
	catalog.Streams = append(catalog.Streams, catalogFor(t, "financial_report").Streams[0])
	catalog.Streams[1].Metadata = nil

	pipeline.SelectAll(catalog)
	require.Len(t, pipeline.SelectStreams(catalog, nil), 2)
}
