package pipeline_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"tap-appstore/internal/appstore"
	"tap-appstore/internal/model"
	"tap-appstore/internal/pipeline"
	"tap-appstore/internal/store"
)

func TestTracker_PersistsToStore(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	runID, err := db.StartRun(model.RunModeSync)
	require.NoError(t, err)

	client := newFakeClient().
		on("SALES", "2023-05-01", response{text: "Provider\tUnits\nAPPLE\t1\nAPPLE\t2\n"}).
		on("SALES", "2023-05-02", response{err: &appstore.APIError{StatusCode: http.StatusNotFound}})
	sink := &recordingSink{}
	e := newEngine(client, pipeline.Tee(sink, pipeline.BookmarkSink{Store: db}), "2023-05-03T00:00:00Z", "2023-05-01T00:00:00Z", nil)
	e.Tracker = pipeline.NewTracker(runID, db, e.Logger)

	require.NoError(t, e.SyncWithRetry(context.Background(), catalogFor(t, "sales_report"), model.NewState()))
	require.Equal(t, int64(2), e.Tracker.Records())

	streams, err := db.ListRunStreams(runID)
	require.NoError(t, err)
	require.Len(t, streams, 1)
	require.Equal(t, int64(2), streams[0].Records)
	require.Equal(t, 1, streams[0].WindowsFetched)
	require.Equal(t, 1, streams[0].WindowsSkipped)
	require.Equal(t, "2023-05-03T00:00:00Z", streams[0].Checkpoint)

	errs, err := db.ListRunErrors(runID)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	require.Equal(t, "sales_report", errs[0].Stream)
	require.Equal(t, "2023-05-02", errs[0].ReportDate)

	bookmarks, err := db.LoadState()
	require.NoError(t, err)
	v, _ := bookmarks.StartDate("sales_report")
	require.Equal(t, "2023-05-03T00:00:00Z", v)
}
