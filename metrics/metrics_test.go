package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.Rows("extract", "listings", 120)
	r.Dropped("listings", "duplicates", 3)
	r.Dropped("listings", "duplicates", 2)
	r.Dropped("listings", "duplicates", 0)
	r.ParseFailures("listings", "price", "empty", 4)
	r.StageDone("transform", 1500*time.Millisecond)

	require.Equal(t, 120.0, testutil.ToFloat64(r.rows.WithLabelValues("extract", "listings")))
	require.Equal(t, 5.0, testutil.ToFloat64(r.dropped.WithLabelValues("listings", "duplicates")))
	require.Equal(t, 4.0, testutil.ToFloat64(r.parseFailures.WithLabelValues("listings", "price", "empty")))
	require.Equal(t, 1.5, testutil.ToFloat64(r.stageDuration.WithLabelValues("transform")))
	require.Greater(t, testutil.ToFloat64(r.lastSuccess.WithLabelValues("transform")), 0.0)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.Rows("a", "b", 1)
	r.Dropped("a", "b", 1)
	r.ParseFailures("a", "b", "c", 1)
	r.StageDone("a", time.Second)
	require.Nil(t, r.Registry())
	require.NoError(t, r.Push("http://unused", "job"))
}

func TestPushSendsToGateway(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New()
	r.Rows("load", "reviews", 9)
	require.NoError(t, r.Push(srv.URL, "airbnb_etl"))
	require.Equal(t, "/metrics/job/airbnb_etl", gotPath)
}

func TestPushSkippedWithoutURL(t *testing.T) {
	require.NoError(t, New().Push("", "job"))
}
