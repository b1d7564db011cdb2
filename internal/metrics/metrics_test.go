package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordLookup(t *testing.T) {
	before := testutil.ToFloat64(CacheLookups.WithLabelValues("weather", OutcomeStale))
	RecordLookup("weather", OutcomeStale)
	assert.Equal(t, before+1, testutil.ToFloat64(CacheLookups.WithLabelValues("weather", OutcomeStale)))
}

func TestRecordUpstreamLabelsTransportErrors(t *testing.T) {
	before := testutil.ToFloat64(UpstreamRequests.WithLabelValues("tmdb", "error"))
	RecordUpstream("tmdb", 0, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(UpstreamRequests.WithLabelValues("tmdb", "error")))

	before = testutil.ToFloat64(UpstreamRequests.WithLabelValues("tmdb", "502"))
	RecordUpstream("tmdb", 502, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(UpstreamRequests.WithLabelValues("tmdb", "502")))
}

func TestRecordDoesNotPanic(t *testing.T) {
	RecordStoreWriteError("yelp")
	RecordHTTP("GET", "/weather", 200, 3*time.Millisecond)
}
