package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveFetch(OutcomeSuccess, 20*time.Millisecond)
	r.ObserveFetch(OutcomeSuccess, 30*time.Millisecond)
	r.ObserveFetch("network", time.Second)
	r.StaleResponse()
	r.RetriesExhausted()
	r.ViewOpened()
	r.ViewOpened()
	r.ViewClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.FetchesTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.FetchesTotal.WithLabelValues("network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.StaleResponsesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.RetriesExhaustedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ActiveViews))
	assert.Equal(t, 1, testutil.CollectAndCount(r.FetchDuration))
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveFetch(OutcomeSuccess, time.Millisecond)
		r.StaleResponse()
		r.RetriesExhausted()
		r.ViewOpened()
		r.ViewClosed()
	})
}
