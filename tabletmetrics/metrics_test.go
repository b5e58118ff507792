package tabletmetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.InsertOK()
	r.InsertAlreadyPresent()
	r.UpdateOK()
	r.UpdateNotFound()
	r.FlushStarted()
	r.FlushCompleted(10, 0.5)
	r.FlushFailed()
	r.CompactionStarted(3)
	r.CompactionCompleted(10, 0.5)
	r.CompactionFailed()
	r.LayerCount(2)
	r.MemstoreRows(5)
}

func TestPrometheusRecorderCountsAndGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewPrometheusRecorder(reg, "tablet_test")

	r.InsertOK()
	r.InsertOK()
	r.InsertAlreadyPresent()
	require.Equal(t, float64(2), testutil.ToFloat64(r.inserts.WithLabelValues("ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(r.inserts.WithLabelValues("already_present")))

	r.FlushStarted()
	r.FlushCompleted(128, 1.5)
	require.Equal(t, float64(1), testutil.ToFloat64(r.flushes.WithLabelValues("started")))
	require.Equal(t, float64(1), testutil.ToFloat64(r.flushes.WithLabelValues("completed")))

	r.CompactionStarted(3)
	r.CompactionCompleted(256, 2.0)
	require.Equal(t, float64(1), testutil.ToFloat64(r.compactions.WithLabelValues("started")))

	r.LayerCount(4)
	r.MemstoreRows(9)
	require.Equal(t, float64(4), testutil.ToFloat64(r.layerCount))
	require.Equal(t, float64(9), testutil.ToFloat64(r.memstoreRows))
}

func TestNewPrometheusRecorderRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { NewPrometheusRecorder(reg, "once") })
}
