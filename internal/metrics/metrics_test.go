package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveAPI("fetch", "ok", 20*time.Millisecond)
	c.ObserveAPI("fetch", "ok", 30*time.Millisecond)
	c.ObserveAPI("update", "server_error", time.Millisecond)
	c.RecordSharedFetch()
	c.SetDirty(2)
	c.RecordBatchSave(true)
	c.RecordBatchSave(false)
	c.RecordNotification("success")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.apiRequests.WithLabelValues("fetch", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.apiRequests.WithLabelValues("update", "server_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fetchShared))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.dirty))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.batchSaves.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notifications.WithLabelValues("success")))
}

func TestCollector_LiveOverlaysGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	live := 3
	c.TrackLiveOverlays(func() int { return live })

	n, err := testutil.GatherAndCount(reg, "overlays_live")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCollector_NilIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveAPI("fetch", "ok", time.Second)
		c.RecordSharedFetch()
		c.SetDirty(1)
		c.RecordBatchSave(true)
		c.RecordNotification("info")
		c.TrackLiveOverlays(func() int { return 0 })
	})
}
