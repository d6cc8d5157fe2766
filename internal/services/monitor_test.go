package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelswap/internal/metrics"
)

func TestResourceMonitor_Snapshot(t *testing.T) {
	m, err := NewResourceMonitor(false, nil)
	require.NoError(t, err)

	snap, err := m.Snapshot()
	require.NoError(t, err)
	assert.Greater(t, snap.RSSBytes, uint64(0))
	assert.InDelta(t, float64(snap.RSSBytes)/bytesPerMB, snap.RSSMB, 0.001)
	assert.GreaterOrEqual(t, snap.Percent, 0.0)
}

func TestResourceMonitor_TrackSetsGauge(t *testing.T) {
	collector := metrics.NewCollector()
	m, err := NewResourceMonitor(true, collector)
	require.NoError(t, err)

	done := m.Track("upload")
	done()

	text := scrape(t, collector)
	assert.Contains(t, text, "modelswap_process_resident_memory_bytes ")
	assert.NotContains(t, text, "modelswap_process_resident_memory_bytes 0\n")
}
