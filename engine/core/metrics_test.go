package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRollingAverage(t *testing.T) {
	m := NewMetrics()
	refreshed := false
	for i := 0; i < 100; i++ {
		// 16ms frames; 63 of them pass one second.
		if m.Update(0.016) {
			refreshed = true
			assert.Equal(t, 63.0, m.FPS())
		}
	}
	assert.True(t, refreshed)
	assert.InDelta(t, 16.0, m.FrameTime(), 1e-9)
	assert.Equal(t, uint64(100), m.TotalFrames())

	for i := 0; i < AVG_COUNT; i++ {
		m.Update(0.004)
	}
	assert.InDelta(t, 4.0, m.FrameTime(), 1e-9, "the window only holds the last frames")
}
