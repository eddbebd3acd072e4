package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordArrivalIgnoresARepeatOfTheSamePacketID(t *testing.T) {
	m := NewMetrics()
	m.recordGenerated()

	m.recordArrival(1, 1000, 2, 1000, 800)
	m.recordArrival(1, 9999, 9, 9999, 800)

	snap := m.Snapshot()
	assert.Equal(t, 1, snap.Delivered)
	assert.Equal(t, 1000.0/1e3, snap.MeanE2EDelayMs)
	assert.Equal(t, 2.0, snap.MeanHopCount)
}

func TestSnapshotComputesPDRAgainstGeneratedCount(t *testing.T) {
	m := NewMetrics()
	m.recordGenerated()
	m.recordGenerated()
	m.recordGenerated()
	m.recordGenerated()
	m.recordArrival(1, 100, 1, 100, 800)

	snap := m.Snapshot()
	assert.Equal(t, 25.0, snap.PDRPercent)
}

func TestSnapshotWithNoGeneratedPacketsReportsZeroPDR(t *testing.T) {
	m := NewMetrics()
	assert.Equal(t, 0.0, m.Snapshot().PDRPercent)
}

func TestSnapshotRoutingLoadIsControlSentOverDataDelivered(t *testing.T) {
	m := NewMetrics()
	m.recordControlSent()
	m.recordControlSent()
	m.recordControlSent()
	m.recordArrival(1, 100, 1, 100, 800)

	assert.Equal(t, 3.0, m.Snapshot().RoutingLoad)
}

func TestSnapshotThroughputIsZeroWhenAllArrivalsShareOneInstant(t *testing.T) {
	m := NewMetrics()
	m.recordArrival(1, 100, 1, 5000, 800)
	m.recordArrival(2, 100, 1, 5000, 800)
	assert.Equal(t, 0.0, m.Snapshot().MeanThroughputKbps)
}

func TestSnapshotThroughputIsPositiveOverASpan(t *testing.T) {
	m := NewMetrics()
	m.recordArrival(1, 100, 1, 1_000_000, 8000)
	m.recordArrival(2, 100, 1, 2_000_000, 8000)
	assert.Greater(t, m.Snapshot().MeanThroughputKbps, 0.0)
}

func TestSnapshotCountsCollisionsAndMacDelay(t *testing.T) {
	m := NewMetrics()
	m.recordCollision()
	m.recordCollision()
	m.recordMacDelay(2000)
	m.recordMacDelay(4000)

	snap := m.Snapshot()
	assert.Equal(t, 2, snap.Collisions)
	assert.Equal(t, 3.0, snap.MeanMACDelayMs)
}

func TestRecordDropAndAckTimeoutIncrementUnexportedCounters(t *testing.T) {
	m := NewMetrics()
	m.recordDrop()
	m.recordAckTimeout()
	assert.Equal(t, 1, m.drops)
	assert.Equal(t, 1, m.ackTimeouts)
}

func TestSummaryStringIncludesEveryField(t *testing.T) {
	m := NewMetrics()
	m.recordGenerated()
	m.recordArrival(1, 1000, 3, 1000, 800)
	m.recordCollision()

	s := m.Snapshot().String()
	assert.Contains(t, s, "generated=1")
	assert.Contains(t, s, "delivered=1")
	assert.Contains(t, s, "pdr=100.00%")
	assert.Contains(t, s, "mean_hop_count=3.00")
	assert.Contains(t, s, "collisions=1")
}
