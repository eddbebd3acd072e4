package sim

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlacesEveryNodeWithinTheMapBox(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumberOfDrones = 10
	cfg.StaticCase = true
	s := New(cfg, testLogger())

	for _, n := range s.Nodes() {
		assert.GreaterOrEqual(t, n.Position.X, 0.0)
		assert.LessOrEqual(t, n.Position.X, cfg.MapLength)
		assert.GreaterOrEqual(t, n.Position.Y, 0.0)
		assert.LessOrEqual(t, n.Position.Y, cfg.MapWidth)
		assert.GreaterOrEqual(t, n.Position.Z, 0.0)
		assert.LessOrEqual(t, n.Position.Z, cfg.MapHeight)
	}
}

func TestNewIsDeterministicGivenTheSameSeed(t *testing.T) {
	cfg1 := DefaultConfig()
	cfg1.NumberOfDrones = 5
	cfg2 := DefaultConfig()
	cfg2.NumberOfDrones = 5

	s1 := New(cfg1, testLogger())
	s2 := New(cfg2, testLogger())

	for i := range s1.Nodes() {
		assert.Equal(t, s1.Nodes()[i].Position, s2.Nodes()[i].Position)
		assert.Equal(t, s1.Nodes()[i].Velocity, s2.Nodes()[i].Velocity)
	}
}

func TestRunAdvancesToSimTimeAndReturnsASnapshot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumberOfDrones = 4
	cfg.SimTime = 2_000_000
	s := New(cfg, testLogger())

	sum := s.Run()

	assert.LessOrEqual(t, s.Now(), cfg.SimTime)
	assert.GreaterOrEqual(t, sum.Generated, 0)
}

func TestMaxTxTimeScalesWithPacketLengthAndBitRate(t *testing.T) {
	s := newBareSimulator(1, nil)
	want := Time(float64(s.Config.DataPacketLengthBits()) / s.Config.BitRate * 1e6)
	assert.Equal(t, want, s.maxTxTime())
}

func TestNodeHoldsChannelFalseForAnOutOfRangeID(t *testing.T) {
	s := newBareSimulator(2, nil)
	assert.False(t, s.nodeHoldsChannel(NodeID(99)))
}

func TestNodeHoldsChannelTrueOnceALeaseIsAcquired(t *testing.T) {
	s := newBareSimulator(2, nil)
	n := s.nodes[0]
	assert.False(t, s.nodeHoldsChannel(n.ID))

	s.sched.Spawn("holder", func(a *Activity) {
		n.macState.channelUse.Acquire(a)
	})
	s.sched.Run(1)
	assert.True(t, s.nodeHoldsChannel(n.ID))
}

func TestInjectRecordsAUnicastFrameAndTracesItWhenSet(t *testing.T) {
	s := newBareSimulator(2, nil)
	var buf bytes.Buffer
	s.SetTrace(NewTraceRecorder(&buf))

	pkt := testDataPacket(s, 0, 1)
	s.inject(pkt, s.nodes[0], 0, 1000)

	recs := s.channel.pending(1)
	require.Len(t, recs, 1)

	events, err := ReadTrace(&buf)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, traceEventInject, events[0].Type)
	assert.Equal(t, pkt.ID, events[0].PacketID)
}

func TestInjectWithoutATraceRecorderIsANoop(t *testing.T) {
	s := newBareSimulator(2, nil)
	pkt := testDataPacket(s, 0, 1)
	assert.NotPanics(t, func() { s.inject(pkt, s.nodes[0], 0, 1000) })
}

func TestPrintSummaryIncludesTheCurrentTimeAndSummaryFields(t *testing.T) {
	s := newBareSimulator(1, nil)
	s.metrics.recordGenerated()
	out := s.PrintSummary(s.metrics.Snapshot())

	assert.Contains(t, out, "simulation complete at t=0")
	assert.Contains(t, out, "generated=1")
}
