package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRoutingQValueDefaultsToInitialQForUnknownEntries(t *testing.T) {
	q := newQRoutingRouting()
	assert.Equal(t, qRoutingInitialQ, q.qValue(1, 2))
}

func TestQRoutingSetQValueThenQValueRoundTrips(t *testing.T) {
	q := newQRoutingRouting()
	q.setQValue(1, 2, 42.5)
	assert.Equal(t, 42.5, q.qValue(1, 2))
}

func TestQRoutingMinQReturnsTheLowestAmongKnownNeighbors(t *testing.T) {
	q := newQRoutingRouting()
	q.neighbors[1] = 0
	q.neighbors[2] = 0
	q.setQValue(1, 9, 500)
	q.setQValue(2, 9, 100)
	assert.Equal(t, 100.0, q.minQ(9))
}

func TestQRoutingMinQFallsBackToInitialQWithNoNeighbors(t *testing.T) {
	q := newQRoutingRouting()
	assert.Equal(t, qRoutingInitialQ, q.minQ(9))
}

func TestQRoutingPurgeDropsStaleNeighbors(t *testing.T) {
	q := newQRoutingRouting()
	q.neighbors[1] = 0
	q.purge(q.entryLife + 1)
	assert.NotContains(t, q.neighbors, NodeID(1))
}

func TestQRoutingBestNeighborReturnsSelfWithNoNeighbors(t *testing.T) {
	s := newBareSimulator(2, nil)
	q := newQRoutingRouting()
	assert.Equal(t, s.nodes[0].ID, q.bestNeighbor(s.nodes[0], 1))
}

func TestQRoutingBestNeighborReturnsTheSoleKnownNeighbor(t *testing.T) {
	s := newBareSimulator(3, nil)
	q := newQRoutingRouting()
	q.neighbors[1] = 0

	// with exactly one candidate neighbor, both the exploration and
	// greedy branches of bestNeighbor agree regardless of epsilon.
	assert.Equal(t, NodeID(1), q.bestNeighbor(s.nodes[0], 2))
}

func TestQRoutingNextHopSelectionHasNoRouteWithoutAnyNeighbor(t *testing.T) {
	s := newBareSimulator(2, nil)
	q := newQRoutingRouting()
	hasRoute, _, _ := q.NextHopSelection(s.nodes[0], testDataPacket(s, 0, 1))
	assert.False(t, hasRoute)
}

func TestQRoutingNextHopSelectionRoutesThroughTheSoleNeighbor(t *testing.T) {
	s := newBareSimulator(3, nil)
	q := newQRoutingRouting()
	q.neighbors[1] = 0

	hasRoute, toSend, _ := q.NextHopSelection(s.nodes[0], testDataPacket(s, 0, 2))
	require.True(t, hasRoute)
	assert.Equal(t, NodeID(1), toSend.NextHop)
}

func TestQRoutingPacketReceptionOnHelloLearnsNeighbor(t *testing.T) {
	s := newBareSimulator(2, nil)
	q := newQRoutingRouting()
	n := s.nodes[0]

	body := q.PacketReception(n, &Packet{Payload: HelloPayload{}}, 1)
	assert.Nil(t, body)
	assert.Contains(t, q.neighbors, NodeID(1))
}

func TestQRoutingPacketReceptionOnAckUpdatesQAndResolvesTheWait(t *testing.T) {
	s := newBareSimulator(2, nil)
	q := newQRoutingRouting()
	n := s.nodes[0]
	pkt := testDataPacket(s, 0, 1)

	timedOut := false
	s.sched.Spawn("arm", func(a *Activity) {
		n.armAckWait(pkt, 1000, func(a *Activity, p *Packet) { timedOut = true })
	})
	s.sched.Run(1)

	ack := &Packet{Dst: 1, Payload: AckPayload{AckedID: pkt.ID, MinQ: 10, QueuingDelay: 5, IsDestination: true}}
	body := q.PacketReception(n, ack, 1)
	assert.Nil(t, body)
	assert.NotEqual(t, qRoutingInitialQ, q.qValue(1, 1), "an ack from the destination must update Q away from the initial value")

	s.sched.Run(2000)
	assert.False(t, timedOut)
}
