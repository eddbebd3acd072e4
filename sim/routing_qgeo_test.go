package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQGeoVoidAreaTrueWithNoCloserNeighbor(t *testing.T) {
	s := newBareSimulator(2, nil)
	g := newQGeoRouting()
	assert.True(t, g.voidArea(s.nodes[0], Vec3{X: 1000}))
}

func TestQGeoVoidAreaFalseWhenANeighborIsCloser(t *testing.T) {
	s := newBareSimulator(2, nil)
	g := newQGeoRouting()
	g.neighbors[1] = qgeoNeighborEntry{pos: s.nodes[1].Position}
	assert.False(t, g.voidArea(s.nodes[0], Vec3{X: 1000}))
}

func TestQGeoMaxQReturnsZeroWithNoNeighbors(t *testing.T) {
	g := newQGeoRouting()
	assert.Equal(t, 0.0, g.maxQ(9))
}

func TestQGeoMaxQReturnsTheHighestAmongNeighbors(t *testing.T) {
	g := newQGeoRouting()
	g.neighbors[1] = qgeoNeighborEntry{}
	g.neighbors[2] = qgeoNeighborEntry{}
	g.setQValue(1, 9, 0.2)
	g.setQValue(2, 9, 0.8)
	assert.Equal(t, 0.8, g.maxQ(9))
}

func TestQGeoPurgeDropsStaleNeighbors(t *testing.T) {
	g := newQGeoRouting()
	g.neighbors[1] = qgeoNeighborEntry{updatedAt: 0}
	g.purge(g.entryLife + 1)
	assert.NotContains(t, g.neighbors, NodeID(1))
}

func TestQGeoNextHopSelectionHasNoRouteWithoutAPositiveQNeighbor(t *testing.T) {
	s := newBareSimulator(2, nil)
	g := newQGeoRouting()
	hasRoute, _, _ := g.NextHopSelection(s.nodes[0], testDataPacket(s, 0, 1))
	assert.False(t, hasRoute)
}

func TestQGeoNextHopSelectionRoutesThroughTheBestQNeighbor(t *testing.T) {
	s := newBareSimulator(3, nil)
	g := newQGeoRouting()
	g.neighbors[1] = qgeoNeighborEntry{}
	g.setQValue(1, 2, 0.9)

	hasRoute, toSend, _ := g.NextHopSelection(s.nodes[0], testDataPacket(s, 0, 2))
	require.True(t, hasRoute)
	assert.Equal(t, NodeID(1), toSend.NextHop)
}

func TestQGeoPacketReceptionOnQGeoHelloLearnsNeighborPosition(t *testing.T) {
	s := newBareSimulator(2, nil)
	g := newQGeoRouting()
	n := s.nodes[0]

	body := g.PacketReception(n, &Packet{Kind: KindQGeo, Payload: QGeoPayload{Position: Vec3{X: 77}}}, 1)
	assert.Nil(t, body)
	entry, ok := g.neighbors[1]
	require.True(t, ok)
	assert.Equal(t, Vec3{X: 77}, entry.pos)
}

func TestQGeoUpdateQTableRewardsForwardProgressTowardTheDestination(t *testing.T) {
	s := newBareSimulator(3, nil) // 0, 100, 200 along X
	g := newQGeoRouting()
	n := s.nodes[0]
	g.neighbors[1] = qgeoNeighborEntry{pos: s.nodes[1].Position, updatedAt: 0}

	pkt := testDataPacket(s, 0, 2)
	pkt.CreationTime = 0
	ack := AckPayload{MinQ: 0}

	g.updateQTable(n, pkt, 1, ack)
	assert.Greater(t, g.qValue(1, 2), 0.0, "forwarding closer to the destination must raise Q")
}

func TestQGeoUpdateQTableGivesMaximalRewardWhenNextHopIsTheDestination(t *testing.T) {
	s := newBareSimulator(3, nil)
	g := newQGeoRouting()
	n := s.nodes[0]
	g.neighbors[2] = qgeoNeighborEntry{pos: s.nodes[2].Position, updatedAt: 0}

	pkt := testDataPacket(s, 0, 2)
	pkt.CreationTime = 0
	g.updateQTable(n, pkt, 2, AckPayload{MinQ: 0})

	assert.Greater(t, g.qValue(2, 2), g.qValue(1, 2))
}

func TestQGeoUpdateQTablePenalizesAVoidAreaReply(t *testing.T) {
	s := newBareSimulator(3, nil)
	g := newQGeoRouting()
	n := s.nodes[0]
	g.neighbors[1] = qgeoNeighborEntry{pos: s.nodes[1].Position, updatedAt: 0}

	pkt := testDataPacket(s, 0, 2)
	pkt.CreationTime = 0
	g.updateQTable(n, pkt, 1, AckPayload{MinQ: 0, VoidArea: true})

	assert.Less(t, g.qValue(1, 2), 0.0)
}

func TestQGeoUpdateQTableIsANoopForAnUnknownNextHop(t *testing.T) {
	s := newBareSimulator(2, nil)
	g := newQGeoRouting()
	pkt := testDataPacket(s, 0, 1)

	g.updateQTable(s.nodes[0], pkt, 9, AckPayload{})
	assert.Equal(t, 0.5, g.qValue(9, 1), "no neighbor entry for hop 9, so nothing should be learned")
}
