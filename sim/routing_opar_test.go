package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkLifetimeIsZeroWhenAlreadyOutOfRange(t *testing.T) {
	lt := linkLifetime(Vec3{}, Vec3{}, Vec3{X: 1000}, Vec3{}, 100)
	assert.Equal(t, Time(0), lt)
}

func TestLinkLifetimeIsEffectivelyInfiniteWhenStationaryAndInRange(t *testing.T) {
	lt := linkLifetime(Vec3{}, Vec3{}, Vec3{X: 50}, Vec3{}, 100)
	assert.Greater(t, lt, Time(1<<40))
}

func TestLinkLifetimeShrinksAsNodesSeparate(t *testing.T) {
	// both moving directly apart at 1 m/s, starting 50m apart with a 100m range
	lt := linkLifetime(Vec3{X: -25}, Vec3{X: -1}, Vec3{X: 25}, Vec3{X: 1}, 100)
	assert.Greater(t, lt, Time(0))
	assert.Less(t, lt, Time(60_000_000)) // well under a minute of separation at 2 m/s separating speed
}

func TestDijkstraPathFindsShortestHopPath(t *testing.T) {
	graph := map[NodeID][]oparEdge{
		0: {{to: 1, lifetime: 100}, {to: 2, lifetime: 100}},
		1: {{to: 3, lifetime: 100}},
		2: {{to: 3, lifetime: 100}},
	}
	path, _, ok := dijkstraPath(graph, 0, 3, 4)
	require.True(t, ok)
	assert.Equal(t, NodeID(0), path[0])
	assert.Equal(t, NodeID(3), path[len(path)-1])
	assert.Len(t, path, 3)
}

func TestDijkstraPathReportsUnreachableDestination(t *testing.T) {
	graph := map[NodeID][]oparEdge{
		0: {{to: 1, lifetime: 100}},
	}
	_, _, ok := dijkstraPath(graph, 0, 3, 4)
	assert.False(t, ok)
}

func TestDijkstraPathReturnsTheMinimumLifetimeAlongThePath(t *testing.T) {
	graph := map[NodeID][]oparEdge{
		0: {{to: 1, lifetime: 50}},
		1: {{to: 2, lifetime: 10}},
	}
	_, minLife, ok := dijkstraPath(graph, 0, 2, 3)
	require.True(t, ok)
	assert.Equal(t, Time(10), minLife)
}

func TestOPARNextHopSelectionComputesAFreshPathWhenUnrouted(t *testing.T) {
	s := newBareSimulator(3, nil) // nodes close together, static
	o := newOPARRouting()
	pkt := testDataPacket(s, 0, 2)

	hasRoute, toSend, askNow := o.NextHopSelection(s.nodes[0], pkt)
	require.True(t, hasRoute, "three static nodes within range of each other must find a path")
	assert.False(t, askNow)
	payload, ok := toSend.Payload.(OPARPayload)
	require.True(t, ok)
	assert.Equal(t, NodeID(0), payload.Path[0])
	assert.Equal(t, NodeID(2), payload.Path[len(payload.Path)-1])
}

func TestOPARNextHopSelectionAdvancesAnAlreadySourceRoutedPacket(t *testing.T) {
	s := newBareSimulator(4, nil)
	o := newOPARRouting()
	pkt := testDataPacket(s, 0, 3)
	pkt.Payload = OPARPayload{Path: []NodeID{0, 1, 2, 3}}

	hasRoute, toSend, _ := o.NextHopSelection(s.nodes[1], pkt)
	require.True(t, hasRoute)
	assert.Equal(t, NodeID(2), toSend.NextHop)
}

func TestOPARNextHopSelectionHasNoRouteWhenPathEndsAtThisNode(t *testing.T) {
	s := newBareSimulator(4, nil)
	o := newOPARRouting()
	pkt := testDataPacket(s, 0, 3)
	pkt.Payload = OPARPayload{Path: []NodeID{0, 1, 2, 3}}

	hasRoute, _, _ := o.NextHopSelection(s.nodes[3], pkt)
	assert.False(t, hasRoute)
}

func TestOPARPacketReceptionOnAckResolvesTheWait(t *testing.T) {
	s := newBareSimulator(2, nil)
	o := newOPARRouting()
	n := s.nodes[0]
	pkt := testDataPacket(s, 0, 1)

	timedOut := false
	s.sched.Spawn("arm", func(a *Activity) {
		n.armAckWait(pkt, 1000, func(a *Activity, p *Packet) { timedOut = true })
	})
	s.sched.Run(1)

	body := o.PacketReception(n, &Packet{Payload: AckPayload{AckedID: pkt.ID}}, 1)
	assert.Nil(t, body)
	s.sched.Run(2000)
	assert.False(t, timedOut)
}
