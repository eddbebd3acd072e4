package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGRAdNextHopSelectionFloodsARequestWhenCostUnknown(t *testing.T) {
	s := newBareSimulator(3, nil)
	g := newGRAdRouting()
	pkt := testDataPacket(s, 0, 2)

	hasRoute, toSend, askNow := g.NextHopSelection(s.nodes[0], pkt)

	assert.False(t, hasRoute)
	require.True(t, askNow)
	require.NotNil(t, toSend)
	payload, ok := toSend.Payload.(GradPayload)
	require.True(t, ok)
	assert.True(t, payload.IsRequest)
	assert.True(t, g.pending[2])
}

func TestGRAdNextHopSelectionSuppressesDuplicateRequestsWhilePending(t *testing.T) {
	s := newBareSimulator(3, nil)
	g := newGRAdRouting()
	pkt := testDataPacket(s, 0, 2)

	g.NextHopSelection(s.nodes[0], pkt)
	hasRoute, toSend, askNow := g.NextHopSelection(s.nodes[0], pkt)

	assert.False(t, hasRoute)
	assert.False(t, askNow)
	assert.Nil(t, toSend)
}

func TestGRAdNextHopSelectionUsesKnownCostAsABroadcastGradient(t *testing.T) {
	s := newBareSimulator(3, nil)
	g := newGRAdRouting()
	g.costs[2] = gradCostEntry{cost: 3, updatedAt: 0}

	hasRoute, toSend, _ := g.NextHopSelection(s.nodes[0], testDataPacket(s, 0, 2))

	require.True(t, hasRoute)
	assert.Equal(t, ModeBroadcast, toSend.Mode)
	payload := toSend.Payload.(GradPayload)
	assert.Equal(t, 3.0, payload.Cost)
}

func TestGRAdHandleGradControlRequestAtOriginalDestinationReplies(t *testing.T) {
	s := newBareSimulator(3, nil)
	g := newGRAdRouting()
	n := s.nodes[2]
	req := &Packet{Kind: KindGrad, Payload: GradPayload{IsRequest: true, OriginalDst: 2, RemainingValue: 8}}

	body := g.handleGradControl(n, req, 1, req.Payload.(GradPayload))
	require.NotNil(t, body)
	s.sched.Spawn("reply", body)
	s.sched.Run(1_000_000)

	recs := s.channel.pending(0) // reply is a broadcast: every other node gets a copy
	require.Len(t, recs, 1)
	assert.Equal(t, KindGrad, recs[0].pkt.Kind)
	payload := recs[0].pkt.Payload.(GradPayload)
	assert.False(t, payload.IsRequest)
}

func TestGRAdHandleGradControlRequestStopsAtZeroBudget(t *testing.T) {
	s := newBareSimulator(3, nil)
	g := newGRAdRouting()
	req := &Packet{Kind: KindGrad, Payload: GradPayload{IsRequest: true, OriginalDst: 2, RemainingValue: 0}}

	body := g.handleGradControl(s.nodes[0], req, 1, req.Payload.(GradPayload))
	assert.Nil(t, body)
}

func TestGRAdHandleGradControlReplyRecordsBestCostAndClearsPending(t *testing.T) {
	s := newBareSimulator(3, nil)
	g := newGRAdRouting()
	g.pending[2] = true
	reply := &Packet{Kind: KindGrad, Payload: GradPayload{IsRequest: false, Cost: 1, OriginalDst: 2, RemainingValue: 8}}

	body := g.handleGradControl(s.nodes[0], reply, 1, reply.Payload.(GradPayload))
	require.NotNil(t, body)
	assert.False(t, g.pending[2])
	assert.Equal(t, 2.0, g.costs[2].cost)
}

func TestGRAdHandleGradControlReplyKeepsTheBetterCostOnly(t *testing.T) {
	s := newBareSimulator(3, nil)
	g := newGRAdRouting()
	g.costs[2] = gradCostEntry{cost: 1, updatedAt: 0}
	worse := &Packet{Kind: KindGrad, Payload: GradPayload{IsRequest: false, Cost: 5, OriginalDst: 2, RemainingValue: 8}}

	g.handleGradControl(s.nodes[0], worse, 1, worse.Payload.(GradPayload))
	assert.Equal(t, 1.0, g.costs[2].cost, "a worse-cost reply must not overwrite a better known cost")
}

func TestGRAdPruneDropsEntriesPastEntryLife(t *testing.T) {
	g := newGRAdRouting()
	g.costs[2] = gradCostEntry{cost: 1, updatedAt: 0}
	g.prune(g.entryLife + 1)
	assert.NotContains(t, g.costs, NodeID(2))
}
