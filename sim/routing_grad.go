package sim

// gradCostEntry tracks the best known cost-to-destination learned from
// a reply, used to gate re-forwarding of data packets.
type gradCostEntry struct {
	cost      float64
	updatedAt Time
}

// gradRouting is the flood-based reactive protocol of spec.md §4.7:
// M_REQUEST floods with a decrementing remaining_value, the
// destination replies with M_REPLY carrying its minimum known cost,
// and data travels as M_DATA with a remaining-cost budget, forwarded
// only by nodes whose estimated cost is within budget. Ported from
// original_source/routing/grad/grad.py and grad_cost_table.py.
type gradRouting struct {
	costs       map[NodeID]gradCostEntry
	pending     map[NodeID]bool // destinations with an outstanding M_REQUEST
	entryLife   Time
	initialBudget float64
}

func newGRAdRouting() *gradRouting {
	return &gradRouting{
		costs:         make(map[NodeID]gradCostEntry),
		pending:       make(map[NodeID]bool),
		entryLife:     4 * 1_000_000,
		initialBudget: 8,
	}
}

func (g *gradRouting) Start(n *Node) {}

func (g *gradRouting) prune(now Time) {
	for _, id := range sortedNodeIDs(g.costs) {
		if now-g.costs[id].updatedAt > g.entryLife {
			delete(g.costs, id)
		}
	}
}

func (g *gradRouting) NextHopSelection(n *Node, pkt *Packet) (bool, *Packet, bool) {
	g.prune(n.sim.sched.Now())

	if _, known := g.costs[pkt.Dst]; known {
		cp := *pkt
		cp.NextHop = pkt.Dst // GRAd floods toward cost-improving neighbors, modeled as a logical broadcast
		cp.Mode = ModeBroadcast
		cp.Payload = GradPayload{IsRequest: false, RemainingValue: g.initialBudget, Cost: g.costs[pkt.Dst].cost, OriginalDst: pkt.Dst}
		return true, &cp, false
	}

	if g.pending[pkt.Dst] {
		return false, nil, false
	}
	g.pending[pkt.Dst] = true

	req := &Packet{
		ID:                  n.sim.ids.Next(KindGrad),
		Kind:                KindGrad,
		LengthBits:          n.sim.Config.HelloPacketLengthBits(),
		CreationTime:        n.sim.sched.Now(),
		Deadline:            n.sim.Config.PacketLifetime,
		Src:                 n.ID,
		Dst:                 pkt.Dst,
		Mode:                ModeBroadcast,
		TTL:                 0,
		RetransmissionCount: map[NodeID]int{n.ID: 0},
		Payload:             GradPayload{IsRequest: true, RemainingValue: g.initialBudget, OriginalDst: pkt.Dst},
	}
	n.sim.metrics.recordControlSent()
	return false, req, true
}

func (g *gradRouting) PacketReception(n *Node, pkt *Packet, srcID NodeID) func(a *Activity) {
	switch p := pkt.Payload.(type) {
	case GradPayload:
		return g.handleGradControl(n, pkt, srcID, p)
	case AckPayload:
		n.ackArrived(p.AckedID)
		return nil
	default:
		return func(a *Activity) {
			deliverOrRelay(n, pkt)
			if pkt.Dst == n.ID {
				sendAckNow(a, n, srcID, pkt.ID, 0, 0, true)
			}
		}
	}
}

func (g *gradRouting) handleGradControl(n *Node, pkt *Packet, srcID NodeID, p GradPayload) func(a *Activity) {
	if p.IsRequest {
		if p.OriginalDst == n.ID {
			return func(a *Activity) {
				reply := &Packet{
					ID:                  n.sim.ids.Next(KindGrad),
					Kind:                KindGrad,
					LengthBits:          n.sim.Config.HelloPacketLengthBits(),
					CreationTime:        n.sim.sched.Now(),
					Deadline:            n.sim.Config.PacketLifetime,
					Src:                 n.ID,
					Mode:                ModeBroadcast,
					RetransmissionCount: map[NodeID]int{n.ID: 0},
					Payload:             GradPayload{IsRequest: false, Cost: 0, RemainingValue: g.initialBudget, OriginalDst: n.ID},
				}
				n.sim.metrics.recordControlSent()
				n.spawnPacketComing(reply)
			}
		}
		if p.RemainingValue <= 0 {
			return nil
		}
		return func(a *Activity) {
			fwd := *pkt
			cp := p
			cp.RemainingValue--
			fwd.Payload = cp
			fwd.ID = n.sim.ids.Next(KindGrad)
			n.sim.metrics.recordControlSent()
			n.spawnPacketComing(&fwd)
		}
	}

	// M_REPLY: remember the best cost learned, relaying the gradient
	// outward while the budget allows.
	cost := p.Cost + 1
	existing, ok := g.costs[p.OriginalDst]
	if !ok || cost < existing.cost {
		g.costs[p.OriginalDst] = gradCostEntry{cost: cost, updatedAt: n.sim.sched.Now()}
	}
	delete(g.pending, p.OriginalDst)
	if p.RemainingValue <= 0 {
		return nil
	}
	return func(a *Activity) {
		fwd := *pkt
		cp := p
		cp.Cost = cost
		cp.RemainingValue--
		fwd.Payload = cp
		fwd.ID = n.sim.ids.Next(KindGrad)
		n.sim.metrics.recordControlSent()
		n.spawnPacketComing(&fwd)
	}
}
