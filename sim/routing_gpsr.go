package sim

import "math"

// gpsrNeighborEntry is one row of a node's greedy-forwarding neighbor
// table, refreshed by periodic hellos.
type gpsrNeighborEntry struct {
	pos       Vec3
	updatedAt Time
}

// gpsrRouting is the position-based greedy-forwarding protocol of
// spec.md §4.7, with perimeter fallback when no neighbor is closer
// than self. Ported from original_source/routing/gpsr/gpsr.py and
// gpsr_neighbor_table.py.
type gpsrRouting struct {
	neighbors map[NodeID]gpsrNeighborEntry
	entryLife Time
}

func newGPSRRouting() *gpsrRouting {
	return &gpsrRouting{
		neighbors: make(map[NodeID]gpsrNeighborEntry),
		entryLife: 2 * 1_000_000,
	}
}

func (g *gpsrRouting) Start(n *Node) {
	n.sim.sched.Spawn("gpsr_hello", g.helloBody(n))
}

func (g *gpsrRouting) helloBody(n *Node) func(a *Activity) {
	return func(a *Activity) {
		interval := n.sim.Config.HelloInterval
		for {
			jitter := Time(n.rng.Intn(int(interval) / 10 + 1))
			if w := a.Timeout(interval + jitter); w.Interrupted {
				continue
			}
			if n.sleep {
				return
			}
			pkt := &Packet{
				ID:                  n.sim.ids.Next(KindHello),
				Kind:                KindHello,
				LengthBits:          n.sim.Config.HelloPacketLengthBits(),
				CreationTime:        n.sim.sched.Now(),
				Deadline:            n.sim.Config.PacketLifetime,
				Src:                 n.ID,
				Mode:                ModeBroadcast,
				RetransmissionCount: map[NodeID]int{n.ID: 0},
				Payload:             HelloPayload{Position: n.Position, Velocity: n.Velocity},
			}
			n.sim.metrics.recordControlSent()
			n.spawnPacketComing(pkt)
		}
	}
}

func (g *gpsrRouting) prune(now Time) {
	for id, e := range g.neighbors {
		if now-e.updatedAt > g.entryLife {
			delete(g.neighbors, id)
		}
	}
}

func (g *gpsrRouting) NextHopSelection(n *Node, pkt *Packet) (bool, *Packet, bool) {
	g.prune(n.sim.sched.Now())

	dstPos := n.sim.nodes[pkt.Dst].Position
	myDist := n.Position.Dist(dstPos)

	bestID := NodeID(-1)
	bestDist := myDist
	for _, id := range sortedNodeIDs(g.neighbors) {
		d := g.neighbors[id].pos.Dist(dstPos)
		if d < bestDist {
			bestDist = d
			bestID = id
		}
	}

	if bestID == -1 {
		// perimeter fallback: smallest-angle neighbor toward dst.
		bestAngle := 4.0 // > any real angle in radians (max pi)
		for _, id := range sortedNodeIDs(g.neighbors) {
			ang := angleBetween(dstPos.Sub(n.Position), g.neighbors[id].pos.Sub(n.Position))
			if ang < bestAngle {
				bestAngle = ang
				bestID = id
			}
		}
	}

	if bestID == -1 {
		return false, nil, false
	}

	cp := *pkt
	cp.NextHop = bestID
	return true, &cp, false
}

func angleBetween(a, b Vec3) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return 4.0
	}
	cos := (a.X*b.X + a.Y*b.Y + a.Z*b.Z) / (na * nb)
	if cos > 1 {
		cos = 1
	}
	if cos < -1 {
		cos = -1
	}
	return math.Acos(cos)
}

func (g *gpsrRouting) PacketReception(n *Node, pkt *Packet, srcID NodeID) func(a *Activity) {
	switch p := pkt.Payload.(type) {
	case HelloPayload:
		g.neighbors[srcID] = gpsrNeighborEntry{pos: p.Position, updatedAt: n.sim.sched.Now()}
		return nil
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
