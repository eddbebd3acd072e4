package sim

// qgeoNeighborEntry is one row of QGeo's neighbor table: last reported
// position/velocity and the time they were reported, used both for
// link-prediction in the Q-update and for the void-area test.
type qgeoNeighborEntry struct {
	pos, vel  Vec3
	updatedAt Time
}

// qgeoRouting is the position-aware reinforcement-learning protocol of
// spec.md §4.7: reward trades off forward progress against MAC delay,
// falls to -1 in a void area (no neighbor closer to the destination
// than self), and discounts future value by 0.6 or 0.4 depending on
// whether the next hop is predicted to remain in range at the next
// hello tick. Ported from original_source/routing/qgeo/qgeo.py and
// qgeo_neighbor_table.py.
type qgeoRouting struct {
	neighbors map[NodeID]qgeoNeighborEntry
	q         map[NodeID]map[NodeID]float64
	entryLife Time
	lr        float64
}

func newQGeoRouting() *qgeoRouting {
	return &qgeoRouting{
		neighbors: make(map[NodeID]qgeoNeighborEntry),
		q:         make(map[NodeID]map[NodeID]float64),
		entryLife: 1_000_000,
		lr:        0.5,
	}
}

func (g *qgeoRouting) qValue(neighbor, dst NodeID) float64 {
	if row, ok := g.q[neighbor]; ok {
		return row[dst] // zero value for an unseen destination, matching the half-initialized table
	}
	return 0.5
}

func (g *qgeoRouting) setQValue(neighbor, dst NodeID, v float64) {
	row, ok := g.q[neighbor]
	if !ok {
		row = make(map[NodeID]float64)
		g.q[neighbor] = row
	}
	row[dst] = v
}

func (g *qgeoRouting) purge(now Time) {
	for id, e := range g.neighbors {
		if now-e.updatedAt > g.entryLife {
			delete(g.neighbors, id)
		}
	}
}

func (g *qgeoRouting) maxQ(dst NodeID) float64 {
	max := 0.0
	for id := range g.neighbors {
		if v := g.qValue(id, dst); v > max {
			max = v
		}
	}
	return max
}

// voidArea reports whether no current neighbor is closer to dstPos
// than this node itself is, i.e. greedy forwarding has hit a local
// maximum.
func (g *qgeoRouting) voidArea(n *Node, dstPos Vec3) bool {
	myDist := n.Position.Dist(dstPos)
	for _, e := range g.neighbors {
		if e.pos.Dist(dstPos) < myDist {
			return false
		}
	}
	return true
}

func (g *qgeoRouting) Start(n *Node) {
	n.sim.sched.Spawn("qgeo_hello", g.helloBody(n))
}

func (g *qgeoRouting) helloBody(n *Node) func(a *Activity) {
	const interval = 500_000
	return func(a *Activity) {
		for {
			jitter := Time(n.rng.Intn(1001) + 1000)
			if w := a.Timeout(interval + jitter); w.Interrupted {
				continue
			}
			if n.sleep {
				return
			}
			pkt := &Packet{
				ID:                  n.sim.ids.Next(KindQGeo),
				Kind:                KindQGeo,
				LengthBits:          n.sim.Config.HelloPacketLengthBits(),
				CreationTime:        n.sim.sched.Now(),
				Deadline:            n.sim.Config.PacketLifetime,
				Src:                 n.ID,
				Mode:                ModeBroadcast,
				RetransmissionCount: map[NodeID]int{n.ID: 0},
				Payload:             QGeoPayload{Position: n.Position},
			}
			n.sim.metrics.recordControlSent()
			n.spawnPacketComing(pkt)
		}
	}
}

func (g *qgeoRouting) bestNeighbor(n *Node, dst NodeID) NodeID {
	g.purge(n.sim.sched.Now())
	best := 0.0
	bestID := n.ID
	for _, id := range sortedNodeIDs(g.neighbors) {
		if v := g.qValue(id, dst); v > best {
			best = v
			bestID = id
		}
	}
	return bestID
}

func (g *qgeoRouting) NextHopSelection(n *Node, pkt *Packet) (bool, *Packet, bool) {
	next := g.bestNeighbor(n, pkt.Dst)
	if next == n.ID {
		return false, nil, false
	}
	cp := *pkt
	cp.NextHop = next
	return true, &cp, false
}

func (g *qgeoRouting) PacketReception(n *Node, pkt *Packet, srcID NodeID) func(a *Activity) {
	switch p := pkt.Payload.(type) {
	case QGeoPayload:
		g.neighbors[srcID] = qgeoNeighborEntry{pos: p.Position, updatedAt: n.sim.sched.Now()}
		return nil
	case AckPayload:
		g.updateQTable(n, pkt, srcID, p)
		n.ackArrived(p.AckedID)
		return nil
	default:
		return func(a *Activity) {
			dstPos := n.sim.nodes[pkt.Dst].Position
			void := g.voidArea(n, dstPos)
			maxQ := g.maxQ(pkt.Dst)
			isDst := pkt.Dst == n.ID
			deliverOrRelay(n, pkt)
			sendAckNowWithVoid(a, n, srcID, pkt.ID, maxQ, 0, isDst, void)
		}
	}
}

// updateQTable applies the position/MAC-delay reward to Q(nextHop,
// dst), discounted by whether the next hop is predicted to remain
// within range through the following hello tick.
func (g *qgeoRouting) updateQTable(n *Node, pkt *Packet, nextHop NodeID, ack AckPayload) {
	entry, ok := g.neighbors[nextHop]
	if !ok {
		return
	}
	const helloInterval = 500_000
	future := Time((n.sim.sched.Now()/helloInterval + 1) * helloInterval)
	dt := future - entry.updatedAt
	if dt < 0 {
		dt = 0
	}
	futureNextHopPos := entry.pos.Add(entry.vel.Scale(float64(dt) / 1e6))
	futureSelfPos := n.Position.Add(n.Velocity.Scale(float64(dt) / 1e6))
	futureDist := futureSelfPos.Dist(futureNextHopPos)

	gamma := 0.4
	if futureDist < MaxRange(n.sim.Config.Propagation()) {
		gamma = 0.6
	}

	dstPos := n.sim.nodes[pkt.Dst].Position
	nextHopPos := entry.pos
	myToDst := n.Position.Dist(dstPos)
	nextHopToDst := nextHopPos.Dist(dstPos)
	distDifference := myToDst - nextHopToDst

	macDelay := n.sim.sched.Now() - pkt.CreationTime
	if macDelay <= 0 {
		macDelay = 1
	}
	maxRange := MaxRange(n.sim.Config.Propagation())
	f := maxRange / (float64(macDelay) / 1e6)

	var reward float64
	switch {
	case nextHop == pkt.Dst:
		reward = 1
	case ack.VoidArea:
		reward = -1
	default:
		reward = (distDifference / (float64(macDelay) / 1e6)) / f
	}

	cur := g.qValue(nextHop, pkt.Dst)
	g.setQValue(nextHop, pkt.Dst, (1-g.lr)*cur+g.lr*(reward+gamma*ack.MinQ))
}
