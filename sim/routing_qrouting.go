package sim

import "math"

// qRoutingRouting approximates end-to-end delay with a per-(neighbor,
// destination) Q-value, updated from the ACK piggybacked queuing delay
// and the replier's own minimum Q, per spec.md §4.7. Ported from
// original_source/routing/q_routing/q_routing.py and
// q_routing_table.py.
type qRoutingRouting struct {
	q         map[NodeID]map[NodeID]float64
	neighbors map[NodeID]Time
	entryLife Time
	lr        float64
	exploreSeed int64
}

const qRoutingInitialQ = 30000.0

func newQRoutingRouting() *qRoutingRouting {
	return &qRoutingRouting{
		q:         make(map[NodeID]map[NodeID]float64),
		neighbors: make(map[NodeID]Time),
		entryLife: 2_500_000,
		lr:        0.5,
	}
}

func (q *qRoutingRouting) qValue(neighbor, dst NodeID) float64 {
	row, ok := q.q[neighbor]
	if !ok {
		return qRoutingInitialQ
	}
	if v, ok := row[dst]; ok {
		return v
	}
	return qRoutingInitialQ
}

func (q *qRoutingRouting) setQValue(neighbor, dst NodeID, v float64) {
	row, ok := q.q[neighbor]
	if !ok {
		row = make(map[NodeID]float64)
		q.q[neighbor] = row
	}
	row[dst] = v
}

func (q *qRoutingRouting) purge(now Time) {
	for id, t := range q.neighbors {
		if now-t > q.entryLife {
			delete(q.neighbors, id)
		}
	}
}

func (q *qRoutingRouting) minQ(dst NodeID) float64 {
	min := math.Inf(1)
	for neighbor := range q.neighbors {
		if v := q.qValue(neighbor, dst); v < min {
			min = v
		}
	}
	if math.IsInf(min, 1) {
		return qRoutingInitialQ
	}
	return min
}

func (q *qRoutingRouting) Start(n *Node) {
	n.sim.sched.Spawn("qrouting_hello", q.helloBody(n))
}

func (q *qRoutingRouting) helloBody(n *Node) func(a *Activity) {
	return func(a *Activity) {
		for {
			jitter := Time(n.rng.Intn(1001) + 1000)
			if w := a.Timeout(500_000 + jitter); w.Interrupted {
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

// bestNeighbor greedily picks the neighbor with the lowest Q(dst), with
// a decaying exploration probability matching the original's
// annealed-epsilon schedule.
func (q *qRoutingRouting) bestNeighbor(n *Node, dst NodeID) NodeID {
	q.purge(n.sim.sched.Now())
	if len(q.neighbors) == 0 {
		return n.ID
	}

	epsilon := 0.9 * math.Pow(0.5, float64(n.sim.sched.Now())/1e6)
	ids := sortedNodeIDs(q.neighbors)
	if n.rng.Float64() < epsilon {
		return ids[n.rng.Intn(len(ids))]
	}

	best := math.Inf(1)
	var candidates []NodeID
	for _, id := range ids {
		if id == n.ID {
			continue
		}
		v := q.qValue(id, dst)
		if v < best {
			best = v
		}
	}
	for _, id := range ids {
		if id == n.ID {
			continue
		}
		if q.qValue(id, dst) == best {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return n.ID
	}
	return candidates[n.rng.Intn(len(candidates))]
}

func (q *qRoutingRouting) NextHopSelection(n *Node, pkt *Packet) (bool, *Packet, bool) {
	next := q.bestNeighbor(n, pkt.Dst)
	if next == n.ID {
		return false, nil, false
	}
	cp := *pkt
	cp.NextHop = next
	return true, &cp, false
}

func (q *qRoutingRouting) PacketReception(n *Node, pkt *Packet, srcID NodeID) func(a *Activity) {
	switch p := pkt.Payload.(type) {
	case HelloPayload:
		q.neighbors[srcID] = n.sim.sched.Now()
		return nil
	case AckPayload:
		f := 0.0
		if srcID == pkt.Dst {
			f = 1
		}
		cur := q.qValue(srcID, pkt.Dst)
		updated := (1-q.lr)*cur + q.lr*(float64(p.QueuingDelay)+0+(1-f)*p.MinQ)
		q.setQValue(srcID, pkt.Dst, updated)
		n.ackArrived(p.AckedID)
		return nil
	default:
		return func(a *Activity) {
			minQ := q.minQ(pkt.Dst)
			isDst := pkt.Dst == n.ID
			deliverOrRelay(n, pkt)
			sendAckNow(a, n, srcID, pkt.ID, minQ, 0, isDst)
		}
	}
}
