package sim

// qldvRouting is the Q-learning distance-vector protocol of spec.md
// §4.7: periodic hellos carry each known destination's max Q-value and
// the neighbor action that achieves it, receivers update their own
// Q-table only through neighbors that are not themselves the
// advertised best action (loop prevention), and a neighbor's expiry
// triggers an error broadcast purging every route learned through it.
// Ported from original_source/routing/qldv/qldv.py and
// qldv_table.py. The original's per-destination "has route"/"no
// route" error propagation (carrying an alternative max_q to chain
// recovery across hops) is simplified here to a direct Dst-keyed
// withdrawal: fresh hellos repopulate an alternative route on the next
// tick rather than threading the replacement through the error
// packet itself.
type qldvRouting struct {
	neighbors map[NodeID]Time
	// q[dst][action] is this node's learned value of routing to dst via
	// neighbor action.
	q           map[NodeID]map[NodeID]float64
	entryLife   Time
	learningRate float64
	seenError   map[PacketID]bool
}

func newQldvRouting() *qldvRouting {
	return &qldvRouting{
		neighbors:    make(map[NodeID]Time),
		q:            make(map[NodeID]map[NodeID]float64),
		entryLife:    250_000,
		learningRate: 1,
		seenError:    make(map[PacketID]bool),
	}
}

func (q *qldvRouting) Start(n *Node) {
	q.q[n.ID] = map[NodeID]float64{n.ID: 1}
	n.sim.sched.Spawn("qldv_hello", q.helloBody(n))
	n.sim.sched.Spawn("qldv_purge", q.purgeBody(n))
}

func (q *qldvRouting) helloBody(n *Node) func(a *Activity) {
	const interval = 100_000
	return func(a *Activity) {
		for {
			jitter := Time(n.rng.Intn(1001) + 1000)
			if w := a.Timeout(interval + jitter); w.Interrupted {
				continue
			}
			if n.sleep {
				return
			}
			for _, dst := range sortedNodeIDs(q.q) {
				maxQ, argmax := q.bestAction(dst)
				if argmax == -1 {
					continue
				}
				pkt := &Packet{
					ID:                  n.sim.ids.Next(KindQldvAdvert),
					Kind:                KindQldvAdvert,
					LengthBits:          n.sim.Config.HelloPacketLengthBits(),
					CreationTime:        n.sim.sched.Now(),
					Deadline:            n.sim.Config.PacketLifetime,
					Src:                 n.ID,
					Mode:                ModeBroadcast,
					RetransmissionCount: map[NodeID]int{n.ID: 0},
					Payload:             QldvAdvertPayload{Dst: dst, MaxQ: maxQ, ArgmaxAction: argmax},
				}
				n.sim.metrics.recordControlSent()
				n.spawnPacketComing(pkt)
			}
		}
	}
}

func (q *qldvRouting) bestAction(dst NodeID) (float64, NodeID) {
	row, ok := q.q[dst]
	if !ok {
		return 0, -1
	}
	best := -1000.0
	bestAction := NodeID(-1)
	for _, action := range sortedNodeIDs(row) {
		if v := row[action]; v > best {
			best = v
			bestAction = action
		}
	}
	return best, bestAction
}

// purgeBody detects neighbors that went silent and deletes every route
// learned through them, broadcasting an error so downstream nodes do
// the same.
func (q *qldvRouting) purgeBody(n *Node) func(a *Activity) {
	const interval = 400_000
	return func(a *Activity) {
		for {
			if w := a.Timeout(interval); w.Interrupted {
				continue
			}
			if n.sleep {
				return
			}
			now := n.sim.sched.Now()
			for _, neighbor := range sortedNodeIDs(q.neighbors) {
				if now-q.neighbors[neighbor] <= q.entryLife {
					continue
				}
				delete(q.neighbors, neighbor)
				for _, dst := range sortedNodeIDs(q.q) {
					if _, ok := q.q[dst][neighbor]; ok {
						delete(q.q[dst], neighbor)
						q.broadcastError(n, dst)
					}
				}
			}
		}
	}
}

func (q *qldvRouting) broadcastError(n *Node, dst NodeID) {
	pkt := &Packet{
		ID:                  n.sim.ids.Next(KindQldvError),
		Kind:                KindQldvError,
		LengthBits:          n.sim.Config.HelloPacketLengthBits(),
		CreationTime:        n.sim.sched.Now(),
		Deadline:            n.sim.Config.PacketLifetime,
		Src:                 n.ID,
		Mode:                ModeBroadcast,
		RetransmissionCount: map[NodeID]int{n.ID: 0},
		Payload:             QldvErrorPayload{Dst: dst},
	}
	q.seenError[pkt.ID] = true
	n.sim.metrics.recordControlSent()
	n.spawnPacketComing(pkt)
}

func (q *qldvRouting) NextHopSelection(n *Node, pkt *Packet) (bool, *Packet, bool) {
	_, action := q.bestAction(pkt.Dst)
	if action == -1 || action == n.ID {
		return false, nil, false
	}
	if _, isNeighbor := q.neighbors[action]; !isNeighbor {
		return false, nil, false
	}
	cp := *pkt
	cp.NextHop = action
	return true, &cp, false
}

func (q *qldvRouting) PacketReception(n *Node, pkt *Packet, srcID NodeID) func(a *Activity) {
	switch p := pkt.Payload.(type) {
	case QldvAdvertPayload:
		q.regularUpdate(n, srcID, p)
		return nil
	case QldvErrorPayload:
		if q.seenError[pkt.ID] {
			return nil
		}
		q.seenError[pkt.ID] = true
		if row, ok := q.q[p.Dst]; ok {
			if _, had := row[srcID]; had {
				delete(row, srcID)
				return func(a *Activity) { q.broadcastError(n, p.Dst) }
			}
		}
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

func (q *qldvRouting) regularUpdate(n *Node, srcID NodeID, p QldvAdvertPayload) {
	if srcID == n.ID {
		return
	}
	q.neighbors[srcID] = n.sim.sched.Now()

	const gamma = 0.75
	reward, f := 0.0, 0.0
	if srcID == p.Dst {
		reward, f = 1, 1
	}

	// loop prevention: never learn a route whose advertised best action
	// points back at us, nor update our own route-to-self entry.
	if p.ArgmaxAction == n.ID || p.Dst == n.ID {
		return
	}

	row, ok := q.q[p.Dst]
	if !ok {
		row = make(map[NodeID]float64)
		q.q[p.Dst] = row
	}
	cur, had := row[srcID]
	target := reward + gamma*(1-f)*p.MaxQ
	if !had {
		row[srcID] = q.learningRate * target
	} else {
		row[srcID] = (1-q.learningRate)*cur + q.learningRate*target
	}
}
