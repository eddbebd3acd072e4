package sim

import "math"

// parrotQEntry is one (destination, action) cell of a PARRoT Q-table.
type parrotQEntry struct {
	q   float64
	seq int
}

// parrotRouting is the reinforcement-learning protocol of spec.md §4.7:
// periodic chirp packets flood a reward signal outward from their
// originator, every recipient updates Q(dst, prevHop) by a
// trajectory-discounted delta, and next-hop selection is argmax over
// actions. Ported from original_source/routing/parrot/parrot.py,
// q_table.py and parrot_neighbor_table.py.
type parrotRouting struct {
	q    map[NodeID]map[NodeID]*parrotQEntry
	lr   float64
	gamma0, tau float64

	neighbors map[NodeID]Time
	lastSet   map[NodeID]bool
	cohesion  float64
	chirpSeq  int
}

func newPARRoTRouting() *parrotRouting {
	return &parrotRouting{
		q:         make(map[NodeID]map[NodeID]*parrotQEntry),
		lr:        0.5,
		gamma0:    0.8,
		tau:       2.5 * 1_000_000,
		neighbors: make(map[NodeID]Time),
		lastSet:   make(map[NodeID]bool),
		cohesion:  1.0,
	}
}

func (p *parrotRouting) entry(dst, action NodeID) *parrotQEntry {
	row, ok := p.q[dst]
	if !ok {
		row = make(map[NodeID]*parrotQEntry)
		p.q[dst] = row
	}
	e, ok := row[action]
	if !ok {
		e = &parrotQEntry{}
		row[action] = e
	}
	return e
}

func (p *parrotRouting) Start(n *Node) {
	n.sim.sched.Spawn("parrot_chirp", p.chirpBody(n))
	n.sim.sched.Spawn("parrot_cohesion", p.cohesionBody(n))
}

func (p *parrotRouting) chirpBody(n *Node) func(a *Activity) {
	return func(a *Activity) {
		for {
			jitter := Time(n.rng.Intn(1001) + 1000)
			if w := a.Timeout(500_000 + jitter); w.Interrupted {
				continue
			}
			if n.sleep {
				return
			}
			p.chirpSeq++
			pkt := &Packet{
				ID:                  n.sim.ids.Next(KindChirp),
				Kind:                KindChirp,
				LengthBits:          n.sim.Config.HelloPacketLengthBits(),
				CreationTime:        n.sim.sched.Now(),
				Deadline:            n.sim.Config.PacketLifetime,
				Src:                 n.ID,
				Dst:                 n.ID,
				Mode:                ModeBroadcast,
				TTL:                 p.chirpSeq,
				RetransmissionCount: map[NodeID]int{n.ID: 0},
				Payload:             ChirpPayload{Dst: n.ID, Reward: 1.0},
			}
			n.sim.metrics.recordControlSent()
			n.spawnPacketComing(pkt)
		}
	}
}

// cohesionBody recomputes the neighbor-set-churn cohesion measure every
// delta_t, mirroring the Python protocol's separate periodic process.
func (p *parrotRouting) cohesionBody(n *Node) func(a *Activity) {
	const deltaT = 2_500_000
	return func(a *Activity) {
		for {
			last := make(map[NodeID]bool, len(p.neighbors))
			for _, id := range sortedNodeIDs(p.neighbors) {
				last[id] = true
			}
			if len(last) == 0 {
				last[n.ID] = true
			}
			if w := a.Timeout(deltaT); w.Interrupted {
				continue
			}
			now := make(map[NodeID]bool, len(p.neighbors))
			for _, id := range sortedNodeIDs(p.neighbors) {
				now[id] = true
			}
			union := make(map[NodeID]bool)
			symDiff := 0
			for id := range last {
				union[id] = true
			}
			for id := range now {
				union[id] = true
			}
			for id := range union {
				if last[id] != now[id] {
					symDiff++
				}
			}
			if len(union) > 0 {
				p.cohesion = math.Sqrt(1 - float64(symDiff)/float64(len(union)))
			}
		}
	}
}

func (p *parrotRouting) bestAction(n *Node, dst NodeID) (NodeID, float64) {
	row := p.q[dst]
	best := 0.0
	bestID := n.ID
	for _, other := range n.sim.nodes {
		if e, ok := row[other.ID]; ok && e.q > best {
			best = e.q
			bestID = other.ID
		}
	}
	return bestID, best
}

func (p *parrotRouting) NextHopSelection(n *Node, pkt *Packet) (bool, *Packet, bool) {
	next, _ := p.bestAction(n, pkt.Dst)
	if next == n.ID {
		return false, nil, false
	}
	cp := *pkt
	cp.NextHop = next
	return true, &cp, false
}

func (p *parrotRouting) PacketReception(n *Node, pkt *Packet, srcID NodeID) func(a *Activity) {
	switch cp := pkt.Payload.(type) {
	case ChirpPayload:
		return p.handleChirp(n, pkt, srcID, cp)
	case AckPayload:
		n.ackArrived(cp.AckedID)
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

func (p *parrotRouting) handleChirp(n *Node, pkt *Packet, srcID NodeID, payload ChirpPayload) func(a *Activity) {
	p.neighbors[srcID] = n.sim.sched.Now()

	dst := payload.Dst
	seqNum := pkt.TTL

	latestSeq := 0
	if row, ok := p.q[dst]; ok {
		for _, e := range row {
			if e.seq > latestSeq {
				latestSeq = e.seq
			}
		}
	}
	if latestSeq >= seqNum || srcID == n.ID {
		return nil
	}

	maxRange := MaxRange(n.sim.Config.Propagation())
	lifetime := linkLifetime(n.Position, n.Velocity, n.sim.nodes[srcID].Position, n.sim.nodes[srcID].Velocity, maxRange)
	let := 1.0
	if float64(lifetime) < p.tau {
		let = math.Sqrt(float64(lifetime) / p.tau)
	}
	gamma := p.gamma0 * let * p.cohesion

	e := p.entry(dst, srcID)
	e.seq = seqNum
	e.q = e.q + p.lr*(gamma*payload.Reward-e.q)

	_, bestQ := p.bestAction(n, dst)

	return func(a *Activity) {
		fwd := &Packet{
			ID:                  n.sim.ids.Next(KindChirp),
			Kind:                KindChirp,
			LengthBits:          pkt.LengthBits,
			CreationTime:        n.sim.sched.Now(),
			Deadline:            n.sim.Config.PacketLifetime,
			Src:                 n.ID,
			Dst:                 dst,
			Mode:                ModeBroadcast,
			TTL:                 seqNum,
			RetransmissionCount: map[NodeID]int{n.ID: 0},
			Payload:             ChirpPayload{Dst: dst, Reward: bestQ},
		}
		n.sim.metrics.recordControlSent()
		n.spawnPacketComing(fwd)
	}
}
