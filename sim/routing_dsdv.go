package sim

// dsdvRow is one destination's routing table entry: next hop, metric
// (hop count, infinite on withdrawal), advertised sequence number and
// last-update time.
type dsdvRow struct {
	nextHop   NodeID
	metric    int
	seq       int
	updatedAt Time
}

const dsdvInfiniteMetric = 1 << 30

// dsdvRouting is the distance-vector protocol of spec.md §4.7: entries
// are accepted on a newer sequence number, or an equal sequence with a
// lower metric; link expiry poisons every route through the failed
// neighbor with an odd (withdrawal) sequence number and triggers an
// urgent broadcast. Ported from original_source/routing/dsdv/dsdv.py
// and dsdv_routing_table.py.
type dsdvRouting struct {
	table     map[NodeID]*dsdvRow
	entryLife Time
	seq       int
}

func newDSDVRouting() *dsdvRouting {
	return &dsdvRouting{table: make(map[NodeID]*dsdvRow), entryLife: 3 * 1_000_000}
}

func (d *dsdvRouting) Start(n *Node) {
	n.sim.sched.Spawn("dsdv_advert", d.advertBody(n))
}

func (d *dsdvRouting) advertBody(n *Node) func(a *Activity) {
	return func(a *Activity) {
		interval := n.sim.Config.HelloInterval
		for {
			if w := a.Timeout(interval); w.Interrupted {
				continue
			}
			if n.sleep {
				return
			}
			d.expireStale(n)
			d.seq++
			if d.seq%2 != 0 {
				d.seq++ // even sequence numbers: normal update
			}
			for _, dst := range sortedNodeIDs(d.table) {
				row := d.table[dst]
				d.broadcastAdvert(n, dst, row.nextHop, row.metric)
			}
			// advertise self, a one-hop route for every neighbor.
			d.broadcastAdvert(n, n.ID, n.ID, 0)
		}
	}
}

func (d *dsdvRouting) broadcastAdvert(n *Node, dst, nextHop NodeID, metric int) {
	pkt := &Packet{
		ID:                  n.sim.ids.Next(KindDSDVAdvert),
		Kind:                KindDSDVAdvert,
		LengthBits:          n.sim.Config.HelloPacketLengthBits(),
		CreationTime:        n.sim.sched.Now(),
		Deadline:            n.sim.Config.PacketLifetime,
		Src:                 n.ID,
		Mode:                ModeBroadcast,
		RetransmissionCount: map[NodeID]int{n.ID: 0},
		Payload:             DSDVAdvertPayload{Dst: dst, NextHop: nextHop, Metric: metric, Seq: d.seq},
	}
	n.sim.metrics.recordControlSent()
	n.spawnPacketComing(pkt)
}

// expireStale walks the table, poisoning every route through a
// neighbor whose last direct advertisement is older than entryLife.
func (d *dsdvRouting) expireStale(n *Node) {
	now := n.sim.sched.Now()
	for _, dst := range sortedNodeIDs(d.table) {
		row := d.table[dst]
		if row.metric == 1 && now-row.updatedAt > d.entryLife {
			for _, via := range sortedNodeIDs(d.table) {
				if r := d.table[via]; r.nextHop == row.nextHop && r.metric < dsdvInfiniteMetric {
					d.withdraw(n, via)
				}
			}
		}
	}
}

func (d *dsdvRouting) withdraw(n *Node, dst NodeID) {
	row, ok := d.table[dst]
	if !ok {
		return
	}
	row.metric = dsdvInfiniteMetric
	d.seq++
	if d.seq%2 == 0 {
		d.seq++ // odd sequence numbers encode withdrawals
	}
	row.seq = d.seq
	row.updatedAt = n.sim.sched.Now()
	pkt := &Packet{
		ID:                  n.sim.ids.Next(KindDSDVWithdraw),
		Kind:                KindDSDVWithdraw,
		LengthBits:          n.sim.Config.HelloPacketLengthBits(),
		CreationTime:        n.sim.sched.Now(),
		Deadline:            n.sim.Config.PacketLifetime,
		Src:                 n.ID,
		Mode:                ModeBroadcast,
		RetransmissionCount: map[NodeID]int{n.ID: 0},
		Payload:             DSDVWithdrawPayload{Dst: dst, Seq: d.seq},
	}
	n.sim.metrics.recordControlSent()
	n.spawnPacketComing(pkt)
}

func (d *dsdvRouting) NextHopSelection(n *Node, pkt *Packet) (bool, *Packet, bool) {
	row, ok := d.table[pkt.Dst]
	if !ok || row.metric >= dsdvInfiniteMetric {
		return false, nil, false
	}
	cp := *pkt
	cp.NextHop = row.nextHop
	return true, &cp, false
}

func (d *dsdvRouting) PacketReception(n *Node, pkt *Packet, srcID NodeID) func(a *Activity) {
	switch p := pkt.Payload.(type) {
	case DSDVAdvertPayload:
		d.acceptAdvert(n, srcID, p)
		return nil
	case DSDVWithdrawPayload:
		if row, ok := d.table[p.Dst]; ok && p.Seq > row.seq {
			row.metric = dsdvInfiniteMetric
			row.seq = p.Seq
			row.updatedAt = n.sim.sched.Now()
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

func (d *dsdvRouting) acceptAdvert(n *Node, srcID NodeID, p DSDVAdvertPayload) {
	metric := p.Metric + 1
	row, ok := d.table[p.Dst]
	if !ok {
		d.table[p.Dst] = &dsdvRow{nextHop: srcID, metric: metric, seq: p.Seq, updatedAt: n.sim.sched.Now()}
		return
	}
	if p.Seq > row.seq || (p.Seq == row.seq && metric < row.metric) {
		row.nextHop = srcID
		row.metric = metric
		row.seq = p.Seq
		row.updatedAt = n.sim.sched.Now()
	}
}
