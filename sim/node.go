package sim

import (
	"math"
	"math/rand"
	"sort"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// packetQueue is a bounded FIFO, the node's transmit_queue.
type packetQueue struct {
	items []*Packet
	max   int
}

func newPacketQueue(max int) *packetQueue { return &packetQueue{max: max} }

func (q *packetQueue) push(p *Packet) bool {
	if len(q.items) >= q.max {
		return false
	}
	q.items = append(q.items, p)
	return true
}

func (q *packetQueue) pop() (*Packet, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p, true
}

func (q *packetQueue) len() int { return len(q.items) }

// Node is one simulated drone: its kinematic state, installed
// Mobility/EnergyModel/MAC/Routing strategies, and its concurrent
// activities (generate, feed, receive, energy_monitor, waiting_list,
// and mobility unless StaticCase).
// Grounded on original_source/entities/drone.py.
type Node struct {
	ID       NodeID
	Position Vec3
	Velocity Vec3

	sim *Simulator

	mobility Mobility
	energy   EnergyModel
	mac      MAC
	routing  Routing

	residualEnergy float64
	sleep          bool

	sendBuffer    *Resource
	macState      *macState
	transmitQueue *packetQueue
	waitingList   map[PacketID]*Packet

	rng    *rand.Rand
	logger log.Logger
}

func newNode(sim *Simulator, id NodeID, pos, vel Vec3) *Node {
	n := &Node{
		ID:             id,
		Position:       pos,
		Velocity:       vel,
		sim:            sim,
		residualEnergy: sim.Config.InitialEnergy,
		waitingList:    make(map[PacketID]*Packet),
		transmitQueue:  newPacketQueue(sim.Config.MaxQueueSize),
		rng:            rand.New(rand.NewSource(sim.Config.Seed + 1000*int64(id))),
		logger:         log.With(sim.logger, "node", id),
	}
	n.sendBuffer = NewResource(sim.sched)
	n.macState = newMACState(sim.sched)
	energyModel := sim.Config.Energy()
	n.energy = energyModel
	n.mobility = NewGaussMarkov3D(sim.Config.Seed, id, sim.Config.MapLength, sim.Config.MapWidth, sim.Config.MapHeight, vel)
	switch sim.Config.MAC {
	case MACPureAloha:
		n.mac = PureAlohaMAC{}
	default:
		n.mac = CsmaCaMAC{}
	}
	n.routing = newRouting(sim.Config.Routing, n)
	return n
}

// spawnActivities launches the node's long-running coroutines. Called
// once by the Simulator after every Node exists, so routing modules
// that reference peers at construction time see a fully built node
// table.
func (n *Node) spawnActivities() {
	n.sim.sched.Spawn("generate", n.generateDataPacketBody)
	n.sim.sched.Spawn("feed", n.feedPacketBody)
	n.sim.sched.Spawn("receive", n.receiveBody)
	n.sim.sched.Spawn("energy_monitor", n.energyMonitorBody)
	n.sim.sched.Spawn("waiting_list", n.waitingListBody)
	if !n.sim.Config.StaticCase {
		n.sim.sched.Spawn("mobility", n.mobilityBody)
	}
	n.routing.Start(n)
}

func (n *Node) interArrival() Time {
	switch n.sim.Config.Traffic {
	case TrafficUniform:
		return Time(500000 + n.rng.Intn(5001))
	default: // Poisson, rate 2/s
		const rate = 2.0
		u := n.rng.Float64()
		seconds := -math.Log(1-u) / rate
		return Time(seconds * 1e6)
	}
}

func (n *Node) pickDestination() NodeID {
	for {
		d := NodeID(n.rng.Intn(n.sim.Config.NumberOfDrones))
		if d != n.ID {
			return d
		}
	}
}

// generateDataPacketBody is the generate_data_packet activity.
func (n *Node) generateDataPacketBody(a *Activity) {
	for {
		w := a.Timeout(n.interArrival())
		if w.Interrupted {
			continue
		}
		if n.sleep {
			return
		}
		if n.transmitQueue.len() >= n.sim.Config.MaxQueueSize {
			n.sim.metrics.recordDrop()
			continue
		}
		dst := n.pickDestination()
		pkt := &Packet{
			ID:                  n.sim.ids.Next(KindData),
			Kind:                KindData,
			LengthBits:          n.sim.Config.DataPacketLengthBits(),
			CreationTime:        n.sim.sched.Now(),
			Deadline:            n.sim.Config.PacketLifetime,
			Src:                 n.ID,
			Dst:                 dst,
			Mode:                ModeUnicast,
			RetransmissionCount: make(map[NodeID]int),
			Payload:             DataPayload{},
		}
		n.transmitQueue.push(pkt)
		n.sim.metrics.recordGenerated()
		level.Debug(n.logger).Log("event", "generate", "packet", pkt.ID, "dst", dst)
	}
}

// feedPacketBody is the feed_packet activity: a 10us tick draining the
// transmit_queue through routing's next_hop_selection and into the MAC
// pipeline, paused while head-of-line-blocked.
func (n *Node) feedPacketBody(a *Activity) {
	const tick = Time(10)
	for {
		if w := a.Timeout(tick); w.Interrupted {
			continue
		}
		if n.sleep {
			return
		}
		if n.macState.headOfLineBlocked() {
			continue
		}
		p, ok := n.transmitQueue.pop()
		if !ok {
			continue
		}
		if n.sim.sched.Now() >= p.CreationTime+p.Deadline {
			n.sim.metrics.recordDrop()
			continue
		}
		if p.Kind == KindData && p.RetransmissionCount[n.ID] < n.sim.Config.MaxRetransmissionAttempt {
			hasRoute, toSend, askNow := n.routing.NextHopSelection(n, p)
			if hasRoute {
				n.spawnPacketComing(toSend)
			} else {
				n.waitingList[p.ID] = p
				if askNow {
					n.spawnPacketComing(toSend)
				}
			}
		} else {
			// control packets bypass routing
			n.spawnPacketComing(p)
		}
	}
}

// spawnPacketComing launches packetComing as an independent activity so
// feed_packet's tick is never blocked by a MAC send in progress.
func (n *Node) spawnPacketComing(pkt *Packet) {
	n.sim.sched.Spawn("packet_coming", func(a *Activity) {
		n.packetComing(a, pkt)
	})
}

// packetComing is the shared helper of spec.md §4.6: scoped-acquire
// the send buffer, bump the retransmission counter, launch mac_send,
// and release the buffer only once mac_send has finished, on every
// exit path including interruption.
func (n *Node) packetComing(a *Activity, pkt *Packet) {
	lease, w := n.sendBuffer.Acquire(a)
	if w.Interrupted {
		return
	}
	defer lease.Release()

	pkt.RetransmissionCount[n.ID]++
	sendStart := n.sim.sched.Now()
	macAct := n.sim.sched.Spawn("mac_send", n.mac.SendBody(n, pkt))
	a.WaitFor(macAct)
	n.sim.metrics.recordMacDelay(n.sim.sched.Now() - sendStart)
}

// requeueOrDrop is invoked by the MAC layer when an ACK wait times out:
// retry while under the retransmission cap, otherwise drop and count.
func (n *Node) requeueOrDrop(pkt *Packet) {
	if pkt.RetransmissionCount[n.ID] < n.sim.Config.MaxRetransmissionAttempt {
		if !n.transmitQueue.push(pkt) {
			n.sim.metrics.recordDrop()
		}
		return
	}
	n.sim.metrics.recordDrop()
}

// waitingListBody is the background reclaim task spec.md §4.6/§7
// requires: a packet parked in waitingList for lack of a route must
// eventually either be promoted back onto the send path once a route
// becomes known, or dropped once its deadline passes. Without it a
// packet generated before a reactive/learning protocol has any
// neighbors would be lost forever instead of retried.
func (n *Node) waitingListBody(a *Activity) {
	const tick = Time(50)
	for {
		if w := a.Timeout(tick); w.Interrupted {
			continue
		}
		if n.sleep {
			return
		}
		if len(n.waitingList) == 0 {
			continue
		}

		ids := make([]PacketID, 0, len(n.waitingList))
		for id := range n.waitingList {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		now := n.sim.sched.Now()
		for _, id := range ids {
			p := n.waitingList[id]
			if now >= p.CreationTime+p.Deadline {
				delete(n.waitingList, id)
				n.sim.metrics.recordDrop()
				continue
			}
			hasRoute, toSend, _ := n.routing.NextHopSelection(n, p)
			if hasRoute {
				delete(n.waitingList, id)
				n.spawnPacketComing(toSend)
			}
		}
	}
}

// receiveBody is the receive activity: a 5us tick that prunes stale
// inbox entries, detects newly-complete frames, and runs SINR
// arbitration over them.
func (n *Node) receiveBody(a *Activity) {
	const tick = Time(5)
	for {
		if w := a.Timeout(tick); w.Interrupted {
			continue
		}
		if n.sleep {
			return
		}

		now := n.sim.sched.Now()
		maxTxTime := n.sim.maxTxTime()
		n.sim.channel.prune(n.ID, now-2*maxTxTime)

		var complete []frame
		for _, rec := range n.sim.channel.pending(n.ID) {
			if rec.processed {
				continue
			}
			if now >= rec.injectedAt+rec.duration {
				rec.processed = true
				complete = append(complete, frame{
					txID:     rec.txID,
					start:    rec.injectedAt,
					end:      rec.injectedAt + rec.duration,
					distance: n.Position.Dist(rec.txPos),
					pkt:      rec.pkt,
				})
			}
		}
		if len(complete) == 0 {
			continue
		}

		winner, collided := arbitrate(n.sim.Config.Propagation(), complete, n.sim.Config.MaxTTL)
		if collided {
			n.sim.metrics.recordCollision()
		}
		if winner == nil {
			continue
		}
		body := n.dispatchPacketReception(winner)
		if body != nil {
			n.sim.sched.Spawn("packet_reception", n.guardedReceptionBody(body))
		}
	}
}

// dispatchPacketReception calls the installed routing protocol's
// PacketReception, recovering a panic instead of letting it kill the
// scheduler: a single malformed or mishandled reception must not take
// down the run, per spec.md §7's "caught, logged, and the current
// reception ignored" rule.
func (n *Node) dispatchPacketReception(winner *frame) (body func(a *Activity)) {
	defer func() {
		if r := recover(); r != nil {
			level.Error(n.logger).Log("event", "routing_panic", "packet", winner.pkt.ID, "err", r)
			body = nil
		}
	}()
	return n.routing.PacketReception(n, winner.pkt, winner.txID)
}

// guardedReceptionBody wraps a PacketReception-returned activity body
// with the same panic recovery, since it runs later as its own
// scheduled activity rather than inline with dispatchPacketReception.
func (n *Node) guardedReceptionBody(body func(a *Activity)) func(a *Activity) {
	return func(a *Activity) {
		defer func() {
			if r := recover(); r != nil {
				level.Error(n.logger).Log("event", "routing_panic", "err", r)
			}
		}()
		body(a)
	}
}

// energyMonitorBody supplements spec.md's distilled operations with
// original_source/entities/drone.py's energy_monitor: a 0.1s tick that
// puts the node to sleep once residual energy falls to the threshold.
// Once asleep, a Node never wakes (spec.md §8's sleep-is-sticky
// invariant).
func (n *Node) energyMonitorBody(a *Activity) {
	const tick = Time(100000)
	for {
		if w := a.Timeout(tick); w.Interrupted {
			continue
		}
		if n.residualEnergy <= n.sim.Config.EnergyThreshold {
			n.sleep = true
			level.Info(n.logger).Log("event", "sleep", "time", n.sim.sched.Now())
			return
		}
	}
}

// mobilityBody drives position/velocity updates and the associated
// energy draw, ported from original_source/mobility/gauss_markov_3d.py.
// Skipped entirely when Config.StaticCase is set, rather than branching
// inside the activity, since a static scenario has no motion to model.
func (n *Node) mobilityBody(a *Activity) {
	const updateInterval = Time(100000)
	for {
		if w := a.Timeout(updateInterval); w.Interrupted {
			continue
		}
		if n.sleep {
			return
		}
		pos, vel := n.mobility.Advance(n, updateInterval)
		n.Position = pos
		n.Velocity = vel
		speed := vel.Norm()
		n.residualEnergy -= (float64(updateInterval) / 1e6) * n.energy.Power(speed)
		if n.residualEnergy < 0 {
			n.residualEnergy = 0
		}
	}
}
