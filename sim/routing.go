package sim

import "sort"

// sortedNodeIDs returns m's keys in ascending NodeID order. Per-protocol
// tables are plain Go maps, whose iteration order is randomized; every
// place a protocol selects a next hop, argmax/argmin's action, or
// broadcasts to a set of peers must walk this instead of `range m`
// directly, so a given seed always produces the same tie-break and the
// same control-packet send order.
func sortedNodeIDs[V any](m map[NodeID]V) []NodeID {
	ids := make([]NodeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Routing is the pluggable network-layer interface of spec.md §4.7,
// implemented by all eight named variants. Start is called once per
// node after every Node in the Simulator exists, so a protocol can
// begin its periodic beaconing knowing the full peer set is reachable.
type Routing interface {
	// NextHopSelection resolves a route for pkt. If hasRoute, toSend is
	// pkt with NextHop set. Otherwise the module may synchronously
	// build a control packet (route request, hello) and return it as
	// toSend with askNow=true, so the caller still runs it through MAC.
	NextHopSelection(n *Node, pkt *Packet) (hasRoute bool, toSend *Packet, askNow bool)

	// PacketReception returns the activity body that handles a won
	// frame: updating tables for control packets, delivering or
	// relaying data packets, replying ACKs, or resolving ACK waits.
	// May return nil if the reception requires no further activity.
	PacketReception(n *Node, pkt *Packet, srcID NodeID) func(a *Activity)

	// Start launches any periodic beaconing/table-maintenance
	// activities the protocol needs.
	Start(n *Node)
}

func newRouting(p RoutingProtocol, n *Node) Routing {
	switch p {
	case RoutingDSDV:
		return newDSDVRouting()
	case RoutingGRAd:
		return newGRAdRouting()
	case RoutingOPAR:
		return newOPARRouting()
	case RoutingPARRoT:
		return newPARRoTRouting()
	case RoutingQRouting:
		return newQRoutingRouting()
	case RoutingQGeo:
		return newQGeoRouting()
	case RoutingQldv:
		return newQldvRouting()
	default:
		return newGPSRRouting()
	}
}

// sendAckNow replies to a just-received data packet with an uncontended
// ACK after a SIFS gap, bypassing CSMA/CA contention entirely per
// spec.md §4.7 ("reply ACK with a short inter-frame gap SIFS and an
// uncontended send").
func sendAckNow(a *Activity, n *Node, dst NodeID, ackedID PacketID, minQ float64, queuingDelay Time, isDst bool) {
	sendAckNowWithVoid(a, n, dst, ackedID, minQ, queuingDelay, isDst, false)
}

// sendAckNowWithVoid is sendAckNow extended with QGeo's void-area flag.
func sendAckNowWithVoid(a *Activity, n *Node, dst NodeID, ackedID PacketID, minQ float64, queuingDelay Time, isDst, voidArea bool) {
	a.Timeout(n.sim.Config.SIFSDuration)
	ack := &Packet{
		ID:           n.sim.ids.Next(KindAck),
		Kind:         KindAck,
		LengthBits:   n.sim.Config.AckPacketLengthBits,
		CreationTime: n.sim.sched.Now(),
		Deadline:     n.sim.Config.PacketLifetime,
		Src:          n.ID,
		Dst:          dst,
		NextHop:      dst,
		Mode:         ModeUnicast,
		RetransmissionCount: map[NodeID]int{n.ID: 0},
		Payload: AckPayload{
			AckedID:       ackedID,
			MinQ:          minQ,
			QueuingDelay:  queuingDelay,
			IsDestination: isDst,
			VoidArea:      voidArea,
		},
	}
	txStart := n.sim.sched.Now()
	txDur := Time(float64(ack.LengthBits) / n.sim.Config.BitRate * 1e6)
	a.Timeout(txDur)
	n.sim.inject(ack, n, txStart, txDur)
}

// deliverOrRelay implements the common data-packet disposition every
// protocol's PacketReception shares: if n is the destination, count
// the arrival; otherwise push the packet back through the send path
// for the next hop.
func deliverOrRelay(n *Node, pkt *Packet) {
	if pkt.Dst == n.ID {
		n.sim.metrics.recordArrival(pkt.ID, n.sim.sched.Now()-pkt.CreationTime, pkt.TTL, n.sim.sched.Now(), pkt.LengthBits)
		return
	}
	if pkt.TTL >= n.sim.Config.MaxTTL {
		n.sim.metrics.recordDrop()
		return
	}
	n.transmitQueue.push(pkt)
}
