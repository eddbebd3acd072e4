package sim

// MAC is the pluggable link-layer contention interface of spec.md
// §4.5. SendBody returns the coroutine body to run as the mac_send
// activity for pkt; packetComing spawns it via the Scheduler.
type MAC interface {
	SendBody(n *Node, pkt *Packet) func(a *Activity)
}

// macBusyInterrupt is the Wake.Cause a listener activity delivers to a
// sender whose DIFS/backoff countdown it has interrupted.
type macBusyInterrupt struct{}

// ackInterrupt is the Wake.Cause delivered to an ack-wait activity when
// the routing layer observes a matching ACK arrival.
type ackInterrupt struct{}

// macState is the per-node mutable state the MAC layer owns: the
// exclusive channel-use token (carrier-sense visibility, §4.2) and the
// set of outstanding ACK waits keyed by the data packet they guard.
type macState struct {
	channelUse        *Resource
	ackWaits          map[PacketID]*Activity
	holOutstanding    int
}

func newMACState(sched *Scheduler) *macState {
	return &macState{
		channelUse: NewResource(sched),
		ackWaits:   make(map[PacketID]*Activity),
	}
}

// headOfLineBlocked reports whether feed_packet must pause dequeuing
// because a retransmission attempt is in flight (spec.md §4.5).
func (m *macState) headOfLineBlocked() bool {
	return m.holOutstanding > 0
}

// waitIdleChannel suspends a until the medium is observed idle at slot
// granularity.
func waitIdleChannel(a *Activity, n *Node) Wake {
	for busyNow(n) {
		w := a.Timeout(n.sim.Config.SlotDuration)
		if w.Interrupted {
			return w
		}
	}
	return Wake{}
}

func busyNow(n *Node) bool {
	return Busy(n.ID, n.Position, n.sim.Config.SensingRange, n.sim.nodes, n.sim.nodeHoldsChannel)
}

// macSlot is shared between a sender's countdown and its listener so
// the listener knows to stop polling once the countdown has finished
// (matches the Python original's mac_process_finish flag).
type macSlot struct {
	finished bool
}

func listenBody(n *Node, sender *Activity, slot *macSlot) func(a *Activity) {
	return func(a *Activity) {
		for !slot.finished {
			if busyNow(n) {
				n.sim.sched.Interrupt(sender, macBusyInterrupt{})
				return
			}
			a.Timeout(n.sim.Config.SlotDuration)
		}
	}
}

// armAckWait spawns the ack-wait activity for an in-flight unicast
// data packet, arming the head-of-line-blocking flag for the duration
// of the wait. onTimeout is called (still inside the ack-wait
// Activity) when no ACK arrived in time, so CSMA/CA and Pure ALOHA can
// each apply their own re-queue policy.
func (n *Node) armAckWait(pkt *Packet, timeout Time, onTimeout func(a *Activity, pkt *Packet)) {
	n.macState.holOutstanding++
	var act *Activity
	act = n.sim.sched.Spawn("ack_wait", func(a *Activity) {
		w := a.Timeout(timeout)
		delete(n.macState.ackWaits, pkt.ID)
		n.macState.holOutstanding--
		if w.Interrupted {
			return
		}
		onTimeout(a, pkt)
	})
	n.macState.ackWaits[pkt.ID] = act
}

// ackArrived interrupts the outstanding ack-wait for ackedID, if any,
// signalling success. Called by the routing layer's PacketReception
// when an ACK is received.
func (n *Node) ackArrived(ackedID PacketID) {
	if act, ok := n.macState.ackWaits[ackedID]; ok {
		n.sim.sched.Interrupt(act, ackInterrupt{})
	}
}
