package sim

// CsmaCaMAC implements CSMA/CA without RTS/CTS: DIFS+backoff carrier
// sense, a concurrent listener that can interrupt the countdown, and
// an ACK-wait/bounded-retransmission tail. Ported from
// original_source/mac/csma_ca.py.
type CsmaCaMAC struct{}

// csmaSendFSM tracks a unicast send's channel-acquisition lifecycle
// (spec.md §4.7's state diagram: backoff -> transmitting -> done) for
// logging; it does not itself drive control flow, which stays in
// SendBody's loop. The ACK phase that follows a sent frame is tracked
// separately by armAckWait/ackArrived (mac.go), which own the
// success/timeout/requeue decision, so this table only carries the
// events SendBody actually dispatches.
func newCsmaSendFSM(n *Node, pkt *Packet) *fsm {
	log := func(args []interface{}) {
		if n.sim.logger == nil {
			return
		}
		n.sim.logger.Log("component", "mac_csmaca", "node", n.ID, "packet", pkt.ID, "event", args[0])
	}
	return &fsm{
		current: "backoff",
		table: []eventDesc{
			{from: "backoff", to: "transmitting", events: []string{"channel_acquired"}, cb: log},
			{from: "transmitting", to: "done", events: []string{"frame_sent", "frame_sent_broadcast"}, cb: log},
		},
	}
}

// SendBody implements MAC.
func (CsmaCaMAC) SendBody(n *Node, pkt *Packet) func(a *Activity) {
	return func(a *Activity) {
		cfg := n.sim.Config
		sendFSM := newCsmaSendFSM(n, pkt)
		k := pkt.RetransmissionCount[n.ID]
		cw := (cfg.CWMin+1)*(1<<uint(k)) - 1
		backoff := Time(n.rng.Intn(cw)) * cfg.SlotDuration
		wait := cfg.DIFSDuration + backoff

		for wait > 0 {
			if w := waitIdleChannel(a, n); w.Interrupted {
				// a busy-wait loop cannot itself be meaningfully
				// interrupted (nothing holds a reference to it yet);
				// treat defensively as a no-op retry.
				continue
			}

			slot := &macSlot{}
			n.sim.sched.Spawn("mac_listen", listenBody(n, a, slot))

			start := n.sim.sched.Now()
			w := a.Timeout(wait)

			if !w.Interrupted {
				wait = 0
				slot.finished = true

				lease, lw := n.macState.channelUse.Acquire(a)
				if lw.Interrupted {
					return
				}
				_ = sendFSM.handleEvent("channel_acquired", "channel_acquired")

				pkt.TTL++

				if pkt.Mode == ModeUnicast {
					n.armAckWait(pkt, cfg.AckTimeout, n.onCsmaAckTimeout)
				}

				txStart := n.sim.sched.Now()
				txDur := Time(float64(pkt.LengthBits) / cfg.BitRate * 1e6)
				a.Timeout(txDur)
				n.sim.inject(pkt, n, txStart, txDur)
				lease.Release()
				if pkt.Mode == ModeUnicast {
					_ = sendFSM.handleEvent("frame_sent", "frame_sent")
				} else {
					_ = sendFSM.handleEvent("frame_sent_broadcast", "frame_sent_broadcast")
				}
				continue
			}

			slot.finished = true
			elapsed := n.sim.sched.Now() - start
			remaining := wait - elapsed
			if remaining > backoff {
				wait = cfg.DIFSDuration + backoff
			} else {
				backoff = remaining
				wait = cfg.DIFSDuration + backoff
			}
		}
	}
}

func (n *Node) onCsmaAckTimeout(a *Activity, pkt *Packet) {
	n.sim.metrics.recordAckTimeout()
	n.requeueOrDrop(pkt)
}
