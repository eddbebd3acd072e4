package sim

// PureAlohaMAC implements Pure ALOHA: no carrier sense, no backoff,
// transmit immediately and on ACK timeout wait a random multiple of
// ACK_TIMEOUT before re-queueing. Ported from
// original_source/mac/pure_aloha.py.
type PureAlohaMAC struct{}

// SendBody implements MAC.
func (PureAlohaMAC) SendBody(n *Node, pkt *Packet) func(a *Activity) {
	return func(a *Activity) {
		cfg := n.sim.Config

		lease, w := n.macState.channelUse.Acquire(a)
		if w.Interrupted {
			return
		}

		pkt.TTL++
		if pkt.Mode == ModeUnicast {
			n.armAckWait(pkt, cfg.AckTimeout, n.onAlohaAckTimeout)
		}

		txStart := n.sim.sched.Now()
		txDur := Time(float64(pkt.LengthBits) / cfg.BitRate * 1e6)
		a.Timeout(txDur)
		n.sim.inject(pkt, n, txStart, txDur)
		lease.Release()
	}
}

func (n *Node) onAlohaAckTimeout(a *Activity, pkt *Packet) {
	n.sim.metrics.recordAckTimeout()
	cfg := n.sim.Config
	k := pkt.RetransmissionCount[n.ID]
	backoffSlots := 1 << uint(k)
	extra := Time(n.rng.Intn(backoffSlots)) * cfg.AckTimeout
	a.Timeout(extra)
	n.requeueOrDrop(pkt)
}
