package sim

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// NodeID indexes nodes within a Simulator. Nodes are stored in a slice
// indexed by NodeID rather than linked by pointer, so iteration over
// peers is always in ascending id order without a sort step (spec.md
// §4.1's determinism rule (iii)).
type NodeID int

// receptionRecord is one in-flight or completed transmission sitting in
// a destination's inbox, appended by Channel.Unicast/Broadcast/Multicast
// and consumed by the owning node's receive activity.
type receptionRecord struct {
	pkt        *Packet
	injectedAt Time
	txID       NodeID
	txPos      Vec3
	duration   Time
	processed  bool
}

// inbox is the append-only, owner-read list of receptionRecords
// destined for one node.
type inbox struct {
	records []*receptionRecord
}

// Channel is the shared wireless medium: a map from NodeID to that
// node's inbox, built once at construction over every participating
// node. Grounded on original_source/phy/channel.py's per-receiver
// simpy.Store "pipes" list, here a plain owner-only slice since there
// is no concurrent writer contention to arbitrate (the scheduler
// serializes all activity).
type Channel struct {
	inboxes map[NodeID]*inbox
	nodes   []*Node // ascending NodeID order, used for range scans
	logger  log.Logger
}

// NewChannel builds a Channel with one inbox per node in nodes. nodes
// must already be indexed by ascending NodeID (arena+index layout).
// logger may be nil, in which case a no-op logger is used.
func NewChannel(nodes []*Node, logger log.Logger) *Channel {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	c := &Channel{inboxes: make(map[NodeID]*inbox, len(nodes)), nodes: nodes, logger: logger}
	for _, n := range nodes {
		c.inboxes[n.ID] = &inbox{}
	}
	return c
}

// append is the sole write path into an inbox. dst not existing is a
// programmer error (a packet addressed to an id outside the simulated
// node set) rather than a modeled condition, so it is logged at error
// level per spec.md §7 instead of panicking or failing silently.
func (c *Channel) append(dst NodeID, rec *receptionRecord) {
	ib, ok := c.inboxes[dst]
	if !ok {
		level.Error(c.logger).Log("event", "unknown_inbox", "dst", dst, "packet", rec.pkt.ID)
		return
	}
	ib.records = append(ib.records, rec)
}

// Unicast appends one receptionRecord to dst's inbox.
func (c *Channel) Unicast(pkt *Packet, src NodeID, srcPos Vec3, dst NodeID, injectedAt, duration Time) {
	c.append(dst, &receptionRecord{pkt: pkt, injectedAt: injectedAt, txID: src, txPos: srcPos, duration: duration})
}

// Broadcast appends a fresh copy of pkt to every inbox except the
// sender's own.
func (c *Channel) Broadcast(pkt *Packet, src NodeID, srcPos Vec3, injectedAt, duration Time) {
	for _, n := range c.nodes {
		if n.ID == src {
			continue
		}
		cp := *pkt
		c.append(n.ID, &receptionRecord{pkt: &cp, injectedAt: injectedAt, txID: src, txPos: srcPos, duration: duration})
	}
}

// Multicast appends a fresh copy of pkt to each node in dsts.
func (c *Channel) Multicast(pkt *Packet, src NodeID, srcPos Vec3, dsts []NodeID, injectedAt, duration Time) {
	for _, d := range dsts {
		cp := *pkt
		c.append(d, &receptionRecord{pkt: &cp, injectedAt: injectedAt, txID: src, txPos: srcPos, duration: duration})
	}
}

// pending returns all of dst's receptionRecords, processed or not, for
// the receive activity to scan.
func (c *Channel) pending(dst NodeID) []*receptionRecord {
	ib := c.inboxes[dst]
	if ib == nil {
		return nil
	}
	return ib.records
}

// prune drops dst's processed records older than horizon (an absolute
// Time, typically now - 2*maxTxTime), and compacts the slice.
func (c *Channel) prune(dst NodeID, horizon Time) {
	ib := c.inboxes[dst]
	if ib == nil {
		return
	}
	kept := ib.records[:0]
	for _, r := range ib.records {
		if r.processed && r.injectedAt < horizon {
			continue
		}
		kept = append(kept, r)
	}
	ib.records = kept
}

// Busy is the carrier-sense predicate: true iff some node other than
// me, within sensingRange of me's current position, currently holds
// its channel-use token. holder reports whether a given NodeID
// currently holds the channel-use token (injected by the MAC layer).
func Busy(me NodeID, myPos Vec3, sensingRange float64, nodes []*Node, holder func(NodeID) bool) bool {
	for _, n := range nodes {
		if n.ID == me {
			continue
		}
		if !holder(n.ID) {
			continue
		}
		if myPos.Dist(n.Position) <= sensingRange {
			return true
		}
	}
	return false
}
