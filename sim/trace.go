package sim

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
)

// traceEventType tags the fixed-layout header of every record in the
// trace, mirroring the AVP type field of a wire protocol header.
type traceEventType uint16

const (
	traceEventInject traceEventType = iota
	traceEventArrival
	traceEventDrop
	traceEventCollision
)

const traceHeaderLen = 24

// traceHeader is the fixed binary-layout prefix of a trace record.
// Don't be tempted to make the fields private: binary.Write/Read rely
// on the exported-field reflection behavior to marshal the struct
// directly.
type traceHeader struct {
	EventType traceEventType
	_         uint16 // padding to a 4-byte boundary
	At        int64
	NodeID    int32
	PacketID  uint64
}

// TraceRecorder appends framed binary event records to an underlying
// writer as the simulation runs, for later offline inspection of
// per-packet timelines. A nil *TraceRecorder is valid and silently
// discards every record, so Simulator.SetTrace is optional.
type TraceRecorder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTraceRecorder wraps w as a trace sink.
func NewTraceRecorder(w io.Writer) *TraceRecorder {
	return &TraceRecorder{w: w}
}

func (t *TraceRecorder) write(h traceHeader) {
	if t == nil || t.w == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.BigEndian, h); err != nil {
		return
	}
	_, _ = t.w.Write(buf.Bytes())
}

// RecordInject logs a frame being handed to the channel for over-the-air
// occupancy.
func (t *TraceRecorder) RecordInject(now Time, pkt *Packet, nodeID NodeID) {
	t.write(traceHeader{EventType: traceEventInject, At: int64(now), NodeID: int32(nodeID), PacketID: uint64(pkt.ID)})
}

// RecordArrival logs a packet reaching its final destination.
func (t *TraceRecorder) RecordArrival(now Time, pkt *Packet, nodeID NodeID) {
	t.write(traceHeader{EventType: traceEventArrival, At: int64(now), NodeID: int32(nodeID), PacketID: uint64(pkt.ID)})
}

// RecordDrop logs a packet being discarded (TTL exceeded, deadline
// missed, queue full).
func (t *TraceRecorder) RecordDrop(now Time, pkt *Packet, nodeID NodeID) {
	t.write(traceHeader{EventType: traceEventDrop, At: int64(now), NodeID: int32(nodeID), PacketID: uint64(pkt.ID)})
}

// RecordCollision logs an arbitration outcome where two or more frames
// overlapped at a receiver.
func (t *TraceRecorder) RecordCollision(now Time, nodeID NodeID) {
	t.write(traceHeader{EventType: traceEventCollision, At: int64(now), NodeID: int32(nodeID)})
}

// TraceEvent is the decoded form of a traceHeader, returned by
// ReadTrace for offline analysis.
type TraceEvent struct {
	Type     traceEventType
	At       Time
	NodeID   NodeID
	PacketID PacketID
}

// ReadTrace decodes a stream of records written by a TraceRecorder.
func ReadTrace(r io.Reader) ([]TraceEvent, error) {
	var events []TraceEvent
	for {
		var h traceHeader
		err := binary.Read(r, binary.BigEndian, &h)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, err
		}
		events = append(events, TraceEvent{
			Type:     h.EventType,
			At:       Time(h.At),
			NodeID:   NodeID(h.NodeID),
			PacketID: PacketID(h.PacketID),
		})
	}
}
