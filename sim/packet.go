package sim

// Kind tags the payload carried by a Packet, and partitions packet IDs
// into disjoint ranges so a bare PacketID tells a log reader what it is
// without consulting the payload, mirroring original_source/utils/config.py's
// GL_ID_* constants.
type Kind int

const (
	KindData Kind = iota
	KindAck
	KindHello
	KindGrad
	KindChirp
	KindDSDVAdvert
	KindDSDVWithdraw
	KindOPAR
	KindQRoutingAckExtra
	KindQGeo
	KindQldvAdvert
	KindQldvError
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindAck:
		return "ack"
	case KindHello:
		return "hello"
	case KindGrad:
		return "grad"
	case KindChirp:
		return "chirp"
	case KindDSDVAdvert:
		return "dsdv_advert"
	case KindDSDVWithdraw:
		return "dsdv_withdraw"
	case KindOPAR:
		return "opar"
	case KindQRoutingAckExtra:
		return "qrouting_ack"
	case KindQGeo:
		return "qgeo"
	case KindQldvAdvert:
		return "qldv_advert"
	case KindQldvError:
		return "qldv_error"
	default:
		return "unknown"
	}
}

// PacketID is a globally unique packet identifier. Its numeric range
// encodes Kind per the id-range table below, the same partitioning the
// Python original used with a set of module-level globals — here owned
// by an IDAllocator instance instead of package-level mutable state.
type PacketID uint64

// Packet id-range bases, one per Kind that is independently generated
// (control Kinds produced only as replies, e.g. KindAck, still get a
// base so traces stay self-describing).
const (
	idBaseData           PacketID = 0
	idBaseHello          PacketID = 10000
	idBaseAck            PacketID = 20000
	idBaseGrad           PacketID = 30000
	idBaseChirp          PacketID = 40000
	idBaseDSDVAdvert     PacketID = 50000
	idBaseDSDVWithdraw   PacketID = 60000
	idBaseOPAR           PacketID = 70000
	idBaseQRoutingAck    PacketID = 80000
	idBaseQGeo           PacketID = 90000
	idBaseQldvAdvert     PacketID = 100000
	idBaseQldvError      PacketID = 110000
)

func idBaseFor(k Kind) PacketID {
	switch k {
	case KindHello:
		return idBaseHello
	case KindAck:
		return idBaseAck
	case KindGrad:
		return idBaseGrad
	case KindChirp:
		return idBaseChirp
	case KindDSDVAdvert:
		return idBaseDSDVAdvert
	case KindDSDVWithdraw:
		return idBaseDSDVWithdraw
	case KindOPAR:
		return idBaseOPAR
	case KindQRoutingAckExtra:
		return idBaseQRoutingAck
	case KindQGeo:
		return idBaseQGeo
	case KindQldvAdvert:
		return idBaseQldvAdvert
	case KindQldvError:
		return idBaseQldvError
	default:
		return idBaseData
	}
}

// IDAllocator hands out monotonically increasing PacketIDs within the
// range reserved for each Kind. One instance is shared by a Simulator
// across all nodes, replacing the original's global counter.
type IDAllocator struct {
	next map[Kind]PacketID
}

// NewIDAllocator creates an allocator with each Kind's counter seeded
// at that Kind's base.
func NewIDAllocator() *IDAllocator {
	a := &IDAllocator{next: make(map[Kind]PacketID)}
	for _, k := range []Kind{KindData, KindHello, KindAck, KindGrad, KindChirp,
		KindDSDVAdvert, KindDSDVWithdraw, KindOPAR, KindQRoutingAckExtra,
		KindQGeo, KindQldvAdvert, KindQldvError} {
		a.next[k] = idBaseFor(k)
	}
	return a
}

// Next returns the next unused PacketID for kind.
func (a *IDAllocator) Next(k Kind) PacketID {
	id := a.next[k]
	a.next[k] = id + 1
	return id
}

// TransmissionMode selects whether the MAC layer injects a Packet via
// unicast (to NextHop) or broadcast (to every node in range).
type TransmissionMode int

const (
	ModeUnicast TransmissionMode = iota
	ModeBroadcast
)

// Packet is the common envelope for every Kind. Payload carries the
// Kind-specific fields as one of the Payload implementations below;
// Packet itself never type-switches, callers type-switch on Payload.
type Packet struct {
	ID           PacketID
	Kind         Kind
	LengthBits   int
	CreationTime Time
	Deadline     Time
	TTL          int

	Src     NodeID
	Dst     NodeID
	NextHop NodeID

	Mode TransmissionMode

	// RetransmissionCount is keyed by the node currently holding the
	// packet, mirroring original_source/entities/drone.py's per-node
	// retransmission bookkeeping rather than a single global counter.
	RetransmissionCount map[NodeID]int

	Payload Payload
}

// Payload is implemented by each Kind-specific payload struct. It
// exists purely as a marker so Packet.Payload is type-safe without a
// central registry; callers type-assert to the concrete payload.
type Payload interface {
	payloadKind() Kind
}

type DataPayload struct{ Body []byte }

func (DataPayload) payloadKind() Kind { return KindData }

type AckPayload struct {
	AckedID PacketID
	// MinQ and QueuingDelay carry Q-routing's piggybacked reward
	// signal (QGeo repurposes MinQ to carry its max_q instead); unused
	// (zero) for CSMA/CA without a Q-learning protocol installed.
	MinQ         float64
	QueuingDelay Time
	IsDestination bool
	// VoidArea carries QGeo's local-minimum flag: true when no
	// neighbor of the replier is closer to the final destination.
	VoidArea bool
}

func (AckPayload) payloadKind() Kind { return KindAck }

type HelloPayload struct {
	Position Vec3
	Velocity Vec3
}

func (HelloPayload) payloadKind() Kind { return KindHello }

type GradPayload struct {
	IsRequest      bool
	RemainingValue float64
	Cost           float64
	OriginalDst    NodeID
}

func (GradPayload) payloadKind() Kind { return KindGrad }

type ChirpPayload struct {
	Dst      NodeID
	Reward   float64
	Neighbors []NodeID
}

func (ChirpPayload) payloadKind() Kind { return KindChirp }

type DSDVAdvertPayload struct {
	Dst       NodeID
	NextHop   NodeID
	Metric    int
	Seq       int
}

func (DSDVAdvertPayload) payloadKind() Kind { return KindDSDVAdvert }

type DSDVWithdrawPayload struct {
	Dst NodeID
	Seq int
}

func (DSDVWithdrawPayload) payloadKind() Kind { return KindDSDVWithdraw }

type OPARPayload struct {
	Path []NodeID
}

func (OPARPayload) payloadKind() Kind { return KindOPAR }

type QGeoPayload struct {
	Position Vec3
}

func (QGeoPayload) payloadKind() Kind { return KindQGeo }

type QldvAdvertPayload struct {
	Dst      NodeID
	MaxQ     float64
	ArgmaxAction NodeID
}

func (QldvAdvertPayload) payloadKind() Kind { return KindQldvAdvert }

type QldvErrorPayload struct {
	Dst NodeID
}

func (QldvErrorPayload) payloadKind() Kind { return KindQldvError }
