package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-kit/kit/log"
)

// Simulator owns every Node, the shared Channel, and the Scheduler
// driving them, mirroring the teacher's Context-owns-Tunnels-owns-
// Sessions registry shape and grounded on
// original_source/simulator/simulator.py.
type Simulator struct {
	Config *Config

	sched   *Scheduler
	nodes   []*Node
	channel *Channel
	ids     *IDAllocator
	metrics *Metrics
	logger  log.Logger
	trace   *TraceRecorder
}

// New builds a Simulator with cfg.NumberOfDrones nodes placed uniformly
// at random within the map box (seeded from cfg.Seed) and wires every
// node's channel and routing/MAC protocol selection.
func New(cfg *Config, logger log.Logger) *Simulator {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	s := &Simulator{
		Config:  cfg,
		sched:   NewScheduler(),
		ids:     NewIDAllocator(),
		metrics: NewMetrics(),
		logger:  logger,
	}

	placementRNG := rand.New(rand.NewSource(cfg.Seed))
	s.nodes = make([]*Node, cfg.NumberOfDrones)
	for i := 0; i < cfg.NumberOfDrones; i++ {
		pos := Vec3{
			X: placementRNG.Float64() * cfg.MapLength,
			Y: placementRNG.Float64() * cfg.MapWidth,
			Z: placementRNG.Float64() * cfg.MapHeight,
		}
		speed := 10 + placementRNG.Float64()*10
		direction := placementRNG.Float64() * 2 * 3.141592653589793
		vel := Vec3{X: speed * math.Cos(direction), Y: speed * math.Sin(direction), Z: 0}
		s.nodes[i] = newNode(s, NodeID(i), pos, vel)
	}

	s.channel = NewChannel(s.nodes, logger)

	for _, n := range s.nodes {
		n.spawnActivities()
	}

	return s
}

// SetTrace installs a wire trace recorder; every frame handed to the
// channel is additionally encoded to it as a binary event record.
func (s *Simulator) SetTrace(t *TraceRecorder) { s.trace = t }

// Run drives the scheduler to SimTime and returns the final metrics
// Summary.
func (s *Simulator) Run() Summary {
	s.sched.Run(s.Config.SimTime)
	return s.metrics.Snapshot()
}

// Now exposes the current virtual time, for tests and logging.
func (s *Simulator) Now() Time { return s.sched.Now() }

// Nodes exposes the node table in ascending NodeID order.
func (s *Simulator) Nodes() []*Node { return s.nodes }

func (s *Simulator) maxTxTime() Time {
	return Time(float64(s.Config.DataPacketLengthBits()) / s.Config.BitRate * 1e6)
}

func (s *Simulator) nodeHoldsChannel(id NodeID) bool {
	if int(id) >= len(s.nodes) {
		return false
	}
	return s.nodes[id].macState.channelUse.Holder() != nil
}

// inject hands pkt to the Channel according to its TransmissionMode,
// recording the frame's occupancy interval as [start, start+duration]
// so SINR arbitration can detect genuine overlap between concurrent
// transmitters.
func (s *Simulator) inject(pkt *Packet, n *Node, start, duration Time) {
	switch pkt.Mode {
	case ModeBroadcast:
		s.channel.Broadcast(pkt, n.ID, n.Position, start, duration)
	default:
		s.channel.Unicast(pkt, n.ID, n.Position, pkt.NextHop, start, duration)
	}
	if s.trace != nil {
		s.trace.RecordInject(s.sched.Now(), pkt, n.ID)
	}
}

// PrintSummary renders sum as a single line prefixed with the current
// virtual time and returns it; it writes nothing itself.
func (s *Simulator) PrintSummary(sum Summary) string {
	return fmt.Sprintf("simulation complete at t=%d: %s", s.Now(), sum.String())
}
