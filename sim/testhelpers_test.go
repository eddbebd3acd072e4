package sim

import (
	"io"

	"github.com/go-kit/kit/log"
)

// testLogger is a plain log.NewLogfmtLogger (no level filter), pointed
// at io.Discard so test runs stay quiet.
func testLogger() log.Logger {
	return log.NewLogfmtLogger(io.Discard)
}

// newBareSimulator builds a Simulator with n nodes placed along the X
// axis 100m apart, wired with a Scheduler and Channel but with no
// activities spawned, so a test can drive exactly the activity it
// wants to exercise instead of racing the node's own generate/feed/
// receive loops.
func newBareSimulator(n int, mutate func(cfg *Config)) *Simulator {
	cfg := DefaultConfig()
	cfg.NumberOfDrones = n
	cfg.StaticCase = true
	if mutate != nil {
		mutate(cfg)
	}
	s := &Simulator{
		Config:  cfg,
		sched:   NewScheduler(),
		ids:     NewIDAllocator(),
		metrics: NewMetrics(),
		logger:  testLogger(),
	}
	s.nodes = make([]*Node, n)
	for i := 0; i < n; i++ {
		s.nodes[i] = newNode(s, NodeID(i), Vec3{X: float64(i) * 100}, Vec3{})
	}
	s.channel = NewChannel(s.nodes, s.logger)
	return s
}
