/*
Package sim implements a discrete-event simulator for aerial ad-hoc
networks: drones moving through 3D space, a shared wireless medium
modeled with SINR-based frame arbitration, and pluggable MAC and
routing protocols, measuring end-to-end delivery performance.

Usage

	cfg := sim.DefaultConfig()
	s := sim.New(cfg, logger)
	summary := s.Run()
	fmt.Println(s.PrintSummary(summary))

Time

All simulated time is in integer microseconds (sim.Time). The
Scheduler drives a single logical thread of execution: only one
Activity's code runs at any instant, coordinated through unbuffered
rendezvous channels rather than locks, so node, MAC, and routing code
never needs to reason about concurrent access to shared state.

MAC and routing protocols

Package sim ships two MAC protocols (CSMA/CA with DIFS/backoff, and
Pure ALOHA) and eight routing protocols spanning greedy-geographic
(GPSR), proactive distance-vector (DSDV), reactive flooding (GRAd),
predictive source-routing (OPAR), and four reinforcement-learning
variants (PARRoT, Q-routing, QGeo, Qldv). Both are selected from
Config and installed per-Node at construction time; adding a new
protocol means implementing the MAC or Routing interface and adding a
case to the corresponding factory switch.

Configuration

Package sim uses the TOML format for configuration files:
https://github.com/toml-lang/toml.

	[simulation]
	number_of_drones = 20
	routing = "gpsr"
	mac = "csmaca"
	map_length = 600
	map_width = 600
	map_height = 500

Unrecognised parameters in the [simulation] table are a load error:
typos are caught at startup rather than silently ignored.

Logging

Package sim uses structured logging via the go-kit logger:
https://godoc.org/github.com/go-kit/kit/log, separating informational
events (level.Info) from per-packet debugging detail (level.Debug). A
nil logger disables logging entirely.

Metrics

Package sim accumulates packet delivery ratio, end-to-end delay,
routing load, throughput, hop count, MAC delay and collision counts
into a Metrics instance queryable via Snapshot. MetricsCollector
additionally exposes a running Simulator's Metrics as Prometheus
gauges and counters for live observation.
*/
package sim
