package sim

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exposes a Simulator's running Metrics as Prometheus
// gauges/counters, polled live rather than only at horizon, so a
// simulation can be watched from a dashboard while it runs. Grounded
// on the Describe/Collect shape of a sockets-stats exporter.
type MetricsCollector struct {
	mu  sync.Mutex
	sim *Simulator

	generated        *prometheus.Desc
	delivered        *prometheus.Desc
	pdr              *prometheus.Desc
	meanE2EDelayMs   *prometheus.Desc
	routingLoad      *prometheus.Desc
	meanThroughput   *prometheus.Desc
	meanHopCount     *prometheus.Desc
	meanMACDelayMs   *prometheus.Desc
	collisions       *prometheus.Desc
}

// NewMetricsCollector wraps sim as a prometheus.Collector. constLabels
// are attached to every exported series (e.g. scenario name, run ID).
func NewMetricsCollector(sim *Simulator, constLabels prometheus.Labels) *MetricsCollector {
	mk := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("dronesim_"+name, help, nil, constLabels)
	}
	return &MetricsCollector{
		sim:            sim,
		generated:      mk("packets_generated_total", "data packets generated"),
		delivered:      mk("packets_delivered_total", "data packets delivered to their destination"),
		pdr:            mk("packet_delivery_ratio_percent", "delivered / generated, as a percentage"),
		meanE2EDelayMs: mk("mean_e2e_delay_ms", "mean end-to-end delivery delay in milliseconds"),
		routingLoad:    mk("routing_load_ratio", "control packets sent per data packet delivered"),
		meanThroughput: mk("mean_throughput_kbps", "mean delivered throughput in kbit/s"),
		meanHopCount:   mk("mean_hop_count", "mean hop count of delivered packets"),
		meanMACDelayMs: mk("mean_mac_delay_ms", "mean MAC-layer access delay in milliseconds"),
		collisions:     mk("collisions_total", "frame collisions detected at a receiver"),
	}
}

func (c *MetricsCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.generated
	descs <- c.delivered
	descs <- c.pdr
	descs <- c.meanE2EDelayMs
	descs <- c.routingLoad
	descs <- c.meanThroughput
	descs <- c.meanHopCount
	descs <- c.meanMACDelayMs
	descs <- c.collisions
}

func (c *MetricsCollector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sum := c.sim.metrics.Snapshot()

	metrics <- prometheus.MustNewConstMetric(c.generated, prometheus.CounterValue, float64(sum.Generated))
	metrics <- prometheus.MustNewConstMetric(c.delivered, prometheus.CounterValue, float64(sum.Delivered))
	metrics <- prometheus.MustNewConstMetric(c.pdr, prometheus.GaugeValue, sum.PDRPercent)
	metrics <- prometheus.MustNewConstMetric(c.meanE2EDelayMs, prometheus.GaugeValue, sum.MeanE2EDelayMs)
	metrics <- prometheus.MustNewConstMetric(c.routingLoad, prometheus.GaugeValue, sum.RoutingLoad)
	metrics <- prometheus.MustNewConstMetric(c.meanThroughput, prometheus.GaugeValue, sum.MeanThroughputKbps)
	metrics <- prometheus.MustNewConstMetric(c.meanHopCount, prometheus.GaugeValue, sum.MeanHopCount)
	metrics <- prometheus.MustNewConstMetric(c.meanMACDelayMs, prometheus.GaugeValue, sum.MeanMACDelayMs)
	metrics <- prometheus.MustNewConstMetric(c.collisions, prometheus.CounterValue, float64(sum.Collisions))
}
