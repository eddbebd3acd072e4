package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/aeromesh/dronesim/sim"
)

func main() {
	cfgPathPtr := pflag.StringP("config", "c", "", "simulation TOML configuration file (defaults built in if unset)")
	tracePathPtr := pflag.StringP("trace", "t", "", "write a binary wire trace of every injected frame to this path")
	metricsAddrPtr := pflag.StringP("metrics-addr", "m", "", "serve Prometheus metrics on this address while running, e.g. :9100")
	verbosePtr := pflag.BoolP("verbose", "v", false, "enable debug-level logging")
	help := pflag.BoolP("help", "h", false, "display help text")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dronesimd [flags]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	if *verbosePtr {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	cfg := sim.DefaultConfig()
	if *cfgPathPtr != "" {
		var err error
		cfg, err = sim.LoadFile(*cfgPathPtr)
		if err != nil {
			level.Error(logger).Log("msg", "failed to load configuration", "err", err)
			os.Exit(1)
		}
	}

	s := sim.New(cfg, logger)

	if *tracePathPtr != "" {
		f, err := os.Create(*tracePathPtr)
		if err != nil {
			level.Error(logger).Log("msg", "failed to open trace file", "err", err)
			os.Exit(1)
		}
		defer f.Close()
		s.SetTrace(sim.NewTraceRecorder(f))
	}

	if *metricsAddrPtr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(sim.NewMetricsCollector(s, prometheus.Labels{"scenario": *cfgPathPtr}))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			level.Info(logger).Log("msg", "serving metrics", "addr", *metricsAddrPtr)
			if err := http.ListenAndServe(*metricsAddrPtr, mux); err != nil {
				level.Error(logger).Log("msg", "metrics server stopped", "err", err)
			}
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGINT, unix.SIGTERM)

	done := make(chan sim.Summary, 1)
	go func() {
		done <- s.Run()
	}()

	select {
	case sum := <-done:
		fmt.Println(s.PrintSummary(sum))
	case <-sigs:
		level.Info(logger).Log("msg", "interrupted before completion")
		os.Exit(130)
	}
}
