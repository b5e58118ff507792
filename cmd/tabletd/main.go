// Command tabletd opens a single tablet against a local directory and
// serves its metrics and pprof endpoints. It does not expose the tablet
// over any wire protocol — that is a distributed serving concern this
// core's Non-goals exclude (SPEC_FULL.md §11) — it exists so the
// ambient stack (config, logging, metrics) has a real process wiring
// it together, the way the teacher's own cmd/main.go does for its
// server roles.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/colstore/tablet/schema"
	"github.com/colstore/tablet/tablet"
	"github.com/colstore/tablet/tabletcfg"
	"github.com/colstore/tablet/tabletenv"
	"github.com/colstore/tablet/tabletmetrics"
)

var (
	configFile = flag.String("c", "", "config file path (YAML, see tabletcfg.Options)")
	dataDir    = flag.String("d", "", "tablet data directory")
	listenAddr = flag.String("listen", ":9090", "metrics/pprof listen address")
)

func main() {
	flag.Parse()
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if *dataDir == "" {
		log.Error("tabletd: -d data directory is required")
		os.Exit(1)
	}

	cfg := tabletcfg.Default()
	if *configFile != "" {
		loaded, err := tabletcfg.Load(*configFile)
		if err != nil {
			log.Error("tabletd: bad config file", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	runtime.GOMAXPROCS(runtime.NumCPU())

	env, err := tabletenv.Local(*dataDir)
	if err != nil {
		log.Error("tabletd: failed to open data directory", "dir", *dataDir, "error", err)
		os.Exit(1)
	}

	s, err := demoSchema()
	if err != nil {
		log.Error("tabletd: failed to build schema", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	metrics := tabletmetrics.NewPrometheusRecorder(reg, "tabletd")

	t, err := tablet.Open(s, env, cfg, tablet.WithMetrics(metrics), tablet.WithLogger(log))
	if err != nil {
		log.Error("tabletd: failed to open tablet", "error", err)
		os.Exit(1)
	}
	log.Info("tabletd: tablet opened", "dir", *dataDir, "rows", t.CountRows())

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info("tabletd: listening", "addr", *listenAddr)
	if err := http.ListenAndServe(*listenAddr, nil); err != nil {
		log.Error("tabletd: http server exited", "error", err)
		os.Exit(1)
	}
}

// demoSchema is a placeholder single-key-column schema; a real
// deployment would load its schema from the same config file.
func demoSchema() (*schema.Schema, error) {
	return schema.New([]schema.Column{
		{Name: "key", Type: schema.Bytes, IsKey: true},
		{Name: "value", Type: schema.Bytes},
	})
}
