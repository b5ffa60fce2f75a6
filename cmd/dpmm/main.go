// Command dpmm clusters the rows of a numeric CSV file with a Dirichlet
// process Gaussian mixture and writes the result as JSON.
//
//	dpmm -config run.toml -in points.csv -out result.json
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/hupe1980/dpmm"
	"github.com/hupe1980/dpmm/config"
	"github.com/hupe1980/dpmm/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	var (
		configPath = flag.String("config", "", "configuration file (TOML, YAML or JSON)")
		inPath     = flag.String("in", "", "input CSV, one point per row (default stdin)")
		outPath    = flag.String("out", "", "output JSON (default stdout)")
		header     = flag.Bool("header", false, "skip the first CSV row")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *inPath, *outPath, *header); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, configPath, inPath, outPath string, header bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	in := io.Reader(os.Stdin)
	if inPath != "" {
		f, err := os.Open(inPath)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	data, err := readCSV(in, header)
	if err != nil {
		return fmt.Errorf("read %s: %w", inPath, err)
	}
	_, dim := data.Dims()

	store, err := openCheckpoints(ctx, cfg.Checkpoint)
	if err != nil {
		return err
	}

	var cp dpmm.Checkpointer
	if store != nil {
		cp = store
	}
	opts, err := cfg.Options(cp)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		pc, err := metrics.NewPrometheusCollector(reg)
		if err != nil {
			return err
		}
		opts = append(opts, dpmm.WithMetricsCollector(pc))
		srv := serveMetrics(cfg.Metrics.Addr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	model, err := cfg.GaussianModel(dim)
	if err != nil {
		return err
	}
	m, err := dpmm.New(model, opts...)
	if err != nil {
		return err
	}

	result, err := m.Fit(ctx, data)
	if err != nil {
		return err
	}

	if store != nil && cfg.Checkpoint.Keep > 0 {
		if _, err := store.Prune(ctx, cfg.Checkpoint.Keep); err != nil {
			return err
		}
	}

	out := io.Writer(os.Stdout)
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return writeResult(out, result)
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server: %v", err)
		}
	}()
	return srv
}

func writeResult(w io.Writer, r *dpmm.Result) error {
	b, err := gojson.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
