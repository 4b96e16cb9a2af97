// Command dispatchd is the last-mile dispatch core process: it loads the
// §6 configuration table, wires the Engine composition root, serves
// Prometheus metrics, and prints operator alerts to the console until it
// receives a termination signal.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/ridrisa/barq-dispatch-core/internal/config"
	"github.com/ridrisa/barq-dispatch-core/internal/engine"
	"github.com/ridrisa/barq-dispatch-core/internal/events"
	"github.com/ridrisa/barq-dispatch-core/internal/fleet"
)

func main() {
	if err := run(); err != nil {
		log.WithField("error", err.Error()).Fatal("dispatchd exited with an error")
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log.WithField("sqlite_path", cfg.Store.SqlitePath).Info("starting dispatchd")

	eng, err := engine.New(cfg, fleet.SystemClock{}, fleet.HaversineDistanceProvider{})
	if err != nil {
		return fmt.Errorf("constructing engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go serveMetrics(ctx)
	go consoleAlerts(ctx, eng.Bus())
	go eng.Run(ctx)

	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	var shutdownCtx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return eng.Shutdown(shutdownCtx)
}

func serveMetrics(ctx context.Context) {
	var mux = http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	var srv = &http.Server{Addr: ":9090", Handler: mux}

	go func() {
		<-ctx.Done()
		var shutdownCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithField("error", err.Error()).Warn("metrics server stopped")
	}
}

// consoleAlerts prints every DispatchAlert and SLAAlert to stdout,
// colorized by severity, so an operator watching the process directly can
// see escalations as they fire without a separate dashboard.
func consoleAlerts(ctx context.Context, bus *events.Bus) {
	var dispatchAlerts = bus.DispatchAlert.Subscribe(64)
	var slaAlerts = bus.SLAAlert.Subscribe(64)

	for {
		select {
		case <-ctx.Done():
			return
		case a := <-dispatchAlerts:
			severityColor(a.Severity).Printf("[%s] %s order=%s %s\n", a.Severity, a.Type, a.OrderID, a.Message)
		case a := <-slaAlerts:
			severityColor(a.Level).Printf("[%s] SLA order=%s %s\n", a.Level, a.OrderID, a.Message)
		}
	}
}

func severityColor(severity string) *color.Color {
	switch severity {
	case "CRITICAL":
		return color.New(color.FgWhite, color.BgRed, color.Bold)
	case "HIGH":
		return color.New(color.FgRed, color.Bold)
	case "MEDIUM":
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}
