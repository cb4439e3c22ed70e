// Command designd serves a network design over gRPC.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/netdesign/core"
	"github.com/signalsfoundry/netdesign/internal/config"
	"github.com/signalsfoundry/netdesign/internal/logging"
	"github.com/signalsfoundry/netdesign/internal/nbi"
	"github.com/signalsfoundry/netdesign/internal/observability"
	"github.com/signalsfoundry/netdesign/internal/sim/audit"
	"github.com/signalsfoundry/netdesign/internal/sim/failure"
	"github.com/signalsfoundry/netdesign/internal/sim/state"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "designd: %v\n", err)
		os.Exit(2)
	}

	flag.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "TCP address the design gRPC server listens on")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "HTTP address for Prometheus /metrics (empty disables)")
	flag.StringVar(&cfg.DesignFile, "design", cfg.DesignFile, "Design file (.json, .yaml, .ndz) loaded at startup")
	flag.Parse()

	log := logging.New(cfg.Logging())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.GRPCAddr), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis, nil); err != nil {
		log.Error(ctx, "designd exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the design service on lis until ctx is done. A nil registerer
// uses the global Prometheus registry.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener, reg prometheus.Registerer) error {
	if log == nil {
		log = logging.Noop()
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	rpcMetrics, err := observability.NewRPCCollector(reg)
	if err != nil {
		return fmt.Errorf("rpc metrics: %w", err)
	}
	designMetrics, err := observability.NewDesignCollector(reg)
	if err != nil {
		return fmt.Errorf("design metrics: %w", err)
	}

	modelOpts, err := cfg.ModelOptions()
	if err != nil {
		return err
	}
	designOpts := []core.Option{core.WithOptions(modelOpts), core.WithLogger(log)}

	design, err := initialDesign(cfg.DesignFile, designOpts)
	if err != nil {
		return err
	}
	ws := state.NewWorkspace(design, log, state.WithMetricsRecorder(designMetrics))
	svc := nbi.NewDesignService(ws, log,
		nbi.WithLoadOptions(designOpts...),
		nbi.WithAnalyzer(failure.NewAnalyzer(log)),
	)
	server := nbi.NewServer(svc, log, rpcMetrics)

	metricsSrv := serveMetrics(ctx, cfg.MetricsAddr, rpcMetrics.Handler(), log)

	auditCtx, stopAudit := context.WithCancel(ctx)
	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		audit.NewAuditor(ws, cfg.AuditInterval, log).Run(auditCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(lis)
	}()
	log.Info(ctx, "starting design gRPC server",
		logging.String("addr", lis.Addr().String()),
		logging.String("design", design.Name()),
	)

	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down design server")
		server.GracefulStop()
		err = <-serveErr
	case err = <-serveErr:
	}

	stopAudit()
	<-auditDone
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func initialDesign(path string, opts []core.Option) (*core.Design, error) {
	if path == "" {
		return core.New(opts...), nil
	}
	d, err := core.LoadFile(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("load design %s: %w", path, err)
	}
	return d, nil
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(ctx, "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(ctx, "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
