package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"go_analysis/internal/bootstrap"
	"go_analysis/internal/delivery/analysis"
	"go_analysis/internal/delivery/health"
	"go_analysis/internal/metrics"
	"go_analysis/internal/usecase"
)

const (
	shutdownTimeout    = 5 * time.Second
	healthPollInterval = 5 * time.Second
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the gRPC health service and the engine watchdog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go handleShutdown(cancel, opts.log)
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, log := opts.cfg, opts.log
	defer func() { _ = log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	uc := newUseCase(opts, m)
	if !cfg.KatagoPathsOK() {
		log.Warnw("katago paths are not all present", "path", cfg.KatagoPath, "model", cfg.KatagoModel, "config", cfg.KatagoConfig)
	}
	if err := uc.Start(ctx); err != nil {
		log.Errorw("katago did not start, the watchdog will retry", "error", err)
	}
	defer func() { _ = uc.Stop() }()

	lis, err := net.Listen("tcp", cfg.GrpcPort)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GrpcPort, err)
	}
	reporter := health.NewReporter(uc, healthPollInterval, log)
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, reporter.Server())

	httpServer := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           newRouter(cfg, log, uc, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Server is running on port %s", cfg.ServerPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Infof("grpc health is running on port %s", cfg.GrpcPort)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error { return ignoreCanceled(uc.RunWatchdog(gctx)) })
	g.Go(func() error { return ignoreCanceled(reporter.Run(gctx)) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warnw("http shutdown", "error", err)
		}
		grpcServer.GracefulStop()
		return nil
	})
	return g.Wait()
}

func newRouter(cfg *bootstrap.Config, log *zap.SugaredLogger, uc *usecase.AnalysisUseCase, reg *prometheus.Registry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	analysis.NewAnalysisHandler(cfg, log, uc).Routes(r)
	health.NewHealthHandler(cfg, log, uc).Routes(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return r
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func handleShutdown(cancelFunc context.CancelFunc, log *zap.SugaredLogger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info("Received shutdown signal")
	cancelFunc()
}
