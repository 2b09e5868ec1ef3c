package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"offerdesk/offer-service/internal/grpcserver"
	"offerdesk/offer-service/internal/httpapi"
	"offerdesk/offer-service/internal/notify"
	"offerdesk/offer-service/internal/scheduler"
	"offerdesk/offer-service/internal/telemetry"
)

var serveWorker bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, gRPC health service, letter worker and scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWorker, "worker", true, "run the offer letter worker in-process")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := connect(ctx, true)
	if err != nil {
		return err
	}
	defer d.Close()
	log := d.log

	shutdownTracing, err := telemetry.Setup(ctx, "offer-service", version, d.cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	// ── Transports ───────────────────────────────────────────────────────────
	h := httpapi.NewHandler(d.engine(), d.gateway(), d.store, d.cfg.HostURL, log)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", d.cfg.Port),
		Handler:      h.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	grpcSrv := grpcserver.New(log)
	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%s", d.cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	// ── Background jobs ──────────────────────────────────────────────────────
	sched := scheduler.New(
		scheduler.Config{RedriveSpec: d.cfg.NotifyRedriveSpec, ProbeSpec: d.cfg.HealthProbeSpec},
		notify.NewQueue(d.rdb, notify.WithQueueLogger(log)),
		map[string]scheduler.Pinger{
			"store": d.store,
			"redis": scheduler.PingFunc(func(ctx context.Context) error { return d.rdb.Ping(ctx).Err() }),
		},
		grpcSrv,
		log,
	)

	g, gctx := errgroup.WithContext(ctx)

	if err := sched.Start(gctx); err != nil {
		_ = grpcLis.Close()
		return err
	}

	g.Go(func() error {
		log.Info("http listening", "port", d.cfg.Port, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return grpcSrv.Serve(grpcLis) })
	if serveWorker {
		w := d.worker()
		g.Go(func() error { return w.Run(gctx) })
	}

	// ── Graceful shutdown ────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		sched.Stop()
		grpcSrv.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown", "err", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info("stopped")
	return err
}
