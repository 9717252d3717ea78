// Package server wires the retention service: configuration, storage, the
// scheduled job and the operator HTTP and gRPC APIs.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/logging"
	"github.com/berniemackie97/skillbound-sub002/internal/server/config"
	grpcapi "github.com/berniemackie97/skillbound-sub002/internal/server/grpc"
	"github.com/berniemackie97/skillbound-sub002/internal/server/httpapi"
	"github.com/berniemackie97/skillbound-sub002/internal/server/monitor"
	"github.com/gorilla/mux"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     logging.Logger
	components *Components
	monitor    *monitor.JobMonitor
	scheduler  *Scheduler
	router     *mux.Router
	grpc       *grpcapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, "json", cfg.LogLevel)

	comps, err := Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// two missed intervals make the job stale
	mon := monitor.NewJobMonitor(2 * cfg.JobInterval)
	sched := NewScheduler(comps.Job, mon, cfg.JobInterval, cfg.BatchSize, logger.With("component", "scheduler"))

	router := mux.NewRouter()
	httpapi.NewHandler(sched, comps.Milestones, comps.Restorer, comps.Links, comps.Tx, comps.Repos, mon,
		logger.With("component", "http")).Routes(router)

	var grpcSrv *grpcapi.Server
	if cfg.GRPCAddr != "" {
		grpcSrv = grpcapi.NewServer(cfg.GRPCAddr, cfg.OperatorToken, grpcapi.Services{
			Job:        sched,
			Milestones: comps.Milestones,
			Restorer:   comps.Restorer,
			Links:      comps.Links,
			Tx:         comps.Tx,
			Repos:      comps.Repos,
			Monitor:    mon,
		}, logger)
	}

	return &App{
		config:     cfg,
		logger:     logger,
		components: comps,
		monitor:    mon,
		scheduler:  sched,
		router:     router,
		grpc:       grpcSrv,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown", "error", err.Error())
		}
	}()

	app.logger.Info(ctx, "http api listening", "addr", app.config.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until SIGINT/SIGTERM or until ctx is cancelled.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...",
		"archive_provider", app.config.ArchiveProvider,
		"archive_enabled", app.config.ArchiveEnabled(),
		"delete_after_archive", app.config.DeleteAfterArchive)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.grpc != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.grpc.Run(ctx); err != nil {
				app.logger.Error(ctx, "grpc server", "error", err.Error())
				cancelFunc()
			}
		}()
	}

	wg.Add(1)
	go app.scheduler.Loop(ctx, &wg)

	wg.Wait()

	if err := app.components.Close(); err != nil {
		app.logger.Error(context.Background(), "close", "error", err.Error())
	}
	app.logger.Info(context.Background(), "stopped")
}
