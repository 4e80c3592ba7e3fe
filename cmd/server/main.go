package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/evidence-board/internal/archive"
	"github.com/DoyleJ11/evidence-board/internal/config"
	"github.com/DoyleJ11/evidence-board/internal/game"
	"github.com/DoyleJ11/evidence-board/internal/httpapi"
	"github.com/DoyleJ11/evidence-board/internal/hub"
	"github.com/DoyleJ11/evidence-board/internal/logging"
	"github.com/DoyleJ11/evidence-board/internal/room"
	"github.com/DoyleJ11/evidence-board/internal/ws"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	var sink archive.Sink = archive.Nop{}
	if cfg.DatabaseURL != "" {
		w, err := archive.Open(cfg.DatabaseURL, cfg.ArchiveQueueSize, logger.Named("archive"))
		if err != nil {
			return err
		}
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("close archive", zap.Error(err))
			}
		}()
		g.Go(func() error { return w.Run(ctx) })
		sink = w
		logger.Info("bitacora archive enabled")
	}

	h := hub.NewHub(ctx, hub.Options{
		Room: room.Options{
			Rules: game.Rules{StrictTurns: cfg.StrictTurns},
			Sink:  sink,
		},
		IdleTTL:       cfg.RoomIdleTTL,
		SweepInterval: cfg.SweepInterval,
		Logger:        logger.Named("hub"),
	})

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, logger.Named("ws"), httpapi.Options{
		WS:        ws.Options{OutboxSize: cfg.OutboxSize, WriteTimeout: cfg.WriteTimeout},
		StaticDir: cfg.StaticDir,
	})
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Rooms stop with ctx; sockets are hijacked so Shutdown does not wait on them.
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
