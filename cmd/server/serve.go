package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	router "github.com/dkeye/Camlink/internal/adapters/http"
	"github.com/dkeye/Camlink/internal/adapters/rtc"
	"github.com/dkeye/Camlink/internal/adapters/ws"
	"github.com/dkeye/Camlink/internal/app"
	"github.com/dkeye/Camlink/internal/app/orch"
	"github.com/dkeye/Camlink/internal/config"
	"github.com/dkeye/Camlink/internal/metrics"
	"github.com/dkeye/Camlink/internal/perception"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			setupLogger(cfg.Mode, cfg.LogLevel)
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().Int("port", 8080, "listen port")
	cmd.Flags().String("static", "./web", "directory with the web client")
	cmd.Flags().String("public-url", "", "base URL used in session links")
	cmd.Flags().Int("workers", 4, "perception workers, 0 runs perception inline")
	cmd.Flags().String("detector-url", "", "landmark detector endpoint")
	bindFlag(v, cmd, "port", "port")
	bindFlag(v, cmd, "static_path", "static")
	bindFlag(v, cmd, "public_url", "public-url")
	bindFlag(v, cmd, "perception.workers", "workers")
	bindFlag(v, cmd, "perception.detector_url", "detector-url")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	if cfg.Secret == "" {
		cfg.Secret = randomSecret()
		log.Warn().Str("module", "main").Msg("no secret configured, cookie sessions will not survive a restart")
	}
	if cfg.Signaling.Global {
		log.Warn().Str("module", "main").Msg("signaling.global is set: offer/answer/ice-candidate go to every connection, not just the sender's session")
	}

	m := metrics.New()
	reg := app.NewRegistry(app.RealClock{}, cfg.ThrottleInterval)
	pool := perception.NewPool(cfg.Perception.Workers, cfg.Perception.LaneDepth)

	var detector perception.Detector = perception.NopDetector{}
	if cfg.Perception.DetectorURL != "" {
		detector = perception.NewHTTPDetector(cfg.Perception.DetectorURL, cfg.Perception.Timeout)
		log.Info().Str("module", "main").Str("url", cfg.Perception.DetectorURL).Msg("using landmark detector")
	} else {
		log.Warn().Str("module", "main").Msg("no detector configured, results will always be empty")
	}

	o := &orch.Orchestrator{
		Registry:        reg,
		Policy:          app.SimplePolicy{},
		Pool:            pool,
		Adapter:         perception.NewAnalyzer(detector),
		Metrics:         m,
		Clock:           app.RealClock{},
		SnapshotQuality: cfg.SnapshotQuality,
		MaxFramePixels:  cfg.MaxFramePixels,
		GlobalSignaling: cfg.Signaling.Global,
	}

	ice, err := rtc.ICEServers(cfg.ICEServers)
	if err != nil {
		return fmt.Errorf("ice servers: %w", err)
	}
	gw := ws.NewGateway(o, m, ws.Options{
		ReadLimit:       cfg.ReadLimit,
		PingPeriod:      cfg.PingPeriod,
		SendBuffer:      cfg.SendBuffer,
		EventsPerSecond: cfg.MaxEventsPerSecond,
		EventBurst:      cfg.EventBurst,
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:       o,
		Gateway:    gw,
		Metrics:    m,
		ICEServers: ice,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error {
		reap(gctx, o, cfg.ReapInterval, cfg.SessionTTL)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Camlink server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("Server exited gracefully")
	return err
}

// reap runs the idle-session reaper until ctx is done.
func reap(ctx context.Context, o *orch.Orchestrator, every, ttl time.Duration) {
	if every <= 0 || ttl <= 0 {
		log.Warn().Str("module", "main").Msg("session reaper disabled")
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := len(o.Reap(ttl)); n > 0 {
				log.Debug().Str("module", "main").Int("reaped", n).Msg("reaper pass")
			}
		}
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
