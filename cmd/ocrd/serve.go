package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ocrd/internal/config"
	"ocrd/internal/gpu"
	"ocrd/internal/httpapi"
	"ocrd/internal/manager"
	"ocrd/internal/render"
	"ocrd/internal/session"
	"ocrd/internal/uploads"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}
}

func serve(ctx context.Context, opts *rootOptions) error {
	cfg := opts.cfg
	up, err := uploads.New(cfg.UploadDir)
	if err != nil {
		return err
	}
	store, err := session.Open(ctx, sessionOptions(cfg))
	if err != nil {
		return err
	}
	defer store.Close()

	mgr := newManager(ctx, cfg)
	defer mgr.Close()

	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxUploadBytes(int64(cfg.MaxUploadMB) << 20)
	httpapi.SetOCRTimeoutSeconds(int64(cfg.RequestTimeoutSeconds))
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)

	var probe *gpu.Probe
	if cfg.NvidiaSMI != "-" {
		probe = gpu.NewProbe(cfg.NvidiaSMI)
	}
	mux := httpapi.NewMux(httpapi.FromManager(mgr), httpapi.Deps{
		Sessions: store,
		Uploads:  up,
		GPU:      probe,
		Renderer: render.New(),
		Features: manager.BuildFeatures(),
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("backend", mgr.Backend()).Bool("ready", mgr.Ready()).Msg("ocrd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	// Graceful shutdown (Ctrl+C / SIGTERM): stop the running generation
	// before draining connections.
	mgr.Cancel()
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}

func sessionOptions(cfg config.Config) session.Options {
	return session.Options{
		Driver:    cfg.SessionDriver,
		DataDir:   cfg.DataDir,
		RedisAddr: cfg.RedisAddr,
		RedisDB:   cfg.RedisDB,
		RedisKey:  cfg.RedisKey,
		MySQLDSN:  cfg.MySQLDSN,
	}
}
