package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"segd/internal/common/fsutil"
	"segd/internal/config"
	"segd/internal/device"
	"segd/internal/httpapi"
	"segd/internal/imageio"
	"segd/internal/logging"
	"segd/internal/manager"
	"segd/internal/registry"
	"segd/internal/sam"
	"segd/pkg/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "segd:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "segd",
		Short:         "SAM2 / micro-sam segmentation server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd.Flags(), os.Getenv)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	registerFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	httpapi.SetLogger(log)
	httpapi.SetRequestLogLevel(cfg.LogLevel)

	pref, err := device.Parse(cfg.Device)
	if err != nil {
		return err
	}
	dev := device.Detect(pref)
	log.Info().Str("preference", string(pref)).Str("device", string(dev)).Msg("execution provider selected")

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	if len(reg) == 0 {
		log.Warn().Str("weights_dir", cfg.WeightsDir).Msg("no models found")
	}

	loaderCfg := imageio.LoaderConfig{Logger: &log}
	if cfg.S3.Enabled() {
		client, err := imageio.NewS3Client(ctx, imageio.S3Config{
			Endpoint:     cfg.S3.Endpoint,
			Region:       cfg.S3.Region,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return err
		}
		loaderCfg.S3 = client
	}

	mgrLog := log.With().Str("component", "manager").Logger()
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Registry:      reg,
		DefaultModel:  cfg.DefaultModel,
		MaxQueueDepth: cfg.MaxQueueDepth,
		MaxWait:       cfg.MaxWait.Duration,
		CacheSize:     cfg.CacheSize,
		CacheTTL:      cfg.CacheTTL.Duration,
		Runtime: sam.RuntimeConfig{
			LibraryPath: cfg.OnnxRuntimeLib,
			Device:      string(dev),
			NumThreads:  cfg.NumThreads,
		},
		Images:    imageio.NewLoader(loaderCfg),
		Publisher: manager.NewLogPublisher(mgrLog),
		Logger:    &mgrLog,
	})

	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetRequestTimeout(cfg.RequestTimeout.Duration)
	httpapi.SetRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)
	httpapi.SetBaseContext(ctx)

	if cfg.Preload {
		if err := mgr.Preload(ctx); err != nil {
			log.Error().Err(err).Msg("preload failed")
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("weights_dir", cfg.WeightsDir).Int("models", len(reg)).Str("default_model", mgr.DefaultModel()).Msg("segd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			_ = mgr.Close()
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown (Ctrl+C / SIGTERM)
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	return closeManager(mgr, log)
}

func loadRegistry(cfg config.Config) ([]types.Model, error) {
	var discovered []types.Model
	if dir, err := fsutil.ExpandHome(cfg.WeightsDir); err == nil && fsutil.PathExists(dir) {
		discovered, err = registry.LoadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("scan weights: %w", err)
		}
	}
	return registry.Merge(discovered, explicitModels(cfg)), nil
}

func closeManager(mgr *manager.Manager, log zerolog.Logger) error {
	if err := mgr.Close(); err != nil {
		log.Error().Err(err).Msg("manager close")
		return err
	}
	return nil
}
