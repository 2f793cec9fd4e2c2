package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ytppt/slidesweep/internal/api"
	"github.com/ytppt/slidesweep/internal/config"
	"github.com/ytppt/slidesweep/internal/metrics"
	"github.com/ytppt/slidesweep/internal/models"
	"github.com/ytppt/slidesweep/internal/services"
	"github.com/ytppt/slidesweep/internal/storage"
	"go.uber.org/zap"

	cli "github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "slidesweep",
		Usage: "Compare scene-detection settings for slide extraction",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Project config file (default: config.json in the working directory)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Verbose development logging",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			setsCommand(),
			serveCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var cfgErr *models.ConfigurationError
		if errors.As(err, &cfgErr) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, &models.ConfigurationError{Reason: "cannot load config", Err: err}
	}
	return cfg, nil
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run every parameter set against the downloaded video and rank the results",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "video-dir",
				Usage: "Directory containing video.mp4 (default: video_dir from config)",
			},
			&cli.StringFlag{
				Name:  "out-base",
				Usage: "Directory receiving one subdirectory per parameter set (default: sweep.out_base from config)",
			},
			&cli.StringFlag{
				Name:  "crop",
				Usage: "Crop rectangle as left,top,width,height in 0-1 (default: crop_* from config)",
			},
			&cli.StringFlag{
				Name:  "existing",
				Usage: "What to do with an existing set directory: replace or fail",
			},
			&cli.BoolFlag{
				Name:  "force-crop",
				Usage: "Re-create video_cropped.mp4 even if it exists",
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "Upload the finished sweep to the configured bucket",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := newLogger(cmd.Bool("debug"))
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			req := services.NewSweepRequest(cfg)
			if v := cmd.String("video-dir"); v != "" {
				req.VideoDir = v
			}
			if v := cmd.String("out-base"); v != "" {
				req.OutBase = v
			}
			if v := cmd.String("crop"); v != "" {
				crop, err := models.ParseCrop(v)
				if err != nil {
					return err
				}
				req.Crop = crop
			}
			if v := cmd.String("existing"); v != "" {
				req.ExistingPolicy = v
			}
			if cmd.Bool("force-crop") {
				req.ForceCrop = true
			}
			req.Publish = cmd.Bool("publish")

			svc, err := services.NewServices(cfg, logger)
			if err != nil {
				return &models.ConfigurationError{Reason: "cannot start", Err: err}
			}

			manifest, err := svc.Sweep.Run(ctx, req)
			if manifest != nil {
				if perr := services.PrintSummary(os.Stdout, manifest); perr != nil {
					logger.Warn("Failed to print summary", zap.Error(perr))
				}
			}
			return err
		},
	}
}

func setsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sets",
		Usage: "List the parameter sets in execution order",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tSET\tTHRESHOLD\tMIN_LEN\tSTATIC\tDUPLICATE\tMIN_GAP\tMAX_GAP\tFILL")
			for i, s := range models.DefaultParameterSets() {
				fmt.Fprintf(tw, "%d\t%s\t%g\t%d\t%g\t%g\t%g\t%g\t%g\n", i+1, s.ID,
					s.Threshold, s.MinSceneLen, s.StaticThreshold, s.DuplicateThreshold,
					s.MinGap, s.MaxGapSec, s.IntervalFillSec)
			}
			return tw.Flush()
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the results of the last sweep over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out-base",
				Usage: "Sweep output base (default: sweep.out_base from config)",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default: server.host:server.port from config)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := newLogger(cmd.Bool("debug"))
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			outBase := cfg.Sweep.OutBase
			if v := cmd.String("out-base"); v != "" {
				outBase = v
			}
			base, err := storage.ResolveBase(outBase)
			if err != nil {
				return &models.ConfigurationError{Reason: "invalid output base", Err: err}
			}

			store := storage.NewManager(base, logger)
			collector := metrics.New().WithProcessCollectors()
			if manifest, err := store.LoadManifest(); err == nil {
				collector.LoadManifest(manifest)
			} else {
				logger.Warn("No sweep to serve yet", zap.String("out_base", base), zap.Error(err))
			}

			addr := cmd.String("addr")
			if addr == "" {
				addr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewRouter(store, collector, cfg, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Results server starting", zap.String("addr", addr), zap.String("out_base", base))
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

			logger.Info("Shutting down results server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
