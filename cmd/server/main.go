package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/config"
	"github.com/UkralStul/feedback-board-service/internal/httpapi"
	"github.com/UkralStul/feedback-board-service/internal/jobs"
	"github.com/UkralStul/feedback-board-service/internal/logging"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath string
	var cfg *config.Config

	root := &cobra.Command{
		Use:          "feedback-board",
		Short:        "Multi-tenant customer feedback board",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := logging.Init(logging.Config{Level: loaded.Log.Level, Format: loaded.Log.Format}); err != nil {
				return err
			}
			if err := initSentry(loaded); err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			sentry.Flush(2 * time.Second)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./config.yaml)")

	// Без подкоманды запускается serve
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return serveAction(cmd, cfg)
	}

	root.AddCommand(
		serveCommand(&cfg),
		digestCommand(&cfg),
		seedCommand(&cfg),
	)
	return root
}

func initSentry(cfg *config.Config) error {
	if cfg.Sentry.DSN == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		AttachStacktrace: true,
		Environment:      cfg.Board.BaseDomain,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	return nil
}

// === serve ===

func serveCommand(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, digest scheduler and email workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveAction(cmd, *cfg)
		},
	}
}

// serveAction подменяется в тестах.
var serveAction = runServe

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg)
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logging.Module("main")
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.Storage.Type == "in-memory" && cfg.Storage.Seed {
		// Заполним данными для разработки
		if err := seed(ctx, a, "admin"); err != nil {
			return err
		}
	}

	srv, err := httpapi.New(httpapi.Deps{
		Store:        a.store,
		Resolver:     a.resolver,
		Board:        a.board,
		Feedback:     a.feedback,
		Attachments:  a.attachments,
		Mailer:       a.mailer,
		Auth:         a.auth,
		Metrics:      a.metrics,
		Files:        a.files,
		SecureCookie: cfg.Auth.SecureCookie,
	})
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	loc, _ := cfg.Location()
	scheduler := jobs.NewScheduler(jobs.Schedule{
		Weekday:  cfg.Weekday(),
		Hour:     cfg.Jobs.Hour,
		Minute:   cfg.Jobs.Minute,
		Location: loc,
	}, a.digest.Run)
	worker := jobs.NewWorker(a.queue, a.mailer, cfg.Jobs.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", httpServer.Addr, "base_domain", cfg.Board.BaseDomain)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		scheduler.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		a.feedback.Wait()
		return err
	})
	return g.Wait()
}

// === digest ===

func digestCommand(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Fan out the weekly digest once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, *cfg)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.digest.Run(ctx, time.Now())
			if err != nil {
				return err
			}
			slog.Info("digest events enqueued", "count", n, "queue", (*cfg).Jobs.Queue)

			// Очередь в памяти живет только в этом процессе: отправляем сразу
			if mq, ok := a.queue.(*jobs.MemoryQueue); ok {
				_ = mq.Close()
				return jobs.NewWorker(mq, a.mailer, (*cfg).Jobs.Workers).Run(ctx)
			}
			return nil
		},
	}
}

// === seed ===

func seedCommand(cfg **config.Config) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the demo tenant with sample feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, *cfg)
			if err != nil {
				return err
			}
			defer a.close()
			return seed(ctx, a, password)
		},
	}
	cmd.Flags().StringVar(&password, "password", "admin", "admin password for the demo tenant")
	return cmd
}
