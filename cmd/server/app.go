package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/attachment"
	"github.com/UkralStul/feedback-board-service/internal/auth"
	"github.com/UkralStul/feedback-board-service/internal/blob"
	"github.com/UkralStul/feedback-board-service/internal/board"
	"github.com/UkralStul/feedback-board-service/internal/config"
	"github.com/UkralStul/feedback-board-service/internal/feedback"
	"github.com/UkralStul/feedback-board-service/internal/jobs"
	"github.com/UkralStul/feedback-board-service/internal/logging"
	"github.com/UkralStul/feedback-board-service/internal/mailer"
	"github.com/UkralStul/feedback-board-service/internal/metrics"
	"github.com/UkralStul/feedback-board-service/internal/storage"
	"github.com/UkralStul/feedback-board-service/internal/storage/inmemory"
	"github.com/UkralStul/feedback-board-service/internal/storage/postgres"

	"google.golang.org/api/option"
)

// app - собранные зависимости сервиса.
type app struct {
	store       storage.Storage
	blobs       blob.Store
	files       http.Handler
	metrics     *metrics.Metrics
	resolver    *board.Resolver
	board       *board.Board
	attachments *attachment.Manager
	mailer      *mailer.Mailer
	feedback    *feedback.Service
	auth        *auth.Auth
	queue       jobs.Queue
	digest      *jobs.DigestJob
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	var err error

	switch cfg.Storage.Type {
	case "postgres":
		a.store, err = postgres.New(cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	default:
		a.store = inmemory.New()
	}

	switch cfg.Blob.Type {
	case "gcs":
		var opts []option.ClientOption
		if cfg.Blob.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Blob.CredentialsFile))
		}
		a.blobs, err = blob.NewGCS(ctx, cfg.Blob.Bucket, opts...)
		if err != nil {
			return nil, err
		}
	default:
		local, err := blob.NewLocal(cfg.Blob.Dir, cfg.Blob.PublicURL)
		if err != nil {
			return nil, err
		}
		a.blobs = local
		a.files = http.FileServer(http.Dir(local.Dir()))
	}

	a.metrics, err = metrics.New()
	if err != nil {
		return nil, err
	}

	sender, err := newSender(cfg)
	if err != nil {
		return nil, err
	}
	a.mailer, err = mailer.New(sender, mailer.Options{
		From:      cfg.Mail.From,
		DemoFrom:  cfg.Mail.DemoFrom,
		SurveyURL: cfg.Mail.SurveyURL,
		Links:     mailer.Links{Scheme: cfg.Board.Scheme, BaseDomain: cfg.Board.BaseDomain},
		Metrics:   a.metrics,
	})
	if err != nil {
		return nil, err
	}

	switch cfg.Jobs.Queue {
	case "redis":
		a.queue, err = jobs.NewRedisQueue(ctx, cfg.Jobs.RedisURL)
		if err != nil {
			return nil, err
		}
	default:
		a.queue = jobs.NewMemoryQueue(0)
	}

	a.resolver = board.NewResolver(a.store, cfg.Board.BaseDomain, cfg.Board.DefaultTenant, cfg.Board.CacheTTL)
	a.board = board.New(a.store, a.blobs)
	a.attachments = attachment.NewManager(a.store, a.blobs, attachment.Options{
		DraftTTL: cfg.Uploads.DraftTTL,
		MaxSize:  cfg.Uploads.MaxSize,
		Metrics:  a.metrics,
	})
	a.feedback = feedback.New(a.store, a.attachments, a.mailer, feedback.NewHub(), a.metrics)
	a.auth = auth.New(a.store, cfg.Auth.SessionSecret, cfg.Auth.SecureCookie)
	a.digest = jobs.NewDigestJob(a.store, a.board, a.queue, a.metrics)
	return a, nil
}

func newSender(cfg *config.Config) (mailer.Sender, error) {
	switch cfg.Mail.Provider {
	case "resend":
		return mailer.NewResendSender(cfg.Mail.ResendAPIKey, nil), nil
	case "smtp":
		return mailer.NewSMTPSender(cfg.Mail.SMTPURL, 30*time.Second)
	default:
		return mailer.LogSender{Logger: logging.Module("mailer")}, nil
	}
}

func (a *app) close() {
	if a.queue != nil {
		_ = a.queue.Close()
	}
}
