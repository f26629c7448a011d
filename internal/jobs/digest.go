// Package jobs - еженедельная рассылка дайджеста: планировщик, раздача
// событий по адресатам и воркеры, отправляющие письма.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/logging"
	"github.com/UkralStul/feedback-board-service/internal/mailer"
	"github.com/UkralStul/feedback-board-service/internal/metrics"
	"github.com/UkralStul/feedback-board-service/internal/storage"
)

// DigestWindow - за какой период элементы попадают в дайджест.
const DigestWindow = 7 * 24 * time.Hour

// LogoSource возвращает ссылку на логотип тенанта.
type LogoSource interface {
	LogoURL(ctx context.Context, acc *domain.Account) string
}

// DigestJob раздает события дайджеста: одно на каждый профиль тенанта.
type DigestJob struct {
	store   storage.Storage
	logos   LogoSource
	queue   Queue
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewDigestJob(store storage.Storage, logos LogoSource, queue Queue, m *metrics.Metrics) *DigestJob {
	return &DigestJob{
		store:   store,
		logos:   logos,
		queue:   queue,
		metrics: m,
		log:     logging.Module("jobs"),
	}
}

// Run ставит в очередь события для всех тенантов и возвращает их число.
// Ошибка одного тенанта не мешает остальным.
func (j *DigestJob) Run(ctx context.Context, now time.Time) (int, error) {
	accounts, err := j.store.ListAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}
	total := 0
	var firstErr error
	for _, acc := range accounts {
		n, err := j.runAccount(ctx, acc, now)
		total += n
		if err != nil {
			j.log.ErrorContext(ctx, "digest fan-out failed", "tenant", acc.Slug, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	j.metrics.DigestEnqueued(total)
	j.log.InfoContext(ctx, "digest fan-out finished", "accounts", len(accounts), "events", total)
	return total, firstErr
}

func (j *DigestJob) runAccount(ctx context.Context, acc *domain.Account, now time.Time) (int, error) {
	// Сбой выборки не отменяет рассылку: письмо уйдет в варианте без элементов
	submits, err := j.store.ListSubmits(ctx, storage.SubmitQuery{
		AccountID:    acc.ID,
		Status:       domain.StatusPublic,
		CreatedSince: now.Add(-DigestWindow),
		Sort:         storage.SortCreatedAt,
	})
	if err != nil {
		j.log.ErrorContext(ctx, "failed to load digest submits", "tenant", acc.Slug, "error", err)
		submits = nil
	}

	profiles, err := j.store.ListProfiles(ctx, acc.ID)
	if err != nil {
		return 0, fmt.Errorf("list profiles: %w", err)
	}
	if len(profiles) == 0 {
		return 0, nil
	}

	data := mailer.DigestData{
		Brand:   acc.BrandName,
		Slug:    acc.Slug,
		LogoURL: j.logos.LogoURL(ctx, acc),
		Submits: submits,
	}
	if data.Brand == "" {
		data.Brand = acc.Slug
	}
	events := make([]DigestEvent, 0, len(profiles))
	for _, p := range profiles {
		events = append(events, DigestEvent{AccountID: acc.ID, Email: p.Email, Digest: data, CreatedAt: now})
	}
	if err := j.queue.Enqueue(ctx, events...); err != nil {
		return 0, fmt.Errorf("enqueue: %w", err)
	}
	return len(events), nil
}
