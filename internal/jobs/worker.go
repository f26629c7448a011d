package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/logging"
	"github.com/UkralStul/feedback-board-service/internal/mailer"

	"golang.org/x/sync/errgroup"
)

// Worker отправляет письма дайджеста. Каждое событие обрабатывается
// независимо, ошибка отправки логируется без повторов.
type Worker struct {
	queue       Queue
	mail        *mailer.Mailer
	concurrency int
	// retryDelay - пауза после ошибки чтения очереди, например при недоступном Redis
	retryDelay time.Duration
	log        *slog.Logger
}

// DefaultRetryDelay - пауза воркера после ошибки очереди.
const DefaultRetryDelay = 2 * time.Second

func NewWorker(queue Queue, mail *mailer.Mailer, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Worker{
		queue:       queue,
		mail:        mail,
		concurrency: concurrency,
		retryDelay:  DefaultRetryDelay,
		log:         logging.Module("jobs"),
	}
}

// Run читает очередь, пока ctx не отменен или очередь не закрыта.
func (w *Worker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for range w.concurrency {
		g.Go(func() error {
			for {
				ev, err := w.queue.Dequeue(gctx)
				if err != nil {
					if errors.Is(err, ErrQueueClosed) || gctx.Err() != nil {
						return nil
					}
					w.log.Error("failed to read digest queue", "error", err, "retry_in", w.retryDelay)
					select {
					case <-time.After(w.retryDelay):
					case <-gctx.Done():
						return nil
					}
					continue
				}
				w.Handle(gctx, ev)
			}
		})
	}
	return g.Wait()
}

// Handle отправляет одно письмо дайджеста.
func (w *Worker) Handle(ctx context.Context, ev DigestEvent) {
	msg, err := w.mail.DigestMessage(ev.Digest, ev.Email)
	if err != nil {
		w.log.ErrorContext(ctx, "failed to render digest", "account_id", ev.AccountID, "error", err)
		return
	}
	if _, err := w.mail.Send(ctx, mailer.KindDigest, msg); err != nil {
		// Мейлер уже залогировал ошибку
		return
	}
	w.log.DebugContext(ctx, "digest sent", "account_id", ev.AccountID, "to", ev.Email)
}
