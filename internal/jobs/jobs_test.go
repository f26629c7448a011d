package jobs

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/mailer"
	"github.com/UkralStul/feedback-board-service/internal/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticLogo string

func (s staticLogo) LogoURL(context.Context, *domain.Account) string { return string(s) }

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (o *outbox) Send(ctx context.Context, msg mailer.Message) (mailer.Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return mailer.Result{ID: "msg"}, nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

func la(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

func TestSchedule_Next(t *testing.T) {
	loc := la(t)
	s := Schedule{Weekday: time.Thursday, Hour: 15, Minute: 0, Location: loc}

	cases := []struct {
		name  string
		after time.Time
		want  time.Time
	}{
		{"same day before", time.Date(2026, 10, 15, 14, 0, 0, 0, loc), time.Date(2026, 10, 15, 15, 0, 0, 0, loc)},
		{"exactly at run", time.Date(2026, 10, 15, 15, 0, 0, 0, loc), time.Date(2026, 10, 22, 15, 0, 0, 0, loc)},
		{"day after", time.Date(2026, 10, 16, 9, 0, 0, 0, loc), time.Date(2026, 10, 22, 15, 0, 0, 0, loc)},
		{"from utc", time.Date(2026, 10, 15, 21, 59, 0, 0, time.UTC), time.Date(2026, 10, 15, 15, 0, 0, 0, loc)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.want.Equal(s.Next(tc.after)), "got %s", s.Next(tc.after))
		})
	}
}

func TestDigestJob_FanOut(t *testing.T) {
	ctx := context.Background()
	store := inmemory.New()
	now := time.Date(2026, 10, 15, 22, 0, 0, 0, time.UTC)

	acme := &domain.Account{ID: "acc-1", Slug: "acme", BrandName: "Acme"}
	globex := &domain.Account{ID: "acc-2", Slug: "globex"}
	quiet := &domain.Account{ID: "acc-3", Slug: "quiet"}
	for _, a := range []*domain.Account{acme, globex, quiet} {
		require.NoError(t, store.SaveAccount(ctx, a))
	}
	for _, email := range []string{"a@x.io", "b@x.io"} {
		require.NoError(t, store.CreateProfile(ctx, &domain.Profile{AccountID: acme.ID, Email: email}))
	}
	require.NoError(t, store.CreateProfile(ctx, &domain.Profile{AccountID: globex.ID, Email: "c@x.io"}))

	recent := &domain.Submit{AccountID: acme.ID, Title: "recent", Status: domain.StatusPublic, CreatedAt: now.Add(-24 * time.Hour)}
	old := &domain.Submit{AccountID: acme.ID, Title: "old", Status: domain.StatusPublic, CreatedAt: now.Add(-8 * 24 * time.Hour)}
	hidden := &domain.Submit{AccountID: acme.ID, Title: "hidden", Status: domain.StatusPrivate, CreatedAt: now.Add(-time.Hour)}
	for _, s := range []*domain.Submit{recent, old, hidden} {
		require.NoError(t, store.CreateSubmit(ctx, s))
	}

	q := NewMemoryQueue(16)
	defer q.Close()
	n, err := NewDigestJob(store, staticLogo("https://cdn/logo.png"), q, nil).Run(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, q.Len())

	byEmail := map[string]DigestEvent{}
	for range n {
		ev, err := q.Dequeue(ctx)
		require.NoError(t, err)
		byEmail[ev.Email] = ev
	}
	acmeEv := byEmail["a@x.io"]
	assert.Equal(t, "Acme", acmeEv.Digest.Brand)
	assert.Equal(t, "https://cdn/logo.png", acmeEv.Digest.LogoURL)
	require.Len(t, acmeEv.Digest.Submits, 1)
	assert.Equal(t, "recent", acmeEv.Digest.Submits[0].Title)

	globexEv := byEmail["c@x.io"]
	assert.Equal(t, "globex", globexEv.Digest.Brand)
	assert.Empty(t, globexEv.Digest.Submits)
}

func TestWorker_SendsEveryEvent(t *testing.T) {
	box := &outbox{}
	m, err := mailer.New(box, mailer.Options{From: "noreply@ssimple.co", Links: mailer.Links{Scheme: "https", BaseDomain: "ssimple.co"}})
	require.NoError(t, err)

	q := NewMemoryQueue(8)
	data := mailer.DigestData{Brand: "Acme", Slug: "acme"}
	require.NoError(t, q.Enqueue(context.Background(),
		DigestEvent{AccountID: "acc-1", Email: "a@x.io", Digest: data},
		DigestEvent{AccountID: "acc-1", Email: "b@x.io", Digest: data},
	))

	done := make(chan error, 1)
	go func() { done <- NewWorker(q, m, 2).Run(context.Background()) }()

	assert.Eventually(t, func() bool { return box.count() == 2 }, time.Second, 10*time.Millisecond)
	require.NoError(t, q.Close())
	require.NoError(t, <-done)
}

// brokenQueue всегда отвечает ошибкой, как Redis без соединения
type brokenQueue struct {
	reads atomic.Int64
}

func (q *brokenQueue) Enqueue(ctx context.Context, events ...DigestEvent) error {
	return errors.New("connection refused")
}

func (q *brokenQueue) Dequeue(ctx context.Context) (DigestEvent, error) {
	q.reads.Add(1)
	return DigestEvent{}, errors.New("connection refused")
}

func (q *brokenQueue) Close() error { return nil }

func TestWorker_WaitsAfterQueueError(t *testing.T) {
	q := &brokenQueue{}
	w := NewWorker(q, nil, 2)
	w.retryDelay = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	require.NoError(t, w.Run(ctx))

	// Две горутины по три попытки за 120мс, без паузы было бы тысячи
	reads := q.reads.Load()
	assert.GreaterOrEqual(t, reads, int64(2))
	assert.LessOrEqual(t, reads, int64(10))
}

func TestMemoryQueue_DequeueHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	defer q.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScheduler_TriggerNow(t *testing.T) {
	ran := make(chan time.Time, 1)
	s := NewScheduler(Schedule{Weekday: time.Thursday, Hour: 15, Location: time.UTC},
		func(ctx context.Context, now time.Time) (int, error) {
			ran <- now
			return 0, nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(stopped)
	}()

	s.TriggerNow()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("triggered run did not happen")
	}
	cancel()
	<-stopped
}

func TestRedisQueue(t *testing.T) {
	addr := os.Getenv("FEEDBACK_TEST_REDIS_URL")
	if addr == "" {
		t.Skip("FEEDBACK_TEST_REDIS_URL is not set")
	}
	ctx := context.Background()
	q, err := NewRedisQueue(ctx, addr)
	require.NoError(t, err)
	q.key = "feedback:test:" + domain.NewID()
	defer q.Close()

	require.NoError(t, q.Enqueue(ctx, DigestEvent{Email: "a@x.io"}, DigestEvent{Email: "b@x.io"}))
	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", first.Email)
	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b@x.io", second.Email)
}

func TestMemoryQueue_DrainsAfterClose(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(4)
	require.NoError(t, q.Enqueue(ctx, DigestEvent{Email: "a@x.io"}, DigestEvent{Email: "b@x.io"}))
	require.NoError(t, q.Close())

	for _, want := range []string{"a@x.io", "b@x.io"} {
		ev, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, ev.Email)
	}
	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, q.Enqueue(ctx, DigestEvent{}), ErrQueueClosed)
}
