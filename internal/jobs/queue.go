package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/mailer"

	"github.com/go-redis/redis/v8"
)

// ErrQueueClosed - очередь закрыта, новых событий не будет.
var ErrQueueClosed = errors.New("queue closed")

// DigestEvent - одно письмо еженедельного дайджеста.
type DigestEvent struct {
	AccountID string            `json:"account_id"`
	Email     string            `json:"email"`
	Digest    mailer.DigestData `json:"digest"`
	CreatedAt time.Time         `json:"created_at"`
}

// Queue передает события дайджеста от планировщика к воркерам.
type Queue interface {
	Enqueue(ctx context.Context, events ...DigestEvent) error
	// Dequeue блокируется до появления события, отмены ctx или закрытия очереди.
	Dequeue(ctx context.Context) (DigestEvent, error)
	Close() error
}

// === Memory Queue ===

// MemoryQueue - очередь в памяти процесса на буферизованном канале.
type MemoryQueue struct {
	ch     chan DigestEvent
	done   chan struct{}
	closed sync.Once
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{ch: make(chan DigestEvent, size), done: make(chan struct{})}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, events ...DigestEvent) error {
	for _, ev := range events {
		select {
		case <-q.done:
			return ErrQueueClosed
		default:
		}
		select {
		case q.ch <- ev:
		case <-q.done:
			return ErrQueueClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Dequeue отдает накопленные события и после Close, пока буфер не опустеет.
func (q *MemoryQueue) Dequeue(ctx context.Context) (DigestEvent, error) {
	select {
	case ev := <-q.ch:
		return ev, nil
	default:
	}
	select {
	case ev := <-q.ch:
		return ev, nil
	case <-q.done:
		return DigestEvent{}, ErrQueueClosed
	case <-ctx.Done():
		return DigestEvent{}, ctx.Err()
	}
}

// Len - число событий, ожидающих обработки.
func (q *MemoryQueue) Len() int { return len(q.ch) }

func (q *MemoryQueue) Close() error {
	q.closed.Do(func() { close(q.done) })
	return nil
}

// === Redis Queue ===

// DefaultRedisKey - список Redis, в котором лежат события.
const DefaultRedisKey = "feedback:digest:events"

// RedisQueue - очередь в списке Redis: LPUSH на запись, BRPOP на чтение.
type RedisQueue struct {
	client *redis.Client
	key    string
	// poll - таймаут одного BRPOP, чтобы вовремя замечать отмену ctx
	poll time.Duration
}

// NewRedisQueue подключается по адресу вида redis://host:6379/0 или host:6379.
func NewRedisQueue(ctx context.Context, addr string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return &RedisQueue{client: client, key: DefaultRedisKey, poll: 5 * time.Second}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, events ...DigestEvent) error {
	if len(events) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal digest event: %w", err)
		}
		values = append(values, data)
	}
	if err := q.client.LPush(ctx, q.key, values...).Err(); err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return ErrQueueClosed
		}
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (DigestEvent, error) {
	for {
		res, err := q.client.BRPop(ctx, q.poll, q.key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			if ctx.Err() != nil {
				return DigestEvent{}, ctx.Err()
			}
			continue
		case errors.Is(err, redis.ErrClosed):
			return DigestEvent{}, ErrQueueClosed
		case err != nil:
			if ctx.Err() != nil {
				return DigestEvent{}, ctx.Err()
			}
			return DigestEvent{}, fmt.Errorf("redis brpop: %w", err)
		}
		// res = [key, value]
		var ev DigestEvent
		if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
			return DigestEvent{}, fmt.Errorf("unmarshal digest event: %w", err)
		}
		return ev, nil
	}
}

func (q *RedisQueue) Close() error { return q.client.Close() }
