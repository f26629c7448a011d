package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishOnlyToSameSubmit(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := h.Subscribe(ctx, "submit-a")
	b := h.Subscribe(ctx, "submit-b")

	h.Publish(&domain.Comment{ID: "c1", SubmitID: "submit-a"})

	select {
	case c := <-a:
		assert.Equal(t, "c1", c.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber of submit-a got nothing")
	}
	select {
	case c := <-b:
		t.Fatalf("unexpected comment %s for submit-b", c.ID)
	default:
	}
}

func TestHub_UnsubscribeOnCancel(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ch := h.Subscribe(ctx, "submit-a")
	require.Equal(t, 1, h.Subscribers("submit-a"))

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
	assert.Equal(t, 0, h.Subscribers("submit-a"))

	// Публикация без подписчиков не блокируется
	h.Publish(&domain.Comment{ID: "c1", SubmitID: "submit-a"})
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Subscribe(ctx, "submit-a")

	done := make(chan struct{})
	go func() {
		for range 100 {
			h.Publish(&domain.Comment{SubmitID: "submit-a"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}
