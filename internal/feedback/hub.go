package feedback

import (
	"context"
	"sync"

	"github.com/UkralStul/feedback-board-service/internal/domain"

	"github.com/google/uuid"
)

// Hub хранит каналы подписчиков на новые комментарии элемента.
type Hub struct {
	mu sync.RWMutex
	//          map[submitID] map[subscriberID] channel
	subs map[string]map[string]chan *domain.Comment
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[string]chan *domain.Comment),
	}
}

// Subscribe возвращает канал новых комментариев элемента. Канал закрывается,
// когда ctx отменен.
func (h *Hub) Subscribe(ctx context.Context, submitID string) <-chan *domain.Comment {
	ch := make(chan *domain.Comment, 8)
	subID := uuid.NewString()

	h.mu.Lock()
	if h.subs[submitID] == nil {
		h.subs[submitID] = make(map[string]chan *domain.Comment)
	}
	h.subs[submitID][subID] = ch
	h.mu.Unlock()

	// Горутина для очистки при отключении клиента
	go func() {
		<-ctx.Done()
		h.mu.Lock()
		if submitSubs, ok := h.subs[submitID]; ok {
			delete(submitSubs, subID)
			if len(submitSubs) == 0 {
				delete(h.subs, submitID)
			}
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish рассылает комментарий подписчикам, не блокируясь на медленных.
func (h *Hub) Publish(c *domain.Comment) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[c.SubmitID] {
		select {
		case ch <- c:
		default:
			// Клиент не успевает читать, пропускаем
		}
	}
}

// Subscribers - число подписчиков элемента.
func (h *Hub) Subscribers(submitID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[submitID])
}
