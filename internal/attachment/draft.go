package attachment

import (
	"sync"

	"github.com/UkralStul/feedback-board-service/internal/domain"
)

// Draft - сессия одной формы с вложениями. Хранит загруженные, но еще не
// опубликованные файлы, пока форма не отправлена или не брошена.
type Draft struct {
	ID         string
	AccountID  string
	ParentType domain.ParentType

	mu      sync.Mutex
	pending []domain.Upload
	// closed - форма отправлена или брошена, новые файлы не принимаются
	closed bool
}

// Files возвращает копию списка ожидающих файлов в порядке загрузки.
func (d *Draft) Files() []domain.Upload {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Upload, len(d.pending))
	copy(out, d.pending)
	return out
}

// Len - число ожидающих файлов.
func (d *Draft) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// track добавляет файл в список. Закрытая форма файл не принимает.
func (d *Draft) track(u domain.Upload) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.pending = append(d.pending, u)
	return true
}

func (d *Draft) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

// Closed сообщает, закрыта ли форма.
func (d *Draft) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// untrack убирает файл из списка и сообщает, был ли он там.
func (d *Draft) untrack(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, u := range d.pending {
		if u.ID == id {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			return true
		}
	}
	return false
}
