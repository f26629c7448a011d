// Package attachment управляет жизненным циклом вложений:
// загрузка в pending, отмена, откат и публикация при отправке формы.
package attachment

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/UkralStul/feedback-board-service/internal/blob"
	"github.com/UkralStul/feedback-board-service/internal/domain"
	"github.com/UkralStul/feedback-board-service/internal/logging"
	"github.com/UkralStul/feedback-board-service/internal/metrics"
	"github.com/UkralStul/feedback-board-service/internal/storage"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDraftNotFound = errors.New("draft not found or expired")
	ErrNotTracked    = errors.New("upload is not part of this draft")
	ErrTooLarge      = errors.New("upload exceeds size limit")
	ErrAborted       = errors.New("upload aborted")
	ErrBadDataURL    = errors.New("malformed data url")
)

// ProgressFunc получает число отправленных байт и общий размер (0, если неизвестен).
type ProgressFunc func(sent, total int64)

// Options - параметры менеджера.
type Options struct {
	DraftTTL time.Duration
	MaxSize  int64
	Metrics  *metrics.Metrics
}

// Manager - менеджер вложений.
type Manager struct {
	store   storage.Storage
	blobs   blob.Store
	drafts  *cache.Cache
	maxSize int64
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewManager(store storage.Storage, blobs blob.Store, opts Options) *Manager {
	if opts.DraftTTL <= 0 {
		opts.DraftTTL = time.Hour
	}
	m := &Manager{
		store:   store,
		blobs:   blobs,
		drafts:  cache.New(opts.DraftTTL, opts.DraftTTL/4),
		maxSize: opts.MaxSize,
		metrics: opts.Metrics,
		log:     logging.Module("attachment"),
	}
	// Брошенная форма: все, что осталось pending, откатывается
	m.drafts.OnEvicted(func(_ string, v interface{}) {
		if d, ok := v.(*Draft); ok {
			m.expire(d)
		}
	})
	return m
}

// === Draft Methods ===

// OpenDraft начинает новую сессию формы.
func (m *Manager) OpenDraft(accountID string, parent domain.ParentType) *Draft {
	d := &Draft{ID: domain.NewID(), AccountID: accountID, ParentType: parent}
	m.drafts.SetDefault(d.ID, d)
	return d
}

// Draft находит сессию по id и проверяет тенанта.
func (m *Manager) Draft(id, accountID string) (*Draft, error) {
	v, ok := m.drafts.Get(id)
	if !ok {
		return nil, ErrDraftNotFound
	}
	d := v.(*Draft)
	if d.AccountID != accountID {
		return nil, ErrDraftNotFound
	}
	return d, nil
}

// Close завершает сессию. Оставшиеся pending-файлы откатываются.
func (m *Manager) Close(d *Draft) {
	d.close()
	m.drafts.Delete(d.ID)
}

func (m *Manager) expire(d *Draft) {
	d.close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, u := range d.Files() {
		if err := m.Revert(ctx, d, u.ID); err != nil {
			m.log.Error("failed to revert abandoned upload", "draft", d.ID, "upload_id", u.ID, "error", err)
		}
	}
}

// === Upload Methods ===

// Process загружает файл в uploads/{topics|comments}/{id} и создает запись
// со статусом pending. Отмена ctx прерывает загрузку и удаляет запись.
// Если форму закрыли до конца загрузки, файл удаляется и возвращается ErrDraftNotFound.
func (m *Manager) Process(ctx context.Context, d *Draft, contentType string, r io.Reader, total int64, progress ProgressFunc) (*domain.Upload, error) {
	if d.Closed() {
		return nil, ErrDraftNotFound
	}
	if m.maxSize > 0 && total > m.maxSize {
		return nil, ErrTooLarge
	}
	id := domain.NewID()
	path := blob.UploadPath(d.ParentType, id)
	body := &countingReader{r: r, total: total, limit: m.maxSize, progress: progress}

	url, err := m.blobs.Put(ctx, path, body, contentType)
	if err != nil {
		if ctx.Err() != nil {
			m.abort(id, path)
			return nil, fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
		}
		m.removeBlob(path)
		m.metrics.Upload("error")
		if body.exceeded {
			return nil, ErrTooLarge
		}
		return nil, fmt.Errorf("upload %s: %w", id, err)
	}

	up := domain.Upload{
		ID:          id,
		AccountID:   d.AccountID,
		Type:        mediaKind(contentType),
		ParentType:  d.ParentType,
		ParentID:    "",
		Status:      domain.UploadPending,
		DownloadURL: url,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.store.SaveUpload(ctx, &up); err != nil {
		if ctx.Err() != nil {
			m.abort(id, path)
			return nil, fmt.Errorf("%w: %v", ErrAborted, ctx.Err())
		}
		m.metrics.Upload("error")
		return nil, fmt.Errorf("save upload %s: %w", id, err)
	}
	// Форму закрыли, пока шла загрузка: откатить файл больше некому
	if !d.track(up) {
		m.abort(id, path)
		return nil, ErrDraftNotFound
	}
	m.metrics.Upload("pending")
	return &up, nil
}

// abort удаляет запись о прерванной загрузке. Объект в хранилище может остаться.
func (m *Manager) abort(id, path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.store.DeleteUpload(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		m.log.Error("failed to delete aborted upload record", "upload_id", id, "error", err)
	}
	m.removeBlob(path)
	m.metrics.Upload("aborted")
}

func (m *Manager) removeBlob(path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.blobs.Delete(ctx, path); err != nil && !errors.Is(err, blob.ErrNotFound) {
		m.log.Warn("leaked blob after failed upload", "path", path, "error", err)
	}
}

// Revert удаляет pending-файл: сначала из списка формы, затем объект и запись.
// Ошибки логируются и возвращаются, файл из списка не возвращается.
func (m *Manager) Revert(ctx context.Context, d *Draft, id string) error {
	if !d.untrack(id) {
		return ErrNotTracked
	}
	if err := m.DeleteFile(ctx, d.ParentType, id); err != nil {
		m.log.Error("failed to revert upload", "draft", d.ID, "upload_id", id, "error", err)
		return err
	}
	m.metrics.Upload("reverted")
	return nil
}

// DeleteFile удаляет объект и запись вложения. Отсутствие того или другого
// считается успехом, чтобы удаление можно было повторить. Путь объекта берется
// из записи, parent нужен, только если записи уже нет.
func (m *Manager) DeleteFile(ctx context.Context, parent domain.ParentType, id string) error {
	up, err := m.store.GetUpload(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("get upload record %s: %w", id, err)
	}
	if err == nil && up.ParentType != "" {
		parent = up.ParentType
	}
	if err := m.blobs.Delete(ctx, blob.UploadPath(parent, id)); err != nil && !errors.Is(err, blob.ErrNotFound) {
		return fmt.Errorf("delete blob %s: %w", id, err)
	}
	if err := m.store.DeleteUpload(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete upload record %s: %w", id, err)
	}
	return nil
}

// Discard откатывает все файлы формы по очереди, останавливаясь на первой ошибке.
func (m *Manager) Discard(ctx context.Context, d *Draft) error {
	for _, u := range d.Files() {
		if err := m.Revert(ctx, d, u.ID); err != nil {
			return err
		}
	}
	return nil
}

// Publish параллельно переводит все файлы формы в published с parentID.
// Ошибка любого обновления - ошибка всей операции; уже опубликованные
// файлы не откатываются.
func (m *Manager) Publish(ctx context.Context, d *Draft, parentID string) ([]domain.Upload, error) {
	files := d.Files()
	published := make([]domain.Upload, len(files))
	done := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i := range files {
		g.Go(func() error {
			u := files[i]
			u.Status = domain.UploadPublished
			u.ParentID = parentID
			if err := m.store.SaveUpload(gctx, &u); err != nil {
				return fmt.Errorf("publish upload %s: %w", u.ID, err)
			}
			published[i] = u
			done[i] = true
			return nil
		})
	}
	err := g.Wait()

	for i, ok := range done {
		if ok {
			d.untrack(files[i].ID)
			m.metrics.Upload("published")
		}
	}
	if err != nil {
		return nil, err
	}
	return published, nil
}

// UploadDataURL загружает снимок экрана из data URL сразу как опубликованный файл.
func (m *Manager) UploadDataURL(ctx context.Context, accountID string, parent domain.ParentType, parentID, dataURL string) (*domain.Upload, error) {
	contentType, data, err := decodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	id := domain.NewID()
	url, err := m.blobs.Put(ctx, blob.UploadPath(parent, id), bytes.NewReader(data), contentType)
	if err != nil {
		return nil, fmt.Errorf("upload screenshot: %w", err)
	}
	up := domain.Upload{
		ID:          id,
		AccountID:   accountID,
		Type:        mediaKind(contentType),
		ParentType:  parent,
		ParentID:    parentID,
		Status:      domain.UploadPublished,
		DownloadURL: url,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.store.SaveUpload(ctx, &up); err != nil {
		return nil, fmt.Errorf("save screenshot %s: %w", id, err)
	}
	m.metrics.Upload("published")
	return &up, nil
}

// decodeDataURL разбирает data:image/png;base64,....
func decodeDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrBadDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrBadDataURL
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, ErrBadDataURL
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	return contentType, data, nil
}

// mediaKind - первая часть MIME-типа: image, video и т.д.
func mediaKind(contentType string) string {
	kind, _, _ := strings.Cut(contentType, "/")
	if kind == "" {
		return "file"
	}
	return kind
}

// countingReader сообщает о прогрессе и обрывает чтение сверх лимита.
type countingReader struct {
	r        io.Reader
	sent     int64
	total    int64
	limit    int64
	exceeded bool
	progress ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.sent += int64(n)
	if c.limit > 0 && c.sent > c.limit {
		c.exceeded = true
		return n, ErrTooLarge
	}
	if n > 0 && c.progress != nil {
		c.progress(c.sent, c.total)
	}
	return n, err
}
