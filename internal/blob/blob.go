// Package blob хранит бинарные объекты (вложения, логотипы) по путям вида
// uploads/topics/{id}.
package blob

import (
	"context"
	"errors"
	"io"
	"path"

	"github.com/UkralStul/feedback-board-service/internal/domain"
)

// ErrNotFound - объекта по пути нет.
var ErrNotFound = errors.New("blob not found")

// DefaultLogoPath - логотип, который показывается, если тенант не загрузил свой.
const DefaultLogoPath = "brand/logo.png"

// Store - клиент хранилища объектов.
type Store interface {
	// Put записывает объект и возвращает его публичный URL.
	Put(ctx context.Context, p string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, p string) error
	Exists(ctx context.Context, p string) (bool, error)
	URL(p string) string
}

// UploadPath - путь вложения: uploads/topics/{id} или uploads/comments/{id}.
func UploadPath(parent domain.ParentType, id string) string {
	dir := "topics"
	if parent == domain.ParentComment {
		dir = "comments"
	}
	return path.Join("uploads", dir, id)
}

// BrandLogoPath - логотип тенанта.
func BrandLogoPath(accountID string) string {
	return path.Join("brand", accountID+".png")
}

// ctxReader прерывает чтение, когда контекст отменен.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
