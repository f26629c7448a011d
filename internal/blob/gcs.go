package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

// GCS хранит объекты в бакете Google Cloud Storage через JSON API.
type GCS struct {
	bucket string
	svc    *gcs.Service
}

// NewGCS создает клиент. Без опций используются учетные данные по умолчанию.
func NewGCS(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCS, error) {
	svc, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blob: failed to create gcs client: %w", err)
	}
	return &GCS{bucket: bucket, svc: svc}, nil
}

func isMissing(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

func (g *GCS) Put(ctx context.Context, p string, r io.Reader, contentType string) (string, error) {
	obj := &gcs.Object{Name: p, ContentType: contentType}
	_, err := g.svc.Objects.Insert(g.bucket, obj).
		Media(ctxReader{ctx: ctx, r: r}, googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("blob: upload %s: %w", p, err)
	}
	return g.URL(p), nil
}

func (g *GCS) Delete(ctx context.Context, p string) error {
	if err := g.svc.Objects.Delete(g.bucket, p).Context(ctx).Do(); err != nil {
		if isMissing(err) {
			return ErrNotFound
		}
		return fmt.Errorf("blob: delete %s: %w", p, err)
	}
	return nil
}

func (g *GCS) Exists(ctx context.Context, p string) (bool, error) {
	if _, err := g.svc.Objects.Get(g.bucket, p).Context(ctx).Do(); err != nil {
		if isMissing(err) {
			return false, nil
		}
		return false, fmt.Errorf("blob: stat %s: %w", p, err)
	}
	return true, nil
}

func (g *GCS) URL(p string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, p)
}
