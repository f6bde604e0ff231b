package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"jammr/backend/internal/logger"
)

type GCSConfig struct {
	Bucket       string
	CDNDomain    string
	EmulatorHost string
}

type gcsStore struct {
	log          *logger.Logger
	client       *storage.Client
	bucket       string
	cdnDomain    string
	emulatorHost string
}

// NewGCSStore opens a Cloud Storage client for the media bucket. With an
// emulator host set, it talks to the emulator without credentials.
func NewGCSStore(ctx context.Context, log *logger.Logger, cfg GCSConfig) (BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: missing bucket name")
	}

	var opts []option.ClientOption
	emulator := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
	if emulator != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", emulator)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog := log.With("service", "BlobStore")
	serviceLog.Info("Object storage initialized", "bucket", cfg.Bucket, "emulator_host", emulator, "cdn_domain", cfg.CDNDomain)

	return &gcsStore{
		log:          serviceLog,
		client:       client,
		bucket:       cfg.Bucket,
		cdnDomain:    strings.TrimSpace(cfg.CDNDomain),
		emulatorHost: emulator,
	}, nil
}

func (s *gcsStore) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return s.PublicURL(key), nil
}

func (s *gcsStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, s.bucket, err)
	}
	return nil
}

func (s *gcsStore) baseURL() string {
	switch {
	case s.cdnDomain != "":
		return "https://" + s.cdnDomain
	case s.emulatorHost != "":
		return s.emulatorHost + "/" + s.bucket
	default:
		return "https://storage.googleapis.com/" + s.bucket
	}
}

func (s *gcsStore) PublicURL(key string) string {
	return s.baseURL() + "/" + strings.TrimLeft(key, "/")
}

func (s *gcsStore) KeyFromURL(raw string) (string, bool) {
	prefix := s.baseURL() + "/"
	if !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(raw, prefix))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}
