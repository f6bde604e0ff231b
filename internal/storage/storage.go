package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"jammr/backend/internal/models"
)

var ErrObjectNotFound = errors.New("storage: object not found")

// BlobStore keeps uploaded media and hands out public URLs for it.
type BlobStore interface {
	Upload(ctx context.Context, key string, r io.Reader) (publicURL string, err error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	// KeyFromURL maps a URL produced by PublicURL back to its object key.
	KeyFromURL(url string) (string, bool)
}

var mediaPrefixes = map[models.MediaKind]string{
	models.MediaProfileImage: "profile-images",
	models.MediaGallery:      "gallery-images",
	models.MediaVideo:        "video-clips",
	models.MediaAudio:        "audio-clips",
}

// MediaKey builds "<prefix>/<userID>/<unix-millis>-<filename>".
func MediaKey(kind models.MediaKind, userID, filename string, now time.Time) (string, error) {
	prefix, ok := mediaPrefixes[kind]
	if !ok {
		return "", fmt.Errorf("storage: unknown media kind %q", kind)
	}
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "upload"
	}
	return fmt.Sprintf("%s/%s/%d-%s", prefix, userID, now.UnixMilli(), name), nil
}

// KeyOwner returns the user segment of a media key.
func KeyOwner(key string) string {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[1]
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(key)
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".gif"):
		return "image/gif"
	case strings.HasSuffix(s, ".mp4"), strings.HasSuffix(s, ".m4v"):
		return "video/mp4"
	case strings.HasSuffix(s, ".webm"):
		return "video/webm"
	case strings.HasSuffix(s, ".mov"):
		return "video/quicktime"
	case strings.HasSuffix(s, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(s, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(s, ".m4a"):
		return "audio/mp4"
	case strings.HasSuffix(s, ".ogg"):
		return "audio/ogg"
	default:
		return ""
	}
}

// MemoryStore keeps objects in process. Used when no bucket is configured and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	baseURL string
	objects map[string][]byte
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string][]byte)}
}

func (m *MemoryStore) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[key] = b
	m.mu.Unlock()
	return m.PublicURL(key), nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return ErrObjectNotFound
	}
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) PublicURL(key string) string {
	return m.baseURL + "/" + key
}

func (m *MemoryStore) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, m.baseURL+"/") {
		return "", false
	}
	return strings.TrimPrefix(url, m.baseURL+"/"), true
}

// Object returns the stored bytes for key and their content type.
func (m *MemoryStore) Object(key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, "", false
	}
	ct := contentTypeForKey(key)
	if ct == "" {
		ct = "application/octet-stream"
	}
	return b, ct, true
}

// Has reports whether key is stored.
func (m *MemoryStore) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}
