package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"jammr/backend/internal/models"
)

func TestMediaKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	cases := []struct {
		kind models.MediaKind
		file string
		want string
	}{
		{models.MediaProfileImage, "me.png", "profile-images/u1/1700000000123-me.png"},
		{models.MediaGallery, "gig.jpg", "gallery-images/u1/1700000000123-gig.jpg"},
		{models.MediaVideo, "../../etc/solo.mp4", "video-clips/u1/1700000000123-solo.mp4"},
		{models.MediaAudio, "", "audio-clips/u1/1700000000123-upload"},
	}
	for _, tc := range cases {
		got, err := MediaKey(tc.kind, "u1", tc.file, now)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("MediaKey(%s, %q) = %q, want %q", tc.kind, tc.file, got, tc.want)
		}
		if KeyOwner(got) != "u1" {
			t.Errorf("owner of %q = %q", got, KeyOwner(got))
		}
	}
	if _, err := MediaKey("poster", "u1", "x", now); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore("http://media.local/")
	ctx := context.Background()

	url, err := s.Upload(ctx, "gallery-images/u1/1-a.png", strings.NewReader("png"))
	if err != nil {
		t.Fatal(err)
	}
	if url != "http://media.local/gallery-images/u1/1-a.png" {
		t.Fatalf("url = %q", url)
	}
	key, ok := s.KeyFromURL(url)
	if !ok || key != "gallery-images/u1/1-a.png" {
		t.Fatalf("key = %q ok=%v", key, ok)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, key); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
	if _, ok := s.KeyFromURL("https://elsewhere/x"); ok {
		t.Fatal("foreign URL mapped to a key")
	}
}

func TestContentTypeForKey(t *testing.T) {
	if got := contentTypeForKey("audio-clips/u/1-riff.MP3"); got != "audio/mpeg" {
		t.Fatalf("got %q", got)
	}
	if got := contentTypeForKey("x.bin"); got != "" {
		t.Fatalf("got %q", got)
	}
}
