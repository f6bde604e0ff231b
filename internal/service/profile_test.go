package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"jammr/backend/internal/apperr"
	"jammr/backend/internal/geo"
	"jammr/backend/internal/models"
)

func TestSaveRequiresLocation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.profiles.Save(ctx, "u1", ProfileInput{Name: strPtr("Ann")})
	if !errors.Is(err, apperr.ErrLocationRequired) {
		t.Fatalf("err = %v, want location required", err)
	}
	unknown := geo.Location{}
	_, err = env.profiles.Save(ctx, "u1", ProfileInput{Name: strPtr("Ann"), Location: &unknown})
	if !errors.Is(err, apperr.ErrLocationRequired) {
		t.Fatalf("err = %v, want location required", err)
	}
	if ok, _ := env.profiles.Exists(ctx, "u1"); ok {
		t.Fatal("nothing should have been written")
	}
}

func TestSaveMergesAndKeepsCreatedAt(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	env.profiles.now = func() time.Time { return first }
	genres := []string{"rock", "Blues", "Rock"}
	p, err := env.profiles.Save(ctx, "u1", ProfileInput{
		Name:       strPtr("Ann"),
		Instrument: strPtr("guitar"),
		Genres:     &genres,
		Location:   locPtr(40.7, -74),
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Instrument != "Guitar" || len(p.Genres) != 2 || p.Genres[0] != "Rock" {
		t.Fatalf("canonicalized profile = %+v", p)
	}

	env.profiles.now = func() time.Time { return first.Add(time.Hour) }
	if _, err := env.profiles.Save(ctx, "u1", ProfileInput{Bio: strPtr("  hi  ")}); err != nil {
		t.Fatal(err)
	}

	got, err := env.profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Bio != "hi" || got.Name != "Ann" || got.Instrument != "Guitar" {
		t.Fatalf("merge lost fields: %+v", got)
	}
	if !got.CreatedAt.Equal(first) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, first)
	}
}

func TestSaveRejectsUnknownVocabulary(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.profiles.Save(context.Background(), "u1", ProfileInput{
		Name:       strPtr("Ann"),
		Instrument: strPtr("Theremin"),
		Location:   locPtr(40.7, -74),
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestUploadAndRemoveMedia(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	saveProfile(t, env, "u1", "Guitar", []string{"Rock"}, 40.7, -74)

	url, p, err := env.profiles.Upload(ctx, "u1", models.MediaGallery, "../shot.png", strings.NewReader("png"))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.ImageGallery) != 1 || p.ImageGallery[0] != url {
		t.Fatalf("gallery = %v", p.ImageGallery)
	}
	key, ok := env.blobs.KeyFromURL(url)
	if !ok || !env.blobs.Has(key) || !strings.HasPrefix(key, "gallery-images/u1/") {
		t.Fatalf("blob key = %q", key)
	}

	p, err = env.profiles.RemoveMedia(ctx, "u1", models.MediaGallery, url)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.ImageGallery) != 0 || env.blobs.Has(key) {
		t.Fatalf("media not removed: %v", p.ImageGallery)
	}
}

func TestProfileImageIsReplaced(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	saveProfile(t, env, "u1", "Guitar", nil, 40.7, -74)

	if _, err := env.profiles.AddMedia(ctx, "u1", models.MediaProfileImage, "https://x/a.png"); err != nil {
		t.Fatal(err)
	}
	p, err := env.profiles.AddMedia(ctx, "u1", models.MediaProfileImage, "https://x/b.png")
	if err != nil {
		t.Fatal(err)
	}
	if p.ImageURL != "https://x/b.png" {
		t.Fatalf("image = %q", p.ImageURL)
	}
	p, err = env.profiles.RemoveMedia(ctx, "u1", models.MediaProfileImage, "https://x/a.png")
	if err != nil {
		t.Fatal(err)
	}
	if p.ImageURL != "https://x/b.png" {
		t.Fatalf("removing a stale url cleared the image: %q", p.ImageURL)
	}
}
