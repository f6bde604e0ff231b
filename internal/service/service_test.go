package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"jammr/backend/internal/database"
	"jammr/backend/internal/geo"
	"jammr/backend/internal/hub"
	"jammr/backend/internal/logger"
	"jammr/backend/internal/models"
	"jammr/backend/internal/storage"
	"jammr/backend/internal/vocab"
	"jammr/backend/pkg/jwt"
)

type testEnv struct {
	profiles  *ProfileService
	discovery *DiscoveryService
	requests  *RequestService
	chats     *ChatService
	identity  *IdentityService
	blobs     *storage.MemoryStore
	hub       *hub.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenInMemory(name)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := logger.Nop()
	v := vocab.Default()
	h := hub.NewHub()
	blobs := storage.NewMemoryStore("https://media.test")

	env := &testEnv{blobs: blobs, hub: h}
	env.profiles = NewProfileService(db, log, v, blobs)
	env.chats = NewChatService(db, log, h, nil, env.profiles)
	env.requests = NewRequestService(db, log, env.profiles, env.chats)
	env.discovery = NewDiscoveryService(db, log, v, env.requests, 25)
	env.identity = NewIdentityService(db, log, jwt.NewIssuer("secret", time.Hour), nil, "client-id")
	return env
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func locPtr(lat, lng float64) *geo.Location {
	l := geo.RawCoordinate(lat, lng)
	return &l
}

// saveProfile stores a visible profile at (lat, lng).
func saveProfile(t *testing.T, env *testEnv, userID, instrument string, genres []string, lat, lng float64) *models.Profile {
	t.Helper()
	p, err := env.profiles.Save(context.Background(), userID, ProfileInput{
		Name:       strPtr(userID),
		Instrument: strPtr(instrument),
		Genres:     &genres,
		SkillLevel: strPtr("Advanced"),
		Location:   locPtr(lat, lng),
		Visibility: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("save profile %s: %v", userID, err)
	}
	return p
}
