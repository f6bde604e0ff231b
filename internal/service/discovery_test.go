package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"jammr/backend/internal/apperr"
	"jammr/backend/internal/geo"
	"jammr/backend/internal/models"
)

var viewerPoint = &geo.Coordinates{Lat: 40.71, Lng: -74.01}

func ids(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Profile.UserID
	}
	return out
}

func TestDiscoverInstrumentFilterAndDistance(t *testing.T) {
	env := newTestEnv(t)
	saveProfile(t, env, "guitarist", "Guitar", []string{"Rock", "Blues"}, 40.70, -74.00)
	ctx := context.Background()

	got, err := env.discovery.Discover(ctx, "viewer", DiscoveryFilter{
		Instrument: "Guitar", RadiusMiles: 25, Reference: viewerPoint,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Profile.UserID != "guitarist" {
		t.Fatalf("got %v", ids(got))
	}
	if math.Abs(got[0].DistanceMiles-0.9) > 0.2 {
		t.Fatalf("distance = %.3f", got[0].DistanceMiles)
	}

	got, err = env.discovery.Discover(ctx, "viewer", DiscoveryFilter{
		Instrument: "Drums", RadiusMiles: UnboundedRadius, Reference: viewerPoint,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("drums filter returned %v", ids(got))
	}
}

func TestDiscoverExcludesHiddenAndSelf(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	saveProfile(t, env, "viewer", "Bass", nil, 40.71, -74.01)
	saveProfile(t, env, "shown", "Drums", nil, 40.72, -74.00)
	saveProfile(t, env, "hidden", "Drums", nil, 40.72, -74.00)
	if _, err := env.profiles.Save(ctx, "hidden", ProfileInput{Visibility: boolPtr(false)}); err != nil {
		t.Fatal(err)
	}

	got, err := env.discovery.Discover(ctx, "viewer", DiscoveryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Profile.UserID != "shown" {
		t.Fatalf("got %v", ids(got))
	}
}

func TestDiscoverRadiusSentinel(t *testing.T) {
	env := newTestEnv(t)
	saveProfile(t, env, "near", "Piano", nil, 40.70, -74.00)
	saveProfile(t, env, "la", "Piano", nil, 34.05, -118.24)
	ctx := context.Background()

	got, err := env.discovery.Discover(ctx, "viewer", DiscoveryFilter{RadiusMiles: 25, Reference: viewerPoint})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Profile.UserID != "near" {
		t.Fatalf("25mi: %v", ids(got))
	}

	got, err = env.discovery.Discover(ctx, "viewer", DiscoveryFilter{RadiusMiles: UnboundedRadius, Reference: viewerPoint})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Profile.UserID != "near" || got[1].Profile.UserID != "la" {
		t.Fatalf("unbounded: %v", ids(got))
	}
}

func TestDiscoverMarksRequested(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	saveProfile(t, env, "viewer", "Bass", nil, 40.71, -74.01)
	saveProfile(t, env, "a", "Drums", nil, 40.70, -74.00)
	saveProfile(t, env, "b", "Drums", nil, 40.70, -74.01)
	if _, err := env.requests.Send(ctx, "viewer", "a"); err != nil {
		t.Fatal(err)
	}

	got, err := env.discovery.Discover(ctx, "viewer", DiscoveryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range got {
		if c.Requested != (c.Profile.UserID == "a") {
			t.Fatalf("%s requested = %v", c.Profile.UserID, c.Requested)
		}
	}
}

func TestDiscoverBackendFailureIsNotEmpty(t *testing.T) {
	env := newTestEnv(t)
	sqlDB, err := env.discovery.db.DB()
	if err != nil {
		t.Fatal(err)
	}
	_ = sqlDB.Close()

	_, err = env.discovery.Discover(context.Background(), "viewer", DiscoveryFilter{Reference: viewerPoint})
	if !errors.Is(err, apperr.ErrBackendUnavailable) {
		t.Fatalf("err = %v, want backend unavailable", err)
	}
}

func TestRankSortModesAndSearch(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id string, lat float64, genres []string, age time.Duration, bio string) models.Profile {
		return models.Profile{
			UserID:     id,
			Name:       id,
			Instrument: "Guitar",
			Genres:     genres,
			Bio:        bio,
			Location:   geo.RawCoordinate(lat, -74.00),
			Visibility: true,
			CreatedAt:  base.Add(-age),
		}
	}
	ref := geo.Coordinates{Lat: 40.70, Lng: -74.00}
	profiles := []models.Profile{
		mk("far-both", 40.80, []string{"Rock", "Jazz"}, 3*time.Hour, "session player"),
		mk("near-rock", 40.71, []string{"Rock"}, 2*time.Hour, "loves jazz fusion"),
		mk("mid-jazz", 40.75, []string{"Jazz"}, time.Hour, ""),
	}

	byDistance := Rank(ref, profiles, DiscoveryFilter{RadiusMiles: UnboundedRadius})
	if got := ids(byDistance); got[0] != "near-rock" || got[1] != "mid-jazz" || got[2] != "far-both" {
		t.Fatalf("distance order = %v", got)
	}

	recent := Rank(ref, profiles, DiscoveryFilter{RadiusMiles: UnboundedRadius, Sort: SortRecent})
	if got := ids(recent); got[0] != "mid-jazz" || got[2] != "far-both" {
		t.Fatalf("recent order = %v", got)
	}

	best := Rank(ref, profiles, DiscoveryFilter{
		RadiusMiles: UnboundedRadius, Sort: SortBestMatch, Genres: []string{"Rock", "Jazz"},
	})
	if got := ids(best); got[0] != "far-both" || got[1] != "near-rock" {
		t.Fatalf("best match order = %v", got)
	}

	// without a genre filter best match falls back to distance
	noGenres := Rank(ref, profiles, DiscoveryFilter{RadiusMiles: UnboundedRadius, Sort: SortBestMatch})
	if ids(noGenres)[0] != "near-rock" {
		t.Fatalf("best match without genres = %v", ids(noGenres))
	}

	search := Rank(ref, profiles, DiscoveryFilter{RadiusMiles: UnboundedRadius, Search: "JAZZ"})
	if got := ids(search); len(got) != 3 {
		t.Fatalf("search jazz = %v", got)
	}
	search = Rank(ref, profiles, DiscoveryFilter{RadiusMiles: UnboundedRadius, Search: "session"})
	if got := ids(search); len(got) != 1 || got[0] != "far-both" {
		t.Fatalf("search session = %v", got)
	}
}

func TestParseSortMode(t *testing.T) {
	cases := map[string]SortMode{
		"":           SortDistance,
		"Recent":     SortRecent,
		"best_match": SortBestMatch,
		"nonsense":   SortDistance,
	}
	for in, want := range cases {
		if got := ParseSortMode(in); got != want {
			t.Errorf("ParseSortMode(%q) = %q, want %q", in, got, want)
		}
	}
}
