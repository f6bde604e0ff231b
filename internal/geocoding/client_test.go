package geocoding

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jammr/backend/internal/geo"
	"jammr/backend/internal/logger"
)

type fakeAPI struct {
	hits         atomic.Int32
	reverseDelay time.Duration
	failReverse  bool
	failPlaces   bool
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/place/autocomplete/json", func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if f.failPlaces {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		q := r.URL.Query().Get("input")
		var preds []string
		for i := 0; i < 7; i++ {
			preds = append(preds, fmt.Sprintf(`{"description":"%s %d","place_id":"p%d"}`, q, i, i))
		}
		fmt.Fprintf(w, `{"status":"OK","predictions":[%s]}`, strings.Join(preds, ","))
	})
	mux.HandleFunc("/place/details/json", func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if r.URL.Query().Get("place_id") == "missing" {
			fmt.Fprint(w, `{"status":"NOT_FOUND"}`)
			return
		}
		fmt.Fprint(w, `{"status":"OK","result":{"formatted_address":"Brooklyn, NY, USA","place_id":"p1","geometry":{"location":{"lat":40.67,"lng":-73.94}}}}`)
	})
	mux.HandleFunc("/reverse", func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if f.reverseDelay > 0 {
			time.Sleep(f.reverseDelay)
		}
		if f.failReverse {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		if r.URL.Query().Get("latitude") == "0" {
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, `{"city":"Austin","principalSubdivision":"Texas","countryName":"United States of America"}`)
	})
	mux.HandleFunc("/forward", func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		fmt.Fprint(w, `{"results":[{"latitude":51.5,"longitude":-0.12}]}`)
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAPI, timeout, debounce time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	return NewClient(logger.Nop(), Options{
		PlacesBaseURL:     srv.URL + "/place",
		PlacesAPIKey:      "k",
		ReverseGeocodeURL: srv.URL + "/reverse",
		ForwardGeocodeURL: srv.URL + "/forward",
		Timeout:           timeout,
		Debounce:          debounce,
	})
}

func TestSuggestShortQueryMakesNoCall(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, time.Second, 0)

	for _, q := range []string{"", "a", " b "} {
		if got := c.Suggest(context.Background(), q); len(got) != 0 {
			t.Fatalf("Suggest(%q) = %v", q, got)
		}
	}
	if api.hits.Load() != 0 {
		t.Fatalf("expected no HTTP calls, got %d", api.hits.Load())
	}
}

func TestSuggestCapsAtFive(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, time.Second, 0)

	got := c.Suggest(context.Background(), "Brook")
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	if got[0].PlaceID != "p0" || got[0].DisplayName != "Brook 0" {
		t.Fatalf("first = %+v", got[0])
	}
}

func TestSuggestFailureIsEmpty(t *testing.T) {
	api := &fakeAPI{failPlaces: true}
	c := newTestClient(t, api, time.Second, 0)

	got := c.Suggest(context.Background(), "Brook")
	if got == nil || len(got) != 0 {
		t.Fatalf("got %v, want empty non-nil slice", got)
	}
}

func TestResolve(t *testing.T) {
	c := newTestClient(t, &fakeAPI{}, time.Second, 0)

	data, ok := c.Resolve(context.Background(), "p1")
	if !ok {
		t.Fatal("resolve failed")
	}
	loc := data.ToLocation()
	if loc.Kind() != geo.KindResolvedPlace || loc.DisplayName() != "Brooklyn, NY, USA" {
		t.Fatalf("location = %+v", loc)
	}
	if geo.Normalize(loc) != (geo.Coordinates{Lat: 40.67, Lng: -73.94}) {
		t.Fatalf("coords = %v", geo.Normalize(loc))
	}

	if _, ok := c.Resolve(context.Background(), "missing"); ok {
		t.Fatal("expected missing place to be unavailable")
	}
}

func TestReverseGeocode(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, time.Second, 0)

	if got := c.ReverseGeocode(context.Background(), 30.27, -97.74); got != "Austin, Texas, United States of America" {
		t.Fatalf("got %q", got)
	}
	// cached
	before := api.hits.Load()
	c.ReverseGeocode(context.Background(), 30.27, -97.74)
	if api.hits.Load() != before {
		t.Fatal("second lookup was not served from cache")
	}

	if got := c.ReverseGeocode(context.Background(), 0, 0); got != "0.00, 0.00" {
		t.Fatalf("empty answer: got %q", got)
	}
}

func TestReverseGeocodeFallbacks(t *testing.T) {
	failing := newTestClient(t, &fakeAPI{failReverse: true}, time.Second, 0)
	if got := failing.ReverseGeocode(context.Background(), 40.7128, -74.006); got != "40.71, -74.01" {
		t.Fatalf("error fallback = %q", got)
	}

	slow := newTestClient(t, &fakeAPI{reverseDelay: 200 * time.Millisecond}, 20*time.Millisecond, 0)
	if got := slow.ReverseGeocode(context.Background(), 12.346, 67.891); got != "12.35, 67.89" {
		t.Fatalf("timeout fallback = %q", got)
	}
}

func TestGeocode(t *testing.T) {
	c := newTestClient(t, &fakeAPI{}, time.Second, 0)
	coords, ok := c.Geocode(context.Background(), "London")
	if !ok || coords != (geo.Coordinates{Lat: 51.5, Lng: -0.12}) {
		t.Fatalf("coords=%v ok=%v", coords, ok)
	}
	coords, ok = c.Geocode(context.Background(), "  ")
	if ok || coords != geo.DefaultCenter {
		t.Fatalf("blank name: coords=%v ok=%v", coords, ok)
	}
}

func TestSuggestDebouncedSupersedesOlderQuery(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, time.Second, 50*time.Millisecond)

	var wg sync.WaitGroup
	var firstStale bool
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstStale = c.SuggestDebounced(context.Background(), "user-1", "Bro")
	}()

	time.Sleep(10 * time.Millisecond)
	got, stale := c.SuggestDebounced(context.Background(), "user-1", "Brooklyn")
	wg.Wait()

	if !firstStale {
		t.Fatal("older query was not superseded")
	}
	if stale || len(got) == 0 || !strings.HasPrefix(got[0].DisplayName, "Brooklyn") {
		t.Fatalf("latest query: stale=%v got=%v", stale, got)
	}
	if api.hits.Load() != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", api.hits.Load())
	}
}

func TestDebouncerKeysAreIndependent(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var ran atomic.Int32
	var wg sync.WaitGroup
	for _, key := range []string{"a", "b"} {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			if stale := d.Do(context.Background(), key, func(context.Context) { ran.Add(1) }); stale {
				t.Errorf("key %s reported stale", key)
			}
		}(key)
	}
	wg.Wait()
	if ran.Load() != 2 {
		t.Fatalf("ran = %d", ran.Load())
	}
}
