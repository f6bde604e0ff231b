package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jammr/backend/internal/geo"
	"jammr/backend/internal/logger"
)

const (
	minQueryLength  = 2
	maxSuggestions  = 5
	reverseCacheTTL = 24 * time.Hour
)

// Suggestion is an autocomplete hit. Coordinates are resolved later with Resolve.
type Suggestion struct {
	DisplayName string `json:"display_name" example:"Brooklyn, NY, USA"`
	PlaceID     string `json:"place_id" example:"ChIJCSF8lBZEwokRhngABHRcdoI"`
}

// LocationData is a fully resolved place.
type LocationData struct {
	DisplayName string          `json:"location" example:"Brooklyn, NY, USA"`
	Coords      geo.Coordinates `json:"coords"`
	PlaceID     string          `json:"place_id,omitempty"`
}

// ToLocation converts a resolved place into the profile location encoding.
func (d LocationData) ToLocation() geo.Location {
	return geo.ResolvedPlace(d.DisplayName, d.PlaceID, d.Coords)
}

type Options struct {
	PlacesBaseURL     string
	PlacesAPIKey      string
	ReverseGeocodeURL string
	ForwardGeocodeURL string
	Timeout           time.Duration
	Debounce          time.Duration
	HTTPClient        *http.Client
	Cache             Cache
}

// Client talks to the places and geocoding APIs. None of its lookups
// return errors; failures degrade to a safe default and are logged.
type Client struct {
	log       *logger.Logger
	http      *http.Client
	opts      Options
	cache     Cache
	debouncer *Debouncer
}

func NewClient(log *logger.Logger, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache()
	}
	opts.PlacesBaseURL = strings.TrimRight(opts.PlacesBaseURL, "/")
	return &Client{
		log:       log.With("service", "GeocodingClient"),
		http:      httpClient,
		opts:      opts,
		cache:     cache,
		debouncer: NewDebouncer(opts.Debounce),
	}
}

type autocompleteResponse struct {
	Status      string `json:"status"`
	Predictions []struct {
		Description string `json:"description"`
		PlaceID     string `json:"place_id"`
	} `json:"predictions"`
}

// Suggest returns at most five place suggestions for query. Queries shorter
// than two characters return nothing without a network call.
func (c *Client) Suggest(ctx context.Context, query string) []Suggestion {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minQueryLength {
		return []Suggestion{}
	}

	q := url.Values{}
	q.Set("input", query)
	q.Set("key", c.opts.PlacesAPIKey)

	var resp autocompleteResponse
	if err := c.getJSON(ctx, c.opts.PlacesBaseURL+"/autocomplete/json?"+q.Encode(), &resp); err != nil {
		c.log.Warn("place autocomplete failed", "error", err)
		return []Suggestion{}
	}
	if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
		c.log.Warn("place autocomplete rejected", "status", resp.Status)
		return []Suggestion{}
	}

	out := make([]Suggestion, 0, maxSuggestions)
	for _, p := range resp.Predictions {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, Suggestion{DisplayName: p.Description, PlaceID: p.PlaceID})
	}
	return out
}

// SuggestDebounced is Suggest behind the per-key debouncer. stale is true when
// a newer query for the same key superseded this one.
func (c *Client) SuggestDebounced(ctx context.Context, key, query string) (suggestions []Suggestion, stale bool) {
	stale = c.debouncer.Do(ctx, key, func(ctx context.Context) {
		suggestions = c.Suggest(ctx, query)
	})
	if stale {
		return []Suggestion{}, true
	}
	return suggestions, false
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		FormattedAddress string `json:"formatted_address"`
		PlaceID          string `json:"place_id"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"result"`
}

// Resolve fetches the address and coordinates of a suggested place.
func (c *Client) Resolve(ctx context.Context, placeID string) (*LocationData, bool) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, false
	}

	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "formatted_address,geometry,place_id")
	q.Set("key", c.opts.PlacesAPIKey)

	var resp detailsResponse
	if err := c.getJSON(ctx, c.opts.PlacesBaseURL+"/details/json?"+q.Encode(), &resp); err != nil {
		c.log.Warn("place details failed", "place_id", placeID, "error", err)
		return nil, false
	}
	if resp.Status != "OK" {
		c.log.Warn("place details rejected", "place_id", placeID, "status", resp.Status)
		return nil, false
	}

	coords := geo.Coordinates{Lat: resp.Result.Geometry.Location.Lat, Lng: resp.Result.Geometry.Location.Lng}
	if !coords.InRange() {
		return nil, false
	}
	id := resp.Result.PlaceID
	if id == "" {
		id = placeID
	}
	return &LocationData{DisplayName: resp.Result.FormattedAddress, Coords: coords, PlaceID: id}, true
}

type reverseResponse struct {
	City                 string `json:"city"`
	Locality             string `json:"locality"`
	PrincipalSubdivision string `json:"principalSubdivision"`
	CountryName          string `json:"countryName"`
}

// ReverseGeocode returns "City, State, Country", or "lat, lng" with two
// decimals when the lookup fails or yields nothing.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) string {
	fallback := fmt.Sprintf("%.2f, %.2f", lat, lng)
	key := fmt.Sprintf("reverse:%.4f,%.4f", lat, lng)
	if v, ok := c.cache.Get(ctx, key); ok {
		return v
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("localityLanguage", "en")

	var resp reverseResponse
	if err := c.getJSON(ctx, c.opts.ReverseGeocodeURL+"?"+q.Encode(), &resp); err != nil {
		c.log.Warn("reverse geocode failed", "lat", lat, "lng", lng, "error", err)
		return fallback
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{resp.City, resp.PrincipalSubdivision, resp.CountryName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return fallback
	}

	name := strings.Join(parts, ", ")
	c.cache.Set(ctx, key, name, reverseCacheTTL)
	return name
}

type forwardResponse struct {
	Results []struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

// Geocode turns a free-text place name into coordinates, falling back to
// geo.DefaultCenter. ok is false when the fallback was used.
func (c *Client) Geocode(ctx context.Context, placeName string) (coords geo.Coordinates, ok bool) {
	placeName = strings.TrimSpace(placeName)
	if placeName == "" || c.opts.ForwardGeocodeURL == "" {
		return geo.DefaultCenter, false
	}

	q := url.Values{}
	q.Set("query", placeName)
	q.Set("localityLanguage", "en")

	var resp forwardResponse
	if err := c.getJSON(ctx, c.opts.ForwardGeocodeURL+"?"+q.Encode(), &resp); err != nil {
		c.log.Warn("forward geocode failed", "error", err)
		return geo.DefaultCenter, false
	}
	if len(resp.Results) == 0 {
		return geo.DefaultCenter, false
	}
	coords = geo.Coordinates{Lat: resp.Results[0].Latitude, Lng: resp.Results[0].Longitude}
	if !coords.InRange() {
		return geo.DefaultCenter, false
	}
	return coords, true
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		return fmt.Errorf("unexpected status %d", res.StatusCode)
	}
	return json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(out)
}
