package geo

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultCenter is used whenever a location cannot be interpreted (New York City).
var DefaultCenter = Coordinates{Lat: 40.7128, Lng: -74.0060}

// Kind tells which of the two stored encodings a Location carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindRawCoordinate
	KindResolvedPlace
)

func (k Kind) String() string {
	switch k {
	case KindRawCoordinate:
		return "raw_coordinate"
	case KindResolvedPlace:
		return "resolved_place"
	default:
		return "unknown"
	}
}

// Location is the profile location field. Older profiles store a bare
// coordinate pair, newer ones a resolved place with a display name and a
// place id. Both are read everywhere; consumers go through Normalize.
type Location struct {
	kind        Kind
	coords      Coordinates
	displayName string
	placeID     string
}

// RawCoordinate builds a bare coordinate location.
func RawCoordinate(lat, lng float64) Location {
	return Location{kind: KindRawCoordinate, coords: Coordinates{Lat: lat, Lng: lng}}
}

// ResolvedPlace builds a location picked from place suggestions.
func ResolvedPlace(displayName, placeID string, coords Coordinates) Location {
	return Location{
		kind:        KindResolvedPlace,
		coords:      coords,
		displayName: strings.TrimSpace(displayName),
		placeID:     strings.TrimSpace(placeID),
	}
}

func (l Location) Kind() Kind { return l.kind }

// Valid reports whether the location carries usable coordinates.
func (l Location) Valid() bool {
	return l.kind != KindUnknown && l.coords.InRange()
}

// DisplayName is empty for raw coordinates.
func (l Location) DisplayName() string { return l.displayName }

func (l Location) PlaceID() string { return l.placeID }

// Normalize returns the coordinates used for distance calculations.
// Locations that cannot be interpreted silently map to DefaultCenter.
func Normalize(l Location) Coordinates {
	if !l.Valid() {
		return DefaultCenter
	}
	return l.coords
}

type rawCoordinateJSON struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type resolvedPlaceJSON struct {
	Location string      `json:"location"`
	Coords   Coordinates `json:"coords"`
	PlaceID  string      `json:"place_id"`
}

// locationProbe accepts every known shape. Pointers distinguish a missing
// field from a zero coordinate.
type locationProbe struct {
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	ULatitude  *float64 `json:"_latitude"`
	ULongitude *float64 `json:"_longitude"`
	Location   *string  `json:"location"`
	PlaceID    string   `json:"place_id"`
	Coords     *struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"coords"`
}

func (l Location) MarshalJSON() ([]byte, error) {
	switch l.kind {
	case KindRawCoordinate:
		return json.Marshal(rawCoordinateJSON{Latitude: l.coords.Lat, Longitude: l.coords.Lng})
	case KindResolvedPlace:
		return json.Marshal(resolvedPlaceJSON{Location: l.displayName, Coords: l.coords, PlaceID: l.placeID})
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON never fails on an unrecognized shape; it yields KindUnknown.
func (l *Location) UnmarshalJSON(data []byte) error {
	*l = Location{}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	var p locationProbe
	if err := json.Unmarshal(data, &p); err != nil {
		return nil
	}

	switch {
	case p.Coords != nil && p.Coords.Lat != nil && p.Coords.Lng != nil:
		name := ""
		if p.Location != nil {
			name = *p.Location
		}
		*l = ResolvedPlace(name, p.PlaceID, Coordinates{Lat: *p.Coords.Lat, Lng: *p.Coords.Lng})
	case p.Latitude != nil && p.Longitude != nil:
		*l = RawCoordinate(*p.Latitude, *p.Longitude)
	case p.ULatitude != nil && p.ULongitude != nil:
		*l = RawCoordinate(*p.ULatitude, *p.ULongitude)
	}
	return nil
}

// GormDataType stores the location as a JSON document column.
func (Location) GormDataType() string { return "json" }

func (l *Location) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*l = Location{}
		return nil
	case []byte:
		return l.UnmarshalJSON(v)
	case string:
		return l.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("geo: cannot scan %T into Location", value)
	}
}

func (l Location) Value() (driver.Value, error) {
	if l.kind == KindUnknown {
		return nil, nil
	}
	b, err := l.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
