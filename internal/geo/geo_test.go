package geo

import (
	"encoding/json"
	"math"
	"testing"
)

func TestDistanceMilesSymmetricAndZero(t *testing.T) {
	points := []Coordinates{
		{Lat: 40.70, Lng: -74.00},
		{Lat: 34.0522, Lng: -118.2437},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 0, Lng: 0},
	}
	for _, a := range points {
		if d := DistanceMiles(a, a); d != 0 {
			t.Fatalf("distance(%v,%v) = %v, want 0", a, a, d)
		}
		for _, b := range points {
			ab, ba := DistanceMiles(a, b), DistanceMiles(b, a)
			if math.Abs(ab-ba) > 1e-9 {
				t.Fatalf("asymmetric distance %v vs %v", ab, ba)
			}
		}
	}
}

func TestDistanceMilesKnownPair(t *testing.T) {
	d := DistanceMiles(Coordinates{Lat: 40.71, Lng: -74.01}, Coordinates{Lat: 40.70, Lng: -74.00})
	if math.Abs(d-0.9) > 0.2 {
		t.Fatalf("distance = %.3f, want about 0.9", d)
	}

	// New York to Los Angeles is roughly 2445 miles.
	d = DistanceMiles(Coordinates{Lat: 40.7128, Lng: -74.0060}, Coordinates{Lat: 34.0522, Lng: -118.2437})
	if math.Abs(d-2445) > 15 {
		t.Fatalf("NYC-LA distance = %.1f", d)
	}
}

func TestLocationDecodesBothEncodings(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind Kind
		want Coordinates
	}{
		{"raw", `{"latitude":40.7,"longitude":-74}`, KindRawCoordinate, Coordinates{40.7, -74}},
		{"geopoint export", `{"_latitude":51.5,"_longitude":-0.12}`, KindRawCoordinate, Coordinates{51.5, -0.12}},
		{"resolved", `{"location":"Brooklyn, NY, USA","coords":{"lat":40.67,"lng":-73.94},"place_id":"abc"}`, KindResolvedPlace, Coordinates{40.67, -73.94}},
		{"zero coordinate", `{"latitude":0,"longitude":0}`, KindRawCoordinate, Coordinates{0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var l Location
			if err := json.Unmarshal([]byte(tc.raw), &l); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if l.Kind() != tc.kind {
				t.Fatalf("kind = %v, want %v", l.Kind(), tc.kind)
			}
			if got := Normalize(l); got != tc.want {
				t.Fatalf("normalize = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLocationUnknownShapeFallsBack(t *testing.T) {
	for _, raw := range []string{`null`, `{"city":"Paris"}`, `"somewhere"`, `{"latitude":200,"longitude":10}`} {
		var l Location
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if l.Valid() {
			t.Fatalf("%s decoded as valid", raw)
		}
		if got := Normalize(l); got != DefaultCenter {
			t.Fatalf("%s normalized to %v", raw, got)
		}
	}
}

func TestLocationKeepsEncodingOnWrite(t *testing.T) {
	resolved := ResolvedPlace("Austin, TX, USA", "pid", Coordinates{Lat: 30.27, Lng: -97.74})
	b, err := json.Marshal(resolved)
	if err != nil {
		t.Fatal(err)
	}
	var back Location
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.Kind() != KindResolvedPlace || back.DisplayName() != "Austin, TX, USA" || back.PlaceID() != "pid" {
		t.Fatalf("round trip lost data: %+v", back)
	}

	raw := RawCoordinate(1.5, 2.5)
	v, err := raw.Value()
	if err != nil {
		t.Fatal(err)
	}
	var scanned Location
	if err := scanned.Scan(v); err != nil {
		t.Fatal(err)
	}
	if scanned.Kind() != KindRawCoordinate || Normalize(scanned) != (Coordinates{1.5, 2.5}) {
		t.Fatalf("scan lost data: %+v", scanned)
	}
}
