package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"jammr/backend/internal/apperr"
	"jammr/backend/internal/geo"
	"jammr/backend/internal/logger"
	"jammr/backend/internal/models"
	"jammr/backend/internal/vocab"
)

const (
	// CandidateLimit caps how many visible profiles one discovery call scans.
	// There is no geo index; profiles beyond this are never considered.
	CandidateLimit = 50

	// UnboundedRadius disables the distance cutoff.
	UnboundedRadius = 999999.0
)

var tracer = otel.Tracer("jammr/backend/internal/service")

type SortMode string

const (
	SortDistance  SortMode = "distance"
	SortRecent    SortMode = "recent"
	SortBestMatch SortMode = "best_match"
)

// ParseSortMode maps user input to a mode, defaulting to distance.
func ParseSortMode(s string) SortMode {
	switch SortMode(strings.ToLower(strings.TrimSpace(s))) {
	case SortRecent:
		return SortRecent
	case SortBestMatch, "best-match", "match":
		return SortBestMatch
	default:
		return SortDistance
	}
}

type DiscoveryFilter struct {
	Instrument  string
	Genres      []string
	SkillLevel  string
	RadiusMiles float64
	Search      string
	Sort        SortMode
	// Reference overrides the viewer's own location.
	Reference *geo.Coordinates
}

// Candidate is a ranked discovery result.
type Candidate struct {
	Profile       models.Profile
	DistanceMiles float64
	GenreOverlap  int
	// Requested is true when the viewer already sent this user a request.
	Requested bool
}

type DiscoveryService struct {
	db            *gorm.DB
	log           *logger.Logger
	vocab         *vocab.Vocabulary
	requests      *RequestService
	defaultRadius float64
}

func NewDiscoveryService(db *gorm.DB, log *logger.Logger, v *vocab.Vocabulary, requests *RequestService, defaultRadius float64) *DiscoveryService {
	if defaultRadius <= 0 {
		defaultRadius = 25
	}
	return &DiscoveryService{
		db:            db,
		log:           log.With("service", "DiscoveryService"),
		vocab:         v,
		requests:      requests,
		defaultRadius: defaultRadius,
	}
}

// ReferencePoint picks the coordinate discovery measures from: the explicit
// override, else the viewer's own profile location, else geo.DefaultCenter.
func (s *DiscoveryService) ReferencePoint(ctx context.Context, viewerID string, override *geo.Coordinates) (geo.Coordinates, error) {
	if override != nil && override.InRange() {
		return *override, nil
	}
	if viewerID == "" {
		return geo.DefaultCenter, nil
	}
	var p models.Profile
	err := s.db.WithContext(ctx).Select("user_id", "location").Where("user_id = ?", viewerID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return geo.DefaultCenter, nil
	}
	if err != nil {
		return geo.Coordinates{}, apperr.Unavailable(err)
	}
	return geo.Normalize(p.Location), nil
}

// Discover returns visible profiles other than the viewer's that pass f,
// ranked by f.Sort. A storage failure is reported as apperr.ErrBackendUnavailable,
// never as an empty result.
func (s *DiscoveryService) Discover(ctx context.Context, viewerID string, f DiscoveryFilter) (_ []Candidate, err error) {
	ctx, span := tracer.Start(ctx, "DiscoveryService.Discover")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "discovery failed")
		}
		span.End()
	}()

	ref, err := s.ReferencePoint(ctx, viewerID, f.Reference)
	if err != nil {
		return nil, err
	}

	var profiles []models.Profile
	q := s.db.WithContext(ctx).Where("visibility = ?", true)
	if viewerID != "" {
		q = q.Where("user_id <> ?", viewerID)
	}
	if err := q.Limit(CandidateLimit).Find(&profiles).Error; err != nil {
		s.log.Error("discovery fetch failed", "error", err)
		return nil, apperr.Unavailable(err)
	}
	span.SetAttributes(
		attribute.Int("discovery.scanned", len(profiles)),
		attribute.String("discovery.sort", string(f.Sort)),
	)

	requested := map[string]bool{}
	if viewerID != "" && s.requests != nil {
		if requested, err = s.requests.RequestedReceivers(ctx, viewerID); err != nil {
			return nil, err
		}
	}

	if f.RadiusMiles <= 0 {
		f.RadiusMiles = s.defaultRadius
	}
	out := Rank(ref, profiles, s.canonicalFilter(f))
	for i := range out {
		out[i].Requested = requested[out[i].Profile.UserID]
	}
	return out, nil
}

func (s *DiscoveryService) canonicalFilter(f DiscoveryFilter) DiscoveryFilter {
	if s.vocab == nil {
		return f
	}
	if f.Instrument != "" {
		f.Instrument = s.vocab.CanonicalInstrument(f.Instrument)
	}
	if f.SkillLevel != "" {
		f.SkillLevel = s.vocab.CanonicalSkillLevel(f.SkillLevel)
	}
	genres := make([]string, 0, len(f.Genres))
	for _, g := range f.Genres {
		if g = strings.TrimSpace(g); g != "" {
			genres = append(genres, s.vocab.CanonicalGenre(g))
		}
	}
	f.Genres = genres
	return f
}

// Rank applies the attribute filters, the radius, the free-text search and
// the sort to profiles, measuring distance from ref. Visibility and viewer
// exclusion are the caller's job.
func Rank(ref geo.Coordinates, profiles []models.Profile, f DiscoveryFilter) []Candidate {
	out := make([]Candidate, 0, len(profiles))
	for _, p := range profiles {
		if f.Instrument != "" && p.Instrument != f.Instrument {
			continue
		}
		overlap := genreOverlap(p, f.Genres)
		if len(f.Genres) > 0 && overlap == 0 {
			continue
		}
		if f.SkillLevel != "" && p.SkillLevel != f.SkillLevel {
			continue
		}

		d := geo.DistanceMiles(ref, geo.Normalize(p.Location))
		if f.RadiusMiles < UnboundedRadius && d > f.RadiusMiles {
			continue
		}
		out = append(out, Candidate{Profile: p, DistanceMiles: d, GenreOverlap: overlap})
	}

	if needle := strings.ToLower(strings.TrimSpace(f.Search)); needle != "" {
		filtered := out[:0]
		for _, c := range out {
			if matchesSearch(c.Profile, needle) {
				filtered = append(filtered, c)
			}
		}
		out = filtered
	}

	sortCandidates(out, f.Sort, len(f.Genres) > 0)
	return out
}

func genreOverlap(p models.Profile, genres []string) int {
	n := 0
	for _, g := range genres {
		if p.HasGenre(g) {
			n++
		}
	}
	return n
}

func matchesSearch(p models.Profile, needle string) bool {
	if containsFold(p.Name, needle) || containsFold(p.Instrument, needle) || containsFold(p.Bio, needle) {
		return true
	}
	for _, g := range p.Genres {
		if containsFold(g, needle) {
			return true
		}
	}
	return containsFold(p.Location.DisplayName(), needle)
}

func sortCandidates(cs []Candidate, mode SortMode, genreFilterActive bool) {
	byDistance := func(a, b Candidate) bool {
		if a.DistanceMiles != b.DistanceMiles {
			return a.DistanceMiles < b.DistanceMiles
		}
		return a.Profile.UserID < b.Profile.UserID
	}

	switch {
	case mode == SortRecent:
		sort.SliceStable(cs, func(i, j int) bool {
			if !cs[i].Profile.CreatedAt.Equal(cs[j].Profile.CreatedAt) {
				return cs[i].Profile.CreatedAt.After(cs[j].Profile.CreatedAt)
			}
			return byDistance(cs[i], cs[j])
		})
	case mode == SortBestMatch && genreFilterActive:
		sort.SliceStable(cs, func(i, j int) bool {
			if cs[i].GenreOverlap != cs[j].GenreOverlap {
				return cs[i].GenreOverlap > cs[j].GenreOverlap
			}
			return byDistance(cs[i], cs[j])
		})
	default:
		sort.SliceStable(cs, func(i, j int) bool { return byDistance(cs[i], cs[j]) })
	}
}
