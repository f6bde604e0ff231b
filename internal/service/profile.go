package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"jammr/backend/internal/apperr"
	"jammr/backend/internal/geo"
	"jammr/backend/internal/logger"
	"jammr/backend/internal/models"
	"jammr/backend/internal/storage"
	"jammr/backend/internal/vocab"
)

// ProfileInput is a partial profile. Nil fields keep their stored value.
type ProfileInput struct {
	Name       *string
	Instrument *string
	Genres     *[]string
	SkillLevel *string
	Bio        *string
	Location   *geo.Location
	Visibility *bool
	ImageURL   *string
}

type ProfileService struct {
	db    *gorm.DB
	log   *logger.Logger
	vocab *vocab.Vocabulary
	blobs storage.BlobStore
	now   clock
}

func NewProfileService(db *gorm.DB, log *logger.Logger, v *vocab.Vocabulary, blobs storage.BlobStore) *ProfileService {
	return &ProfileService{
		db:    db,
		log:   log.With("service", "ProfileService"),
		vocab: v,
		blobs: blobs,
		now:   utcNow,
	}
}

// Get returns the profile of userID.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, backendErr(err, apperr.ErrProfileNotFound)
	}
	return &p, nil
}

// Exists reports whether userID has saved a profile.
func (s *ProfileService) Exists(ctx context.Context, userID string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return false, backendErr(err, nil)
	}
	return n > 0, nil
}

// GetMany loads the profiles of ids keyed by user id. Missing ids are absent from the map.
func (s *ProfileService) GetMany(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	out := make(map[string]models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Profile
	if err := s.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, backendErr(err, nil)
	}
	for _, p := range rows {
		out[p.UserID] = p
	}
	return out, nil
}

// Save creates the profile on first call and merges in later calls.
// created_at is written once. A usable location is required before anything is stored.
func (s *ProfileService) Save(ctx context.Context, userID string, in ProfileInput) (*models.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.ErrUnauthenticated
	}
	if in.Location != nil && !in.Location.Valid() {
		return nil, apperr.ErrLocationRequired
	}

	var saved models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Profile
		err := tx.Where("user_id = ?", userID).First(&p).Error
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !isNew {
			return backendErr(err, nil)
		}
		if isNew {
			p = models.Profile{
				UserID:       userID,
				Genres:       datatypes.JSONSlice[string]{},
				ImageGallery: datatypes.JSONSlice[string]{},
				VideoClips:   datatypes.JSONSlice[string]{},
				AudioClips:   datatypes.JSONSlice[string]{},
			}
		}

		if err := s.apply(&p, in); err != nil {
			return err
		}
		if !p.Location.Valid() {
			return apperr.ErrLocationRequired
		}
		if isNew && strings.TrimSpace(p.Name) == "" {
			return invalid("name is required")
		}

		if isNew {
			p.CreatedAt = s.now()
			if err := tx.Create(&p).Error; err != nil {
				return backendErr(err, nil)
			}
		} else {
			err := tx.Model(&models.Profile{UserID: userID}).
				Select("name", "instrument", "genres", "skill_level", "bio", "location", "visibility", "image_url").
				Updates(&p).Error
			if err != nil {
				return backendErr(err, nil)
			}
		}
		saved = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("profile saved", "user_id", userID)
	return &saved, nil
}

func (s *ProfileService) apply(p *models.Profile, in ProfileInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return invalid("name must not be empty")
		}
		p.Name = name
	}
	if in.Instrument != nil {
		inst := s.vocab.CanonicalInstrument(*in.Instrument)
		if inst != "" && !s.vocab.IsInstrument(inst) {
			return invalid(fmt.Sprintf("unknown instrument %q", inst))
		}
		p.Instrument = inst
	}
	if in.Genres != nil {
		genres := make(datatypes.JSONSlice[string], 0, len(*in.Genres))
		seen := make(map[string]bool)
		for _, g := range *in.Genres {
			g = s.vocab.CanonicalGenre(g)
			if !s.vocab.IsGenre(g) {
				return invalid(fmt.Sprintf("unknown genre %q", g))
			}
			if !seen[g] {
				seen[g] = true
				genres = append(genres, g)
			}
		}
		p.Genres = genres
	}
	if in.SkillLevel != nil {
		lvl := s.vocab.CanonicalSkillLevel(*in.SkillLevel)
		if lvl != "" && !s.vocab.IsSkillLevel(lvl) {
			return invalid(fmt.Sprintf("unknown skill level %q", lvl))
		}
		p.SkillLevel = lvl
	}
	if in.Bio != nil {
		p.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.Location != nil {
		p.Location = *in.Location
	}
	if in.Visibility != nil {
		p.Visibility = *in.Visibility
	}
	if in.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	return nil
}

// Upload stores a media file under the user's namespace and records its URL
// on the profile. The blob is removed again if the profile update fails.
func (s *ProfileService) Upload(ctx context.Context, userID string, kind models.MediaKind, filename string, r io.Reader) (string, *models.Profile, error) {
	key, err := storage.MediaKey(kind, userID, filename, s.now())
	if err != nil {
		return "", nil, invalid(err.Error())
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return "", nil, err
	}

	url, err := s.blobs.Upload(ctx, key, r)
	if err != nil {
		return "", nil, apperr.Unavailable(err)
	}

	p, err := s.AddMedia(ctx, userID, kind, url)
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.log.Warn("orphaned upload", "key", key, "error", delErr)
		}
		return "", nil, err
	}
	return url, p, nil
}

// AddMedia appends url to the list of kind, or replaces the profile image.
func (s *ProfileService) AddMedia(ctx context.Context, userID string, kind models.MediaKind, url string) (*models.Profile, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, invalid("media url is required")
	}
	if kind == models.MediaProfileImage {
		return s.updateMedia(ctx, userID, kind, func([]string) []string { return []string{url} })
	}
	return s.updateMedia(ctx, userID, kind, func(list []string) []string {
		for _, u := range list {
			if u == url {
				return list
			}
		}
		return append(list, url)
	})
}

// RemoveMedia deletes the blob behind url and then drops url from the list.
// The list is rewritten even when the blob delete fails.
func (s *ProfileService) RemoveMedia(ctx context.Context, userID string, kind models.MediaKind, url string) (*models.Profile, error) {
	if key, ok := s.blobs.KeyFromURL(url); ok && storage.KeyOwner(key) == userID {
		if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.log.Warn("media blob delete failed", "key", key, "error", err)
		}
	}

	return s.updateMedia(ctx, userID, kind, func(list []string) []string {
		out := make([]string, 0, len(list))
		for _, u := range list {
			if u != url {
				out = append(out, u)
			}
		}
		return out
	})
}

// updateMedia rewrites one media column. The profile image is edited as a
// list of at most one entry.
func (s *ProfileService) updateMedia(ctx context.Context, userID string, kind models.MediaKind, edit func([]string) []string) (*models.Profile, error) {
	column := models.MediaColumn(kind)
	if column == "" {
		return nil, invalid(fmt.Sprintf("unknown media kind %q", kind))
	}

	var saved models.Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Profile
		if err := tx.Where("user_id = ?", userID).First(&p).Error; err != nil {
			return backendErr(err, apperr.ErrProfileNotFound)
		}

		var value interface{}
		switch kind {
		case models.MediaProfileImage:
			var current []string
			if p.ImageURL != "" {
				current = []string{p.ImageURL}
			}
			next := edit(current)
			p.ImageURL = ""
			if len(next) > 0 {
				p.ImageURL = next[len(next)-1]
			}
			value = p.ImageURL
		default:
			next := datatypes.JSONSlice[string](edit(p.MediaList(kind)))
			switch kind {
			case models.MediaGallery:
				p.ImageGallery = next
			case models.MediaVideo:
				p.VideoClips = next
			case models.MediaAudio:
				p.AudioClips = next
			}
			value = next
		}

		if err := tx.Model(&models.Profile{UserID: userID}).Update(column, value).Error; err != nil {
			return backendErr(err, nil)
		}
		saved = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}
