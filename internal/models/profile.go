package models

import (
	"time"

	"gorm.io/datatypes"

	"jammr/backend/internal/geo"
)

// MediaKind names one of the profile's media lists.
type MediaKind string

const (
	MediaProfileImage MediaKind = "profile_image"
	MediaGallery      MediaKind = "gallery"
	MediaVideo        MediaKind = "video"
	MediaAudio        MediaKind = "audio"
)

// Profile is a musician's public record. UserID is both the key and a field of the document.
type Profile struct {
	UserID     string                      `gorm:"primaryKey;size:64" json:"user_id"`
	Name       string                      `gorm:"size:255;not null" json:"name"`
	Instrument string                      `gorm:"size:64;index" json:"instrument"`
	Genres     datatypes.JSONSlice[string] `json:"genres"`
	SkillLevel string                      `gorm:"size:32" json:"skill_level"`
	Bio        string                      `json:"bio"`
	Location   geo.Location                `json:"location" swaggertype:"object"`
	Visibility bool                        `gorm:"not null;index" json:"visibility"`

	ImageURL     string                      `gorm:"size:1024" json:"image_url,omitempty"`
	ImageGallery datatypes.JSONSlice[string] `json:"image_gallery"`
	VideoClips   datatypes.JSONSlice[string] `json:"video_clips"`
	AudioClips   datatypes.JSONSlice[string] `json:"audio_clips"`

	CreatedAt time.Time `gorm:"<-:create" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MediaList returns the list stored for kind, or nil for the single profile image.
func (p *Profile) MediaList(kind MediaKind) []string {
	switch kind {
	case MediaGallery:
		return p.ImageGallery
	case MediaVideo:
		return p.VideoClips
	case MediaAudio:
		return p.AudioClips
	}
	return nil
}

// MediaColumn is the column backing kind.
func MediaColumn(kind MediaKind) string {
	switch kind {
	case MediaGallery:
		return "image_gallery"
	case MediaVideo:
		return "video_clips"
	case MediaAudio:
		return "audio_clips"
	case MediaProfileImage:
		return "image_url"
	}
	return ""
}

// HasGenre reports whether the profile lists g.
func (p *Profile) HasGenre(g string) bool {
	for _, x := range p.Genres {
		if x == g {
			return true
		}
	}
	return false
}
