package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"jammr/backend/internal/apperr"
	"jammr/backend/internal/auth"
	"jammr/backend/internal/geo"
	"jammr/backend/internal/logger"
	"jammr/backend/internal/models"
	"jammr/backend/internal/service"
)

// region --- DTOs ---

// SaveProfileInput is a partial profile update. Omitted fields keep their stored value.
type SaveProfileInput struct {
	Name       *string       `json:"name" binding:"omitempty,min=1,max=100" example:"Ann"`
	Instrument *string       `json:"instrument" binding:"omitempty,instrument" example:"Guitar"`
	Genres     *[]string     `json:"genres" binding:"omitempty,max=8,dive,genre"`
	SkillLevel *string       `json:"skill_level" binding:"omitempty,skill" example:"Advanced"`
	Bio        *string       `json:"bio" binding:"omitempty,max=1000"`
	Location   *geo.Location `json:"location" swaggertype:"object"`
	Visibility *bool         `json:"visibility"`
	ImageURL   *string       `json:"image_url" binding:"omitempty,url"`
}

// RemoveMediaInput names the media entry to delete.
type RemoveMediaInput struct {
	URL string `json:"url" binding:"required"`
}

// PublicProfileResponse is another user's profile as seen by the caller.
type PublicProfileResponse struct {
	models.Profile
	ViewerToOwner *models.RequestStatus `json:"viewer_to_owner,omitempty" example:"pending"`
	OwnerToViewer *models.RequestStatus `json:"owner_to_viewer,omitempty"`
}

// UploadResponse is returned after a media upload.
type UploadResponse struct {
	URL     string          `json:"url"`
	Profile *models.Profile `json:"profile"`
}

// endregion

type ProfileHandler struct {
	log       *logger.Logger
	profiles  *service.ProfileService
	requests  *service.RequestService
	maxUpload int64
}

// NewProfileHandler builds the profile endpoints. Uploads larger than
// maxUpload bytes are rejected.
func NewProfileHandler(log *logger.Logger, profiles *service.ProfileService, requests *service.RequestService, maxUpload int64) *ProfileHandler {
	return &ProfileHandler{
		log:       log.With("handler", "ProfileHandler"),
		profiles:  profiles,
		requests:  requests,
		maxUpload: maxUpload,
	}
}

var errMediaTooLarge = apperr.New(apperr.KindValidation, "media_too_large", "media file is too large")

// GetMe godoc
// @Summary      Get own profile
// @Tags         profiles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.Profile
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "No profile saved yet"
// @Router       /profiles/me [get]
func (h *ProfileHandler) GetMe(c *gin.Context) {
	p, err := h.profiles.Get(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SaveMe godoc
// @Summary      Create or update own profile
// @Description  Creates the profile on first save and merges later saves. A location is required.
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body SaveProfileInput true "Profile fields"
// @Success      200  {object}  models.Profile
// @Failure      400  {object}  ErrorResponse "Invalid input or missing location"
// @Failure      401  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /profiles/me [put]
func (h *ProfileHandler) SaveMe(c *gin.Context) {
	var input SaveProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}

	p, err := h.profiles.Save(c.Request.Context(), auth.UserID(c), service.ProfileInput{
		Name:       input.Name,
		Instrument: input.Instrument,
		Genres:     input.Genres,
		SkillLevel: input.SkillLevel,
		Bio:        input.Bio,
		Location:   input.Location,
		Visibility: input.Visibility,
		ImageURL:   input.ImageURL,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetByID godoc
// @Summary      Get a profile
// @Description  Hidden profiles are only visible to their owner. Signed-in callers also get the request status in each direction.
// @Tags         profiles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  PublicProfileResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /profiles/{id} [get]
func (h *ProfileHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	p, err := h.profiles.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	viewerID := auth.UserID(c)
	if !p.Visibility && id != viewerID {
		respondError(c, h.log, apperr.ErrProfileNotFound)
		return
	}

	rel, err := h.requests.Relation(c.Request.Context(), viewerID, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, PublicProfileResponse{Profile: *p, ViewerToOwner: rel.ViewerToOwner, OwnerToViewer: rel.OwnerToViewer})
}

func mediaKind(c *gin.Context) (models.MediaKind, bool) {
	kind := models.MediaKind(c.Param("kind"))
	return kind, models.MediaColumn(kind) != ""
}

// UploadMedia godoc
// @Summary      Upload media
// @Description  Stores a file and appends its URL to the given list. profile_image replaces the current image.
// @Tags         profiles
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        kind  path      string  true  "profile_image, gallery, video or audio"
// @Param        file  formData  file    true  "Media file"
// @Success      201   {object}  UploadResponse
// @Failure      400   {object}  ErrorResponse "Unknown kind, missing file or file too large"
// @Failure      404   {object}  ErrorResponse "No profile saved yet"
// @Failure      503   {object}  ErrorResponse
// @Router       /profiles/me/media/{kind} [post]
func (h *ProfileHandler) UploadMedia(c *gin.Context) {
	kind, ok := mediaKind(c)
	if !ok {
		respondError(c, h.log, apperr.New(apperr.KindValidation, "invalid_media_kind", "unknown media kind"))
		return
	}
	// multipart overhead is small next to the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, h.log, errMediaTooLarge)
			return
		}
		respondError(c, h.log, apperr.Wrap(apperr.ErrValidation, err))
		return
	}
	if fh.Size > h.maxUpload {
		respondError(c, h.log, errMediaTooLarge)
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, h.log, apperr.Wrap(apperr.ErrValidation, err))
		return
	}
	defer f.Close()

	url, p, err := h.profiles.Upload(c.Request.Context(), auth.UserID(c), kind, fh.Filename, f)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, UploadResponse{URL: url, Profile: p})
}

// RemoveMedia godoc
// @Summary      Remove media
// @Description  Deletes the stored file and drops its URL from the list.
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        kind  path      string            true  "profile_image, gallery, video or audio"
// @Param        input body      RemoveMediaInput  true  "Media URL"
// @Success      200   {object}  models.Profile
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /profiles/me/media/{kind} [delete]
func (h *ProfileHandler) RemoveMedia(c *gin.Context) {
	kind, ok := mediaKind(c)
	if !ok {
		respondError(c, h.log, apperr.New(apperr.KindValidation, "invalid_media_kind", "unknown media kind"))
		return
	}
	var input RemoveMediaInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, h.log, bindError(err))
		return
	}

	p, err := h.profiles.RemoveMedia(c.Request.Context(), auth.UserID(c), kind, input.URL)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
