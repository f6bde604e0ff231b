package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jammr/backend/internal/apperr"
	"jammr/backend/internal/logger"
)

var errMediaNotFound = apperr.New(apperr.KindNotFound, "media_not_found", "media not found")

// MediaSource reads stored objects by key.
type MediaSource interface {
	Object(key string) ([]byte, string, bool)
}

// MediaHandler serves uploads kept in process, so the URLs handed out for
// them resolve when no bucket is configured.
type MediaHandler struct {
	log     *logger.Logger
	objects MediaSource
}

func NewMediaHandler(log *logger.Logger, objects MediaSource) *MediaHandler {
	return &MediaHandler{log: log.With("handler", "MediaHandler"), objects: objects}
}

// Serve godoc
// @Summary      Fetch uploaded media
// @Description  Only mounted when media is kept in memory.
// @Tags         media
// @Produce      octet-stream
// @Param        key  path  string  true  "Object key"
// @Success      200
// @Failure      404  {object}  ErrorResponse
// @Router       /media/{key} [get]
func (h *MediaHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	b, contentType, ok := h.objects.Object(key)
	if !ok {
		respondError(c, h.log, errMediaNotFound)
		return
	}
	c.Data(http.StatusOK, contentType, b)
}
