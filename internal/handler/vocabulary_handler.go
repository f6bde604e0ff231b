package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jammr/backend/internal/vocab"
)

type VocabularyHandler struct {
	vocab *vocab.Vocabulary
}

func NewVocabularyHandler(v *vocab.Vocabulary) *VocabularyHandler {
	return &VocabularyHandler{vocab: v}
}

// GetVocabulary godoc
// @Summary      Get the vocabulary
// @Description  Lists the instruments, genres and skill levels profiles and filters may use.
// @Tags         vocabulary
// @Produce      json
// @Success      200  {object}  vocab.Vocabulary
// @Router       /vocabulary [get]
func (h *VocabularyHandler) GetVocabulary(c *gin.Context) {
	c.JSON(http.StatusOK, h.vocab.All())
}
