package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"jammr/backend/internal/apperr"
	"jammr/backend/internal/logger"
	"jammr/backend/internal/vocab"
)

// ErrorResponse represents a generic error response.
// Retryable is true only when the backend was unavailable, so clients can
// offer a retry instead of showing an empty result.
type ErrorResponse struct {
	Error     string `json:"error" example:"An error message"`
	Code      string `json:"code" example:"duplicate_request"`
	Retryable bool   `json:"retryable" example:"false"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message" example:"Request declined"`
}

func respondError(c *gin.Context, log *logger.Logger, err error) {
	e := apperr.As(err)
	switch e.Kind {
	case apperr.KindInternal:
		log.Error("request failed", "path", c.FullPath(), "error", err)
	case apperr.KindUnavailable:
		log.Warn("backend unavailable", "path", c.FullPath(), "error", err)
	}
	c.JSON(e.Status(), ErrorResponse{Error: e.Message, Code: e.Code, Retryable: e.Retryable()})
}

// bindError turns a binding failure into a validation error with readable field messages.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "instrument", "genre", "skill":
			msgs = append(msgs, fmt.Sprintf("%s: %q is not a known %s", fe.Field(), fe.Value(), fe.Tag()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	e := apperr.Wrap(apperr.ErrValidation, errors.New(strings.Join(msgs, "; ")))
	e.Message = e.Err.Error()
	return e
}

// RegisterValidations installs the vocabulary tags on gin's validator.
func RegisterValidations(v *vocab.Vocabulary) error {
	engine, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("handler: gin validator is not go-playground/validator")
	}
	return v.RegisterValidations(engine)
}
