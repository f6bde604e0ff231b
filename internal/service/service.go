package service

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"jammr/backend/internal/apperr"
)

// backendErr classifies a storage error. Not-found becomes notFound (when
// given), everything else is reported as the backend being unavailable.
func backendErr(err error, notFound *apperr.Error) error {
	if err == nil {
		return nil
	}
	if notFound != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Unavailable(err)
}

func invalid(msg string) error {
	return apperr.Wrap(apperr.ErrValidation, errors.New(msg))
}

type clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}
