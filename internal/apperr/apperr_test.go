package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrappedSentinelMatches(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("discovery: %w", Unavailable(cause))

	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatal("wrapped error does not match its sentinel")
	}
	if errors.Is(err, ErrDuplicateRequest) {
		t.Fatal("matched an unrelated sentinel")
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause lost")
	}

	e := As(err)
	if e.Status() != http.StatusServiceUnavailable || !e.Retryable() {
		t.Fatalf("status=%d retryable=%v", e.Status(), e.Retryable())
	}
}

func TestAsDefaultsToInternal(t *testing.T) {
	e := As(errors.New("boom"))
	if e.Kind != KindInternal || e.Status() != http.StatusInternalServerError || e.Retryable() {
		t.Fatalf("unexpected %+v", e)
	}
	if As(nil) != nil {
		t.Fatal("As(nil) should be nil")
	}
}

func TestStatusByKind(t *testing.T) {
	cases := map[*Error]int{
		ErrLocationRequired:                 http.StatusBadRequest,
		ErrDuplicateRequest:                 http.StatusConflict,
		ErrRequestNotFound:                  http.StatusNotFound,
		ErrNotParticipant:                   http.StatusForbidden,
		ErrInvalidCredentials:               http.StatusUnauthorized,
		ErrAccountExistsDifferentCredential: http.StatusConflict,
	}
	for e, want := range cases {
		if got := e.Status(); got != want {
			t.Errorf("%s: status %d, want %d", e.Code, got, want)
		}
	}
}
