package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrInvalid("x"), http.StatusBadRequest},
		{ErrNotFound("x"), http.StatusNotFound},
		{ErrConflict("x"), http.StatusConflict},
		{ErrUnauthenticated("x"), http.StatusUnauthorized},
		{ErrForbidden("x"), http.StatusForbidden},
		{ErrUnavailable("x", errors.New("dial tcp")), http.StatusServiceUnavailable},
		{ErrInternal("x"), http.StatusInternalServerError},
		{ErrScanBusy("x"), http.StatusTooManyRequests},
		{errors.New("plain"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", ErrNotFound("x")), http.StatusNotFound},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ToHTTPStatus(c.err), c.err.Error())
	}
}

func TestUnavailableKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := ErrUnavailable("remote store", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, CodeUnavailable))
	assert.False(t, Is(err, CodeNotFound))
	assert.Contains(t, err.Error(), "connection refused")

	body := BodyFrom(err)
	assert.Equal(t, CodeUnavailable, body.Error.Code)
	assert.NotContains(t, body.Error.Message, "connection refused")
}

func TestBodyFromPlainError(t *testing.T) {
	body := BodyFrom(errors.New("secret detail"))
	assert.Equal(t, CodeInternal, body.Error.Code)
	assert.Equal(t, "internal error", body.Error.Message)
}
