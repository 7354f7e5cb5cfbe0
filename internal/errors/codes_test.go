package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  *ReplicationError
		want int
	}{
		{"not found", NotFound("k"), http.StatusNotFound},
		{"no replica", NoReplica("k"), http.StatusNotFound},
		{"already exists", AlreadyExists("k"), http.StatusConflict},
		{"timeout", Timeout("dc-b", nil), http.StatusGatewayTimeout},
		{"no dcs", NoDcs("k"), http.StatusServiceUnavailable},
		{"failed verification", FailedVerification("k"), http.StatusPreconditionFailed},
		{"backend", Backend("boom", nil), http.StatusInternalServerError},
		{"invalid argument", InvalidArgument("bad"), http.StatusBadRequest},
		{"key too large", KeyTooLarge(600, 512), http.StatusBadRequest},
		{"aborted", Aborted("k", nil), http.StatusRequestTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.ToHTTPStatus())
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestHTTPStatusUnknownError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("plain")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, GetCode(NotFound("k")))
	assert.Equal(t, ErrCodeInternal, GetCode(stderrors.New("plain")))

	wrapped := fmt.Errorf("context: %w", AlreadyExists("k"))
	assert.Equal(t, ErrCodeAlreadyExists, GetCode(wrapped))
	assert.True(t, Is(wrapped, ErrCodeAlreadyExists))
	assert.False(t, Is(wrapped, ErrCodeNotFound))
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	err := Backend("backend failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "root cause")
}

func TestFromHTTPStatus(t *testing.T) {
	assert.Equal(t, ErrCodeNoReplica, FromHTTPStatus(http.StatusNotFound, "k").Code)
	assert.Equal(t, ErrCodeAlreadyExists, FromHTTPStatus(http.StatusConflict, "k").Code)
	assert.Equal(t, ErrCodeInternal, FromHTTPStatus(http.StatusTeapot, "k").Code)
}
