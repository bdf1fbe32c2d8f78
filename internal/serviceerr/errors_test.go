package serviceerr_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pocket-id/portal/internal/serviceerr"
)

func TestUpstreamError_Error(t *testing.T) {
	tests := []struct {
		name        string
		err         *serviceerr.UpstreamError
		expectedMsg string
	}{
		{
			name:        "not found",
			err:         &serviceerr.UpstreamError{Operation: "fetch clients", StatusCode: http.StatusNotFound},
			expectedMsg: "fetch clients: upstream returned status 404",
		},
		{
			name:        "rate limited",
			err:         &serviceerr.UpstreamError{Operation: "fetch user groups", StatusCode: http.StatusTooManyRequests},
			expectedMsg: "fetch user groups: upstream returned status 429",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedMsg, tt.err.Error())
		})
	}
}

func TestIsUpstreamStatus(t *testing.T) {
	err := fmt.Errorf("fetching details: %w", &serviceerr.UpstreamError{Operation: "fetch client details", StatusCode: http.StatusForbidden})

	assert.True(t, serviceerr.IsUpstreamStatus(err, http.StatusForbidden))
	assert.False(t, serviceerr.IsUpstreamStatus(err, http.StatusNotFound))
	assert.False(t, serviceerr.IsUpstreamStatus(serviceerr.ErrRateLimited, http.StatusTooManyRequests))
}
