package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain error", errors.New("boom"), KindInternal},
		{"validation", Validation("bad input", nil), KindValidation},
		{"wrapped not found", fmt.Errorf("load user: %w", NotFound("user")), KindNotFound},
		{"upstream", Upstream("google", errors.New("500")), KindUpstreamProvider},
		{"configuration", Configuration("oauth.google.client_id"), KindConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	sentinel := errors.New("invalid_grant")
	err := Upstream("onedrive", sentinel)

	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, "onedrive request failed: invalid_grant", err.Error())
}

func TestAs(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(KindRateLimited, "RATE_LIMITED", "slow down"))

	e, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, "slow down", e.Message)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
