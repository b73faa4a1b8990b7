package api

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestChatRequestValidate(t *testing.T) {
	tests := []struct {
		name  string
		req   ChatRequest
		field string
	}{
		{"minimal", ChatRequest{Message: "hi"}, ""},
		{"explicit zero temperature", ChatRequest{Message: "hi", Temperature: ptr(0.0)}, ""},
		{"one token", ChatRequest{Message: "hi", MaxNewTokens: ptr(1)}, ""},
		{"top_p one", ChatRequest{Message: "hi", TopP: ptr(1.0)}, ""},
		{"empty message", ChatRequest{}, "message"},
		{"negative tokens", ChatRequest{Message: "hi", MaxNewTokens: ptr(-3)}, "max_new_tokens"},
		{"negative temperature", ChatRequest{Message: "hi", Temperature: ptr(-0.1)}, "temperature"},
		{"nan temperature", ChatRequest{Message: "hi", Temperature: ptr(math.NaN())}, "temperature"},
		{"top_p above one", ChatRequest{Message: "hi", TopP: ptr(1.5)}, "top_p"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestChatRequestOverrides(t *testing.T) {
	o := ChatRequest{Message: "hi", Temperature: ptr(0.0)}.Overrides()
	assert.Nil(t, o.MaxNewTokens)
	assert.Nil(t, o.TopP)
	require.NotNil(t, o.Temperature)
	assert.Equal(t, 0.0, *o.Temperature)
}
