package entities

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorDetail_Error(t *testing.T) {
	tests := []struct {
		detail *ErrorDetail
		want   string
	}{
		{NewErrorDetail("internal", "boom"), "boom"},
		{NewErrorDetail("engine", "update failed").WithCode("host_update"), "update failed [engine host_update]"},
		{
			NewErrorDetail("channel", "create failed").WithCode("ui").WithCause(NewErrorDetail("engine", "out of handles")),
			"create failed [channel ui]: out of handles",
		},
		{nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.detail.Error())
		})
	}
}

func TestErrorDetail_UnwrapsCause(t *testing.T) {
	cause := NewErrorDetail("decode", "bad json").WithCode("json")
	err := NewErrorDetail("channel", "message dropped").WithCause(cause)

	var got *ErrorDetail
	require.True(t, errors.As(errors.Unwrap(err), &got))
	assert.Same(t, cause, got)
	assert.True(t, errors.Is(err, cause))
	assert.Nil(t, cause.Unwrap())
}

func TestErrorDetail_LogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	detail := NewErrorDetail("lifecycle", "not allowed").WithCode("update")
	logger.Info("misuse", "error", detail)

	out := buf.String()
	assert.Contains(t, out, "error.type=lifecycle")
	assert.Contains(t, out, `error.message="not allowed"`)
	assert.Contains(t, out, "error.code=update")
}
