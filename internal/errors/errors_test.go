package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/hostlink/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "Failed to read metric", f.New(errors.ErrReadFailed).Error())
	assert.Equal(t, "Failed to read metric: boom", f.Wrap(errors.ErrReadFailed, fmt.Errorf("boom")).Error())
	assert.Equal(t, "custom", f.WithMessage(errors.ErrReadFailed, "custom").Error())
	assert.Equal(t, "Invalid argument provided: 42", f.WithData(errors.ErrInvalidArgument, 42).Error())
}

func TestKindOf(t *testing.T) {
	f := errors.New()

	tests := []struct {
		name string
		err  error
		want errors.Kind
	}{
		{"read failure is transient", f.New(errors.ErrReadFailed), errors.KindTransient},
		{"backpressure is transient", f.New(errors.ErrBackpressure), errors.KindTransient},
		{"closed channel stops the provider", f.New(errors.ErrChannelClosed), errors.KindProvider},
		{"unavailable source stops the provider", f.New(errors.ErrSourceUnavailable), errors.KindProvider},
		{"bad config stops the process", f.New(errors.ErrInvalidConfig), errors.KindProcess},
		{"wrapped keeps kind", fmt.Errorf("ctx: %w", f.New(errors.ErrReadFailed)), errors.KindTransient},
		{"plain error is provider-fatal", fmt.Errorf("plain"), errors.KindProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.KindOf(tt.err))
		})
	}
}

func TestIsMatchesCode(t *testing.T) {
	f := errors.New()
	sentinel := f.New(errors.ErrChannelClosed)
	err := fmt.Errorf("send: %w", f.Wrap(errors.ErrChannelClosed, fmt.Errorf("closed")))

	assert.True(t, errors.Is(err, sentinel))
	assert.False(t, errors.Is(err, f.New(errors.ErrBackpressure)))
	assert.True(t, errors.HasCode(err, errors.ErrChannelClosed))
	assert.Equal(t, errors.ErrChannelClosed, errors.CodeOf(err))
}
