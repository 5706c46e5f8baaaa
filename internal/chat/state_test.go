// ABOUTME: Tests for the conversation window load state machine
// ABOUTME: Checks the allowed transitions and the LoadView helper

package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from   Phase
		ev     Event
		want   Phase
		wantOK bool
	}{
		{PhaseIdle, EventSelect, PhaseLoading, true},
		{PhaseLoading, EventSucceed, PhaseLoaded, true},
		{PhaseLoading, EventFail, PhaseError, true},
		{PhaseError, EventRetry, PhaseLoading, true},
		{PhaseLoaded, EventSelect, PhaseLoading, true},
		{PhaseError, EventSelect, PhaseLoading, true},
		{PhaseLoading, EventSelect, PhaseLoading, true},

		{PhaseIdle, EventSucceed, PhaseIdle, false},
		{PhaseLoaded, EventFail, PhaseLoaded, false},
		{PhaseLoaded, EventRetry, PhaseLoaded, false},
		{PhaseIdle, EventRetry, PhaseIdle, false},
	}

	for _, tt := range tests {
		got, ok := Next(tt.from, tt.ev)
		assert.Equal(t, tt.want, got, "%s + %d", tt.from, tt.ev)
		assert.Equal(t, tt.wantOK, ok, "%s + %d", tt.from, tt.ev)
	}
}

func TestLoadView(t *testing.T) {
	ok := LoadView(nil, func() (*Page[Message], error) {
		return &Page[Message]{Items: []Message{{ID: "1"}}, TotalPages: 1}, nil
	})
	assert.Equal(t, PhaseLoaded, ok.Phase)
	assert.Len(t, ok.Messages.Items, 1)
	assert.False(t, ok.Retryable())

	failed := LoadView(nil, func() (*Page[Message], error) {
		return nil, &LoadError{Op: "x", Err: errors.New("down")}
	})
	assert.Equal(t, PhaseError, failed.Phase)
	assert.True(t, failed.Retryable())

	invalid := LoadView(nil, func() (*Page[Message], error) {
		return nil, &ValidationError{Reason: "bad"}
	})
	assert.Equal(t, PhaseError, invalid.Phase)
	assert.False(t, invalid.Retryable())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "loading", PhaseLoading.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
