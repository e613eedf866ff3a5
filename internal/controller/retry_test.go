package controller

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/user/foliochat/internal/backend"
	"github.com/user/foliochat/internal/types"
)

func fastRetry() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestRetryPolicyDelays(t *testing.T) {
	policy := DefaultRetryPolicy()

	assert.Equal(t, 250*time.Millisecond, policy.NextDelay(1))
	assert.Equal(t, 500*time.Millisecond, policy.NextDelay(2))
	assert.Equal(t, time.Second, policy.NextDelay(3))
	assert.Equal(t, policy.MaxDelay, policy.NextDelay(10))
}

func TestRetryPolicyClassification(t *testing.T) {
	policy := DefaultRetryPolicy()
	transport := &url.Error{Op: "Get", URL: "http://backend", Err: errors.New("connection refused")}

	cases := []struct {
		name  string
		err   error
		retry bool
	}{
		{"nil", nil, false},
		{"transport", pkgerrors.Wrap(transport, "list sessions"), true},
		{"server error", &backend.StatusError{StatusCode: 502}, true},
		{"rate limited", &backend.StatusError{StatusCode: 429}, true},
		{"bad request", pkgerrors.Wrap(&backend.StatusError{StatusCode: 400}, "rename session"), false},
		{"not found", pkgerrors.Wrap(types.ErrNotFound, "get session"), false},
		{"unauthorized", types.ErrUnauthorized, false},
		{"canceled", context.Canceled, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.retry, policy.ShouldRetry(tc.err, 1))
		})
	}

	assert.False(t, policy.ShouldRetry(transport, policy.MaxAttempts))
}

func TestRetryPolicyExecuteSuccess(t *testing.T) {
	calls := 0
	err := fastRetry().Execute(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return &backend.StatusError{StatusCode: 503}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyExecuteGivesUp(t *testing.T) {
	calls := 0
	err := fastRetry().Execute(context.Background(), func(context.Context) error {
		calls++
		return &backend.StatusError{StatusCode: 503}
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyExecuteNonRetryable(t *testing.T) {
	calls := 0
	err := fastRetry().Execute(context.Background(), func(context.Context) error {
		calls++
		return types.ErrNotFound
	})
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyExecuteStopsOnCancel(t *testing.T) {
	policy := &RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 1, MaxDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := policy.Execute(ctx, func(context.Context) error {
		calls++
		cancel()
		return &backend.StatusError{StatusCode: 500}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
