package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/phillip/parenting-hub-go/apperr"
)

// RetryPolicy bounds the retries of read operations. The zero value makes a
// single attempt.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is used when the configuration does not override it.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      3,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     2 * time.Second,
}

func (p RetryPolicy) exponential() *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.Reset()
	return eb
}

// do runs op until it succeeds, fails permanently or runs out of retries.
func (p RetryPolicy) do(ctx context.Context, op func() error) error {
	if p.MaxRetries <= 0 {
		return op()
	}
	b := backoff.WithContext(backoff.WithMaxRetries(p.exponential(), uint64(p.MaxRetries)), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

// reconnect returns the unbounded backoff used to re-establish live feeds.
func (p RetryPolicy) reconnect() *backoff.ExponentialBackOff {
	eb := p.exponential()
	eb.MaxElapsedTime = 0
	return eb
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrValidation),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	switch apperr.CodeOf(err) {
	case apperr.CodeUnauthorized, apperr.CodeInvalidFormat, apperr.CodeNotEnabled:
		return false
	}
	return true
}

// classify picks a code for errors a backend did not classify itself.
func classify(err error) apperr.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return apperr.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.CodeUnavailable
	}
	return apperr.CodeOf(err)
}
