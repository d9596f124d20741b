// Package retry wraps exponential backoff with the error classification used by
// every outbound call (Places, FTP, the directory API).
package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/googleapi"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/resolver"
)

// Policy bounds an exponential backoff loop.
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	MaxRetries uint64
	// OnRetry is called before each wait.
	OnRetry func(err error, wait time.Duration)
}

// DefaultPolicy is used for outbound calls that have no specific tuning.
var DefaultPolicy = Policy{Initial: 500 * time.Millisecond, Max: 5 * time.Second, MaxRetries: 3}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.Initial
	if exp.InitialInterval <= 0 {
		exp.InitialInterval = DefaultPolicy.Initial
	}
	exp.MaxInterval = p.Max
	if exp.MaxInterval <= 0 {
		exp.MaxInterval = DefaultPolicy.Max
	}
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, p.MaxRetries), ctx)
}

// Do runs op until it succeeds, returns a non-transient error, or the policy
// is exhausted. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	attempt := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := op(ctx)
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var notify backoff.Notify
	if p.OnRetry != nil {
		notify = p.OnRetry
	}
	return backoff.RetryNotify(attempt, p.backOff(ctx), notify)
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// IsTransient reports whether an error is likely to clear on retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *resolver.StatusError
	if errors.As(err, &statusErr) {
		return transientStatus(statusErr.Code)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.Code)
	}
	// FTP 4xx replies are transient negative completions.
	var ftpErr *textproto.Error
	if errors.As(err, &ftpErr) {
		return ftpErr.Code >= 400 && ftpErr.Code < 500
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func transientStatus(code int) bool {
	return code == 429 || code >= 500
}
