package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/progress"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/resolver"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/retry"
)

// ErrDisconnected is returned once Watch gives up reconnecting.
var ErrDisconnected = errors.New("progress stream disconnected")

// State is the connection state reported while watching.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
)

const maxEventBytes = 1 << 20

// WatchOptions configures Watch.
type WatchOptions struct {
	Token string
	// Retry bounds consecutive failed connection attempts. The count resets
	// after every successful connection.
	Retry retry.Policy
	// OnState receives every state change with the error that caused it, if any.
	OnState func(state State, err error)
}

// Watch follows the admin progress stream and hands every frame to onFrame
// until ctx ends, onFrame returns false, or reconnecting fails too often.
// Stopping through ctx or onFrame returns nil.
func (c *Client) Watch(ctx context.Context, opts WatchOptions, onFrame func(progress.Frame) bool) error {
	notify := func(state State, err error) {
		c.logger.Debug("progress stream state", zap.String("state", string(state)), zap.Error(err))
		if opts.OnState != nil {
			opts.OnState(state, err)
		}
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = opts.Retry.Initial
	if exp.InitialInterval <= 0 {
		exp.InitialInterval = retry.DefaultPolicy.Initial
	}
	exp.MaxInterval = opts.Retry.Max
	if exp.MaxInterval <= 0 {
		exp.MaxInterval = retry.DefaultPolicy.Max
	}
	exp.MaxElapsedTime = 0
	exp.Reset()

	var failures uint64
	state := StateConnecting
	for {
		notify(state, nil)
		connected, stopped, err := c.stream(ctx, opts.Token, onFrame, func() {
			notify(StateConnected, nil)
		})
		if stopped || ctx.Err() != nil {
			notify(StateDisconnected, nil)
			return nil
		}
		if connected {
			failures = 0
			exp.Reset()
		}
		if !retry.IsTransient(err) {
			notify(StateDisconnected, err)
			return fmt.Errorf("%w: %w", ErrDisconnected, err)
		}
		failures++
		if failures > opts.Retry.MaxRetries {
			notify(StateDisconnected, err)
			return fmt.Errorf("%w after %d attempts: %w", ErrDisconnected, failures, err)
		}

		wait := exp.NextBackOff()
		notify(StateReconnecting, err)
		if opts.Retry.OnRetry != nil {
			opts.Retry.OnRetry(err, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			notify(StateDisconnected, nil)
			return nil
		case <-timer.C:
		}
		state = StateReconnecting
	}
}

// stream holds one connection open. connected reports whether the server
// accepted the stream and stopped whether onFrame asked to end.
func (c *Client) stream(ctx context.Context, token string, onFrame func(progress.Frame) bool, onConnected func()) (connected, stopped bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/admin/progress-stream"), nil)
	if err != nil {
		return false, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// The stream outlives any whole-request timeout configured on c.http.
	httpClient := *c.http
	httpClient.Timeout = 0
	resp, err := httpClient.Do(req)
	if err != nil {
		return false, false, fmt.Errorf("connect progress stream: %w", err)
	}
	defer resp.Body.Close()

	if err := checkEventStream(resp); err != nil {
		return false, false, err
	}
	onConnected()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), maxEventBytes)
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var frame progress.Frame
			if err := json.Unmarshal(data.Bytes(), &frame); err != nil {
				c.logger.Warn("skip malformed progress frame", zap.Error(err))
			} else if !onFrame(frame) {
				return true, true, nil
			}
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// heartbeat
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return true, false, fmt.Errorf("read progress stream: %w", err)
	}
	return true, false, io.EOF
}

func checkEventStream(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
		if err == nil && mediaType == "text/event-stream" {
			return nil
		}
	}
	// Reuse the JSON classification so status, routing and content type
	// failures read the same as they do for the listings.
	if _, err := resolver.ReadJSONBody(resp); err != nil {
		return err
	}
	return fmt.Errorf("%w: content type %q", resolver.ErrNotJSON, resp.Header.Get("Content-Type"))
}
