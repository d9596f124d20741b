package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/client"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/entity"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/progress"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/retry"
)

func runWatch(ctx context.Context, args []string, out io.Writer) error {
	var (
		token     string
		untilDone bool
		retries   int
	)
	fs := newFlagSet("watch", "watch [flags]")
	cf := bindCommon(fs)
	fs.StringVar(&token, "token", "", "Admin access token (overrides DIRCTL_TOKEN)")
	fs.BoolVar(&untilDone, "until-done", false, "Exit when the current job reaches a terminal state")
	fs.IntVar(&retries, "retries", -1, "Reconnect attempts before giving up (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := setup(cf)
	if err != nil {
		return err
	}
	defer e.Close()

	if token == "" {
		token = e.cfg.Token
	}
	if token == "" {
		return errors.New("an admin token is required: pass -token or set DIRCTL_TOKEN")
	}

	policy := retry.DefaultPolicy
	policy.MaxRetries = e.cfg.MaxRetries
	if retries >= 0 {
		policy.MaxRetries = uint64(retries)
	}
	return watchProgress(ctx, e.client, e.logger, token, policy, untilDone, out)
}

func watchProgress(ctx context.Context, c *client.Client, logger *zap.Logger, token string, policy retry.Policy, untilDone bool, out io.Writer) error {
	opts := client.WatchOptions{
		Token: token,
		Retry: policy,
		OnState: func(state client.State, err error) {
			if err != nil {
				fmt.Fprintf(os.Stderr, "[%s] %v\n", state, err)
				return
			}
			fmt.Fprintf(os.Stderr, "[%s]\n", state)
		},
	}
	err := c.Watch(ctx, opts, func(f progress.Frame) bool {
		printFrame(out, f)
		return !(untilDone && terminalJobState(f.Status))
	})
	if err != nil {
		logger.Warn("progress stream closed", zap.Error(err))
		return err
	}
	return nil
}

func printFrame(out io.Writer, f progress.Frame) {
	line := fmt.Sprintf("batch %d  %d/%d  %-10s logos=%d photos=%d", f.BatchNumber, f.Processed, f.TotalBusinesses, f.Status, f.Logos, f.Photos)
	if f.CurrentBusiness != "" {
		line += "  " + f.CurrentBusiness
	}
	if n := len(f.Errors); n > 0 {
		line += fmt.Sprintf("  errors=%d (last: %s)", n, f.Errors[n-1])
	}
	fmt.Fprintln(out, strings.TrimRight(line, " "))
}

func terminalJobState(status string) bool {
	switch status {
	case entity.JobCompleted, entity.JobFailed, entity.JobCancelled:
		return true
	}
	return false
}
