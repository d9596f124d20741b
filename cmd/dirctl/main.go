package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/client"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/logger"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/retry"
	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/snapshot"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "list":
		err = runList(ctx, os.Args[2:], os.Stdout)
	case "show":
		err = runShow(ctx, os.Args[2:], os.Stdout)
	case "companies":
		err = runCompanies(ctx, os.Args[2:], os.Stdout)
	case "watch":
		err = runWatch(ctx, os.Args[2:], os.Stdout)
	case "version":
		fmt.Println("dirctl " + version)
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `dirctl - query the visa services directory

Usage:
  dirctl list [flags]        List businesses
  dirctl show [flags] ID     Show one business
  dirctl companies [flags] Q Search companies for a complaint
  dirctl watch [flags]       Follow ingestion progress (admin token required)
  dirctl version             Show version

Configuration is read from dirctl.yaml and DIRCTL_* environment variables.
Run 'dirctl <command> -h' for flags.
`)
}

// commonFlags are shared by every subcommand and override the loaded config.
type commonFlags struct {
	config   string
	apiURL   string
	snapshot string
	offline  bool
}

func bindCommon(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.config, "config", "", "Path to a config file (default: ./dirctl.yaml)")
	fs.StringVar(&cf.apiURL, "api", "", "Directory API base URL (overrides DIRCTL_API_URL)")
	fs.StringVar(&cf.snapshot, "snapshot", "", "Snapshot database path (overrides DIRCTL_SNAPSHOT)")
	fs.BoolVar(&cf.offline, "no-snapshot", false, "Do not read or write the local snapshot")
	return cf
}

// env is what a subcommand needs once flags and config are resolved.
type env struct {
	cfg    cliConfig
	client *client.Client
	logger *zap.Logger
	closer io.Closer
}

func (e *env) Close() {
	if e.closer != nil {
		_ = e.closer.Close()
	}
	_ = e.logger.Sync()
}

func setup(cf *commonFlags) (*env, error) {
	cfg, err := loadConfig(cf.config)
	if err != nil {
		return nil, err
	}
	if cf.apiURL != "" {
		cfg.APIURL = cf.apiURL
	}
	if cf.snapshot != "" {
		cfg.Snapshot = cf.snapshot
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, logger: log}
	var store *snapshot.Store
	if !cf.offline {
		store, err = snapshot.Open(cfg.Snapshot)
		if err != nil {
			log.Warn("snapshot store unavailable", zap.String("path", cfg.Snapshot), zap.Error(err))
			store = nil
		} else {
			e.closer = store
		}
	}

	e.client, err = client.New(client.Options{
		BaseURL:    cfg.APIURL,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Snapshots:  store,
		Retry:      retry.DefaultPolicy,
		Logger:     log.Named("client"),
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}
