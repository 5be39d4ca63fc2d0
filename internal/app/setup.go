package app

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tdh8316/usernamescan/internal/cli"
	"github.com/tdh8316/usernamescan/internal/config"
	"github.com/tdh8316/usernamescan/internal/httpx"
	"github.com/tdh8316/usernamescan/internal/logging"
	"github.com/tdh8316/usernamescan/internal/platform"
	"github.com/tdh8316/usernamescan/internal/probe"
	"github.com/tdh8316/usernamescan/internal/relay"
	"github.com/tdh8316/usernamescan/internal/scan"
)

// Setup loads configuration and wires fetcher, relay, probers and scanner.
func Setup(configFile string, overrides map[string]any, stdout, stderr io.Writer) (*cli.Runtime, error) {
	loader := config.NewLoader(configFile)
	for k, v := range overrides {
		loader.Set(k, v)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Log, stdout, stderr)
	if err != nil {
		return nil, errors.Wrap(err, "init logger")
	}

	scanner, err := NewScanner(cfg, log)
	if err != nil {
		_ = logging.Close(log)
		return nil, err
	}

	return &cli.Runtime{
		Config:  cfg,
		Log:     log,
		Scanner: scanner,
		Close:   func() { _ = logging.Close(log) },
	}, nil
}

// NewScanner builds the scanner described by cfg.
func NewScanner(cfg *config.Config, log logrus.FieldLogger) (*scan.Scanner, error) {
	tbl, err := loadTable(cfg.Scan.PlatformsFile)
	if err != nil {
		return nil, err
	}

	client, err := httpx.NewClient(httpx.ClientConfig{
		WithTor:     cfg.HTTP.WithTor,
		TorProxyURL: cfg.HTTP.TorProxyURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init http client")
	}

	fetcher := httpx.NewFetcher(client, httpx.Config{
		Timeout:           cfg.HTTP.Timeout,
		UserAgents:        cfg.HTTP.UserAgents,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
		RequestsPerSecond: cfg.HTTP.RequestsPerSecond,
		Burst:             cfg.HTTP.Burst,
	})
	rl := relay.New(fetcher, cfg.Relay.Endpoints, log)

	registry, err := probe.NewRegistry(tbl, fetcher, rl, log)
	if err != nil {
		return nil, errors.Wrap(err, "build probers")
	}

	scanner, err := scan.NewScanner(tbl, registry, scan.Config{Concurrency: cfg.Scan.Concurrency}, log)
	if err != nil {
		return nil, errors.Wrap(err, "build scanner")
	}

	log.WithFields(logrus.Fields{
		"platforms": tbl.Len(),
		"schema":    tbl.Version(),
		"relays":    rl.Len(),
		"tor":       cfg.HTTP.WithTor,
	}).Debug("scanner ready")
	return scanner, nil
}

func loadTable(path string) (*platform.Table, error) {
	if path == "" {
		return platform.Builtin()
	}
	return platform.LoadFile(path)
}
