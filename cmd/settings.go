package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/homectlx/panel/internal/config"
	"github.com/homectlx/panel/internal/logging"
	"github.com/homectlx/panel/internal/mdns"
	"github.com/homectlx/panel/internal/transport"
)

// commonFlags are accepted by every command that talks to a server.
type commonFlags struct {
	configPath string
	server     string
	discover   bool
	logLevel   string
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Path to config file (default: ~/.homectl/panel.toml)")
	fs.StringVar(&c.server, "server", "", "View-model server URL, e.g. http://homectl.local:5000")
	fs.BoolVar(&c.discover, "discover", false, "Locate the server via mDNS when no URL is configured")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// load reads the config file and applies flags on top of it.
func (c *commonFlags) load(fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if fs.Changed("server") {
		cfg.ServerURL = c.server
	}
	if fs.Changed("discover") {
		cfg.Discover = c.discover
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger for cfg.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogLevel)
}

// baseURLResolver returns the server's HTTP base URL, from config or mDNS.
func baseURLResolver(cfg *config.Config) transport.Resolver {
	return func(ctx context.Context) (string, error) {
		if cfg.ServerURL != "" {
			return cfg.ServerURL, nil
		}
		return mdns.Resolve(ctx, cfg.DiscoverTimeout())
	}
}

// socketResolver wraps baseURLResolver and turns the base into a WebSocket URL.
func socketResolver(cfg *config.Config) transport.Resolver {
	base := baseURLResolver(cfg)
	return func(ctx context.Context) (string, error) {
		u, err := base(ctx)
		if err != nil {
			return "", err
		}
		return transport.SocketURL(u, cfg.SocketPath)
	}
}

// newManager builds a connection manager from cfg.
func newManager(cfg *config.Config, logger *zap.Logger) *transport.Manager {
	return transport.New(transport.Options{
		Resolve: socketResolver(cfg),
		Policy: transport.Policy{
			Initial:   cfg.ReconnectInitial(),
			Max:       cfg.ReconnectMax(),
			Attempts:  cfg.ReconnectAttempts,
			InitRetry: cfg.InitRetry(),
		},
		Logger: logger,
	})
}

func printFlagHelp(w io.Writer, text string, fs *pflag.FlagSet) {
	fmt.Fprint(w, text)
	fmt.Fprintln(w, "\nOptions:")
	fmt.Fprint(w, fs.FlagUsages())
}
