package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"narrativ/internal/config"
	"narrativ/internal/logging"
	"narrativ/internal/studio"
)

type commandContext struct {
	configFlag *string
	serverFlag *string
	verbose    *bool

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag, serverFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		serverFlag: serverFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.configPath, c.configExists = resolved, exists
		if c.serverFlag != nil && strings.TrimSpace(*c.serverFlag) != "" {
			cfg.Client.BackendURL = strings.TrimRight(strings.TrimSpace(*c.serverFlag), "/")
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// log returns the CLI logger. It writes warnings to stderr, and debug output
// as well when --verbose is set.
func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		c.logger = logging.NewNop()
		cfg, err := c.ensureConfig()
		if err != nil {
			return
		}
		if logger, err := logging.NewCLI(cfg, c.verbose != nil && *c.verbose); err == nil {
			c.logger = logger
		}
	})
	return c.logger
}

func (c *commandContext) client() (*studio.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return studio.New(
		studio.Config{
			BaseURL: cfg.Client.BackendURL,
			Token:   cfg.Client.Token,
			Timeout: cfg.RequestTimeout(),
		},
		studio.WithHealthTimeout(cfg.HealthTimeout()),
		studio.WithLogger(c.log()),
	)
}

func (c *commandContext) withClient(fn func(*studio.Client) error) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	return wrapDialError(fn(client), client.BaseURL())
}

func wrapDialError(err error, baseURL string) error {
	if err == nil {
		return nil
	}
	var opErr *net.OpError
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: %s refused the connection; start it with `narrativd`: %w", baseURL, err)
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return fmt.Errorf("connect to daemon at %s: %w", baseURL, err)
	default:
		return err
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
