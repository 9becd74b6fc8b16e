// Command narrativd serves the Narrativ REST API: planning, image generation,
// and board persistence.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"narrativ/internal/config"
	"narrativ/internal/daemonrun"
	"narrativ/internal/logging"
)

func newRootCommand() *cobra.Command {
	var configPath string
	var bind string

	cmd := &cobra.Command{
		Use:           "narrativd",
		Short:         "Run the Narrativ daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, bind)
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			err = daemonrun.Run(cmd.Context(), cfg, logger)
			logger.Info("narrativd shutting down")
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides paths.api_bind)")
	return cmd
}

func loadConfig(path, bind string) (*config.Config, error) {
	cfg, _, _, err := config.Load(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if bind = strings.TrimSpace(bind); bind != "" {
		cfg.Paths.APIBind = bind
	}
	return cfg, nil
}
