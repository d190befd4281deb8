package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/blegatt/pkg/config"
)

// configureLogger creates a logger with the appropriate log level based on flags.
// --log-level takes precedence over --verbose; both override the config file.
// Without either the logger stays silent (panic level).
func configureLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, error) {
	if name, _ := cmd.Flags().GetString("log-level"); name != "" {
		if err := cfg.SetLogLevel(name); err != nil {
			return nil, err
		}
	} else if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = logrus.DebugLevel
	}

	return cfg.NewLogger(), nil
}
