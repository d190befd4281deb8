package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/blegatt/internal/device"
	goble "github.com/srg/blegatt/internal/device/go-ble"
	"github.com/srg/blegatt/pkg/config"
)

// disconnectGrace bounds how long Close waits for the link teardown to be reported
const disconnectGrace = 2 * time.Second

// addSessionFlags registers the flags shared by every command
func addSessionFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()
	flags := cmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML configuration file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("verbose", false, "Enable debug logging (same as --log-level debug)")
	flags.Bool("no-color", false, "Disable colored output")
	flags.Duration("timeout", defaults.OperationTimeout, "Timeout of each GATT operation")
	flags.Duration("connect-timeout", defaults.ConnectTimeout, "Timeout of link establishment and discovery")
}

// loadConfig reads the --config file and applies command-line overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("timeout") {
		cfg.OperationTimeout, _ = cmd.Flags().GetDuration("timeout")
	}
	if cmd.Flags().Changed("connect-timeout") {
		cfg.ConnectTimeout, _ = cmd.Flags().GetDuration("connect-timeout")
	}
	if cfg.OperationTimeout <= 0 || cfg.ConnectTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be positive (timeout=%v, connect-timeout=%v)", cfg.OperationTimeout, cfg.ConnectTimeout)
	}
	if cfg.EventBuffer < 1 || cfg.NotifyBuffer < 1 {
		return nil, fmt.Errorf("buffers must hold at least one entry (event_buffer=%d, notify_buffer=%d)", cfg.EventBuffer, cfg.NotifyBuffer)
	}
	switch cfg.OutputFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("unsupported output_format %q (want text or json)", cfg.OutputFormat)
	}
	return cfg, nil
}

// session is a connected peripheral driven by the engine for the duration of one command
type session struct {
	cfg       *config.Config
	logger    *logrus.Logger
	transport *goble.Transport
	dev       *device.Device

	// linkLost receives the disconnection reason once the link goes down
	linkLost chan error
	cancel   context.CancelFunc
}

// openSession connects to address and waits until the attribute tree is discovered.
func openSession(cmd *cobra.Command, address string) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	// The engine outlives Ctrl+C so Close can still unsubscribe and disconnect
	ctx, cancel := context.WithCancel(context.WithoutCancel(cmd.Context()))
	s := &session{
		cfg:      cfg,
		logger:   logger,
		linkLost: make(chan error, 1),
		cancel:   cancel,
	}
	s.transport = goble.NewTransport(ctx, goble.Options{
		Address:        address,
		ConnectTimeout: cfg.ConnectTimeout,
		EventBuffer:    cfg.EventBuffer,
		Logger:         logger,
	})
	s.dev = device.New(s.transport, &device.Options{
		Logger: logger,
		OnDisconnect: func(err error) {
			select {
			case s.linkLost <- err:
			default:
			}
		},
	})
	s.dev.Start(ctx)

	if isTerminal(os.Stderr) {
		progress := NewProgressPrinter(cmd.ErrOrStderr(), fmt.Sprintf("Connecting to %s", address), "Discovering")
		progress.Start()
		defer progress.Stop()
	}

	// Dialing and discovery share one deadline on top of the per-operation budget
	res := device.Await(cmd.Context(), func(cb device.Callback) {
		s.dev.Connect(cmd.Context(), cfg.ConnectTimeout+cfg.OperationTimeout, cb)
	})
	if !res.Success() {
		s.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", address, res.Err)
	}

	logger.WithFields(logrus.Fields{
		"address":  address,
		"services": len(s.dev.Services()),
		"mtu":      s.dev.MTU(),
	}).Info("Peripheral ready")
	return s, nil
}

// Close disconnects the peripheral and stops the engine
func (s *session) Close() {
	if s.dev.IsConnected() {
		s.dev.Disconnect()
		select {
		case <-s.linkLost:
		case <-time.After(disconnectGrace):
			s.logger.Warn("Timed out waiting for disconnection")
		}
	}
	s.shutdown()
}

func (s *session) shutdown() {
	s.transport.Close()
	s.cancel()
}
