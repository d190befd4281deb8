//go:build test

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/srg/blegatt/internal/device"
	goble "github.com/srg/blegatt/internal/device/go-ble"
)

type SessionTestSuite struct {
	CommandTestSuite
}

func (s *SessionTestSuite) TestConnectFailure() {
	// GOAL: Verify a failed dial surfaces as a transport error with a friendly message
	//
	// TEST SCENARIO: dial reports Bluetooth off → rssi → TransportError wrapping ErrBluetoothOff

	goble.Dial = func(context.Context, string) (goble.GATTClient, error) {
		return nil, errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?")
	}

	_, err := s.ExecuteCommand("rssi", TestDeviceAddress1)
	s.Require().Error(err)
	s.ErrorIs(err, device.ErrTransport)
	s.ErrorIs(err, goble.ErrBluetoothOff)
	s.Contains(err.Error(), "failed to connect to 00:00:00:00:00:01")
	s.Equal("Bluetooth is turned off or unavailable; enable it and try again", FormatUserError(err))
}

func (s *SessionTestSuite) TestConsecutiveSessions() {
	// GOAL: Verify every command gets its own link and a previous disconnect does not leak into the next one
	//
	// TEST SCENARIO: rssi → disconnect → rssi → read on the same peripheral → all succeed, three dials

	s.Client.RSSI = -50

	for n := 0; n < 2; n++ {
		resetFlags(rootCmd)
		out, err := s.ExecuteCommand("rssi", TestDeviceAddress1)
		s.Require().NoError(err)
		s.Equal("-50\n", out)
	}

	resetFlags(rootCmd)
	out, err := s.ExecuteCommand("read", TestDeviceAddress1, "--service", "180F", "--char", "2A19")
	s.Require().NoError(err)
	s.Equal("32\n", out)

	s.Len(s.DialedAddrs, 3)
}

func (s *SessionTestSuite) TestFailedDiscoveryDropsLink() {
	// GOAL: Verify a connect that fails after the link came up does not leave the link open
	//
	// TEST SCENARIO: dial succeeds → service discovery fails → command fails → link cancelled

	s.Client.DiscoverErr = errors.New("att: request not supported")

	_, err := s.ExecuteCommand("rssi", TestDeviceAddress1)
	s.Require().Error(err)
	s.Contains(err.Error(), "failed to connect to 00:00:00:00:00:01")
	s.Contains(err.Error(), "att: request not supported")
	s.False(s.Client.LinkUp(), "link MUST be cancelled after a failed connect")
}

func (s *SessionTestSuite) TestConfigFile() {
	// GOAL: Verify the config file is loaded and flags override it
	//
	// TEST SCENARIO: file with timeouts → loadConfig → file values; --timeout given → flag wins

	path := filepath.Join(s.T().TempDir(), "blegatt.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("operation_timeout: 7s\nconnect_timeout: 3s\nnotify_buffer: 8\n"), 0o600))

	s.Require().NoError(rssiCmd.ParseFlags([]string{"--config", path, "--timeout", "2s"}))
	cfg, err := loadConfig(rssiCmd)
	s.Require().NoError(err)
	s.Equal(2*time.Second, cfg.OperationTimeout, "flag MUST override the file")
	s.Equal(3*time.Second, cfg.ConnectTimeout)
	s.Equal(8, cfg.NotifyBuffer)
}

func (s *SessionTestSuite) TestInvalidSettings() {
	// GOAL: Verify bad settings are reported before dialing
	//
	// TEST SCENARIO: missing config file / unknown log level / zero timeout / empty buffer → error → never dialed

	noBuffer := filepath.Join(s.T().TempDir(), "nobuffer.yaml")
	s.Require().NoError(os.WriteFile(noBuffer, []byte("event_buffer: -1\n"), 0o600))

	tests := []struct {
		args     []string
		contains string
	}{
		{[]string{"--config", filepath.Join(s.T().TempDir(), "absent.yaml")}, "failed to read config"},
		{[]string{"--log-level", "loud"}, `invalid log level "loud"`},
		{[]string{"--timeout", "0s"}, "timeouts must be positive"},
		{[]string{"--config", noBuffer}, "buffers must hold at least one entry"},
	}

	for _, tt := range tests {
		s.Run(tt.contains, func() {
			resetFlags(rootCmd)
			_, err := s.ExecuteCommand(append([]string{"rssi", TestDeviceAddress1}, tt.args...)...)
			s.Require().Error(err)
			s.Contains(err.Error(), tt.contains)
		})
	}
	s.Empty(s.DialedAddrs)
}

func (s *SessionTestSuite) TestFormatUserError() {
	opErr := &device.OpError{Kind: device.Timeout, Msg: "Read timeout."}

	s.Equal("Read timeout. (timeout)", FormatUserError(fmt.Errorf("wrapped: %w", opErr)))
	s.Equal("connection to the peripheral was lost", FormatUserError(fmt.Errorf("%w: reset", ErrConnectionLost)))
	s.Equal("operation did not complete in time", FormatUserError(context.DeadlineExceeded))
	s.Equal("plain", FormatUserError(errors.New("plain")))
}

func (s *SessionTestSuite) TestFormatVersion() {
	s.Equal("v1.2.3", formatVersion("1.2.3"))
	s.Equal("dev", formatVersion("dev"))
	s.Equal("", formatVersion(""))
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
