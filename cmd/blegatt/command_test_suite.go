//go:build test

package main

import (
	"bytes"
	"context"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	goble "github.com/srg/blegatt/internal/device/go-ble"
	"github.com/srg/blegatt/internal/testutils"
)

// Test device addresses for consistent mock device identification
const (
	TestDeviceAddress1 = "00:00:00:00:00:01"
)

// cliProfileJSON is the peripheral every command test talks to unless a suite configures its own
const cliProfileJSON = `
{
	"services": [
		{
			"uuid": "180F",
			"characteristics": [
				{ "uuid": "2A19", "properties": "read,notify", "value": [50], "descriptors": ["2902", "2901"] }
			]
		},
		{
			"uuid": "180D",
			"characteristics": [
				{ "uuid": "2A37", "properties": "notify", "descriptors": ["2902"] },
				{ "uuid": "2A39", "properties": "write,write-without-response" }
			]
		}
	]
}`

// CommandTestSuite runs CLI commands end to end: the real go-ble transport and
// engine over a FakeGATTClient returned from goble.Dial.
// All cmd/blegatt test suites should embed this.
type CommandTestSuite struct {
	testutils.MockPeripheralSuite

	Client      *testutils.FakeGATTClient
	DialedAddrs []string

	originalDial       func(context.Context, string) (goble.GATTClient, error)
	originalIsTerminal func(*os.File) bool
}

// SetupTest builds the fake peripheral from the configured profile and
// routes dialing to it.
func (s *CommandTestSuite) SetupTest() {
	if s.PeripheralBuilder == nil {
		s.WithPeripheral().FromJSON(cliProfileJSON)
	}
	s.MockPeripheralSuite.SetupTest()

	s.Client = testutils.NewFakeGATTClient(s.PeripheralBuilder.BuildBLE())
	s.DialedAddrs = nil

	s.originalDial = goble.Dial
	goble.Dial = func(_ context.Context, address string) (goble.GATTClient, error) {
		s.DialedAddrs = append(s.DialedAddrs, address)
		return s.Client.Redial(), nil
	}
	s.originalIsTerminal = isTerminal
	isTerminal = func(*os.File) bool { return false }

	resetFlags(rootCmd)
}

// TearDownTest restores the dialer
func (s *CommandTestSuite) TearDownTest() {
	goble.Dial = s.originalDial
	isTerminal = s.originalIsTerminal
	s.MockPeripheralSuite.TearDownTest()
}

// ExecuteCommand runs the root command with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// resetFlags restores every flag of cmd and its subcommands to its default,
// since cobra keeps parsed values between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}
