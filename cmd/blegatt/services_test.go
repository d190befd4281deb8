//go:build test

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/srg/blegatt/internal/testutils"
)

type ServicesTestSuite struct {
	CommandTestSuite
}

func (s *ServicesTestSuite) TestServicesText() {
	// GOAL: Verify the attribute tree is printed in discovery order
	//
	// TEST SCENARIO: services <addr> → connect + full discovery → indented tree with properties and descriptors

	out, err := s.ExecuteCommand("services", TestDeviceAddress1)
	s.Require().NoError(err)

	testutils.NewTextAsserter(s.T()).Assert(out, `
Peripheral 00:00:00:00:00:01 (MTU 23)
  Service 180f (Battery Service)
    Characteristic 2a19 (Battery Level) [Read,Notify]
      Descriptor 2902 (Client Characteristic Configuration)
      Descriptor 2901 (Characteristic User Description)
  Service 180d (Heart Rate)
    Characteristic 2a37 (Heart Rate Measurement) [Notify]
      Descriptor 2902 (Client Characteristic Configuration)
    Characteristic 2a39 (Heart Rate Control Point) [WriteWithoutResponse,Write]`)
	s.Equal([]string{TestDeviceAddress1}, s.DialedAddrs, "device MUST be dialed once")
}

func (s *ServicesTestSuite) TestServicesJSON() {
	// GOAL: Verify --json emits the same tree as a machine-readable document
	//
	// TEST SCENARIO: services <addr> --json → JSON with address, MTU and ordered services

	s.Client.MTU = 185

	out, err := s.ExecuteCommand("services", TestDeviceAddress1, "--json")
	s.Require().NoError(err)

	testutils.NewJSONAsserter(s.T()).Assert(out, `
	{
		"address": "<<PRESENCE>>",
		"mtu": 185,
		"services": [
			{
				"uuid": "180f",
				"name": "Battery Service",
				"characteristics": [
					{ "uuid": "2a19", "name": "Battery Level", "properties": ["Read", "Notify"], "descriptors": ["2902", "2901"] }
				]
			},
			{
				"uuid": "180d",
				"name": "Heart Rate",
				"characteristics": [
					{ "uuid": "2a37", "name": "Heart Rate Measurement", "properties": ["Notify"], "descriptors": ["2902"] },
					{ "uuid": "2a39", "name": "Heart Rate Control Point", "properties": ["WriteWithoutResponse", "Write"], "descriptors": [] }
				]
			}
		]
	}`)
}

func (s *ServicesTestSuite) TestServicesOutputFormatFromConfig() {
	// GOAL: Verify output_format from the config file selects the report format and --json overrides it
	//
	// TEST SCENARIO: config output_format: json → JSON report; same config with --json=false → text tree

	path := filepath.Join(s.T().TempDir(), "blegatt.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("output_format: json\n"), 0o600))

	s.Run("config selects json", func() {
		resetFlags(rootCmd)
		out, err := s.ExecuteCommand("services", TestDeviceAddress1, "--config", path)
		s.Require().NoError(err)
		s.True(strings.HasPrefix(out, "{"), "expected a JSON document, got:\n%s", out)
		testutils.NewJSONAsserter(s.T(), testutils.WithIgnoreExtraKeys(true)).Assert(out, `{"mtu": 23}`)
	})

	s.Run("flag overrides config", func() {
		resetFlags(rootCmd)
		out, err := s.ExecuteCommand("services", TestDeviceAddress1, "--config", path, "--json=false")
		s.Require().NoError(err)
		s.True(strings.HasPrefix(out, "Peripheral 00:00:00:00:00:01 (MTU 23)"), "expected the text tree, got:\n%s", out)
	})

	s.Run("unknown format is rejected before dialing", func() {
		resetFlags(rootCmd)
		s.DialedAddrs = nil
		bad := filepath.Join(s.T().TempDir(), "bad.yaml")
		s.Require().NoError(os.WriteFile(bad, []byte("output_format: xml\n"), 0o600))

		_, err := s.ExecuteCommand("services", TestDeviceAddress1, "--config", bad)
		s.Require().Error(err)
		s.Contains(err.Error(), `unsupported output_format "xml"`)
		s.Empty(s.DialedAddrs)
	})
}

func (s *ServicesTestSuite) TestBuildServiceTree() {
	// GOAL: Verify the tree snapshot never emits null arrays
	//
	// TEST SCENARIO: Profile with a bare characteristic → properties and descriptors are empty slices

	tree := buildServiceTree(testutils.NewPeripheralDeviceBuilder().
		WithService("1234").
		WithCharacteristic("5678", "broadcast", nil).
		Build().Services())

	s.Require().Len(tree, 1)
	s.Require().Len(tree[0].Characteristics, 1)
	s.Equal([]string{"Broadcast"}, tree[0].Characteristics[0].Properties)
	s.Empty(tree[0].Name, "unknown UUIDs MUST stay unnamed")
	s.NotNil(tree[0].Characteristics[0].Descriptors)
	s.Empty(tree[0].Characteristics[0].Descriptors)
}

func TestServicesTestSuite(t *testing.T) {
	suite.Run(t, new(ServicesTestSuite))
}
