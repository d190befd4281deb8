//go:build test

package main

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type QueryTestSuite struct {
	CommandTestSuite
}

func (s *QueryTestSuite) TestRSSI() {
	// GOAL: Verify rssi prints the decimal dBm value
	//
	// TEST SCENARIO: peripheral at -67 dBm → rssi → "-67"

	s.Client.RSSI = -67

	out, err := s.ExecuteCommand("rssi", TestDeviceAddress1)
	s.Require().NoError(err)
	s.Equal("-67\n", out)
}

func (s *QueryTestSuite) TestMTU() {
	// GOAL: Verify mtu reports the negotiated MTU and the write payload limit
	//
	// TEST SCENARIO: MTU exchange yields 185 → mtu → "mtu=185 max_write=182"

	s.Client.MTU = 185

	out, err := s.ExecuteCommand("mtu", TestDeviceAddress1)
	s.Require().NoError(err)
	s.Equal("mtu=185 max_write=182\n", out)
}

func TestQueryTestSuite(t *testing.T) {
	suite.Run(t, new(QueryTestSuite))
}
