//go:build test

package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/srg/blegatt/internal/ringchan"
)

type SubscribeTestSuite struct {
	CommandTestSuite
}

func (s *SubscribeTestSuite) TestSubscribeCount() {
	// GOAL: Verify notifications are printed in order and the subscription is removed afterwards
	//
	// TEST SCENARIO: peripheral sends 01, 02, 03 → subscribe --count 3 → three lines → unsubscribed

	s.Client.Notifications = [][]byte{{0x01}, {0x02}, {0x03}}

	out, err := s.ExecuteCommand("subscribe", TestDeviceAddress1, "--service", "180d", "--char", "2a37", "--count", "3")
	s.Require().NoError(err)
	s.Equal("01\n02\n03\n", out)
	s.False(s.Client.Subscribed("2a37"), "subscription MUST be removed before exit")
}

func (s *SubscribeTestSuite) TestSubscribeTimestamps() {
	// GOAL: Verify --timestamps prefixes every value with its arrival time
	//
	// TEST SCENARIO: one notification → subscribe --count 1 --timestamps → "<RFC3339> 0a 0b"

	s.Client.Notifications = [][]byte{{0x0a, 0x0b}}

	out, err := s.ExecuteCommand("subscribe", TestDeviceAddress1, "--service", "180d", "--char", "2a37", "--count", "1", "--timestamps")
	s.Require().NoError(err)

	fields := strings.SplitN(strings.TrimSpace(out), " ", 2)
	s.Require().Len(fields, 2)
	_, perr := time.Parse(time.RFC3339Nano, fields[0])
	s.NoError(perr, "prefix MUST be an RFC3339 timestamp")
	s.Equal("0a 0b", fields[1])
}

func (s *SubscribeTestSuite) TestSubscribeMissingCharacteristic() {
	// GOAL: Verify subscribing to an unknown characteristic fails
	//
	// TEST SCENARIO: subscribe --char ffff → targeted discovery finds nothing → NotFound

	_, err := s.ExecuteCommand("subscribe", TestDeviceAddress1, "--service", "180d", "--char", "ffff", "--count", "1")
	s.Require().Error(err)
	s.Equal("Characteristic not found.", err.Error())
}

func (s *SubscribeTestSuite) TestPrintNotificationsStops() {
	// GOAL: Verify the print loop ends on cancellation and reports link loss
	//
	// TEST SCENARIO: cancelled ctx → nil error; link lost → ErrConnectionLost wrapping the cause

	values := ringchan.New[notification](4)
	var sb strings.Builder

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := printNotifications(ctx, &sb, values, make(chan error), 0)
	s.NoError(err)
	s.Zero(n)

	lost := make(chan error, 1)
	cause := errors.New("supervision timeout")
	lost <- cause
	_, err = printNotifications(context.Background(), &sb, values, lost, 0)
	s.ErrorIs(err, ErrConnectionLost)
	s.Contains(err.Error(), "supervision timeout")
}

func TestSubscribeTestSuite(t *testing.T) {
	suite.Run(t, new(SubscribeTestSuite))
}
