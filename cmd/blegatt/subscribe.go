package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/blegatt/internal/device"
	"github.com/srg/blegatt/internal/ringchan"
)

// subscribeCmd represents the subscribe command
var subscribeCmd = &cobra.Command{
	Use:   "subscribe <device-address>",
	Short: "Print characteristic notifications",
	Long: `Subscribes to notifications (or indications) of a characteristic and prints
every value until --count values were received or Ctrl+C is pressed, then
unsubscribes.

Examples:
  # Heart Rate Measurement until Ctrl+C
  blegatt subscribe AA:BB:CC:DD:EE:FF --service 180d --char 2a37

  # First 10 values with timestamps
  blegatt subscribe AA:BB:CC:DD:EE:FF --service 180d --char 2a37 --count 10 --timestamps`,
	Args: cobra.ExactArgs(1),
	RunE: runSubscribe,
}

var (
	subscribeServiceUUID string
	subscribeCharUUID    string
	subscribeCount       int
	subscribeTimestamps  bool
)

func init() {
	subscribeCmd.Flags().StringVar(&subscribeServiceUUID, "service", "", "Service UUID")
	subscribeCmd.Flags().StringVar(&subscribeCharUUID, "char", "", "Characteristic UUID")
	subscribeCmd.Flags().IntVar(&subscribeCount, "count", 0, "Stop after this many values (0 = until interrupted)")
	subscribeCmd.Flags().BoolVar(&subscribeTimestamps, "timestamps", false, "Prefix every value with its arrival time")
	_ = subscribeCmd.MarkFlagRequired("service")
	_ = subscribeCmd.MarkFlagRequired("char")
}

// notification is one delivered value with its arrival time
type notification struct {
	at    time.Time
	value string
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	if _, err := device.ValidateUUID(subscribeServiceUUID, subscribeCharUUID); err != nil {
		return err
	}
	if subscribeCount < 0 {
		return fmt.Errorf("--count must not be negative, got %d", subscribeCount)
	}

	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	// Notifications arrive on the event loop; a slow terminal must not stall it
	values := ringchan.New[notification](s.cfg.NotifyBuffer)
	defer values.Close()
	notify := func(r device.Result) {
		if values.Send(notification{at: time.Now(), value: r.Value}) {
			s.logger.Debug("Notification buffer full, dropped the oldest value")
		}
	}

	ctx := cmd.Context()
	timeout := s.cfg.OperationTimeout
	res := device.Await(ctx, func(cb device.Callback) {
		s.dev.SetNotifications(subscribeServiceUUID, subscribeCharUUID, true, notify, timeout, cb)
	})
	if !res.Success() {
		return res.Err
	}
	s.logger.Info(res.Value)

	received, err := printNotifications(ctx, cmd.OutOrStdout(), values, s.linkLost, subscribeCount)

	stats := values.Stats()
	s.logger.WithFields(logrus.Fields{
		"received": received,
		"dropped":  stats.Overwritten,
	}).Info("Subscription finished")
	if err != nil {
		return err
	}

	// Unsubscribe even after Ctrl+C
	unsubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout+time.Second)
	defer cancel()
	res = device.Await(unsubCtx, func(cb device.Callback) {
		s.dev.SetNotifications(subscribeServiceUUID, subscribeCharUUID, false, nil, timeout, cb)
	})
	if !res.Success() {
		s.logger.WithError(res.Err).Warn("Failed to unsubscribe")
	}
	return nil
}

// printNotifications writes values until count values were printed (0 means no
// limit), ctx is done, or the link is lost.
func printNotifications(ctx context.Context, w io.Writer, values *ringchan.RingChannel[notification], linkLost <-chan error, count int) (int, error) {
	printed := 0
	for count == 0 || printed < count {
		select {
		case <-ctx.Done():
			return printed, nil
		case err := <-linkLost:
			if err != nil {
				return printed, fmt.Errorf("%w: %v", ErrConnectionLost, err)
			}
			return printed, ErrConnectionLost
		case n, ok := <-values.C():
			if !ok {
				return printed, nil
			}
			if subscribeTimestamps {
				fmt.Fprintf(w, "%s %s\n", dimColor.Sprint(n.at.Format(time.RFC3339Nano)), n.value)
			} else {
				fmt.Fprintln(w, n.value)
			}
			printed++
		}
	}
	return printed, nil
}
