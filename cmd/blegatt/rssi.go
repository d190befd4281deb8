package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srg/blegatt/internal/device"
)

// rssiCmd represents the rssi command
var rssiCmd = &cobra.Command{
	Use:   "rssi <device-address>",
	Short: "Print the signal strength of a connected peripheral (dBm)",
	Args:  cobra.ExactArgs(1),
	RunE:  runRSSI,
}

// mtuCmd represents the mtu command
var mtuCmd = &cobra.Command{
	Use:   "mtu <device-address>",
	Short: "Print the negotiated ATT MTU and the largest single write payload",
	Args:  cobra.ExactArgs(1),
	RunE:  runMTU,
}

func runRSSI(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	res := device.Await(cmd.Context(), func(cb device.Callback) {
		s.dev.ReadRSSI(s.cfg.OperationTimeout, cb)
	})
	if !res.Success() {
		return res.Err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Value)
	return nil
}

func runMTU(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	mtu := s.dev.MTU()
	fmt.Fprintf(cmd.OutOrStdout(), "mtu=%d max_write=%d\n", mtu, mtu-3)
	return nil
}
