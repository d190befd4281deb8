package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srg/blegatt/internal/codec"
	"github.com/srg/blegatt/internal/device"
)

// writeCmd represents the write command
var writeCmd = &cobra.Command{
	Use:   "write <device-address> <hex>",
	Short: "Write a characteristic or descriptor value",
	Long: `Writes hex data to a characteristic or descriptor. Spaces, ':' and '-'
separators and 0x prefixes are accepted.

Examples:
  # Acknowledged write
  blegatt write AA:BB:CC:DD:EE:FF --service 180d --char 2a39 01

  # Unacknowledged write
  blegatt write AA:BB:CC:DD:EE:FF --service 180d --char 2a39 --without-response "01 02"

  # Enable notifications through the CCCD
  blegatt write AA:BB:CC:DD:EE:FF --service 180d --char 2a37 --desc 2902 0100`,
	Args: cobra.ExactArgs(2),
	RunE: runWrite,
}

var (
	writeServiceUUID     string
	writeCharUUID        string
	writeDescUUID        string
	writeWithoutResponse bool
)

func init() {
	writeCmd.Flags().StringVar(&writeServiceUUID, "service", "", "Service UUID")
	writeCmd.Flags().StringVar(&writeCharUUID, "char", "", "Characteristic UUID")
	writeCmd.Flags().StringVar(&writeDescUUID, "desc", "", "Descriptor UUID (writes descriptor instead of characteristic)")
	writeCmd.Flags().BoolVar(&writeWithoutResponse, "without-response", false, "Write without response (characteristics only)")
	_ = writeCmd.MarkFlagRequired("service")
	_ = writeCmd.MarkFlagRequired("char")
}

func runWrite(cmd *cobra.Command, args []string) error {
	address, value := args[0], args[1]

	if _, err := device.ValidateUUID(writeServiceUUID, writeCharUUID); err != nil {
		return err
	}
	if writeDescUUID != "" {
		if _, err := device.ValidateUUID(writeDescUUID); err != nil {
			return err
		}
		if writeWithoutResponse {
			return fmt.Errorf("--without-response cannot be combined with --desc")
		}
	}
	data, err := codec.Decode(value)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, address)
	if err != nil {
		return err
	}
	defer s.Close()

	if limit := s.dev.MTU() - 3; len(data) > limit {
		s.logger.WithField("limit", limit).Warn("Value exceeds a single ATT write; the stack may fail or split it")
	}

	mode := device.WithResponse
	if writeWithoutResponse {
		mode = device.WithoutResponse
	}

	timeout := s.cfg.OperationTimeout
	res := device.Await(cmd.Context(), func(cb device.Callback) {
		if writeDescUUID != "" {
			s.dev.WriteDescriptor(writeServiceUUID, writeCharUUID, writeDescUUID, codec.EncodeDescriptor(data), timeout, cb)
			return
		}
		s.dev.Write(writeServiceUUID, writeCharUUID, codec.Encode(data), mode, timeout, cb)
	})
	if !res.Success() {
		return res.Err
	}

	printSuccess(cmd.OutOrStdout(), "%s", res.Value)
	return nil
}
