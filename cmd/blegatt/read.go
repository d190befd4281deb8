package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/srg/blegatt/internal/codec"
	"github.com/srg/blegatt/internal/device"
)

// readCmd represents the read command
var readCmd = &cobra.Command{
	Use:   "read <device-address>",
	Short: "Read a characteristic or descriptor value",
	Long: `Reads a characteristic (hex pairs, e.g. "0a 1b") or a descriptor
(contiguous hex, e.g. "0100"). Well-known descriptors are decoded as well.

Examples:
  # Read Battery Level characteristic
  blegatt read AA:BB:CC:DD:EE:FF --service 180f --char 2a19

  # Read the Client Characteristic Configuration descriptor
  blegatt read AA:BB:CC:DD:EE:FF --service 180d --char 2a37 --desc 2902`,
	Args: cobra.ExactArgs(1),
	RunE: runRead,
}

var (
	readServiceUUID string
	readCharUUID    string
	readDescUUID    string
)

func init() {
	readCmd.Flags().StringVar(&readServiceUUID, "service", "", "Service UUID")
	readCmd.Flags().StringVar(&readCharUUID, "char", "", "Characteristic UUID")
	readCmd.Flags().StringVar(&readDescUUID, "desc", "", "Descriptor UUID (reads descriptor instead of characteristic)")
	_ = readCmd.MarkFlagRequired("service")
	_ = readCmd.MarkFlagRequired("char")
}

func runRead(cmd *cobra.Command, args []string) error {
	if _, err := device.ValidateUUID(readServiceUUID, readCharUUID); err != nil {
		return err
	}
	if readDescUUID != "" {
		if _, err := device.ValidateUUID(readDescUUID); err != nil {
			return err
		}
	}

	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	timeout := s.cfg.OperationTimeout
	res := device.Await(cmd.Context(), func(cb device.Callback) {
		if readDescUUID != "" {
			s.dev.ReadDescriptor(readServiceUUID, readCharUUID, readDescUUID, timeout, cb)
			return
		}
		s.dev.Read(readServiceUUID, readCharUUID, timeout, cb)
	})
	if !res.Success() {
		return res.Err
	}

	if readDescUUID != "" {
		return writeDescriptorValue(cmd.OutOrStdout(), readDescUUID, res.Value)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Value)
	return nil
}

// writeDescriptorValue prints a descriptor value followed by its decoded
// meaning when the descriptor type is known.
func writeDescriptorValue(w io.Writer, uuid, value string) error {
	data, err := codec.DecodeDescriptor(value)
	if err != nil {
		return err
	}
	desc, ok, err := device.DescribeDescriptorValue(uuid, data)
	switch {
	case err != nil:
		fmt.Fprintf(w, "%s %s\n", value, dimColor.Sprintf("(malformed: %v)", err))
	case ok:
		fmt.Fprintf(w, "%s %s\n", value, dimColor.Sprintf("(%s)", desc))
	default:
		fmt.Fprintln(w, value)
	}
	return nil
}
