package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/srg/blegatt/internal/bledb"
	"github.com/srg/blegatt/internal/device"
)

// servicesCmd represents the services command
var servicesCmd = &cobra.Command{
	Use:   "services <device-address>",
	Short: "Discover and print the attribute tree of a peripheral",
	Long: `Connects to a peripheral, discovers every service, characteristic and
descriptor, and prints them in discovery order.

Examples:
  # Text tree
  blegatt services AA:BB:CC:DD:EE:FF

  # Machine-readable output
  blegatt services AA:BB:CC:DD:EE:FF --json`,
	Args: cobra.ExactArgs(1),
	RunE: runServices,
}

var servicesJSON bool

func init() {
	servicesCmd.Flags().BoolVar(&servicesJSON, "json", false, "Output as JSON (overrides output_format)")
}

type servicesReport struct {
	Address  string        `json:"address"`
	MTU      int           `json:"mtu"`
	Services []serviceNode `json:"services"`
}

type serviceNode struct {
	UUID            string               `json:"uuid"`
	Name            string               `json:"name,omitempty"`
	Characteristics []characteristicNode `json:"characteristics"`
}

type characteristicNode struct {
	UUID        string   `json:"uuid"`
	Name        string   `json:"name,omitempty"`
	Properties  []string `json:"properties"`
	Descriptors []string `json:"descriptors"`
}

func runServices(cmd *cobra.Command, args []string) error {
	address := args[0]

	s, err := openSession(cmd, address)
	if err != nil {
		return err
	}
	defer s.Close()

	report := servicesReport{
		Address:  address,
		MTU:      s.dev.MTU(),
		Services: buildServiceTree(s.dev.Services()),
	}
	useJSON := s.cfg.OutputFormat == "json"
	if cmd.Flags().Changed("json") {
		useJSON = servicesJSON
	}
	if useJSON {
		return writeServicesJSON(cmd.OutOrStdout(), report)
	}
	writeServicesText(cmd.OutOrStdout(), report)
	return nil
}

// buildServiceTree snapshots the discovered attributes, keeping discovery order
func buildServiceTree(services []device.Service) []serviceNode {
	nodes := make([]serviceNode, 0, len(services))
	for _, svc := range services {
		node := serviceNode{UUID: svc.UUID(), Characteristics: []characteristicNode{}}
		node.Name, _ = bledb.LookupService(svc.UUID())
		for _, c := range svc.GetCharacteristics() {
			props := c.GetProperties().Names()
			if props == nil {
				props = []string{}
			}
			cn := characteristicNode{UUID: c.UUID(), Properties: props, Descriptors: []string{}}
			cn.Name, _ = bledb.LookupCharacteristic(c.UUID())
			for _, d := range c.GetDescriptors() {
				cn.Descriptors = append(cn.Descriptors, d.UUID())
			}
			node.Characteristics = append(node.Characteristics, cn)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func writeServicesJSON(w io.Writer, report servicesReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func writeServicesText(w io.Writer, report servicesReport) {
	fmt.Fprintf(w, "%s %s (MTU %d)\n", labelColor.Sprint("Peripheral"), report.Address, report.MTU)
	if len(report.Services) == 0 {
		_, _ = dimColor.Fprintln(w, "  no services")
		return
	}
	for _, svc := range report.Services {
		fmt.Fprintf(w, "  %s %s%s\n", labelColor.Sprint("Service"), svc.UUID, nameSuffix(svc.Name))
		for _, c := range svc.Characteristics {
			fmt.Fprintf(w, "    %s %s%s [%s]\n", labelColor.Sprint("Characteristic"), c.UUID, nameSuffix(c.Name), strings.Join(c.Properties, ","))
			for _, d := range c.Descriptors {
				name, _ := bledb.LookupDescriptor(d)
				fmt.Fprintf(w, "      %s %s%s\n", labelColor.Sprint("Descriptor"), d, nameSuffix(name))
			}
		}
	}
}

func nameSuffix(name string) string {
	if name == "" {
		return ""
	}
	return " " + dimColor.Sprintf("(%s)", name)
}
