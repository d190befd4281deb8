// Package bledb resolves well-known GATT UUIDs to their assigned names.
package bledb

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/srg/blegatt/internal/device"
)

//go:embed uuids.yaml
var uuidsYAML []byte

type database struct {
	Services        map[string]string `yaml:"services"`
	Characteristics map[string]string `yaml:"characteristics"`
	Descriptors     map[string]string `yaml:"descriptors"`
}

var (
	loadOnce sync.Once
	db       database
)

func load() *database {
	loadOnce.Do(func() {
		if err := yaml.Unmarshal(uuidsYAML, &db); err != nil {
			panic(fmt.Sprintf("bledb: embedded uuids.yaml is invalid: %v", err))
		}
	})
	return &db
}

func lookup(table map[string]string, uuid string) (string, bool) {
	name, ok := table[device.NormalizeUUID(uuid)]
	return name, ok
}

// LookupService returns the assigned name of a service UUID in any accepted form
func LookupService(uuid string) (string, bool) {
	return lookup(load().Services, uuid)
}

// LookupCharacteristic returns the assigned name of a characteristic UUID
func LookupCharacteristic(uuid string) (string, bool) {
	return lookup(load().Characteristics, uuid)
}

// LookupDescriptor returns the assigned name of a descriptor UUID
func LookupDescriptor(uuid string) (string, bool) {
	return lookup(load().Descriptors, uuid)
}
