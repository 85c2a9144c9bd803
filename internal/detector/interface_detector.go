package detector

import (
	"fmt"

	psnet "github.com/shirou/gopsutil/v4/net"
)

// InterfaceDetector checks for a network interface named like the configuration.
// wg-quick names the interface after the configuration file.
type InterfaceDetector struct {
	Name string

	// list is replaceable in tests.
	list func() (psnet.InterfaceStatList, error)
}

func (d InterfaceDetector) Alive() (bool, error) {
	list := d.list
	if list == nil {
		list = psnet.Interfaces
	}
	ifaces, err := list()
	if err != nil {
		return false, fmt.Errorf("list interfaces: %w", err)
	}
	for _, i := range ifaces {
		if i.Name == d.Name {
			return true, nil
		}
	}
	return false, nil
}

func (d InterfaceDetector) Describe() string { return "iface:" + d.Name }
