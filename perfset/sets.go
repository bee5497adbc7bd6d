package perfset

import (
	"context"
	"strings"

	"github.com/martin2250/perfstream/source"
	"github.com/martin2250/perfstream/source/hostsource"
	"gopkg.in/yaml.v3"
)

// CPU streams utilization per core and for the whole machine
type CPU struct {
	Options `yaml:",inline"`
	// PerCPU includes the individual cores, not only the total
	PerCPU bool
}

func (s *CPU) MeasurementName() string {
	if s.Measurement != "" {
		return s.Measurement
	}
	return "cpu"
}

func (s *CPU) ObjectType() string {
	return hostsource.TypeCPU
}

func (s *CPU) Counters() []string {
	return s.counters([]string{"busy", "user", "system", "iowait"})
}

func (s *CPU) FetchObjectTags(ctx context.Context, session source.Session) (map[string]map[string]string, error) {
	return s.objectTags(ctx, session, s.ObjectType(), func(id string, tags map[string]string) bool {
		return s.PerCPU || id == "cpu-total"
	})
}

// Memory streams the virtual memory statistics
type Memory struct {
	Options `yaml:",inline"`
}

func (s *Memory) MeasurementName() string {
	if s.Measurement != "" {
		return s.Measurement
	}
	return "memory"
}

func (s *Memory) ObjectType() string {
	return hostsource.TypeMemory
}

func (s *Memory) Counters() []string {
	return s.counters([]string{"total", "used", "available", "buffers", "cached", "used_percent"})
}

func (s *Memory) FetchObjectTags(ctx context.Context, session source.Session) (map[string]map[string]string, error) {
	return s.objectTags(ctx, session, s.ObjectType(), nil)
}

// Network streams the counters of network interfaces
type Network struct {
	Options `yaml:",inline"`
	// Interfaces restricts the set to these interfaces
	Interfaces []string
	// SkipLoopback ignores interfaces named lo*
	SkipLoopback bool
}

func (s *Network) MeasurementName() string {
	if s.Measurement != "" {
		return s.Measurement
	}
	return "net"
}

func (s *Network) ObjectType() string {
	return hostsource.TypeInterface
}

func (s *Network) Counters() []string {
	return s.counters([]string{"bytes_sent", "bytes_recv", "packets_sent", "packets_recv", "err_in", "err_out"})
}

func (s *Network) FetchObjectTags(ctx context.Context, session source.Session) (map[string]map[string]string, error) {
	return s.objectTags(ctx, session, s.ObjectType(), func(id string, tags map[string]string) bool {
		if s.SkipLoopback && strings.HasPrefix(id, "lo") {
			return false
		}
		return contains(s.Interfaces, id)
	})
}

// Disk streams io counters of block devices, tagged with their mount point
type Disk struct {
	Options `yaml:",inline"`
	// Devices restricts the set to these devices
	Devices []string
	// MountedOnly ignores devices without a mount point
	MountedOnly bool
}

func (s *Disk) MeasurementName() string {
	if s.Measurement != "" {
		return s.Measurement
	}
	return "diskio"
}

func (s *Disk) ObjectType() string {
	return hostsource.TypeDisk
}

func (s *Disk) Counters() []string {
	return s.counters([]string{"read_bytes", "write_bytes", "read_count", "write_count", "io_time"})
}

func (s *Disk) FetchObjectTags(ctx context.Context, session source.Session) (map[string]map[string]string, error) {
	return s.objectTags(ctx, session, s.ObjectType(), func(id string, tags map[string]string) bool {
		if s.MountedOnly && tags["path"] == "" {
			return false
		}
		return contains(s.Devices, id)
	})
}

// contains is true for an empty list
func contains(list []string, s string) bool {
	if len(list) == 0 {
		return true
	}
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func init() {
	Sets["cpu"] = func(node yaml.Node) (PerformanceSet, error) {
		cpu := CPU{}

		err := node.Decode(&cpu)

		if err != nil {
			return nil, err
		}

		return &cpu, nil
	}
}

func init() {
	Sets["memory"] = func(node yaml.Node) (PerformanceSet, error) {
		memory := Memory{}

		err := node.Decode(&memory)

		if err != nil {
			return nil, err
		}

		return &memory, nil
	}
}

func init() {
	Sets["network"] = func(node yaml.Node) (PerformanceSet, error) {
		network := Network{}

		err := node.Decode(&network)

		if err != nil {
			return nil, err
		}

		return &network, nil
	}
}

func init() {
	Sets["disk"] = func(node yaml.Node) (PerformanceSet, error) {
		disk := Disk{}

		err := node.Decode(&disk)

		if err != nil {
			return nil, err
		}

		return &disk, nil
	}
}
