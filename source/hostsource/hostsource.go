// Package hostsource polls performance counters of the local host
package hostsource

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/martin2250/perfstream/source"
	"github.com/martin2250/perfstream/util"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/net"
)

// object types provided by the host source
const (
	TypeCPU       = "cpu"
	TypeMemory    = "memory"
	TypeInterface = "interface"
	TypeDisk      = "disk"
)

const cpuTotal = "cpu-total"

// Host is the local machine as a polling source
type Host struct {
	// Label replaces the hostname in the source name
	Label string
	// Resolution rounds sample timestamps down to a multiple of itself
	Resolution time.Duration
}

func (h *Host) Name() string {
	if h.Label != "" {
		return h.Label
	}
	name, err := host.Info()
	if err != nil {
		return "localhost"
	}
	return name.Hostname
}

// Open reads the host information and primes the cpu counters
func (h *Host) Open(ctx context.Context) (source.Session, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, &source.NotFoundError{Source: h.Name(), Object: "host information"}
	}

	s := &Session{
		hostname:   info.Hostname,
		resolution: int64(h.Resolution / time.Second),
		lastTimes:  make(map[string]cpu.TimesStat),
	}

	if err := s.readCPUTimes(ctx); err != nil {
		return nil, fmt.Errorf("could not read cpu times: %w", err)
	}

	return s, nil
}

// Session caches the previous cpu times to compute utilization
type Session struct {
	hostname   string
	resolution int64

	mux       sync.Mutex
	lastTimes map[string]cpu.TimesStat
	lastRead  map[string]map[string]float64
}

func (s *Session) Close() error {
	return nil
}

func (s *Session) timestamp() int64 {
	return util.RoundDown(time.Now().Unix(), s.resolution)
}

func (s *Session) Objects(ctx context.Context, objectType string) (map[string]map[string]string, error) {
	objects := make(map[string]map[string]string)

	switch objectType {
	case TypeCPU:
		s.mux.Lock()
		defer s.mux.Unlock()
		for name := range s.lastTimes {
			objects[name] = map[string]string{"host": s.hostname, "cpu": name}
		}
	case TypeMemory:
		objects[TypeMemory] = map[string]string{"host": s.hostname}
	case TypeInterface:
		counters, err := net.IOCountersWithContext(ctx, true)
		if err != nil {
			return nil, err
		}
		for _, c := range counters {
			objects[c.Name] = map[string]string{"host": s.hostname, "interface": c.Name}
		}
	case TypeDisk:
		counters, err := disk.IOCountersWithContext(ctx)
		if err != nil {
			return nil, err
		}
		mounts := make(map[string]string)
		if partitions, err := disk.PartitionsWithContext(ctx, false); err == nil {
			for _, p := range partitions {
				mounts[filepath.Base(p.Device)] = p.Mountpoint
			}
		}
		for name := range counters {
			objects[name] = map[string]string{"host": s.hostname, "device": name, "path": mounts[name]}
		}
	default:
		return nil, &source.NotFoundError{Source: s.hostname, Object: "object type " + objectType}
	}

	return objects, nil
}

func (s *Session) QueryPerf(ctx context.Context, q source.PerfQuery) ([]source.MetricChunk, error) {
	var values map[string]map[string]float64
	var err error

	switch q.ObjectType {
	case TypeCPU:
		values, err = s.cpuValues(ctx)
	case TypeMemory:
		values, err = memoryValues(ctx)
	case TypeInterface:
		values, err = interfaceValues(ctx)
	case TypeDisk:
		values, err = diskValues(ctx)
	default:
		return nil, &source.NotFoundError{Source: s.hostname, Object: "object type " + q.ObjectType}
	}

	if err != nil {
		return nil, err
	}

	ts := s.timestamp()
	chunks := make([]source.MetricChunk, 0, len(q.Objects))

	for _, object := range q.Objects {
		counters, ok := values[object]
		if !ok {
			continue
		}
		chunks = append(chunks, source.MetricChunk{
			Object: object,
			Values: map[int64]map[string]map[string]float64{
				ts: {object: selectCounters(counters, q.Counters)},
			},
		})
	}

	return chunks, nil
}

// selectCounters returns the requested counters, or all when none are requested
func selectCounters(all map[string]float64, counters []string) map[string]float64 {
	if len(counters) == 0 {
		return all
	}
	selected := make(map[string]float64, len(counters))
	for _, c := range counters {
		if v, ok := all[c]; ok {
			selected[c] = v
		}
	}
	return selected
}

func (s *Session) readCPUTimes(ctx context.Context) error {
	perCPU, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return err
	}
	total, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return err
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	s.lastRead = make(map[string]map[string]float64, len(perCPU)+1)

	for _, t := range append(perCPU, total...) {
		name := t.CPU
		if name == "" {
			name = cpuTotal
		}
		if last, ok := s.lastTimes[name]; ok {
			if v := cpuUtilization(last, t); v != nil {
				s.lastRead[name] = v
			}
		}
		s.lastTimes[name] = t
	}

	return nil
}

func getTimes(t cpu.TimesStat) (busy, total float64) {
	busy = t.User + t.System + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal + t.Guest + t.GuestNice
	total = busy + t.Idle
	return
}

// cpuUtilization returns the fraction of time spent in each state between t1 and t2
func cpuUtilization(t1, t2 cpu.TimesStat) map[string]float64 {
	b1, to1 := getTimes(t1)
	b2, to2 := getTimes(t2)

	total := to2 - to1
	if total <= 0 {
		return nil
	}

	return map[string]float64{
		"busy":   (b2 - b1) / total,
		"user":   (t2.User - t1.User) / total,
		"system": (t2.System - t1.System) / total,
		"iowait": (t2.Iowait - t1.Iowait) / total,
		"idle":   (t2.Idle - t1.Idle) / total,
	}
}

func (s *Session) cpuValues(ctx context.Context) (map[string]map[string]float64, error) {
	if err := s.readCPUTimes(ctx); err != nil {
		return nil, err
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.lastRead, nil
}

func memoryValues(ctx context.Context) (map[string]map[string]float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]map[string]float64{
		TypeMemory: {
			"total":        float64(vm.Total),
			"available":    float64(vm.Available),
			"used":         float64(vm.Used),
			"free":         float64(vm.Free),
			"buffers":      float64(vm.Buffers),
			"cached":       float64(vm.Cached),
			"used_percent": vm.UsedPercent,
		},
	}, nil
}

func interfaceValues(ctx context.Context) (map[string]map[string]float64, error) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, err
	}

	values := make(map[string]map[string]float64, len(counters))
	for _, c := range counters {
		values[c.Name] = map[string]float64{
			"bytes_sent":   float64(c.BytesSent),
			"bytes_recv":   float64(c.BytesRecv),
			"packets_sent": float64(c.PacketsSent),
			"packets_recv": float64(c.PacketsRecv),
			"err_in":       float64(c.Errin),
			"err_out":      float64(c.Errout),
			"drop_in":      float64(c.Dropin),
			"drop_out":     float64(c.Dropout),
		}
	}
	return values, nil
}

func diskValues(ctx context.Context) (map[string]map[string]float64, error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return nil, err
	}

	values := make(map[string]map[string]float64, len(counters))
	for name, c := range counters {
		values[name] = map[string]float64{
			"read_count":  float64(c.ReadCount),
			"write_count": float64(c.WriteCount),
			"read_bytes":  float64(c.ReadBytes),
			"write_bytes": float64(c.WriteBytes),
			"read_time":   float64(c.ReadTime),
			"write_time":  float64(c.WriteTime),
			"io_time":     float64(c.IoTime),
		}
	}
	return values, nil
}
