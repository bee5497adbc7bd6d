package api

import (
	"github.com/martin2250/perfstream/streamer"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "perfstream"

type statDesc struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(s streamer.Stats) float64
}

func newStatDesc(name, help string, valueType prometheus.ValueType, value func(s streamer.Stats) float64) statDesc {
	return statDesc{
		desc:      prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, []string{"source", "database"}, nil),
		valueType: valueType,
		value:     value,
	}
}

// Collector exports the counters of all streamers of a manager
type Collector struct {
	m     *streamer.Manager
	descs []statDesc
}

// NewCollector creates a collector, it reads the streamers on every scrape
func NewCollector(m *streamer.Manager) *Collector {
	counter := prometheus.CounterValue
	gauge := prometheus.GaugeValue

	return &Collector{
		m: m,
		descs: []statDesc{
			newStatDesc("fetched_metrics_total", "Values fetched from the source.", counter,
				func(s streamer.Stats) float64 { return float64(s.FetchedMetrics) }),
			newStatDesc("dropped_records_total", "Records dropped because their object had no tags.", counter,
				func(s streamer.Stats) float64 { return float64(s.DroppedRecords) }),
			newStatDesc("sent_lines_total", "Lines written to the sink.", counter,
				func(s streamer.Stats) float64 { return float64(s.SentLines) }),
			newStatDesc("sent_batches_total", "Batches written to the sink.", counter,
				func(s streamer.Stats) float64 { return float64(s.SentBatches) }),
			newStatDesc("failed_lines_total", "Lines dropped after a failed write.", counter,
				func(s streamer.Stats) float64 { return float64(s.FailedLines) }),
			newStatDesc("failed_batches_total", "Batches dropped after a failed write.", counter,
				func(s streamer.Stats) float64 { return float64(s.FailedBatches) }),
			newStatDesc("queued_batches", "Batches waiting to be sent.", gauge,
				func(s streamer.Stats) float64 { return float64(s.QueuedBatches) }),
			newStatDesc("pending_lines", "Lines queued or in flight.", gauge,
				func(s streamer.Stats) float64 { return float64(s.PendingLines) }),
			newStatDesc("idle", "1 while no batch is in flight.", gauge,
				func(s streamer.Stats) float64 {
					if s.Idle {
						return 1
					}
					return 0
				}),
		},
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d.desc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.m.Streamers() {
		stats := s.Stats()
		for _, d := range c.descs {
			ch <- prometheus.MustNewConstMetric(d.desc, d.valueType, d.value(stats), stats.Source, stats.Database)
		}
	}
}
