package perfset

import (
	"fmt"
	"math"
	"sort"

	"github.com/martin2250/perfstream/pkg/lineprotocol"
	"github.com/martin2250/perfstream/source"
	"github.com/martin2250/perfstream/util"
)

// TransformError is returned for a record whose instance has no tags.
// The record is skipped, all other records of the chunk are still transformed.
type TransformError struct {
	Measurement string
	Object      string
	Instance    string
	Time        int64
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("no tags for instance %s of object %s in %s at %d", e.Instance, e.Object, e.Measurement, e.Time)
}

// Transform converts a chunk into one point per timestamp and instance.
// Points are ordered by timestamp, then instance. Records without usable
// counter values are dropped silently, records without tags produce a TransformError.
func Transform(measurement string, chunk source.MetricChunk, tags map[string]map[string]string) ([]lineprotocol.Point, []error) {
	times := make([]int64, 0, len(chunk.Values))
	for ts := range chunk.Values {
		times = append(times, ts)
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	var points []lineprotocol.Point
	var errs []error

	for _, ts := range times {
		instances := chunk.Values[ts]

		for _, instance := range util.SortedKeys(instances) {
			fields := make(map[string]float64, len(instances[instance]))
			for k, v := range instances[instance] {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				fields[k] = v
			}

			if len(fields) == 0 {
				continue
			}

			t, ok := tags[instance]
			if !ok {
				errs = append(errs, &TransformError{
					Measurement: measurement,
					Object:      chunk.Object,
					Instance:    instance,
					Time:        ts,
				})
				continue
			}

			p := lineprotocol.Point{
				Measurement: measurement,
				Tags:        util.CopyMap(t),
				Fields:      fields,
				Time:        ts,
			}

			if p.Validate() != nil {
				continue
			}

			points = append(points, p)
		}
	}

	return points, errs
}
