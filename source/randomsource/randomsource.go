// Package randomsource provides a polling source with random values, for testing sinks
package randomsource

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/martin2250/perfstream/source"
	"github.com/martin2250/perfstream/util"
)

// Random answers every object type with Instances objects and random counter values
type Random struct {
	Label     string
	Instances int
	// Resolution rounds sample timestamps down to a multiple of itself
	Resolution time.Duration
	// Sparse leaves out about one in five samples
	Sparse bool
}

func (r *Random) Name() string {
	return r.Label
}

func (r *Random) Open(ctx context.Context) (source.Session, error) {
	if r.Label == "" {
		return nil, &source.NotFoundError{Source: "random", Object: "label"}
	}
	return session{r}, nil
}

type session struct {
	r *Random
}

// Objects returns <type>-total and <type>0 to <type>N-1
func (s session) Objects(ctx context.Context, objectType string) (map[string]map[string]string, error) {
	objects := make(map[string]map[string]string, s.r.Instances+1)

	add := func(id string) {
		objects[id] = map[string]string{
			"name":   id,
			"source": s.r.Label,
			"path":   "/mnt/" + id,
		}
	}

	add(objectType + "-total")
	for i := 0; i < s.r.Instances; i++ {
		add(fmt.Sprintf("%s%d", objectType, i))
	}

	return objects, nil
}

// QueryPerf returns one chunk per object with a single sample
func (s session) QueryPerf(ctx context.Context, q source.PerfQuery) ([]source.MetricChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counters := q.Counters
	if len(counters) == 0 {
		counters = []string{"value"}
	}

	ts := util.RoundDown(time.Now().Unix(), int64(s.r.Resolution/time.Second))

	chunks := make([]source.MetricChunk, 0, len(q.Objects))

	for _, object := range q.Objects {
		if s.r.Sparse && rand.Int31n(5) == 0 {
			continue
		}

		values := make(map[string]float64, len(counters))
		for _, c := range counters {
			values[c] = 500 * (rand.Float64() - 0.5)
		}

		chunks = append(chunks, source.MetricChunk{
			Object: object,
			Values: map[int64]map[string]map[string]float64{
				ts: {object: values},
			},
		})
	}

	return chunks, nil
}

func (s session) Close() error {
	return nil
}
