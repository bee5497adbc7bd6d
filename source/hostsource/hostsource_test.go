package hostsource

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/martin2250/perfstream/source"
	"github.com/shirou/gopsutil/cpu"
)

func TestCPUUtilization(t *testing.T) {
	t1 := cpu.TimesStat{CPU: "cpu0", User: 10, System: 5, Idle: 85}
	t2 := cpu.TimesStat{CPU: "cpu0", User: 20, System: 10, Idle: 170}

	v := cpuUtilization(t1, t2)

	want := map[string]float64{"busy": 0.15, "user": 0.1, "system": 0.05, "iowait": 0, "idle": 0.85}
	for k, w := range want {
		if math.Abs(v[k]-w) > 1e-9 {
			t.Errorf("%s = %v, want %v", k, v[k], w)
		}
	}

	if cpuUtilization(t2, t2) != nil {
		t.Error("no elapsed time should yield no values")
	}
}

func TestSelectCounters(t *testing.T) {
	all := map[string]float64{"used": 1, "free": 2, "total": 3}

	got := selectCounters(all, []string{"used", "total", "missing"})
	want := map[string]float64{"used": 1, "total": 3}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if !reflect.DeepEqual(selectCounters(all, nil), all) {
		t.Error("no counters should select all")
	}
}

func TestUnknownObjectType(t *testing.T) {
	s := &Session{hostname: "test"}

	_, err := s.Objects(context.Background(), "datastore")

	var nf *source.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("error should be NotFoundError: %v", err)
	}

	_, err = s.QueryPerf(context.Background(), source.PerfQuery{ObjectType: "datastore"})
	if !errors.As(err, &nf) {
		t.Errorf("error should be NotFoundError: %v", err)
	}
}

func TestQueryMemory(t *testing.T) {
	s := &Session{hostname: "test", resolution: 10}

	objects, err := s.Objects(context.Background(), TypeMemory)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if objects[TypeMemory]["host"] != "test" {
		t.Errorf("memory object should carry host tag: %v", objects)
	}

	chunks, err := s.QueryPerf(context.Background(), source.PerfQuery{
		ObjectType: TypeMemory,
		Objects:    []string{TypeMemory, "missing"},
		Counters:   []string{"total", "used"},
	})
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	if chunks[0].Count() != 2 {
		t.Errorf("expected two counters, got %d", chunks[0].Count())
	}
	for ts := range chunks[0].Values {
		if ts%10 != 0 {
			t.Errorf("timestamp %d not rounded to resolution", ts)
		}
	}
}
