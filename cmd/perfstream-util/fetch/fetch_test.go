package fetch

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/martin2250/perfstream/perfset"
	"github.com/martin2250/perfstream/source"
	"github.com/martin2250/perfstream/source/sourcetest"
)

func TestFetch(t *testing.T) {
	src := &sourcetest.Source{
		Label: "vcenter1",
		Objects: map[string]map[string]map[string]string{
			"memory": {
				"vm-2": {"name": "db 1"},
				"vm-1": {"name": "web"},
			},
		},
		Query: func(q source.PerfQuery) ([]source.MetricChunk, error) {
			var chunks []source.MetricChunk
			for _, o := range q.Objects {
				chunks = append(chunks, sourcetest.Chunk(o, 60, map[string]float64{"used": 2}))
			}
			return chunks, nil
		},
	}

	var out bytes.Buffer
	if err := Fetch(context.Background(), src, &perfset.Memory{}, 1, &out); err != nil {
		t.Fatal(err)
	}

	want := "memory,name=web used=2 60\nmemory,name=db\\ 1 used=2 60\n"
	if out.String() != want {
		t.Errorf("got\n%s\nwant\n%s", out.String(), want)
	}
	if n := len(src.Queries()); n != 2 {
		t.Errorf("expected one query per object, got %d", n)
	}
}

func TestFetchOpenError(t *testing.T) {
	src := &sourcetest.Source{Label: "vcenter1", OpenErr: &source.AuthenticationError{Source: "vcenter1", Err: errors.New("denied")}}

	err := Fetch(context.Background(), src, &perfset.Memory{}, 1, &bytes.Buffer{})

	var ae *source.AuthenticationError
	if !errors.As(err, &ae) {
		t.Errorf("expected AuthenticationError, got %v", err)
	}
}
