// Package sourcetest provides a scriptable polling source for tests
package sourcetest

import (
	"context"
	"sync"

	"github.com/martin2250/perfstream/source"
)

// Source returns the configured objects and calls Query for every QueryPerf
type Source struct {
	Label string
	// Objects maps object type -> object id -> properties
	Objects map[string]map[string]map[string]string
	// Query answers QueryPerf, nil answers with no chunks
	Query func(q source.PerfQuery) ([]source.MetricChunk, error)
	// OpenErr is returned by Open when set
	OpenErr error

	mux     sync.Mutex
	queries []source.PerfQuery
	opened  int
}

func (s *Source) Name() string {
	return s.Label
}

func (s *Source) Open(ctx context.Context) (source.Session, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	s.opened++
	return session{s}, nil
}

// Queries returns all queries received so far
func (s *Source) Queries() []source.PerfQuery {
	s.mux.Lock()
	defer s.mux.Unlock()
	return append([]source.PerfQuery(nil), s.queries...)
}

// Opened returns the number of sessions opened
func (s *Source) Opened() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.opened
}

type session struct {
	s *Source
}

func (ss session) Objects(ctx context.Context, objectType string) (map[string]map[string]string, error) {
	objects, ok := ss.s.Objects[objectType]
	if !ok {
		return nil, &source.NotFoundError{Source: ss.s.Label, Object: objectType}
	}
	return objects, nil
}

func (ss session) QueryPerf(ctx context.Context, q source.PerfQuery) ([]source.MetricChunk, error) {
	ss.s.mux.Lock()
	ss.s.queries = append(ss.s.queries, q)
	query := ss.s.Query
	ss.s.mux.Unlock()

	if query == nil {
		return nil, nil
	}
	return query(q)
}

func (ss session) Close() error {
	return nil
}

// Chunk builds a chunk with one sample per object at time ts
func Chunk(object string, ts int64, counters map[string]float64) source.MetricChunk {
	return source.MetricChunk{
		Object: object,
		Values: map[int64]map[string]map[string]float64{
			ts: {object: counters},
		},
	}
}
