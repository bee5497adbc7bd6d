// Package source describes the polling sources performance data is read from
package source

import (
	"context"
	"fmt"
)

// MetricChunk holds the samples of one queried object
// Values maps timestamp -> instance -> counter -> value
type MetricChunk struct {
	Object string
	Values map[int64]map[string]map[string]float64
}

// Count returns the number of counter values in the chunk
func (c MetricChunk) Count() int {
	n := 0
	for _, instances := range c.Values {
		for _, counters := range instances {
			n += len(counters)
		}
	}
	return n
}

// PerfQuery requests counters for a list of objects of one type
type PerfQuery struct {
	ObjectType string
	Objects    []string
	Counters   []string
}

// Session is an authenticated connection to a polling source
type Session interface {
	// Objects lists all objects of a type with their descriptive properties
	Objects(ctx context.Context, objectType string) (map[string]map[string]string, error)
	// QueryPerf returns one chunk for each object in the query that still exists
	QueryPerf(ctx context.Context, q PerfQuery) ([]MetricChunk, error)
	Close() error
}

// Source can open sessions to one monitored system
type Source interface {
	Name() string
	Open(ctx context.Context) (Session, error)
}

// AuthenticationError is returned when the source rejects the credentials
type AuthenticationError struct {
	Source string
	Err    error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication to %s failed: %v", e.Source, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when the source or an object type does not exist
type NotFoundError struct {
	Source string
	Object string
}

func (e *NotFoundError) Error() string {
	if e.Object == "" {
		return fmt.Sprintf("source %s not found", e.Source)
	}
	return fmt.Sprintf("%s not found on %s", e.Object, e.Source)
}
