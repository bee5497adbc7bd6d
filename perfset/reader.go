package perfset

import (
	"context"
	"fmt"

	"github.com/martin2250/perfstream/source"
)

// DefaultChunkSize is the number of objects requested per query
const DefaultChunkSize = 100

// Reader lazily pages through the objects of a set, querying the source
// for chunkSize objects at a time. A Reader can't be restarted, create a
// new one for each streaming session.
type Reader struct {
	ctx     context.Context
	set     PerformanceSet
	session source.Session

	objects   []string
	chunkSize int

	chunks  []source.MetricChunk
	current source.MetricChunk
	queries int
	err     error
}

// Fetch returns a reader for the given objects of a set
func Fetch(ctx context.Context, set PerformanceSet, session source.Session, objects []string, chunkSize int) *Reader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Reader{
		ctx:       ctx,
		set:       set,
		session:   session,
		objects:   objects,
		chunkSize: chunkSize,
	}
}

// Next advances to the next chunk, querying the next page when the current one is used up.
// It returns false when all objects were read or an error occurred.
func (r *Reader) Next() bool {
	for len(r.chunks) == 0 {
		if r.err != nil || len(r.objects) == 0 {
			return false
		}

		if err := r.ctx.Err(); err != nil {
			r.err = err
			return false
		}

		n := min(r.chunkSize, len(r.objects))
		page := r.objects[:n]
		r.objects = r.objects[n:]

		chunks, err := r.session.QueryPerf(r.ctx, source.PerfQuery{
			ObjectType: r.set.ObjectType(),
			Objects:    page,
			Counters:   r.set.Counters(),
		})
		r.queries++

		if err != nil {
			r.err = fmt.Errorf("query %s: %w", r.set.MeasurementName(), err)
			r.objects = nil
			return false
		}

		r.chunks = chunks
	}

	r.current, r.chunks = r.chunks[0], r.chunks[1:]
	return true
}

// Chunk returns the chunk of the last successful call to Next
func (r *Reader) Chunk() source.MetricChunk {
	return r.current
}

// Err returns the error that stopped the reader, if any
func (r *Reader) Err() error {
	return r.err
}

// Queries returns the number of queries sent to the source
func (r *Reader) Queries() int {
	return r.queries
}
