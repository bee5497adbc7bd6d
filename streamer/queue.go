package streamer

import (
	fifo "github.com/foize/go.fifo"
	"github.com/martin2250/perfstream/pkg/lineprotocol"
)

// Batch is a group of points sent to the sink in a single request
type Batch struct {
	// Set is the measurement the points belong to
	Set    string
	Points []lineprotocol.Point
	// Attempts counts the failed sends of this batch
	Attempts int
}

// Lines returns the number of points in the batch
func (b Batch) Lines() int {
	return len(b.Points)
}

// Queue is a fifo of batches that keeps track of the lines waiting to be
// sent and the lines currently in flight. It never blocks, callers check
// Full before adding more batches. Not safe for concurrent use, the
// streamer's run loop owns it.
type Queue struct {
	fifo *fifo.Queue
	// retry is sent before any batch in the fifo
	retry *Batch

	queued   int
	inFlight int

	maxPendingLines int
}

// NewQueue initializes a Queue
func NewQueue(maxPendingLines int) *Queue {
	return &Queue{
		fifo:            fifo.NewQueue(),
		maxPendingLines: maxPendingLines,
	}
}

// Enqueue appends a batch
func (q *Queue) Enqueue(b Batch) {
	q.fifo.Add(b)
	q.queued += b.Lines()
}

// Dequeue pops the oldest batch and counts its lines as in flight
func (q *Queue) Dequeue() (Batch, bool) {
	var b Batch

	if q.retry != nil {
		b, q.retry = *q.retry, nil
	} else {
		item := q.fifo.Next()
		if item == nil {
			return Batch{}, false
		}
		var ok bool
		b, ok = item.(Batch)
		if !ok {
			return Batch{}, false
		}
	}

	q.queued -= b.Lines()
	q.inFlight += b.Lines()
	return b, true
}

// Adopt counts lines as in flight that were sent before the queue existed
func (q *Queue) Adopt(lines int) {
	q.inFlight += lines
}

// Release removes lines from the in flight count once their send completed
func (q *Queue) Release(lines int) {
	q.inFlight -= lines
	if q.inFlight < 0 {
		q.inFlight = 0
	}
}

// Requeue puts a batch whose send failed back in front of the queue
func (q *Queue) Requeue(b Batch) {
	q.Release(b.Lines())
	if q.retry != nil {
		q.Enqueue(b)
		return
	}
	q.retry = &b
	q.queued += b.Lines()
}

// Len returns the number of batches waiting
func (q *Queue) Len() int {
	n := q.fifo.Len()
	if q.retry != nil {
		n++
	}
	return n
}

// QueuedLines returns the number of points waiting to be sent
func (q *Queue) QueuedLines() int {
	return q.queued
}

// InFlightLines returns the number of points currently being sent
func (q *Queue) InFlightLines() int {
	return q.inFlight
}

// PendingLines returns the number of points that were fetched but not yet sent
func (q *Queue) PendingLines() int {
	return q.queued + q.inFlight
}

// Full is true once no more points should be fetched
func (q *Queue) Full() bool {
	return q.PendingLines() >= q.maxPendingLines
}
