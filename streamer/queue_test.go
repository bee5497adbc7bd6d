package streamer

import (
	"testing"

	"github.com/martin2250/perfstream/pkg/lineprotocol"
)

func batchOf(set string, lines int) Batch {
	b := Batch{Set: set, Points: make([]lineprotocol.Point, lines)}
	for i := range b.Points {
		b.Points[i] = lineprotocol.Point{Measurement: set, Fields: map[string]float64{"v": float64(i)}, Time: int64(i)}
	}
	return b
}

func TestQueueFifo(t *testing.T) {
	q := NewQueue(1000)

	for i := 1; i <= 10; i++ {
		q.Enqueue(batchOf("cpu", i))
	}

	if q.Len() != 10 || q.QueuedLines() != 55 {
		t.Fatalf("len = %d, queued lines = %d", q.Len(), q.QueuedLines())
	}

	for i := 1; i <= 10; i++ {
		b, ok := q.Dequeue()
		if !ok {
			t.Fatalf("queue empty after %d batches", i-1)
		}
		if b.Lines() != i {
			t.Errorf("batch %d has %d lines", i, b.Lines())
		}
	}

	if _, ok := q.Dequeue(); ok {
		t.Error("queue should be empty")
	}
}

func TestQueuePendingLines(t *testing.T) {
	q := NewQueue(100)

	q.Enqueue(batchOf("cpu", 60))
	q.Enqueue(batchOf("cpu", 30))

	if q.Full() {
		t.Error("90 of 100 lines should not be full")
	}

	q.Enqueue(batchOf("cpu", 10))

	if !q.Full() {
		t.Error("100 of 100 lines should be full")
	}

	b, _ := q.Dequeue()

	if q.QueuedLines() != 40 || q.InFlightLines() != 60 || q.PendingLines() != 100 {
		t.Errorf("queued %d, in flight %d, pending %d", q.QueuedLines(), q.InFlightLines(), q.PendingLines())
	}
	if !q.Full() {
		t.Error("lines in flight count towards the limit")
	}

	q.Release(b.Lines())

	if q.PendingLines() != 40 || q.Full() {
		t.Errorf("pending %d after release", q.PendingLines())
	}
}

func TestQueueRequeue(t *testing.T) {
	q := NewQueue(1000)

	q.Enqueue(batchOf("a", 1))
	q.Enqueue(batchOf("b", 2))

	failed, _ := q.Dequeue()
	failed.Attempts++
	q.Requeue(failed)

	if q.Len() != 2 || q.InFlightLines() != 0 || q.QueuedLines() != 3 {
		t.Errorf("len %d, in flight %d, queued %d", q.Len(), q.InFlightLines(), q.QueuedLines())
	}

	b, _ := q.Dequeue()
	if b.Set != "a" || b.Attempts != 1 {
		t.Errorf("requeued batch should come first: %+v", b)
	}

	b, _ = q.Dequeue()
	if b.Set != "b" {
		t.Errorf("got %s, want b", b.Set)
	}
}

func TestQueueAdopt(t *testing.T) {
	q := NewQueue(100)

	q.Adopt(80)
	q.Enqueue(batchOf("a", 20))

	if !q.Full() || q.InFlightLines() != 80 {
		t.Errorf("adopted lines should count as in flight, pending %d", q.PendingLines())
	}

	q.Release(80)

	if q.Full() || q.PendingLines() != 20 {
		t.Errorf("pending %d after release", q.PendingLines())
	}
}
