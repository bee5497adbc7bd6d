package influx

import "sync"

// Pending is the result of one send, completed asynchronously
type Pending struct {
	lines int
	done  chan struct{}
	once  sync.Once
	err   error
}

// NewPending returns an incomplete result for a batch of lines.
// Sink implementations complete it exactly once.
func NewPending(lines int) *Pending {
	return &Pending{
		lines: lines,
		done:  make(chan struct{}),
	}
}

// Complete stores the outcome and wakes up all waiters, later calls are ignored
func (p *Pending) Complete(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed when the send completed
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err waits for the send to complete and returns its outcome
func (p *Pending) Err() error {
	<-p.done
	return p.err
}

// Lines returns the number of lines in the batch
func (p *Pending) Lines() int {
	return p.lines
}
