package influx

import (
	"io"
	"sync"

	"github.com/martin2250/perfstream/pkg/lineprotocol"
)

// StreamWriter writes batches to an io.Writer instead of a database,
// the database name is ignored
type StreamWriter struct {
	W   io.Writer
	mux sync.Mutex
}

func (s *StreamWriter) Send(database string, batch []lineprotocol.Point) *Pending {
	p := NewPending(len(batch))
	body := lineprotocol.Encode(batch)

	go func() {
		s.mux.Lock()
		defer s.mux.Unlock()
		_, err := s.W.Write(body)
		p.Complete(err)
	}()

	return p
}
