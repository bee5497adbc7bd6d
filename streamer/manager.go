package streamer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrNotStreaming is returned when stopping a source that isn't streaming
var ErrNotStreaming = errors.New("not streaming")

type stream struct {
	streamer *Streamer
	cancel   context.CancelFunc
	done     chan struct{}
}

// Manager runs streamers for many sources concurrently, at most one per source name
type Manager struct {
	log logrus.FieldLogger

	mux     sync.Mutex
	streams map[string]*stream
	wg      sync.WaitGroup
}

// NewManager initializes a Manager, log may be nil
func NewManager(log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		log:     log,
		streams: make(map[string]*stream),
	}
}

// Start runs the streamer in the background until ctx is cancelled or it is stopped
func (m *Manager) Start(ctx context.Context, s *Streamer) error {
	m.mux.Lock()
	defer m.mux.Unlock()

	name := s.Name()

	if _, ok := m.streams[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrAlreadyStreaming)
	}

	ctx, cancel := context.WithCancel(ctx)
	st := &stream{
		streamer: s,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	m.streams[name] = st

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(st.done)
		defer cancel()

		if err := s.Run(ctx); err != nil {
			m.log.WithError(err).WithField("source", name).Error("Streaming failed")
		}

		m.mux.Lock()
		if m.streams[name] == st {
			delete(m.streams, name)
		}
		m.mux.Unlock()
	}()

	return nil
}

// Stop stops the streamer of a source and waits for its run loop to exit
func (m *Manager) Stop(name string) error {
	m.mux.Lock()
	st, ok := m.streams[name]
	if ok {
		delete(m.streams, name)
	}
	m.mux.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", name, ErrNotStreaming)
	}

	st.cancel()
	<-st.done
	return nil
}

// StopAll stops all streamers and waits for them
func (m *Manager) StopAll() {
	for _, s := range m.Streamers() {
		m.Stop(s.Name())
	}
	m.Wait()
}

// Wait blocks until all started streamers have exited
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Get returns the running streamer of a source
func (m *Manager) Get(name string) (*Streamer, bool) {
	m.mux.Lock()
	defer m.mux.Unlock()
	st, ok := m.streams[name]
	if !ok {
		return nil, false
	}
	return st.streamer, true
}

// Streamers returns all running streamers sorted by name
func (m *Manager) Streamers() []*Streamer {
	m.mux.Lock()
	defer m.mux.Unlock()

	list := make([]*Streamer, 0, len(m.streams))
	for _, st := range m.streams {
		list = append(list, st.streamer)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })

	return list
}
