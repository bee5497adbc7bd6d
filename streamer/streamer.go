// Package streamer moves performance data from a polling source to the sink.
//
// Every Streamer has a single run loop goroutine that owns the batch queue
// and all state transitions. Fetching runs in one goroutine per performance
// set and hands batches to the loop, sending runs in the background and
// reports back through an influx.Pending. At most one batch is in flight
// per streamer; the next one is only sent on a later tick of the flush timer.
package streamer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/martin2250/perfstream/perfset"
	"github.com/martin2250/perfstream/pkg/influx"
	"github.com/martin2250/perfstream/pkg/lineprotocol"
	"github.com/martin2250/perfstream/source"
	"github.com/sirupsen/logrus"
)

// Sink sends batches to the time series database
type Sink interface {
	Send(database string, batch []lineprotocol.Point) *influx.Pending
}

// ErrAlreadyStreaming is returned when a second pipeline is started for the same source
var ErrAlreadyStreaming = errors.New("already streaming")

// Config controls a single streamer
type Config struct {
	// Address of the sink, only used for logging and status
	Address  string
	Database string

	FlushInterval   time.Duration
	MaxPendingLines int
	// ChunkSize is the number of objects requested from the source per query
	ChunkSize int
	// MaxRetries is the number of times a failed batch is sent again, 0 drops it
	MaxRetries int
	// Repeat restarts the fetch of each set after this delay, 0 fetches once
	Repeat time.Duration
}

// ConfigDefault holds the values used for unset fields
var ConfigDefault = Config{
	FlushInterval:   3 * time.Second,
	MaxPendingLines: 5000,
	ChunkSize:       perfset.DefaultChunkSize,
}

func (c Config) withDefaults() Config {
	if c.FlushInterval <= 0 {
		c.FlushInterval = ConfigDefault.FlushInterval
	}
	if c.MaxPendingLines <= 0 {
		c.MaxPendingLines = ConfigDefault.MaxPendingLines
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = ConfigDefault.ChunkSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// Stats is a snapshot of a streamer's counters
type Stats struct {
	Source   string
	Address  string
	Database string

	Idle bool

	FetchedMetrics int64
	DroppedRecords int64
	SentLines      int64
	SentBatches    int64
	FailedLines    int64
	FailedBatches  int64

	QueuedBatches int64
	PendingLines  int64
}

// Streamer streams all performance sets of one source to one database
type Streamer struct {
	name   string
	conf   Config
	source source.Source
	sink   Sink
	sets   []perfset.PerformanceSet
	log    logrus.FieldLogger

	running atomic.Bool
	idle    atomic.Bool

	mux    sync.Mutex
	cancel context.CancelFunc
	// stopped is set by a Stop that came before Run stored cancel
	stopped bool
	// handoff is the batch a stopped run left in flight, the next run adopts it
	handoff *sending

	fetchedMetrics atomic.Int64
	droppedRecords atomic.Int64
	sentLines      atomic.Int64
	sentBatches    atomic.Int64
	failedLines    atomic.Int64
	failedBatches  atomic.Int64
	queuedBatches  atomic.Int64
	pendingLines   atomic.Int64
}

// New creates a streamer, log may be nil
func New(conf Config, src source.Source, sink Sink, sets []perfset.PerformanceSet, log logrus.FieldLogger) *Streamer {
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Streamer{
		name:   src.Name(),
		conf:   conf.withDefaults(),
		source: src,
		sink:   sink,
		sets:   sets,
	}
	s.log = log.WithField("source", s.name)
	s.idle.Store(true)

	return s
}

// Name returns the name of the source
func (s *Streamer) Name() string {
	return s.name
}

// IsIdle is true while no batch is in flight
func (s *Streamer) IsIdle() bool {
	return s.idle.Load()
}

// IsRunning is true between the start and the end of Run
func (s *Streamer) IsRunning() bool {
	return s.running.Load()
}

// Stats returns the current counters
func (s *Streamer) Stats() Stats {
	return Stats{
		Source:   s.name,
		Address:  s.conf.Address,
		Database: s.conf.Database,

		Idle: s.idle.Load(),

		FetchedMetrics: s.fetchedMetrics.Load(),
		DroppedRecords: s.droppedRecords.Load(),
		SentLines:      s.sentLines.Load(),
		SentBatches:    s.sentBatches.Load(),
		FailedLines:    s.failedLines.Load(),
		FailedBatches:  s.failedBatches.Load(),

		QueuedBatches: s.queuedBatches.Load(),
		PendingLines:  s.pendingLines.Load(),
	}
}

// Stop ends a running Run, a batch in flight is allowed to complete.
// When no Run is active, the next call to Run returns right away.
func (s *Streamer) Stop() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.cancel != nil {
		s.cancel()
		return
	}
	s.stopped = true
}

// Run opens a session and streams until ctx is cancelled or Stop is called.
// It only returns an error when the source could not be opened.
func (s *Streamer) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyStreaming
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mux.Lock()
	if s.stopped {
		s.stopped = false
		s.mux.Unlock()
		return nil
	}
	s.cancel = cancel
	s.mux.Unlock()

	defer func() {
		s.mux.Lock()
		s.cancel = nil
		s.mux.Unlock()
	}()

	session, err := s.source.Open(ctx)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", s.name, err)
	}
	defer session.Close()

	p := &pipeline{
		Streamer: s,
		log:      s.log.WithField("session", uuid.New().String()),
		queue:    NewQueue(s.conf.MaxPendingLines),
		batches:  make(chan fetched),
		capacity: make(chan chan struct{}),
	}

	p.run(ctx, session, s.takeHandoff())

	return nil
}

// takeHandoff claims the batch a previous run left in flight
func (s *Streamer) takeHandoff() *sending {
	s.mux.Lock()
	defer s.mux.Unlock()
	h := s.handoff
	s.handoff = nil
	return h
}

// fetched is handed from a fetch goroutine to the run loop
type fetched struct {
	batch   Batch
	metrics int
	dropped int
}

// sending is the batch currently in flight
type sending struct {
	batch   Batch
	pending *influx.Pending
}

// pipeline is the state of one call to Run, only touched by the run loop
type pipeline struct {
	*Streamer
	log logrus.FieldLogger

	queue    *Queue
	batches  chan fetched
	capacity chan chan struct{}
	// waiting holds fetch goroutines paused until the queue has room
	waiting []chan struct{}
	// granted is the number of fetch goroutines allowed to hand over a batch
	// that did not arrive yet, at most one
	granted int
}

// run is the loop of one Run. adopted is a send left in flight by the
// previous run, no new batch is sent before it completed.
func (p *pipeline) run(ctx context.Context, session source.Session, adopted *sending) {
	p.log.WithFields(logrus.Fields{"address": p.conf.Address, "database": p.conf.Database}).Info("Streaming to sink")

	var inFlight *sending
	var done <-chan struct{}

	if adopted != nil {
		p.log.WithField("lines", adopted.batch.Lines()).Info("Waiting for batch in flight from previous run")
		p.queue.Adopt(adopted.batch.Lines())
		p.publish()
		inFlight, done = adopted, adopted.pending.Done()
	}

	var wg sync.WaitGroup
	for _, set := range p.sets {
		wg.Add(1)
		go func(set perfset.PerformanceSet) {
			defer wg.Done()
			p.streamSet(ctx, session, set)
		}(set)
	}

	ticker := time.NewTicker(p.conf.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case f := <-p.batches:
			p.granted--
			p.enqueue(f)
			p.wake()
		case c := <-p.capacity:
			if p.granted > 0 || p.queue.Full() {
				if p.queue.Full() {
					p.log.WithField("lines", p.queue.PendingLines()).Debug("Queue full, pausing fetch")
				}
				p.waiting = append(p.waiting, c)
			} else {
				p.granted++
				close(c)
			}
		case <-ticker.C:
			p.log.Debug("Flush timer")
			if inFlight != nil {
				continue
			}
			inFlight = p.sendNextBatch()
			if inFlight != nil {
				done = inFlight.pending.Done()
			}
		case <-done:
			p.completed(inFlight)
			inFlight, done = nil, nil
		case <-ctx.Done():
			wg.Wait()
			if inFlight != nil {
				p.mux.Lock()
				p.handoff = inFlight
				p.mux.Unlock()
				go p.abandon(inFlight)
			}
			// unsent batches are discarded
			p.queuedBatches.Store(0)
			p.pendingLines.Store(0)
			p.log.Info("Stopped streaming")
			return
		}
	}
}

func (p *pipeline) publish() {
	p.queuedBatches.Store(int64(p.queue.Len()))
	p.pendingLines.Store(int64(p.queue.PendingLines()))
}

func (p *pipeline) enqueue(f fetched) {
	p.fetchedMetrics.Add(int64(f.metrics))
	p.droppedRecords.Add(int64(f.dropped))

	if f.batch.Lines() == 0 {
		return
	}

	p.queue.Enqueue(f.batch)
	p.publish()
}

// wake resumes the longest paused fetch goroutine once the queue has room
// again and no other batch is on its way
func (p *pipeline) wake() {
	if p.granted > 0 || p.queue.Full() || len(p.waiting) == 0 {
		return
	}
	p.granted++
	close(p.waiting[0])
	p.waiting = p.waiting[1:]
}

func (p *pipeline) sendNextBatch() *sending {
	batch, ok := p.queue.Dequeue()
	if !ok {
		return nil
	}

	p.idle.Store(false)
	p.publish()

	return &sending{
		batch:   batch,
		pending: p.sink.Send(p.conf.Database, batch.Points),
	}
}

func (p *pipeline) completed(s *sending) {
	lines := s.batch.Lines()
	err := s.pending.Err()

	if err == nil {
		p.log.WithFields(logrus.Fields{"set": s.batch.Set, "lines": lines}).Infof("Sent %d lines to InfluxDB", lines)
		p.sentLines.Add(int64(lines))
		p.sentBatches.Add(1)
		p.queue.Release(lines)
	} else {
		logSendError(p.log.WithField("set", s.batch.Set), lines, err)
		s.batch.Attempts++
		if s.batch.Attempts <= p.conf.MaxRetries {
			p.log.WithField("attempt", s.batch.Attempts).Warning("Retrying batch on next tick")
			p.queue.Requeue(s.batch)
		} else {
			p.failedLines.Add(int64(lines))
			p.failedBatches.Add(1)
			p.queue.Release(lines)
		}
	}

	p.idle.Store(true)
	p.publish()
	p.wake()
}

// abandon waits for a batch that was in flight when the streamer stopped.
// The outcome is only counted if no later run adopted the batch.
func (p *pipeline) abandon(s *sending) {
	<-s.pending.Done()

	p.mux.Lock()
	defer p.mux.Unlock()
	if p.handoff != s {
		return
	}
	p.handoff = nil

	lines := s.batch.Lines()
	if err := s.pending.Err(); err != nil {
		logSendError(p.log, lines, err)
		p.failedLines.Add(int64(lines))
		p.failedBatches.Add(1)
	} else {
		p.log.WithField("lines", lines).Infof("Sent %d lines to InfluxDB", lines)
		p.sentLines.Add(int64(lines))
		p.sentBatches.Add(1)
	}

	p.idle.Store(true)
}

func logSendError(log logrus.FieldLogger, lines int, err error) {
	log.WithField("lines", lines).Errorf("Failed to send %d lines to InfluxDB: %s", lines, err.Error())

	var re *influx.ResponseError
	if errors.As(err, &re) && re.Body != "" {
		log.Error(re.Body)
	}
}
