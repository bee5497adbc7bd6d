package streamer

import (
	"context"
	"time"

	"github.com/martin2250/perfstream/perfset"
	"github.com/martin2250/perfstream/source"
	"github.com/sirupsen/logrus"
)

// streamSet runs the fetch task of one set, once or every conf.Repeat
func (p *pipeline) streamSet(ctx context.Context, session source.Session, set perfset.PerformanceSet) {
	log := p.log.WithField("set", set.MeasurementName())

	for {
		log.Info("Starting to stream set")
		p.fetchSet(ctx, session, set, log)

		if p.conf.Repeat <= 0 {
			return
		}

		timer := time.NewTimer(p.conf.Repeat)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// fetchSet pulls chunks from a fresh reader while the queue has room and
// hands one batch per chunk to the run loop. A failure only ends this set's session.
func (p *pipeline) fetchSet(ctx context.Context, session source.Session, set perfset.PerformanceSet, log logrus.FieldLogger) {
	measurement := set.MeasurementName()

	tags, err := set.FetchObjectTags(ctx, session)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Error("Could not fetch object tags")
		}
		return
	}

	r := perfset.Fetch(ctx, set, session, perfset.Instances(tags), p.conf.ChunkSize)

	for p.waitForCapacity(ctx) {
		if !r.Next() {
			// hand back the capacity grant
			p.handOver(ctx, fetched{})
			break
		}
		chunk := r.Chunk()

		points, errs := perfset.Transform(measurement, chunk, tags)
		for _, err := range errs {
			log.WithError(err).Error("Dropping record")
		}

		f := fetched{
			batch: Batch{
				Set:    measurement,
				Points: points,
			},
			metrics: chunk.Count(),
			dropped: len(errs),
		}

		if !p.handOver(ctx, f) {
			return
		}
	}

	if err := r.Err(); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("Failed to fetch metrics")
		return
	}

	log.WithField("queries", r.Queries()).Debug("Fetched set")
}

// handOver passes a batch to the run loop, which also ends the capacity grant
func (p *pipeline) handOver(ctx context.Context, f fetched) bool {
	select {
	case p.batches <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

// waitForCapacity blocks until the run loop reports room in the queue and
// grants this goroutine the next batch. Every grant is answered with handOver.
func (p *pipeline) waitForCapacity(ctx context.Context) bool {
	c := make(chan struct{})

	select {
	case p.capacity <- c:
	case <-ctx.Done():
		return false
	}

	select {
	case <-c:
		return true
	case <-ctx.Done():
		return false
	}
}
