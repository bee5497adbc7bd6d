// Package ingest receives line protocol points, it backs the debug sink
package ingest

import "github.com/martin2250/perfstream/pkg/lineprotocol"

// Point is a received point and the database it was written to
type Point struct {
	Database string
	lineprotocol.Point
}

// PointSink stores incoming points
type PointSink interface {
	// AddPoint stores a point in the sink
	AddPoint(point Point)
}

// ChanPointSink passes every point on to a channel, blocking while it is full
type ChanPointSink chan<- Point

func (cps ChanPointSink) AddPoint(point Point) {
	cps <- point
}
