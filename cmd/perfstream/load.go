package main

import (
	"fmt"

	"github.com/martin2250/perfstream/perfset"
	"github.com/martin2250/perfstream/source"
	"github.com/martin2250/perfstream/source/registry"
	"github.com/martin2250/perfstream/streamer"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

func loadSets(nodes []yaml.Node) ([]perfset.PerformanceSet, error) {
	sets := make([]perfset.PerformanceSet, len(nodes))

	for i, node := range nodes {
		var err error
		sets[i], err = perfset.Load(node)

		if err != nil {
			return nil, fmt.Errorf("error while parsing set %d: %w", i, err)
		}
	}

	return sets, nil
}

// loadSource returns the source and the sets it lists itself
func loadSource(node yaml.Node) (source.Source, []yaml.Node, error) {
	t := struct {
		Sets []yaml.Node
	}{}

	if err := node.Decode(&t); err != nil {
		return nil, nil, err
	}

	src, err := registry.Load(node)

	return src, t.Sets, err
}

// loadStreamers creates one streamer per configured source
func loadStreamers(conf Configuration, sink streamer.Sink, log logrus.FieldLogger) ([]*streamer.Streamer, error) {
	defaultSets, err := loadSets(conf.Sets)
	if err != nil {
		return nil, err
	}

	streamers := make([]*streamer.Streamer, 0, len(conf.Sources))

	for i, node := range conf.Sources {
		src, setNodes, err := loadSource(node)
		if err != nil {
			return nil, fmt.Errorf("error while parsing source %d: %w", i, err)
		}

		sets := defaultSets
		if len(setNodes) > 0 {
			sets, err = loadSets(setNodes)
			if err != nil {
				return nil, fmt.Errorf("source %s: %w", src.Name(), err)
			}
		}

		if len(sets) < 1 {
			return nil, fmt.Errorf("source %s has no sets", src.Name())
		}

		streamers = append(streamers, streamer.New(conf.streamerConfig(), src, sink, sets, log))
	}

	return streamers, nil
}
