// Package registry creates sources from their yaml configuration
package registry

import (
	"fmt"
	"sort"
	"time"

	"github.com/martin2250/perfstream/source"
	"github.com/martin2250/perfstream/source/hostsource"
	"github.com/martin2250/perfstream/source/randomsource"
	"gopkg.in/yaml.v3"
)

// SourceGenerator creates a source from its configuration
type SourceGenerator func(node yaml.Node) (source.Source, error)

// Sources holds a generator for every source type
var Sources = map[string]SourceGenerator{}

// ListAvailableSources returns the names of all registered source types
func ListAvailableSources() []string {
	names := make([]string, 0, len(Sources))
	for name := range Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load creates a source from a configuration node with a type field
func Load(node yaml.Node) (source.Source, error) {
	t := struct {
		Type string
	}{}

	if err := node.Decode(&t); err != nil {
		return nil, err
	}

	gen, ok := Sources[t.Type]
	if !ok {
		return nil, fmt.Errorf("source %s unknown", t.Type)
	}

	return gen(node)
}

func init() {
	Sources["host"] = func(node yaml.Node) (source.Source, error) {
		conf := struct {
			Label      string
			Resolution time.Duration
		}{}

		err := node.Decode(&conf)

		if err != nil {
			return nil, err
		}

		return &hostsource.Host{
			Label:      conf.Label,
			Resolution: conf.Resolution,
		}, nil
	}
}

func init() {
	Sources["random"] = func(node yaml.Node) (source.Source, error) {
		conf := struct {
			Label      string
			Instances  int
			Resolution time.Duration
			Sparse     bool
		}{
			Label:     "random",
			Instances: 4,
		}

		err := node.Decode(&conf)

		if err != nil {
			return nil, err
		}

		return &randomsource.Random{
			Label:      conf.Label,
			Instances:  conf.Instances,
			Resolution: conf.Resolution,
			Sparse:     conf.Sparse,
		}, nil
	}
}
