// Package perfset describes the categories of performance counters that are
// streamed together and turns the raw samples into line protocol points.
package perfset

import (
	"context"
	"fmt"
	"sort"

	"github.com/martin2250/perfstream/source"
	"github.com/martin2250/perfstream/util"
	"gopkg.in/yaml.v3"
)

// PerformanceSet is one measurable category (cpu, memory, ...)
type PerformanceSet interface {
	// MeasurementName is the name of the measurement written to the sink
	MeasurementName() string
	// ObjectType is the type of object the counters are queried for
	ObjectType() string
	// Counters are the counters requested from the source, empty means all
	Counters() []string
	// FetchObjectTags maps each instance to the tags identifying it
	FetchObjectTags(ctx context.Context, session source.Session) (map[string]map[string]string, error)
}

// SetGenerator creates a set from its configuration
type SetGenerator func(node yaml.Node) (PerformanceSet, error)

// Sets holds a generator for every available set type
var Sets = map[string]SetGenerator{}

// ListAvailableSets returns the names of all registered set types
func ListAvailableSets() []string {
	names := make([]string, 0, len(Sets))
	for name := range Sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load creates a set from a configuration node with a type field
func Load(node yaml.Node) (PerformanceSet, error) {
	t := struct {
		Type string
	}{}

	if err := node.Decode(&t); err != nil {
		return nil, err
	}

	gen, ok := Sets[t.Type]
	if !ok {
		return nil, fmt.Errorf("set %s unknown", t.Type)
	}

	return gen(node)
}

// Options are shared by all sets
type Options struct {
	Measurement string
	// CounterList overrides the default counters of the set
	CounterList []string `yaml:"counters"`
	// Match restricts the set to instances with all of these tags
	Match map[string]string
}

func (o Options) counters(defaults []string) []string {
	if len(o.CounterList) > 0 {
		return o.CounterList
	}
	return defaults
}

// objectTags lists the objects of a type and keeps those the filter accepts
func (o Options) objectTags(ctx context.Context, session source.Session, objectType string, keep func(id string, tags map[string]string) bool) (map[string]map[string]string, error) {
	objects, err := session.Objects(ctx, objectType)
	if err != nil {
		return nil, err
	}

	tags := make(map[string]map[string]string, len(objects))

	for id, props := range objects {
		if !util.IsSubset(o.Match, props) {
			continue
		}
		if keep != nil && !keep(id, props) {
			continue
		}
		tags[id] = props
	}

	return tags, nil
}

// Instances returns the sorted instance ids of a tag map
func Instances(tags map[string]map[string]string) []string {
	return util.SortedKeys(tags)
}
