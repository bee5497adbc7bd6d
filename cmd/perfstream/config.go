package main

import (
	"os"
	"time"

	"github.com/martin2250/perfstream/api"
	"github.com/martin2250/perfstream/pkg/influx"
	"github.com/martin2250/perfstream/streamer"
	"github.com/martin2250/perfstream/util"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type confSink struct {
	Address  string
	Database string
	Username string
	Password string

	Precision string
	Timeout   time.Duration
}

type Configuration struct {
	Sink confSink

	API api.Config

	Streaming streamer.Config

	// Sources are decoded by the generator registered for their type
	Sources []yaml.Node
	// Sets are streamed from every source that does not list its own
	Sets []yaml.Node

	ShutdownTimeout time.Duration

	Logging struct {
		Level    string
		Telegram *struct {
			AppName   string
			AuthToken string
			ChatID    string
		}
	}
}

var ConfigDefault = Configuration{
	Sink: confSink{
		Address:  "http://localhost:8086",
		Database: "perfstream",
		Timeout:  influx.DefaultTimeout,
	},
	API: api.Config{
		Timeout: 5 * time.Second,
	},
	Streaming:       streamer.ConfigDefault,
	ShutdownTimeout: 10 * time.Second,
}

// readConfigurationFile does what the name implies
// kills the application when there is an error
func readConfigurationFile(confpath string) Configuration {
	conf := ConfigDefault

	if !util.FileExists(confpath) {
		logrus.WithField("path", confpath).Fatal("configuration file does not exist")
	}

	logrus.WithField("path", confpath).Info("loading configuration file")

	f, err := os.Open(confpath)
	if err != nil {
		logrus.WithError(err).Fatal("could not open configuration file")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	err = dec.Decode(&conf)
	if err != nil {
		logrus.WithError(err).Fatal("could not parse configuration file")
	}

	if len(conf.Sources) < 1 {
		logrus.Fatal("no sources configured")
	}

	return conf
}

// streamerConfig combines the streaming options with the sink
func (c Configuration) streamerConfig() streamer.Config {
	s := c.Streaming
	s.Address = c.Sink.Address
	s.Database = c.Sink.Database
	return s
}
