package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

type CommandLineOptions struct {
	ConfigPath string `short:"c" long:"config" description:"configuration file" required:"true"`
	Stdout     bool   `long:"stdout" description:"write line protocol to stdout instead of the sink"`
	Debug      bool   `short:"v" long:"verbose" description:"enable debug logging"`

	Profile     string `long:"profile" description:"the type of profile to record"`
	ProfilePath string `long:"profilepath" description:"path for the profile"`
}

func readCommandLineOptions() CommandLineOptions {
	opts := CommandLineOptions{}
	_, err := flags.Parse(&opts)

	switch errt := err.(type) {
	case *flags.Error:
		if errt.Type == flags.ErrHelp {
			os.Exit(0)
		}
	}

	if err != nil {
		logrus.WithError(err).Fatal("could not parse command line arguments")
	}

	return opts
}
