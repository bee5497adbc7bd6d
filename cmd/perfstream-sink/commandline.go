package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

type CommandLineOptions struct {
	Address  string `short:"a" long:"address" default:":8086" description:"listen address"`
	Username string `short:"u" long:"username" description:"require basic auth with this user"`
	Password string `short:"p" long:"password" description:"password for basic auth"`
	Reject   int    `long:"reject" description:"answer every write with this status code"`
	Print    bool   `long:"print" description:"print received points to stdout"`
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
