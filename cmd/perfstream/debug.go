package main

import (
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
)

var profileModes = map[string]func(p *profile.Profile){
	"cpu":       profile.CPUProfile,
	"mem":       profile.MemProfile,
	"allocs":    profile.MemProfileAllocs,
	"mutex":     profile.MutexProfile,
	"block":     profile.BlockProfile,
	"goroutine": profile.GoroutineProfile,
	"trace":     profile.TraceProfile,
}

// startProfile records the profile selected on the command line until the returned function is called
func startProfile(opts CommandLineOptions) func() {
	mode, ok := profileModes[opts.Profile]
	if !ok {
		logrus.WithField("profile", opts.Profile).Fatal("Unknown profile type")
	}

	popts := []func(p *profile.Profile){mode, profile.NoShutdownHook}

	if opts.ProfilePath != "" {
		popts = append(popts, profile.ProfilePath(opts.ProfilePath), profile.Quiet)
	}

	logrus.WithFields(logrus.Fields{"profile": opts.Profile, "path": opts.ProfilePath}).Info("Recording profile")

	return profile.Start(popts...).Stop
}
