package main

import (
	"flag"
	"fmt"
	"os"
)

// config holds the resolved command-line configuration.
type config struct {
	Fixture   string
	Verbosity int
}

// parseFlags parses args into a config. The second return requests an
// immediate exit (help/version/parse error) with the third as exit code.
func parseFlags(args []string) (config, bool, int) {
	var cfg config
	var showVersion bool

	fs := flag.NewFlagSet("jamd", flag.ContinueOnError)
	fs.StringVar(&cfg.Fixture, "fixture", "", "path to a JSON fixture file")
	fs.IntVar(&cfg.Verbosity, "verbosity", 2, "log level 0-4")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return cfg, true, 2
	}
	if showVersion {
		fmt.Printf("jamd %s (%s)\n", version, commit)
		return cfg, true, 0
	}
	if cfg.Fixture == "" {
		fmt.Fprintln(os.Stderr, "jamd: --fixture is required")
		fs.Usage()
		return cfg, true, 2
	}
	return cfg, false, 0
}
