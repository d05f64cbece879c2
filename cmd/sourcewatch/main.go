package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/common/version"

	"github.com/grafana/sourcewatch/internal/app"
	"github.com/grafana/sourcewatch/internal/configstore"
)

const appName = "sourcewatch"

// Version, Branch, and Revision are set via -ldflags -X at build time.
var (
	Version  string
	Branch   string
	Revision string
)

func init() {
	version.Version = Version
	version.Branch = Branch
	version.Revision = Revision
}

func main() {
	var (
		configFile      string
		configExpandEnv bool
		printVersion    bool
	)

	flag.StringVar(&configFile, "config.file", "", "Configuration file to load")
	flag.BoolVar(&configExpandEnv, "config.expand-env", false, "Expand ${VAR} references in the config file against the environment")
	flag.BoolVar(&printVersion, "version", false, "Print this build's version information and exit")
	flag.Parse()

	if printVersion {
		fmt.Println(version.Print(appName))
		os.Exit(0)
	}

	if configFile == "" {
		fmt.Fprintln(os.Stderr, "missing required flag -config.file")
		os.Exit(1)
	}

	store, err := configstore.Load(configFile, configExpandEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config file %s: %v\n", configFile, err)
		os.Exit(1)
	}

	a, err := app.New(store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize sourcewatch: %v\n", err)
		os.Exit(1)
	}

	if err := a.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "sourcewatch exited with error: %v\n", err)
		os.Exit(1)
	}
}
