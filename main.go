// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Tinmark classifies home-router traffic into cake-style priority tins
// and caches per-connection decisions in the conntrack mark.
package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/tinmark/cmd"
	"grimm.is/tinmark/internal/brand"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [flags]

Commands:
  run      Run the classifier daemon in the foreground
  start    Start the daemon in the background
  stop     Stop the running daemon
  check    Validate the configuration file
  version  Print the version

Flags:
  -config <path>   Configuration file (default %s)
`, brand.BinaryName, brand.ConfigFileName)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	command := os.Args[1]
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configFile := fs.String("config", "", "configuration file path")
	example := fs.Bool("example", false, "print an example configuration")
	fs.Parse(os.Args[2:])

	var err error
	switch command {
	case "run":
		err = cmd.RunDaemon(*configFile)
	case "start":
		err = cmd.RunStart(*configFile)
	case "stop":
		err = cmd.RunStop()
	case "check":
		err = cmd.RunCheck(*configFile, *example)
	case "version":
		fmt.Printf("%s %s\n", brand.BinaryName, cmd.Version)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
