// Command hfc validates a driver configuration and reports the
// elaborator's build version.
//
// hfc has no text frontend: a design root is a *thir.FunctionIR built by
// a separate statically-typed adapter that imports this module directly
// (see package hfc's doc comment). This CLI covers the part of the
// pipeline that does start from a file on disk: the YAML driver config
// consumed by virgen.Driver.
//
// Usage:
//
//	hfc -c hfc.yaml
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/hazardflow/hfc"
)

var (
	configPath  = flag.String("c", "", "driver config YAML path (required)")
	versionFlag = flag.Bool("version", false, "print version")
)

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *versionFlag {
		fmt.Printf("hfc version %s\n", version())
		return
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: no config specified, nothing to validate")
		usage()
		os.Exit(1)
	}

	cfg, err := hfc.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("config OK: system_task=%v clock=%s reset=%s log_level=%s\n",
		cfg.SystemTask, cfg.ClockName, cfg.ResetName, cfg.LogLevel)
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: hfc -c <config.yaml>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}
