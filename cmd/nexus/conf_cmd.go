package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/nexus"
)

// runConfCmd implements `nexus conf`: show the resolved configuration
// (file plus environment overrides) and its fingerprint, or write the
// defaults with --init.
//
// Exit codes:
//
//	0 = success
//	2 = usage or runtime error
func runConfCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("conf", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		path       string
		initConf   bool
		jsonOutput bool
	)
	cmd.StringVar(&path, "path", "", "Path to the configuration file; defaults to $"+envConfPath+" or the user config dir")
	cmd.BoolVar(&initConf, "init", false, "Write the default configuration to the path and exit")
	cmd.BoolVar(&jsonOutput, "json", false, "Output as JSON instead of YAML")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	resolved := confPath(path)

	if initConf {
		if err := nexus.DefaultConf().Save(resolved); err != nil {
			printError(stderr, err)
			return 2
		}
		_, _ = fmt.Fprintf(stdout, "Default configuration written: %s\n", resolved)
		return 0
	}

	conf, err := nexus.LoadConf(resolved)
	if err != nil {
		printError(stderr, err)
		return 2
	}
	fingerprint, err := conf.Fingerprint()
	if err != nil {
		printError(stderr, err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(map[string]any{
			"path":        resolved,
			"conf":        conf,
			"fingerprint": fingerprint,
		}, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "# %s\n", resolved)
	data, err := yaml.Marshal(conf)
	if err != nil {
		printError(stderr, err)
		return 2
	}
	_, _ = stdout.Write(data)
	_, _ = fmt.Fprintf(stdout, "# fingerprint: %s\n", fingerprint)
	return 0
}
