package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/nexus"
)

// runLeadersCmd implements `nexus leaders export`.
//
// Reads the named key bindings from the ledger and writes the allowed
// leaders file the signed-HTTP responder loads at startup.
//
// Exit codes:
//
//	0 = file written
//	1 = export failed
//	2 = usage or runtime error
func runLeadersCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || args[0] != "export" {
		_, _ = fmt.Fprintln(stderr, "Usage: nexus leaders export --binding <leader>=<binding> --out <path>")
		return 2
	}

	cmd := flag.NewFlagSet("leaders export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		conf     string
		keyRaw   string
		gasCoins stringList
		bindings stringList
		outPath  string
	)
	cmd.StringVar(&conf, "conf", "", "Path to the configuration file")
	cmd.StringVar(&keyRaw, "key", "", "Private key; defaults to $"+envPrivateKey)
	cmd.Var(&gasCoins, "gas-coin", "Owned gas coin object id (repeatable, at least one REQUIRED)")
	cmd.Var(&bindings, "binding", "leader_address=binding_object_id pair (repeatable, REQUIRED)")
	cmd.StringVar(&outPath, "out", "allowed_leaders.json", "Output path for the allowed-leaders file")

	if err := cmd.Parse(args[1:]); err != nil {
		return 2
	}
	if len(bindings) == 0 {
		_, _ = fmt.Fprintln(stderr, "Error: at least one --binding is required")
		return 2
	}

	parsed := make([]nexus.LeaderBinding, 0, len(bindings))
	for _, raw := range bindings {
		leader, binding, ok := strings.Cut(raw, "=")
		if !ok {
			_, _ = fmt.Fprintf(stderr, "Error: --binding %q is not leader=binding\n", raw)
			return 2
		}
		leaderID, err := chain.ParseAddress(leader)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: leader %q: %v\n", leader, err)
			return 2
		}
		bindingID, err := chain.ParseAddress(binding)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: binding %q: %v\n", binding, err)
			return 2
		}
		parsed = append(parsed, nexus.LeaderBinding{LeaderID: leaderID, BindingID: bindingID})
	}

	ctx := context.Background()
	client, err := buildClient(ctx, conf, keyRaw, gasCoins)
	if err != nil {
		printError(stderr, err)
		return 2
	}

	file, err := client.NetworkAuth().ExportAllowedLeaders(ctx, parsed)
	if err != nil {
		printError(stderr, err)
		return 1
	}
	if err := nexus.WriteAllowedLeaders(outPath, file); err != nil {
		printError(stderr, err)
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "Allowed leaders written: %s (%d leaders)\n", outPath, len(file.Leaders))
	return 0
}
