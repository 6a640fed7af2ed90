// Command nexus is the toolbelt around the SDK: key management, DAG
// validation and publishing, allowed-leaders export, faucet requests and
// configuration inspection.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/nexus"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/telemetry"
)

// Environment knobs shared by all subcommands.
const (
	envPrivateKey   = "NEXUS_PRIVATE_KEY"
	envConfPath     = "NEXUS_CONF_PATH"
	envOTLPEndpoint = "NEXUS_OTLP_ENDPOINT"
	envOTLPInsecure = "NEXUS_OTLP_INSECURE"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	shutdown := setupTelemetry()
	defer shutdown()

	switch args[1] {
	case "key":
		return runKeyCmd(args[2:], stdout, stderr)
	case "dag":
		return runDagCmd(args[2:], stdout, stderr)
	case "leaders":
		return runLeadersCmd(args[2:], stdout, stderr)
	case "faucet":
		return runFaucetCmd(args[2:], stdout, stderr)
	case "conf":
		return runConfCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// setupTelemetry installs OTLP export when an endpoint is configured. The
// toolbelt stays silent about telemetry otherwise.
func setupTelemetry() func() {
	endpoint := os.Getenv(envOTLPEndpoint)
	if endpoint == "" {
		return func() {}
	}

	config := telemetry.DefaultConfig()
	config.Enabled = true
	config.Endpoint = endpoint
	config.ServiceName = "nexus-cli"
	config.Insecure = os.Getenv(envOTLPInsecure) == "1"

	provider, err := telemetry.Setup(context.Background(), config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: telemetry setup failed: %v\n", err)
		return func() {}
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		provider.Shutdown(ctx)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Nexus toolbelt")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  nexus <command> <subcommand> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "KEYS")
	printCommand(w, "key generate", "Generate an ed25519 key (--out, --json)")
	printCommand(w, "key inspect", "Derive address and public key (--key)")

	printSection(w, "WORKFLOWS")
	printCommand(w, "dag validate", "Validate a DAG definition file (--file, --json)")
	printCommand(w, "dag publish", "Publish a DAG to the ledger (--file, --gas-coin)")

	printSection(w, "NETWORK")
	printCommand(w, "leaders export", "Export the allowed-leaders file (--binding, --out)")
	printCommand(w, "faucet", "Request funds from a faucet (--address)")

	printSection(w, "CONFIGURATION")
	printCommand(w, "conf", "Show the resolved configuration (--init, --json)")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s:\n", title)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %-16s %s\n", name, desc)
}

// printError renders a facade error as kind/reason/status_code; anything
// else prints as-is.
func printError(stderr io.Writer, err error) {
	var fe *nexus.Error
	if errors.As(err, &fe) {
		if fe.StatusCode != 0 {
			_, _ = fmt.Fprintf(stderr, "Error [%s]: %s (status_code %d)\n", fe.Kind, fe.Reason, fe.StatusCode)
			return
		}
		_, _ = fmt.Fprintf(stderr, "Error [%s]: %s\n", fe.Kind, fe.Reason)
		return
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
}

// stringList collects a repeatable flag.
type stringList []string

func (l *stringList) String() string { return fmt.Sprintf("%v", []string(*l)) }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// confPath resolves the configuration file path: flag value, then env,
// then the user config directory.
func confPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(envConfPath); env != "" {
		return env
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "nexus.yaml"
	}
	return dir + "/nexus/conf.yaml"
}

// privateKey resolves the signing key: flag value, then env.
func privateKey(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(envPrivateKey); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("no private key: pass --key or set %s", envPrivateKey)
}
