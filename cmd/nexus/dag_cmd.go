package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/canonicalize"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/crawler"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/nexus"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/signedhttp"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/types"
)

// runDagCmd implements `nexus dag <validate|publish>`.
//
// Exit codes:
//
//	0 = success
//	1 = validation or publication failed
//	2 = usage or runtime error
func runDagCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: nexus dag <validate|publish>")
		return 2
	}
	switch args[0] {
	case "validate":
		return runDagValidate(args[1:], stdout, stderr)
	case "publish":
		return runDagPublish(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown dag subcommand: %s\n", args[0])
		return 2
	}
}

func runDagValidate(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("dag validate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		file       string
		jsonOutput bool
	)
	cmd.StringVar(&file, "file", "", "Path to the DAG definition file (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if file == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --file is required")
		return 2
	}

	dag, err := types.LoadDag(file)
	if err != nil {
		if jsonOutput {
			data, _ := json.MarshalIndent(map[string]any{
				"file":  file,
				"valid": false,
				"error": err.Error(),
			}, "", "  ")
			_, _ = fmt.Fprintln(stdout, string(data))
		} else {
			_, _ = fmt.Fprintf(stderr, "Validation failed: %v\n", err)
		}
		return 1
	}

	// Canonical digest of the definition, stable across key ordering.
	digest, err := canonicalize.CanonicalHash(dag)
	if err != nil {
		printError(stderr, err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(map[string]any{
			"file":           file,
			"valid":          true,
			"digest":         digest,
			"vertices":       len(dag.Vertices),
			"entry_vertices": len(dag.EntryVertices),
			"edges":          len(dag.Edges),
		}, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "DAG is valid: %s\n", file)
	_, _ = fmt.Fprintf(stdout, "  Digest:   %s\n", digest)
	_, _ = fmt.Fprintf(stdout, "  Vertices: %d (+%d entry)\n", len(dag.Vertices), len(dag.EntryVertices))
	_, _ = fmt.Fprintf(stdout, "  Edges:    %d\n", len(dag.Edges))
	return 0
}

func runDagPublish(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("dag publish", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		file       string
		conf       string
		keyRaw     string
		gasCoins   stringList
		jsonOutput bool
	)
	cmd.StringVar(&file, "file", "", "Path to the DAG definition file (REQUIRED)")
	cmd.StringVar(&conf, "conf", "", "Path to the configuration file")
	cmd.StringVar(&keyRaw, "key", "", "Private key; defaults to $"+envPrivateKey)
	cmd.Var(&gasCoins, "gas-coin", "Owned gas coin object id (repeatable, at least one REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if file == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --file is required")
		return 2
	}

	dag, err := types.LoadDag(file)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Validation failed: %v\n", err)
		return 1
	}

	ctx := context.Background()
	client, err := buildClient(ctx, conf, keyRaw, gasCoins)
	if err != nil {
		printError(stderr, err)
		return 2
	}

	result, err := client.Workflow().Publish(ctx, dag)
	if err != nil {
		printError(stderr, err)
		return 1
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(map[string]any{
			"dag_id":    result.DAGID.String(),
			"tx_digest": result.TxDigest,
		}, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "DAG published: %s\n", result.DAGID)
	_, _ = fmt.Fprintf(stdout, "  Tx digest: %s\n", result.TxDigest)
	return 0
}

// buildClient assembles a facade client from the configuration file, a
// private key and the gas coin ids passed on the command line. Coin
// references are resolved against the ledger before construction.
func buildClient(ctx context.Context, confFlag, keyFlag string, gasCoins stringList) (*nexus.Client, error) {
	conf, err := nexus.LoadConf(confPath(confFlag))
	if err != nil {
		return nil, err
	}
	if conf.ObjectsPath == "" {
		return nil, fmt.Errorf("no objects_path in configuration: run a deployment and point objects_path at its registry file")
	}
	objects, err := types.LoadNexusObjects(conf.ObjectsPath)
	if err != nil {
		return nil, err
	}

	rawKey, err := privateKey(keyFlag)
	if err != nil {
		return nil, err
	}
	key, err := signedhttp.ParsePrivateKey(rawKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	rpc, err := chain.NewClient(chain.Config{Endpoint: conf.RPCURL})
	if err != nil {
		return nil, err
	}

	if len(gasCoins) == 0 {
		return nil, fmt.Errorf("at least one --gas-coin is required")
	}
	refs := make([]chain.ObjectRef, 0, len(gasCoins))
	for _, raw := range gasCoins {
		id, err := chain.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("gas coin %q: %w", raw, err)
		}
		meta, err := crawler.GetObjectMetadata(ctx, rpc, id)
		if err != nil {
			return nil, fmt.Errorf("resolve gas coin %s: %w", id, err)
		}
		refs = append(refs, meta.Reference())
	}

	return nexus.NewClient(ctx, nexus.Config{
		Key:       key,
		RPC:       rpc,
		Objects:   objects,
		GasCoins:  refs,
		GasBudget: conf.GasBudget,
	})
}
