package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/nexus"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/signedhttp"
)

// runKeyCmd implements `nexus key <generate|inspect>`.
//
// Exit codes:
//
//	0 = success
//	2 = usage or runtime error
func runKeyCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: nexus key <generate|inspect>")
		return 2
	}
	switch args[0] {
	case "generate":
		return runKeyGenerate(args[1:], stdout, stderr)
	case "inspect":
		return runKeyInspect(args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown key subcommand: %s\n", args[0])
		return 2
	}
}

func runKeyGenerate(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("key generate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		outPath    string
		jsonOutput bool
	)
	cmd.StringVar(&outPath, "out", "", "Write the private key to a file (0600) instead of stdout")
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		printError(stderr, err)
		return 2
	}

	signer, err := nexus.NewSigner(key)
	if err != nil {
		printError(stderr, err)
		return 2
	}
	keyHex := signedhttp.PrivateKeyHex(key)

	if outPath != "" {
		if err := os.WriteFile(outPath, []byte(keyHex+"\n"), 0o600); err != nil {
			printError(stderr, fmt.Errorf("write key file: %w", err))
			return 2
		}
	}

	if jsonOutput {
		result := map[string]any{
			"address":    signer.Address().String(),
			"public_key": hex.EncodeToString(signer.PublicKey()),
		}
		if outPath != "" {
			result["key_path"] = outPath
		} else {
			result["private_key"] = keyHex
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "Address:     %s\n", signer.Address())
	_, _ = fmt.Fprintf(stdout, "Public key:  %s\n", hex.EncodeToString(signer.PublicKey()))
	if outPath != "" {
		_, _ = fmt.Fprintf(stdout, "Private key: written to %s\n", outPath)
	} else {
		_, _ = fmt.Fprintf(stdout, "Private key: %s\n", keyHex)
	}
	return 0
}

func runKeyInspect(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("key inspect", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		keyRaw     string
		jsonOutput bool
	)
	cmd.StringVar(&keyRaw, "key", "", "Private key (hex, base64 or flagged form); defaults to $"+envPrivateKey)
	cmd.BoolVar(&jsonOutput, "json", false, "Output result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	raw, err := privateKey(keyRaw)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	signer, err := nexus.NewSignerFromString(raw)
	if err != nil {
		printError(stderr, err)
		return 2
	}

	if jsonOutput {
		result := map[string]any{
			"address":    signer.Address().String(),
			"public_key": hex.EncodeToString(signer.PublicKey()),
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "Address:    %s\n", signer.Address())
	_, _ = fmt.Fprintf(stdout, "Public key: %s\n", hex.EncodeToString(signer.PublicKey()))
	return 0
}
