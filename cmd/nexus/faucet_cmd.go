package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"
	"github.com/Talus-Network/nexus-sdk-sub002/pkg/nexus"
)

// runFaucetCmd implements `nexus faucet`.
//
// Exit codes:
//
//	0 = funds requested
//	1 = the faucet rejected or could not be reached
//	2 = usage or runtime error
func runFaucetCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("faucet", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		conf    string
		url     string
		address string
		keyRaw  string
	)
	cmd.StringVar(&conf, "conf", "", "Path to the configuration file")
	cmd.StringVar(&url, "url", "", "Faucet endpoint; defaults to faucet_url from the configuration")
	cmd.StringVar(&address, "address", "", "Recipient address; defaults to the address of --key / $"+envPrivateKey)
	cmd.StringVar(&keyRaw, "key", "", "Private key used to derive the recipient when --address is not given")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if url == "" {
		loaded, err := nexus.LoadConf(confPath(conf))
		if err != nil {
			printError(stderr, err)
			return 2
		}
		url = loaded.FaucetURL
	}

	var recipient chain.Address
	if address != "" {
		parsed, err := chain.ParseAddress(address)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		recipient = parsed
	} else {
		raw, err := privateKey(keyRaw)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: no --address and %v\n", err)
			return 2
		}
		signer, err := nexus.NewSignerFromString(raw)
		if err != nil {
			printError(stderr, err)
			return 2
		}
		recipient = signer.Address()
	}

	faucet, err := nexus.NewFaucetClient(url)
	if err != nil {
		printError(stderr, err)
		return 2
	}
	if err := faucet.RequestFunds(context.Background(), recipient); err != nil {
		printError(stderr, err)
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "Funds requested for %s\n", recipient)
	return 0
}
