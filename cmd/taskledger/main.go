// Command taskledger is the CLI for the verifiable inference task ledger.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/taskledger/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
