// Command vaultarc is the CLI entry point for the vaultarc backup
// archiver.
package main

import (
	"fmt"
	"os"

	"github.com/vaultarc/vaultarc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
