// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vaultarc/vaultarc/internal/config"
	"github.com/vaultarc/vaultarc/internal/log"
)

var (
	// Global flags
	configFile string
	socketPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vaultarc",
	Short: "vaultarc - backup archiver",
	Long: `vaultarc reads and writes compressed, optionally encrypted, delta-
aware backup archives from a job description.

Each run picks one operation:
  create   write a new archive from a set of filesystem sources
  test     verify an archive's entries decode cleanly
  compare  diff an archive's entries against the live filesystem
  restore  write an archive's entries back to disk
  convert  re-encode an archive under a different compress/crypt policy

A running operation exposes pause/resume/abort/status over a Unix
Domain Socket; see "vaultarc control".`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"global config file path (built-in defaults if omitted)")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "control-socket", "s", "",
		"control channel socket path (overrides the config file's control.socket)")

	// Add subcommands
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(controlCmd)
}

// loadGlobal reads the process-wide GlobalConfig, applies the
// --control-socket override, and brings up logging. Every operation
// subcommand and "control" go through this first.
func loadGlobal() (*config.GlobalConfig, error) {
	global, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if socketPath != "" {
		global.Control.Socket = socketPath
	}
	if err := log.Init(global.Log); err != nil {
		return nil, err
	}
	return global, nil
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
