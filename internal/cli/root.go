// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keysplit.
//
// go-keysplit is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command
var rootCmd = newRootCmd(NewConfig())

func newRootCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keysplit",
		Short: "go-keysplit CLI - threshold file protection",
		Long: `keysplit encrypts a file with a fresh 256-bit key and splits that key
into N shares, any K of which recover the file.

Supported schemes:
  - prime521: Shamir over GF(2^521 - 1) (default)
  - gf256:    byte-wise Shamir over GF(2^8) with share checksums
  - sssa:     SSSaaS compatible shares`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "",
		"config file (defaults plus KEYSPLIT_* environment when empty)")
	cmd.PersistentFlags().StringVarP(&cfg.OutputFormat, "output", "o", "text",
		"output format (text, json, yaml)")
	cmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false,
		"verbose output")

	cmd.AddCommand(newVersionCmd(cfg))
	cmd.AddCommand(newSealCmd(cfg))
	cmd.AddCommand(newRecoverCmd(cfg))
	cmd.AddCommand(newInspectCmd(cfg))
	cmd.AddCommand(newConfigCmd(cfg))
	cmd.AddCommand(newServeCmd(cfg))
	return cmd
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// HandleError prints err in the selected output format and exits with
// code 1.
func HandleError(err error) {
	format, _ := rootCmd.PersistentFlags().GetString("output")
	_ = NewPrinter(format, os.Stderr).PrintError(err)
	os.Exit(1)
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(cfg *Config, w io.Writer, format string, args ...interface{}) {
	if cfg.Verbose {
		fmt.Fprintf(w, "[VERBOSE] "+format+"\n", args...)
	}
}
