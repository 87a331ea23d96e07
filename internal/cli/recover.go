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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

type recoverOptions struct {
	shares []string
	output string
	force  bool
}

func newRecoverCmd(cfg *Config) *cobra.Command {
	opts := &recoverOptions{}
	cmd := &cobra.Command{
		Use:   "recover RECORD [SHARE_FILE...]",
		Short: "Recover a sealed file from its shares",
		Long: `Rebuild the key from share files and --share texts, decrypt RECORD and
write the original file. At least the record's threshold of shares are
required.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecover(cmd, cfg, opts, args[0], args[1:])
		},
	}

	cmd.Flags().StringArrayVar(&opts.shares, "share", nil, "share text (repeatable)")
	cmd.Flags().StringVar(&opts.output, "out", "", "output path (default: the sealed file name in the current directory)")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "overwrite an existing output file")
	return cmd
}

func runRecover(cmd *cobra.Command, cfg *Config, opts *recoverOptions, recordPath string, shareFiles []string) error {
	app, err := cfg.Load()
	if err != nil {
		return err
	}

	payload, err := readRecord(recordPath)
	if err != nil {
		return err
	}

	texts := append([]string(nil), opts.shares...)
	for _, path := range shareFiles {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read share file: %w", err)
		}
		texts = append(texts, string(raw))
	}

	sess, err := cfg.NewSession(app)
	if err != nil {
		return err
	}

	printVerbose(cfg, cmd.ErrOrStderr(), "recovering %s from %d shares (%s, threshold %d)",
		payload.Name, len(texts), payload.Scheme, payload.Threshold)

	recovered, err := sess.RecoverPayload(cmd.Context(), &payload, texts)
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = filepath.Base(recovered.Payload.Name)
	}
	if err := writeFile(output, recovered.Data, opts.force); err != nil {
		return err
	}

	return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintRecoverResult(&RecoverResult{
		Output:     output,
		Name:       recovered.Payload.Name,
		MimeType:   recovered.Payload.MimeType,
		Size:       int64(len(recovered.Data)),
		SharesUsed: recovered.SharesUsed,
	})
}
