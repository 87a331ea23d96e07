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
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/jeremyhahn/go-keysplit/internal/config"
	"github.com/jeremyhahn/go-keysplit/pkg/session"
	"github.com/jeremyhahn/go-keysplit/pkg/threshold"
	"github.com/spf13/cobra"
)

const (
	// RecordSuffix is appended to the input name for the default record path.
	RecordSuffix = ".keysplit.json"

	filePerm = 0o600
	dirPerm  = 0o700
)

type sealOptions struct {
	record    string
	sharesDir string
	mimeType  string
	total     int
	threshold int
	scheme    string
	algorithm string
	compress  bool
	force     bool
}

func newSealCmd(cfg *Config) *cobra.Command {
	opts := &sealOptions{}
	cmd := &cobra.Command{
		Use:   "seal FILE",
		Short: "Encrypt a file and split its key into shares",
		Long: `Encrypt FILE with a fresh key, split the key into shares and write the
sealed record and one text file per share. Hand each share file to a
different trustee; any threshold of them recover the file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeal(cmd, cfg, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.record, "record", "", "sealed record path (default FILE"+RecordSuffix+")")
	cmd.Flags().StringVar(&opts.sharesDir, "shares-dir", "", "directory for share files (default: record directory)")
	cmd.Flags().StringVar(&opts.mimeType, "mime-type", "", "MIME type (default: from file extension)")
	cmd.Flags().IntVarP(&opts.total, "shares", "n", 0, "total shares to issue (overrides config)")
	cmd.Flags().IntVarP(&opts.threshold, "threshold", "k", 0, "shares required to recover (overrides config)")
	cmd.Flags().StringVar(&opts.scheme, "scheme", "", "sharing scheme (overrides config)")
	cmd.Flags().StringVar(&opts.algorithm, "algorithm", "", "cipher algorithm (overrides config)")
	cmd.Flags().BoolVar(&opts.compress, "compress", false, "compress before encrypting")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "overwrite existing files")
	return cmd
}

func runSeal(cmd *cobra.Command, cfg *Config, opts *sealOptions, path string) error {
	app, err := cfg.Load()
	if err != nil {
		return err
	}
	if err := applySealFlags(cmd, app, opts); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	sess, err := cfg.NewSession(app)
	if err != nil {
		return err
	}

	mimeType := opts.mimeType
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(path))
	}

	printVerbose(cfg, cmd.ErrOrStderr(), "sealing %s (%d bytes) as %d-of-%d with %s",
		path, len(data), app.Sharing.Threshold, app.Sharing.TotalShares, app.Sharing.Scheme)

	sealed, err := sess.SealFile(cmd.Context(), session.File{
		Name:     filepath.Base(path),
		MimeType: mimeType,
		Data:     data,
	})
	if err != nil {
		return err
	}

	record := opts.record
	if record == "" {
		record = path + RecordSuffix
	}
	sharesDir := opts.sharesDir
	if sharesDir == "" {
		sharesDir = filepath.Dir(record)
	}

	if err := writeRecord(record, sealed.Payload, opts.force); err != nil {
		return err
	}
	shareFiles, err := writeShares(sharesDir, sealed.Payload.Name, sealed.Shares, opts.force)
	if err != nil {
		return err
	}

	return NewPrinter(cfg.OutputFormat, cmd.OutOrStdout()).PrintSealResult(&SealResult{
		Record:      record,
		ShareFiles:  shareFiles,
		Scheme:      sealed.Payload.Scheme,
		Algorithm:   sealed.Payload.Algorithm,
		Threshold:   sealed.Payload.Threshold,
		TotalShares: sealed.Payload.TotalShares,
		Size:        sealed.Payload.Size,
	})
}

// applySealFlags overrides app with the flags the user set and
// revalidates it.
func applySealFlags(cmd *cobra.Command, app *config.Config, opts *sealOptions) error {
	flags := cmd.Flags()
	if flags.Changed("shares") {
		app.Sharing.TotalShares = opts.total
	}
	if flags.Changed("threshold") {
		app.Sharing.Threshold = opts.threshold
	}
	if flags.Changed("scheme") {
		app.Sharing.Scheme = opts.scheme
	}
	if flags.Changed("algorithm") {
		app.Cipher.Algorithm = opts.algorithm
	}
	if flags.Changed("compress") {
		app.Session.Compress = opts.compress
	}
	return app.Validate()
}

func writeRecord(path string, payload session.Payload, force bool) error {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("failed to create record directory: %w", err)
	}
	return writeFile(path, append(raw, '\n'), force)
}

// writeShares writes one "<name>.share-<n>.txt" file per share, numbered
// by position since not every scheme exposes the share index.
func writeShares(dir, name string, shares []threshold.Share, force bool) ([]string, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create shares directory: %w", err)
	}

	files := make([]string, 0, len(shares))
	for i, share := range shares {
		path := filepath.Join(dir, fmt.Sprintf("%s.share-%d.txt", name, i+1))
		if err := writeFile(path, []byte(share.Data+"\n"), force); err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}

func writeFile(path string, data []byte, force bool) error {
	flag := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flag, filePerm)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func readRecord(path string) (session.Payload, error) {
	var payload session.Payload
	raw, err := os.ReadFile(path)
	if err != nil {
		return payload, fmt.Errorf("failed to read record: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return payload, fmt.Errorf("%w: %v", session.ErrInvalidPayload, err)
	}
	return payload, nil
}
