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
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/jeremyhahn/go-keysplit/internal/config"
	"github.com/jeremyhahn/go-keysplit/pkg/session"
	"gopkg.in/yaml.v3"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
	OutputFormatYAML OutputFormat = "yaml"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(strings.ToLower(format)),
		writer: writer,
	}
}

// SealResult describes the files written by seal.
type SealResult struct {
	Record      string   `json:"record" yaml:"record"`
	ShareFiles  []string `json:"share_files" yaml:"share_files"`
	Scheme      string   `json:"scheme" yaml:"scheme"`
	Algorithm   string   `json:"algorithm" yaml:"algorithm"`
	Threshold   int      `json:"threshold" yaml:"threshold"`
	TotalShares int      `json:"total_shares" yaml:"total_shares"`
	Size        int64    `json:"size" yaml:"size"`
}

// RecoverResult describes the file written by recover.
type RecoverResult struct {
	Output     string `json:"output" yaml:"output"`
	Name       string `json:"name" yaml:"name"`
	MimeType   string `json:"mime_type" yaml:"mime_type"`
	Size       int64  `json:"size" yaml:"size"`
	SharesUsed int    `json:"shares_used" yaml:"shares_used"`
}

// PrintSealResult prints the outcome of a seal.
func (p *Printer) PrintSealResult(r *SealResult) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.print(r)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Sealed %d bytes with %s (%s)\n", r.Size, r.Algorithm, r.Scheme)
		fmt.Fprintf(p.writer, "Record: %s\n", r.Record)
		fmt.Fprintf(p.writer, "Shares (any %d of %d recover the file):\n", r.Threshold, r.TotalShares)
		for _, f := range r.ShareFiles {
			fmt.Fprintf(p.writer, "  - %s\n", f)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintRecoverResult prints the outcome of a recovery.
func (p *Printer) PrintRecoverResult(r *RecoverResult) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.print(r)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Recovered %s (%s, %d bytes) from %d shares\n",
			r.Name, r.MimeType, r.Size, r.SharesUsed)
		fmt.Fprintf(p.writer, "Written to: %s\n", r.Output)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintPayload prints the metadata of a sealed record. The ciphertext is
// reported by length only.
func (p *Printer) PrintPayload(payload session.Payload) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		info := map[string]interface{}{
			"id":             payload.ID,
			"name":           payload.Name,
			"mime_type":      payload.MimeType,
			"size":           payload.Size,
			"algorithm":      payload.Algorithm,
			"scheme":         payload.Scheme,
			"threshold":      payload.Threshold,
			"total_shares":   payload.TotalShares,
			"key_size":       payload.KeySize,
			"compressed":     payload.Compressed,
			"content_hash":   payload.ContentHash,
			"ciphertext_len": len(payload.Ciphertext),
			"created_at":     payload.CreatedAt.Format(time.RFC3339),
		}
		return p.print(info)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Sealed Record:\n")
		fmt.Fprintf(p.writer, "  ID:           %s\n", payload.ID)
		fmt.Fprintf(p.writer, "  Name:         %s\n", payload.Name)
		fmt.Fprintf(p.writer, "  MIME Type:    %s\n", payload.MimeType)
		fmt.Fprintf(p.writer, "  Size:         %d bytes\n", payload.Size)
		fmt.Fprintf(p.writer, "  Algorithm:    %s\n", payload.Algorithm)
		fmt.Fprintf(p.writer, "  Scheme:       %s\n", payload.Scheme)
		fmt.Fprintf(p.writer, "  Threshold:    %d of %d\n", payload.Threshold, payload.TotalShares)
		fmt.Fprintf(p.writer, "  Compressed:   %t\n", payload.Compressed)
		fmt.Fprintf(p.writer, "  Content Hash: %s\n", payload.ContentHash)
		fmt.Fprintf(p.writer, "  Created:      %s\n", payload.CreatedAt.Format(time.RFC3339))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintConfig prints the effective application configuration. Text output
// is YAML, the format config files are written in.
func (p *Printer) PrintConfig(cfg *config.Config) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(cfg)
	case OutputFormatText, OutputFormatYAML:
		return p.printYAML(cfg)
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintVersion prints build information.
func (p *Printer) PrintVersion() error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.print(map[string]interface{}{
			"version":    Version,
			"commit":     GitCommit,
			"build_date": BuildDate,
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "keysplit version %s\n", Version)
		fmt.Fprintf(p.writer, "Git commit: %s\n", GitCommit)
		fmt.Fprintf(p.writer, "Build date: %s\n", BuildDate)
		fmt.Fprintf(p.writer, "Go version: %s\n", runtime.Version())
		fmt.Fprintf(p.writer, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.print(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message along with its session error kind.
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON, OutputFormatYAML:
		return p.print(map[string]interface{}{
			"status": "error",
			"kind":   session.KindOf(err),
			"error":  err.Error(),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

// print renders structured formats.
func (p *Printer) print(data interface{}) error {
	if p.format == OutputFormatYAML {
		return p.printYAML(data)
	}
	return p.printJSON(data)
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// printYAML prints data as YAML
func (p *Printer) printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(p.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}
