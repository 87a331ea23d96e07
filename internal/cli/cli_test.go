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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-keysplit/internal/config"
	"github.com/jeremyhahn/go-keysplit/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(NewConfig())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeInput(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func sealJSON(t *testing.T, args ...string) *SealResult {
	t.Helper()
	out, err := execute(t, append([]string{"-o", "json", "seal"}, args...)...)
	require.NoError(t, err, out)

	var result SealResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	return &result
}

func TestSealRecover_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	plaintext := []byte("the launch codes are in the blue binder")
	input := writeInput(t, dir, "codes.txt", plaintext)

	sealed := sealJSON(t, input, "-n", "4", "-k", "2")
	assert.Equal(t, input+RecordSuffix, sealed.Record)
	assert.Equal(t, "prime521", sealed.Scheme)
	assert.Equal(t, 2, sealed.Threshold)
	require.Len(t, sealed.ShareFiles, 4)

	for i, f := range sealed.ShareFiles {
		assert.Equal(t, filepath.Join(dir, fmt.Sprintf("codes.txt.share-%d.txt", i+1)), f)
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	output := filepath.Join(dir, "recovered.txt")
	out, err := execute(t, "-o", "json", "recover", sealed.Record,
		sealed.ShareFiles[3], sealed.ShareFiles[1], "--out", output)
	require.NoError(t, err, out)

	var result RecoverResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "codes.txt", result.Name)
	assert.Equal(t, 2, result.SharesUsed)
	assert.Equal(t, int64(len(plaintext)), result.Size)

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestSealRecover_SchemesAndCompression(t *testing.T) {
	for _, scheme := range []string{"prime521", "gf256", "sssa"} {
		t.Run(scheme, func(t *testing.T) {
			dir := t.TempDir()
			plaintext := bytes.Repeat([]byte("compressible "), 200)
			input := writeInput(t, dir, "notes.txt", plaintext)

			sealed := sealJSON(t, input, "--scheme", scheme, "--compress",
				"--algorithm", "chacha20-poly1305", "--shares-dir", filepath.Join(dir, "shares"))
			assert.Equal(t, scheme, sealed.Scheme)
			assert.Equal(t, filepath.Join(dir, "shares"), filepath.Dir(sealed.ShareFiles[0]))

			// Share texts can be passed inline as well as by file.
			inline, err := os.ReadFile(sealed.ShareFiles[0])
			require.NoError(t, err)

			output := filepath.Join(dir, "out.txt")
			_, err = execute(t, "recover", sealed.Record,
				"--share", strings.TrimSpace(string(inline)),
				sealed.ShareFiles[2], sealed.ShareFiles[4],
				"--out", output)
			require.NoError(t, err)

			got, err := os.ReadFile(output)
			require.NoError(t, err)
			assert.Equal(t, plaintext, got)
		})
	}
}

func TestRecover_InsufficientShares(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "a.bin", []byte{1, 2, 3})
	sealed := sealJSON(t, input)

	_, err := execute(t, "recover", sealed.Record, sealed.ShareFiles[0], sealed.ShareFiles[1],
		"--out", filepath.Join(dir, "out.bin"))
	assert.ErrorIs(t, err, session.ErrInsufficientShares)

	_, statErr := os.Stat(filepath.Join(dir, "out.bin"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRecover_WrongShares(t *testing.T) {
	dir := t.TempDir()
	first := sealJSON(t, writeInput(t, dir, "one.txt", []byte("one")))
	second := sealJSON(t, writeInput(t, dir, "two.txt", []byte("two")))

	_, err := execute(t, "recover", first.Record,
		second.ShareFiles[0], second.ShareFiles[1], second.ShareFiles[2],
		"--out", filepath.Join(dir, "out.txt"))
	assert.ErrorIs(t, err, session.ErrAuthenticationFailure)
}

func TestRecover_InvalidRecord(t *testing.T) {
	dir := t.TempDir()
	record := writeInput(t, dir, "bad.json", []byte(`{"id": "x", "unknown": true}`))

	_, err := execute(t, "recover", record, "--share", "1-1")
	assert.ErrorIs(t, err, session.ErrInvalidPayload)
}

func TestSeal_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "f.txt", []byte("data"))
	sealJSON(t, input)

	_, err := execute(t, "seal", input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "seal", input, "--force")
	assert.NoError(t, err)
}

func TestSeal_InvalidParameters(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "f.txt", []byte("data"))

	_, err := execute(t, "seal", input, "-k", "1")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = execute(t, "seal", input, "--scheme", "nope")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = execute(t, "seal", filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	sealed := sealJSON(t, writeInput(t, dir, "report.pdf", []byte("%PDF-1.7")), "-n", "6", "-k", "4")

	out, err := execute(t, "-o", "yaml", "inspect", sealed.Record)
	require.NoError(t, err)

	var info map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &info))
	assert.Equal(t, "report.pdf", info["name"])
	assert.Equal(t, "application/pdf", info["mime_type"])
	assert.Equal(t, 4, info["threshold"])
	assert.Equal(t, 6, info["total_shares"])
	assert.NotContains(t, out, "ciphertext:")

	text, err := execute(t, "inspect", sealed.Record)
	require.NoError(t, err)
	assert.Contains(t, text, "Threshold:    4 of 6")
}

func TestConfigShow(t *testing.T) {
	out, err := execute(t, "config", "show")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "prime521", cfg.Sharing.Scheme)
	assert.Equal(t, 5, cfg.Sharing.TotalShares)

	out, err = execute(t, "-o", "json", "config", "show")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))
}

func TestConfigShow_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeInput(t, dir, "keysplit.yaml", []byte("sharing:\n  total_shares: 7\n  threshold: 4\n"))
	t.Setenv("KEYSPLIT_SHARING_THRESHOLD", "5")

	out, err := execute(t, "--config", path, "config", "show")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 7, cfg.Sharing.TotalShares)
	assert.Equal(t, 5, cfg.Sharing.Threshold)

	_, err = execute(t, "--config", path, "config", "validate")
	assert.NoError(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "-o", "json", "version")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info["version"])
	assert.NotEmpty(t, info["go_version"])
}

func TestPrinter_Error(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPrinter("json", &buf).PrintError(session.ErrInsufficientShares))

	var body map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, session.KindOf(session.ErrInsufficientShares), body["kind"])

	buf.Reset()
	require.NoError(t, NewPrinter("text", &buf).PrintError(session.ErrBusy))
	assert.True(t, strings.HasPrefix(buf.String(), "Error: "))

	assert.Error(t, NewPrinter("table", &buf).PrintSuccess("x"))
}
