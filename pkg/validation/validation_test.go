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

package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		wantErr  bool
	}{
		// Valid names
		{"simple", "notes.txt", false},
		{"no extension", "README", false},
		{"spaces", "tax return 2025.pdf", false},
		{"unicode", "résumé.docx", false},
		{"leading dot", ".env", false},
		{"double dot inside", "archive..tar", false},
		{"max length", strings.Repeat("a", MaxFileNameLength), false},

		// Invalid names
		{"empty string", "", true},
		{"null byte", "file\x00.txt", true},
		{"dot", ".", true},
		{"dot dot", "..", true},
		{"path traversal", "../etc/passwd", true},
		{"absolute path unix", "/etc/passwd", true},
		{"nested path", "dir/file.txt", true},
		{"windows path", "C:\\Windows\\win.ini", true},
		{"newline", "file\nname", true},
		{"tab", "file\tname", true},
		{"del character", "file\x7fname", true},
		{"too long", strings.Repeat("a", MaxFileNameLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFileName(tt.fileName)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFileName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMimeType(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		wantErr  bool
	}{
		{"empty", "", false},
		{"plain", "text/plain", false},
		{"with charset", "text/plain; charset=utf-8", false},
		{"vendor", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", false},
		{"octet stream", "application/octet-stream", false},

		{"no subtype", "text", true},
		{"garbage", "///", true},
		{"control character", "text/plain\r\nX-Injected: 1", true},
		{"too long", "text/" + strings.Repeat("a", MaxMimeTypeLength), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMimeType(tt.mimeType)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMimeType)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"normal string", "hello world", "hello world"},
		{"newline injection", "file\nINFO forged entry", "fileINFO forged entry"},
		{"null byte", "file\x00name", "filename"},
		{"carriage return", "file\rname", "filename"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeForLog(tt.input))
		})
	}

	long := SanitizeForLog(strings.Repeat("x", 2000))
	assert.True(t, strings.HasSuffix(long, "...[truncated]"))
	assert.Len(t, long, 1000+len("...[truncated]"))
}
