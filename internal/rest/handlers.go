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

package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jeremyhahn/go-keysplit/pkg/audit"
	"github.com/jeremyhahn/go-keysplit/pkg/session"
)

// HandlerContext holds what the API handlers share.
type HandlerContext struct {
	session      *session.Session
	maxBodyBytes int64
}

// NewHandlerContext creates handlers over sess. Request bodies larger than
// maxBodyBytes are rejected with 413.
func NewHandlerContext(sess *session.Session, maxBodyBytes int64) *HandlerContext {
	return &HandlerContext{session: sess, maxBodyBytes: maxBodyBytes}
}

// SealHandler handles POST /api/v1/seal.
func (h *HandlerContext) SealHandler(w http.ResponseWriter, r *http.Request) {
	var req SealRequest
	if err := h.decode(w, r, &req); err != nil {
		handleError(w, err)
		return
	}
	if req.Name == "" {
		handleError(w, fmt.Errorf("%w: name is required", ErrInvalidRequest))
		return
	}

	file := session.File{Name: req.Name, MimeType: req.MimeType, Data: req.Data}
	sealed, err := h.session.SealFile(r.Context(), file)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, SealResponse{Payload: sealed.Payload, Shares: sealed.Shares}, http.StatusCreated)
}

// RecoverHandler handles POST /api/v1/recover.
func (h *HandlerContext) RecoverHandler(w http.ResponseWriter, r *http.Request) {
	var req RecoverRequest
	if err := h.decode(w, r, &req); err != nil {
		handleError(w, err)
		return
	}

	recovered, err := h.session.RecoverPayload(r.Context(), req.Payload, req.Shares)
	if err != nil {
		handleError(w, err)
		return
	}
	writeJSON(w, RecoverResponse{
		Name:       recovered.Payload.Name,
		MimeType:   recovered.Payload.MimeType,
		Size:       int64(len(recovered.Data)),
		Data:       recovered.Data,
		SharesUsed: recovered.SharesUsed,
	}, http.StatusOK)
}

// PayloadHandler handles GET /api/v1/payload.
func (h *HandlerContext) PayloadHandler(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.session.Payload()
	if !ok {
		handleError(w, session.ErrNoPayload)
		return
	}
	writeJSON(w, payload, http.StatusOK)
}

// GetConfigHandler handles GET /api/v1/config.
func (h *HandlerContext) GetConfigHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.session.Config(), http.StatusOK)
}

// UpdateConfigHandler handles PUT /api/v1/config.
func (h *HandlerContext) UpdateConfigHandler(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if err := h.decode(w, r, &req); err != nil {
		handleError(w, err)
		return
	}
	if req.TotalShares == nil && req.Threshold == nil {
		handleError(w, fmt.Errorf("%w: total_shares or threshold is required", ErrInvalidRequest))
		return
	}

	ctx := r.Context()
	cfg := h.session.Config()
	var err error
	if req.TotalShares != nil {
		if cfg, err = h.session.SetTotalShares(ctx, *req.TotalShares); err != nil {
			handleError(w, err)
			return
		}
	}
	if req.Threshold != nil {
		if cfg, err = h.session.SetThreshold(ctx, *req.Threshold); err != nil {
			handleError(w, err)
			return
		}
	}
	writeJSON(w, cfg, http.StatusOK)
}

// AuditHandler handles GET /api/v1/audit.
func (h *HandlerContext) AuditHandler(w http.ResponseWriter, r *http.Request) {
	records := h.session.AuditLog()
	if flow := r.URL.Query().Get("flow"); flow != "" {
		filtered := make([]audit.Record, 0, len(records))
		for _, rec := range records {
			if string(rec.Flow) == flow {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	writeJSON(w, AuditResponse{Records: records}, http.StatusOK)
}

func (h *HandlerContext) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body exceeds %d bytes", session.ErrFileTooLarge, tooLarge.Limit)
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrInvalidRequest)
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
