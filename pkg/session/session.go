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

// Package session orchestrates the two keysplit flows over one encrypted
// payload.
//
// The owner flow encrypts a file under a fresh key and splits the key:
//
//	Idle -> FileSelected -> Encrypting -> SharesReady | Failed
//
// The recovery flow rebuilds the key from shares and decrypts:
//
//	AwaitingShares -> Reconstructing -> Decrypted | Failed -> AwaitingShares
//
// Only one seal or recovery runs at a time; a second call while one is in
// flight fails with ErrBusy. Preconditions are enforced before any
// cryptography runs, failures are translated into the error taxonomy in
// errors.go, and every attempted transition appends one audit record.
package session

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/jeremyhahn/go-keysplit/pkg/audit"
	"github.com/jeremyhahn/go-keysplit/pkg/correlation"
	"github.com/jeremyhahn/go-keysplit/pkg/crypto/rand"
	"github.com/jeremyhahn/go-keysplit/pkg/crypto/symmetric"
	"github.com/jeremyhahn/go-keysplit/pkg/encoding"
	"github.com/jeremyhahn/go-keysplit/pkg/logging"
	"github.com/jeremyhahn/go-keysplit/pkg/metrics"
	"github.com/jeremyhahn/go-keysplit/pkg/storage"
	"github.com/jeremyhahn/go-keysplit/pkg/storage/memory"
	"github.com/jeremyhahn/go-keysplit/pkg/threshold"
	"github.com/jeremyhahn/go-keysplit/pkg/threshold/shamir"
	"github.com/jeremyhahn/go-keysplit/pkg/validation"

	// Registered so payloads sealed under any scheme can be recovered.
	_ "github.com/jeremyhahn/go-keysplit/pkg/threshold/gf256"
	_ "github.com/jeremyhahn/go-keysplit/pkg/threshold/sssa"
)

// DefaultMaxFileSize bounds the plaintext accepted by SelectFile.
const DefaultMaxFileSize int64 = 64 << 20

// OwnerState is the state of the owner flow.
type OwnerState string

const (
	OwnerIdle         OwnerState = "idle"
	OwnerFileSelected OwnerState = "file_selected"
	OwnerEncrypting   OwnerState = "encrypting"
	OwnerSharesReady  OwnerState = "shares_ready"
	OwnerFailed       OwnerState = "failed"
)

// RecoveryState is the state of the recovery flow.
type RecoveryState string

const (
	RecoveryAwaitingShares RecoveryState = "awaiting_shares"
	RecoveryReconstructing RecoveryState = "reconstructing"
	RecoveryDecrypted      RecoveryState = "decrypted"
	RecoveryFailed         RecoveryState = "failed"
)

// Config wires a Session to its collaborators. Zero fields get defaults.
type Config struct {
	// Cipher seals new payloads. Defaults to symmetric.New with Random.
	Cipher symmetric.Cipher

	// Scheme splits new keys. Defaults to the prime521 scheme.
	Scheme threshold.Scheme

	// Random feeds default ciphers and schemes. Defaults to software.
	Random rand.Resolver

	// Store holds the payload and configuration. Defaults to memory.
	Store storage.Backend

	// Audit receives one record per attempted transition.
	Audit *audit.Log

	Logger *logging.Logger

	// AppConfig is used when Store holds no configuration yet. The zero
	// value selects DefaultAppConfig.
	AppConfig AppConfig

	// Compress snappy-compresses plaintext before encryption.
	Compress bool

	// MaxFileSize bounds SelectFile. Zero selects DefaultMaxFileSize.
	MaxFileSize int64

	// Clock stamps payloads. Defaults to time.Now.
	Clock func() time.Time
}

// Session owns the current file, payload and sharing configuration.
// It is safe for concurrent use.
type Session struct {
	cipher   symmetric.Cipher
	scheme   threshold.Scheme
	rng      rand.Resolver
	store    storage.Backend
	audit    *audit.Log
	logger   *logging.Logger
	compress bool
	maxSize  int64
	clock    func() time.Time

	busy atomic.Bool

	mu       sync.RWMutex
	app      AppConfig
	file     *File
	owner    OwnerState
	recovery RecoveryState
}

// New creates a session. A configuration already in the store takes
// precedence over cfg.AppConfig.
func New(cfg *Config) (*Session, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	s := &Session{
		cipher:   cfg.Cipher,
		scheme:   cfg.Scheme,
		rng:      cfg.Random,
		store:    cfg.Store,
		audit:    cfg.Audit,
		logger:   cfg.Logger,
		compress: cfg.Compress,
		maxSize:  cfg.MaxFileSize,
		clock:    cfg.Clock,
		owner:    OwnerIdle,
		recovery: RecoveryAwaitingShares,
	}

	var err error
	if s.rng == nil {
		if s.rng, err = rand.NewResolver(rand.ModeSoftware); err != nil {
			return nil, err
		}
	}
	if s.cipher == nil {
		if s.cipher, err = symmetric.New(&symmetric.Config{Random: s.rng}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}
	if s.scheme == nil {
		s.scheme = shamir.New(s.rng)
	}
	if s.store == nil {
		s.store = memory.New()
	}
	if s.audit == nil {
		s.audit = audit.NewLog(0)
	}
	if s.logger == nil {
		s.logger = logging.DefaultLogger()
	}
	if s.maxSize <= 0 {
		s.maxSize = DefaultMaxFileSize
	}
	if s.clock == nil {
		s.clock = time.Now
	}

	app := cfg.AppConfig
	if app == (AppConfig{}) {
		app = DefaultAppConfig()
	}
	var stored AppConfig
	switch err := storage.GetJSON(s.store, storage.ConfigKey, &stored); {
	case err == nil:
		app = stored
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := app.Validate(); err != nil {
		return nil, err
	}
	if err := storage.PutJSON(s.store, storage.ConfigKey, app); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	s.app = app
	return s, nil
}

// Config returns the current sharing configuration.
func (s *Session) Config() AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.app
}

// SetTotalShares sets N, clamping K down when needed, and stores the
// result.
func (s *Session) SetTotalShares(ctx context.Context, n int) (AppConfig, error) {
	return s.updateConfig(ctx, fmt.Sprintf("total_shares=%d", n), func(c AppConfig) (AppConfig, error) {
		return c.WithTotalShares(n)
	})
}

// SetThreshold sets K clamped into [2, N] and stores the result.
func (s *Session) SetThreshold(ctx context.Context, k int) (AppConfig, error) {
	return s.updateConfig(ctx, fmt.Sprintf("threshold=%d", k), func(c AppConfig) (AppConfig, error) {
		return c.WithThreshold(k), nil
	})
}

func (s *Session) updateConfig(ctx context.Context, detail string, apply func(AppConfig) (AppConfig, error)) (AppConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := audit.Record{Flow: audit.FlowConfig, Event: audit.EventConfigChange, From: configLabel(s.app)}
	next, err := apply(s.app)
	if err == nil {
		err = next.Validate()
	}
	if err == nil {
		if perr := storage.PutJSON(s.store, storage.ConfigKey, next); perr != nil {
			err = fmt.Errorf("%w: %v", ErrStorage, perr)
		}
	}

	if err != nil {
		rec.To = rec.From
		s.record(ctx, rec, fmt.Errorf("%s: %w", detail, err))
		metrics.RecordError(metrics.OpConfigChange, KindOf(err))
		return s.app, err
	}

	s.app = next
	rec.To = configLabel(next)
	rec.Detail = detail
	s.record(ctx, rec, nil)
	return next, nil
}

// OwnerState returns the current owner flow state.
func (s *Session) OwnerState() OwnerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// RecoveryState returns the current recovery flow state.
func (s *Session) RecoveryState() RecoveryState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recovery
}

// AuditLog returns a snapshot of the audit records.
func (s *Session) AuditLog() []audit.Record {
	return s.audit.Records()
}

// Payload returns the stored payload, if any.
func (s *Session) Payload() (Payload, bool) {
	p, err := s.loadPayload()
	return p, err == nil
}

// SelectFile makes f the file the next Seal encrypts. The data is copied.
func (s *Session) SelectFile(ctx context.Context, f File) error {
	if err := s.acquire(); err != nil {
		s.recordBusy(ctx, audit.FlowOwner, audit.EventSelectFile, f.Name, err)
		return err
	}
	defer s.release()
	return s.selectFile(ctx, f)
}

// SealFile selects f and seals it under one hold of the operation guard,
// so no other request can swap the file in between. The returned payload
// always describes f.
func (s *Session) SealFile(ctx context.Context, f File) (*Sealed, error) {
	if err := s.acquire(); err != nil {
		s.recordBusy(ctx, audit.FlowOwner, audit.EventSelectFile, f.Name, err)
		return nil, err
	}
	defer s.release()

	if err := s.selectFile(ctx, f); err != nil {
		return nil, err
	}
	return s.measureSeal(func() (*Sealed, error) {
		return s.sealHeld(ctx)
	})
}

// recordBusy audits an operation refused by the guard.
func (s *Session) recordBusy(ctx context.Context, flow audit.Flow, event audit.EventType, name string, err error) {
	state := string(s.OwnerState())
	if flow == audit.FlowRecovery {
		state = string(s.RecoveryState())
	}
	s.record(ctx, audit.Record{Flow: flow, Event: event, From: state, To: state,
		FileName: validation.SanitizeForLog(name)}, err)
}

// selectFile runs with the operation guard held.
func (s *Session) selectFile(ctx context.Context, f File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := audit.Record{Flow: audit.FlowOwner, Event: audit.EventSelectFile,
		From: string(s.owner), FileName: validation.SanitizeForLog(f.Name)}

	if err := validateFile(f); err != nil {
		rec.To = string(s.owner)
		s.record(ctx, rec, err)
		metrics.RecordError(metrics.OpSelectFile, KindOf(err))
		return err
	}

	if int64(len(f.Data)) > s.maxSize {
		err := fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, len(f.Data), s.maxSize)
		rec.To = string(s.owner)
		s.record(ctx, rec, err)
		metrics.RecordError(metrics.OpSelectFile, KindOf(err))
		return err
	}

	if f.MimeType == "" {
		f.MimeType = DefaultMimeType
	}
	f.Data = bytes.Clone(f.Data)
	if f.Data == nil {
		f.Data = []byte{}
	}
	s.file = &f
	s.owner = OwnerFileSelected

	rec.To = string(s.owner)
	rec.Detail = fmt.Sprintf("%d bytes, %s", len(f.Data), f.MimeType)
	s.record(ctx, rec, nil)
	return nil
}

func validateFile(f File) error {
	if err := validation.ValidateFileName(f.Name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if err := validation.ValidateMimeType(f.MimeType); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return nil
}

// Seal encrypts the selected file under a fresh key, splits the key into
// N shares and stores the new payload. Nothing is stored unless every step
// succeeds; the previous payload survives a failure.
func (s *Session) Seal(ctx context.Context) (*Sealed, error) {
	return s.measureSeal(func() (*Sealed, error) {
		if err := s.acquire(); err != nil {
			s.recordBusy(ctx, audit.FlowOwner, audit.EventSeal, "", err)
			return nil, err
		}
		defer s.release()
		return s.sealHeld(ctx)
	})
}

func (s *Session) measureSeal(seal func() (*Sealed, error)) (*Sealed, error) {
	start := time.Now()
	sealed, err := seal()

	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		metrics.RecordError(metrics.OpSeal, KindOf(err))
	}
	metrics.RecordOperation(metrics.OpSeal, s.scheme.Name(), status, time.Since(start).Seconds())
	return sealed, err
}

// sealHeld runs with the operation guard held.
func (s *Session) sealHeld(ctx context.Context) (*Sealed, error) {
	defer metrics.OperationStarted()()

	s.mu.Lock()
	rec := audit.Record{Flow: audit.FlowOwner, Event: audit.EventSeal, From: string(s.owner)}
	if err := ctx.Err(); err != nil {
		rec.To = rec.From
		s.mu.Unlock()
		s.record(ctx, rec, err)
		return nil, err
	}
	if s.file == nil {
		rec.To = rec.From
		s.mu.Unlock()
		err := fmt.Errorf("%w: no file selected", ErrInvalidState)
		s.record(ctx, rec, err)
		return nil, err
	}
	app := s.app
	file := *s.file
	rec.FileName = file.Name
	if err := app.Validate(); err != nil {
		rec.To = rec.From
		s.mu.Unlock()
		s.record(ctx, rec, err)
		return nil, err
	}
	s.owner = OwnerEncrypting
	rec.To = string(s.owner)
	rec.ShareCount = app.TotalShares
	s.mu.Unlock()
	s.record(ctx, rec, nil)

	sealed, err := s.encryptAndSplit(file, app)
	if err == nil {
		if perr := storage.PutJSON(s.store, storage.PayloadKey, sealed.Payload); perr != nil {
			sealed, err = nil, fmt.Errorf("%w: %v", ErrStorage, perr)
		}
	}

	s.mu.Lock()
	done := audit.Record{Flow: audit.FlowOwner, Event: audit.EventSeal, From: string(s.owner),
		FileName: file.Name, ShareCount: app.TotalShares}
	if err != nil {
		s.owner = OwnerFailed
		done.To = string(s.owner)
		s.mu.Unlock()
		s.record(ctx, done, err)
		return nil, err
	}
	s.owner = OwnerSharesReady
	s.recovery = RecoveryAwaitingShares
	done.To = string(s.owner)
	done.PayloadID = sealed.Payload.ID
	done.Detail = fmt.Sprintf("%d of %d, %s, %s", app.Threshold, app.TotalShares,
		sealed.Payload.Scheme, sealed.Payload.Algorithm)
	s.mu.Unlock()
	s.record(ctx, done, nil)

	metrics.RecordSeal(sealed.Payload.Scheme, len(sealed.Shares), sealed.Payload.Size)
	return sealed, nil
}

// encryptAndSplit runs key generation, encryption, hashing, export and
// splitting as one step. The raw key is wiped before returning.
func (s *Session) encryptAndSplit(file File, app AppConfig) (*Sealed, error) {
	key, err := s.cipher.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailure, err)
	}
	defer key.Destroy()

	plaintext := file.Data
	if s.compress {
		plaintext = snappy.Encode(nil, file.Data)
	}

	ct, err := s.cipher.Encrypt(plaintext, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailure, err)
	}
	hash := ct.ContentHash
	if s.compress {
		hash = s.cipher.Digest(file.Data)
	}

	raw, err := s.cipher.ExportKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailure, err)
	}
	defer clear(raw)

	shares, err := s.scheme.Split(raw, app.TotalShares, app.Threshold)
	if err != nil {
		if errors.Is(err, threshold.ErrInvalidParameters) {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailure, err)
	}

	return &Sealed{
		Payload: Payload{
			ID:          uuid.NewString(),
			Name:        file.Name,
			MimeType:    file.MimeType,
			Size:        int64(len(file.Data)),
			Ciphertext:  encoding.EncodeBase64(ct.Ciphertext),
			IV:          encoding.EncodeHex(ct.IV),
			ContentHash: encoding.EncodeHex(hash),
			Algorithm:   s.cipher.Algorithm(),
			Scheme:      s.scheme.Name(),
			Threshold:   app.Threshold,
			TotalShares: app.TotalShares,
			KeySize:     len(raw),
			Compressed:  s.compress,
			CreatedAt:   s.clock().UTC(),
		},
		Shares: shares,
	}, nil
}

// LoadPayload replaces the stored payload with p, for example one read back
// from a sealed record file. The recovery flow restarts.
func (s *Session) LoadPayload(ctx context.Context, p Payload) error {
	if err := s.acquire(); err != nil {
		s.recordBusy(ctx, audit.FlowRecovery, audit.EventLoadPayload, p.Name, err)
		return err
	}
	defer s.release()
	return s.loadPayloadHeld(ctx, p)
}

// loadPayloadHeld runs with the operation guard held.
func (s *Session) loadPayloadHeld(ctx context.Context, p Payload) error {
	rec := audit.Record{Flow: audit.FlowRecovery, Event: audit.EventLoadPayload, PayloadID: p.ID,
		FileName: validation.SanitizeForLog(p.Name)}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec.From = string(s.recovery)

	err := p.Validate()
	if err == nil {
		if perr := storage.PutJSON(s.store, storage.PayloadKey, p); perr != nil {
			err = fmt.Errorf("%w: %v", ErrStorage, perr)
		}
	}
	if err != nil {
		rec.To = rec.From
		s.record(ctx, rec, err)
		metrics.RecordError(metrics.OpLoadPayload, KindOf(err))
		return err
	}

	s.recovery = RecoveryAwaitingShares
	rec.To = string(s.recovery)
	s.record(ctx, rec, nil)
	metrics.RecordOperation(metrics.OpLoadPayload, p.Scheme, metrics.StatusSuccess, 0)
	return nil
}

// Recover rebuilds the payload key from shareTexts and decrypts the stored
// payload. Blank entries are ignored. The share count is checked against
// the threshold recorded in the payload before any cryptography runs. On
// failure the flow returns to AwaitingShares.
func (s *Session) Recover(ctx context.Context, shareTexts []string) (*Recovered, error) {
	texts := nonBlank(shareTexts)
	return s.measureRecover(func() (*Recovered, string, error) {
		if err := s.acquire(); err != nil {
			s.recordBusyRecover(ctx, len(texts), err)
			return nil, "", err
		}
		defer s.release()
		return s.recoverHeld(ctx, texts)
	})
}

// RecoverPayload installs p, when non-nil, and recovers it from shareTexts
// under one hold of the operation guard, so the shares are always applied
// to p and not to a payload another request loaded in between.
func (s *Session) RecoverPayload(ctx context.Context, p *Payload, shareTexts []string) (*Recovered, error) {
	texts := nonBlank(shareTexts)
	if err := s.acquire(); err != nil {
		s.recordBusyRecover(ctx, len(texts), err)
		metrics.RecordError(metrics.OpRecover, KindOf(err))
		return nil, err
	}
	defer s.release()

	if p != nil {
		if err := s.loadPayloadHeld(ctx, *p); err != nil {
			return nil, err
		}
	}
	return s.measureRecover(func() (*Recovered, string, error) {
		return s.recoverHeld(ctx, texts)
	})
}

func (s *Session) recordBusyRecover(ctx context.Context, shares int, err error) {
	state := string(s.RecoveryState())
	s.record(ctx, audit.Record{Flow: audit.FlowRecovery, Event: audit.EventRecover,
		From: state, To: state, ShareCount: shares}, err)
}

func (s *Session) measureRecover(run func() (*Recovered, string, error)) (*Recovered, error) {
	start := time.Now()
	recovered, scheme, err := run()

	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		metrics.RecordError(metrics.OpRecover, KindOf(err))
	}
	metrics.RecordOperation(metrics.OpRecover, scheme, status, time.Since(start).Seconds())
	return recovered, err
}

// nonBlank trims every share text and drops the empty ones.
func nonBlank(shareTexts []string) []string {
	texts := make([]string, 0, len(shareTexts))
	for _, t := range shareTexts {
		if t = strings.TrimSpace(t); t != "" {
			texts = append(texts, t)
		}
	}
	return texts
}

// recoverHeld runs with the operation guard held.
func (s *Session) recoverHeld(ctx context.Context, texts []string) (*Recovered, string, error) {
	rec := audit.Record{Flow: audit.FlowRecovery, Event: audit.EventRecover, ShareCount: len(texts)}
	defer metrics.OperationStarted()()
	metrics.RecordSharesSubmitted(len(texts))

	s.mu.Lock()
	rec.From = string(s.recovery)
	rec.To = rec.From
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		s.record(ctx, rec, err)
		return nil, "", err
	}

	payload, err := s.loadPayload()
	if err != nil {
		s.record(ctx, rec, err)
		return nil, "", err
	}
	rec.PayloadID = payload.ID
	rec.FileName = payload.Name

	if len(texts) < payload.Threshold {
		err := fmt.Errorf("%w: need %d, got %d", ErrInsufficientShares, payload.Threshold, len(texts))
		s.record(ctx, rec, err)
		return nil, payload.Scheme, err
	}

	s.mu.Lock()
	s.recovery = RecoveryReconstructing
	rec.To = string(s.recovery)
	s.mu.Unlock()
	s.record(ctx, rec, nil)

	data, err := s.reconstruct(payload, texts)

	s.mu.Lock()
	done := audit.Record{Flow: audit.FlowRecovery, Event: audit.EventRecover, From: string(s.recovery),
		ShareCount: len(texts), PayloadID: payload.ID, FileName: payload.Name}
	if err != nil {
		s.recovery = RecoveryFailed
		done.To = string(s.recovery)
		s.mu.Unlock()
		s.record(ctx, done, err)

		s.mu.Lock()
		s.recovery = RecoveryAwaitingShares
		s.mu.Unlock()
		s.record(ctx, audit.Record{Flow: audit.FlowRecovery, Event: audit.EventRecover,
			From: string(RecoveryFailed), To: string(RecoveryAwaitingShares),
			ShareCount: len(texts), PayloadID: payload.ID, FileName: payload.Name}, nil)
		return nil, payload.Scheme, err
	}
	s.recovery = RecoveryDecrypted
	done.To = string(s.recovery)
	s.mu.Unlock()
	s.record(ctx, done, nil)

	return &Recovered{Payload: payload, Data: data, SharesUsed: len(texts)}, payload.Scheme, nil
}

// reconstruct parses the shares, combines the key, decrypts and verifies
// the content hash. Every failure is mapped into the taxonomy.
func (s *Session) reconstruct(payload Payload, texts []string) ([]byte, error) {
	scheme, err := s.schemeFor(payload.Scheme)
	if err != nil {
		return nil, err
	}
	cipher, err := s.cipherFor(payload.Algorithm)
	if err != nil {
		return nil, err
	}

	shares, err := threshold.ParseAll(scheme, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedShare, err)
	}

	raw, err := scheme.Combine(shares, payload.KeySize)
	if err != nil {
		if errors.Is(err, threshold.ErrMalformedShare) || errors.Is(err, threshold.ErrDuplicateShare) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedShare, err)
		}
		s.logger.Debugf("combine failed: %v", err)
		return nil, ErrAuthenticationFailure
	}
	defer clear(raw)

	key, err := cipher.ImportKey(raw)
	if err != nil {
		s.logger.Debugf("key import failed: %v", err)
		return nil, ErrAuthenticationFailure
	}
	defer key.Destroy()

	ciphertext, iv, want, err := payload.decode()
	if err != nil {
		return nil, err
	}

	plaintext, err := cipher.Decrypt(ciphertext, iv, key)
	if err != nil {
		s.logger.Debugf("decrypt failed: %v", err)
		return nil, ErrAuthenticationFailure
	}

	if payload.Compressed {
		if plaintext, err = snappy.Decode(nil, plaintext); err != nil {
			s.logger.Debugf("decompress failed: %v", err)
			return nil, ErrAuthenticationFailure
		}
	}
	if plaintext == nil {
		plaintext = []byte{}
	}

	if subtle.ConstantTimeCompare(cipher.Digest(plaintext), want) != 1 {
		s.logger.Debugf("content hash mismatch for payload %s", payload.ID)
		return nil, ErrAuthenticationFailure
	}
	return plaintext, nil
}

// Reset forgets the selected file and the stored payload and returns both
// flows to their initial states. The configuration is kept.
func (s *Session) Reset(ctx context.Context) error {
	rec := audit.Record{Flow: audit.FlowOwner, Event: audit.EventReset, To: string(OwnerIdle)}
	if err := s.acquire(); err != nil {
		rec.From = string(s.OwnerState())
		rec.To = rec.From
		s.record(ctx, rec, err)
		return err
	}
	defer s.release()

	s.mu.Lock()
	defer s.mu.Unlock()
	rec.From = string(s.owner)

	if err := s.store.Delete(storage.PayloadKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		err = fmt.Errorf("%w: %v", ErrStorage, err)
		rec.To = rec.From
		s.record(ctx, rec, err)
		return err
	}
	if s.file != nil {
		clear(s.file.Data)
	}
	s.file = nil
	s.owner = OwnerIdle
	s.recovery = RecoveryAwaitingShares
	s.record(ctx, rec, nil)
	return nil
}

func (s *Session) acquire() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (s *Session) release() {
	s.busy.Store(false)
}

func (s *Session) loadPayload() (Payload, error) {
	var p Payload
	if err := storage.GetJSON(s.store, storage.PayloadKey, &p); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Payload{}, ErrNoPayload
		}
		return Payload{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return p, nil
}

func (s *Session) schemeFor(name string) (threshold.Scheme, error) {
	if name == s.scheme.Name() {
		return s.scheme, nil
	}
	scheme, err := threshold.New(name, s.rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return scheme, nil
}

func (s *Session) cipherFor(algorithm string) (symmetric.Cipher, error) {
	if algorithm == s.cipher.Algorithm() {
		return s.cipher, nil
	}
	c, err := symmetric.New(&symmetric.Config{Algorithm: algorithm, Random: s.rng})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return c, nil
}

// record appends r to the audit log and logs it. It never fails.
func (s *Session) record(ctx context.Context, r audit.Record, err error) {
	r.RequestID = correlation.ID(ctx)
	r.Outcome = audit.OutcomeSuccess
	if err != nil {
		r.Outcome = audit.OutcomeFailure
		r.Kind = KindOf(err)
		r.Detail = err.Error()
	}
	r = s.audit.Append(r)

	args := []any{
		"flow", r.Flow, "event", r.Event, "from", r.From, "to", r.To,
		"shares", r.ShareCount, "audit_id", r.ID,
	}
	if r.RequestID != "" {
		args = append(args, "request_id", r.RequestID)
	}
	if err != nil {
		s.logger.Warn("session transition failed", append(args, "kind", r.Kind, "error", r.Detail)...)
		return
	}
	s.logger.Info("session transition", args...)
}

func configLabel(c AppConfig) string {
	return fmt.Sprintf("%d-of-%d", c.Threshold, c.TotalShares)
}
