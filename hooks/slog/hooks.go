// Package sloghook logs querycache events through log/slog.
package sloghook

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/querycache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	RetryEvery    uint64
	JoinEvery     uint64
	SelfHealEvery uint64
	// LogSuccess also logs settled fetches that succeeded.
	LogSuccess bool
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	retryCtr    atomic.Uint64
	joinCtr     atomic.Uint64
	selfHealCtr atomic.Uint64
}

var _ querycache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if k == "" {
		return ""
	}
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FlightJoined(key string) {
	if h.l == nil || !sample(h.opts.JoinEvery, &h.joinCtr) {
		return
	}
	h.l.Debug("querycache.flight_joined", "key", h.redact(key))
}

func (h *Hooks) RetryScheduled(key string, kind querycache.Kind, attempt int, class querycache.Class, delay time.Duration) {
	if h.l == nil || !sample(h.opts.RetryEvery, &h.retryCtr) {
		return
	}
	h.l.Info("querycache.retry_scheduled",
		"key", h.redact(key),
		"kind", kind.String(),
		"attempt", attempt,
		"class", class.String(),
		"delay", delay)
}

func (h *Hooks) FetchSettled(key string, kind querycache.Kind, attempts int, err error) {
	if h.l == nil {
		return
	}
	if err == nil {
		if h.opts.LogSuccess {
			h.l.Debug("querycache.fetch_ok",
				"key", h.redact(key),
				"kind", kind.String(),
				"attempts", attempts)
		}
		return
	}
	class, _ := querycache.ClassOf(err)
	h.l.Warn("querycache.fetch_failed",
		"key", h.redact(key),
		"kind", kind.String(),
		"attempts", attempts,
		"class", class.String(),
		"err", err)
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("querycache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.provider_set_rejected", "key", h.redact(storageKey))
}

func (h *Hooks) GenSnapshotError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.gen_snapshot_error",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) GenBumpError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("querycache.gen_bump_error",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) SessionExpired(episode string) {
	if h.l == nil {
		return
	}
	h.l.Error("querycache.session_expired", "episode", episode)
}
