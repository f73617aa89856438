// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package bot

import (
	"context"
	"sync"

	"github.com/orbistech/allianced/internal/logging"
	"github.com/orbistech/allianced/internal/metrics"
)

// sessionService adapts one tenant session to a suture.Service. The
// first Serve monitors the session the supervisor already started;
// when the connection dies Serve returns the fatal error, suture
// re-invokes it, and it builds and starts a replacement session using
// the tenant's current stored configuration.
type sessionService struct {
	tenantID string
	build    func(ctx context.Context) (*Session, error)

	mu      sync.Mutex
	session *Session
	fresh   bool
}

func newSessionService(tenantID string, session *Session, build func(ctx context.Context) (*Session, error)) *sessionService {
	return &sessionService{
		tenantID: tenantID,
		build:    build,
		session:  session,
		fresh:    true,
	}
}

func (w *sessionService) Serve(ctx context.Context) error {
	w.mu.Lock()
	sess := w.session
	fresh := w.fresh
	w.fresh = false
	w.mu.Unlock()

	if !fresh {
		metrics.SessionRestarts.Inc()
		logging.Info().Str("tenant_id", w.tenantID).Msg("restarting bot session")
		replacement, err := w.build(ctx)
		if err != nil {
			// suture retries with backoff
			return err
		}
		w.mu.Lock()
		w.session = replacement
		w.mu.Unlock()
		sess = replacement
	}

	select {
	case <-ctx.Done():
		sess.Stop()
		return ctx.Err()
	case err := <-sess.Fatal():
		sess.Stop()
		return err
	}
}

// stop tears down the current session directly. Used as the fail-open
// path when the supervised removal does not settle in time.
func (w *sessionService) stop() {
	w.mu.Lock()
	sess := w.session
	w.mu.Unlock()
	if sess != nil {
		sess.Stop()
	}
}

func (w *sessionService) String() string {
	return "session-" + w.tenantID
}
