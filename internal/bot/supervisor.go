// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

// Package bot is the multi-tenant orchestration core: a supervisor
// keyed by tenant id that holds at most one live session per tenant,
// the session itself (connection, dispatcher, sync scheduler), and the
// suture tree that restarts sessions after connection loss.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
	"golang.org/x/sync/errgroup"

	"github.com/orbistech/allianced/internal/commands"
	"github.com/orbistech/allianced/internal/gateway"
	"github.com/orbistech/allianced/internal/logging"
	"github.com/orbistech/allianced/internal/metrics"
	"github.com/orbistech/allianced/internal/tenant"
	"github.com/orbistech/allianced/internal/vault"
)

var (
	// ErrAlreadyRunning is returned when a start is attempted for a
	// tenant that already holds the one allowed session slot.
	ErrAlreadyRunning = errors.New("session already running for tenant")

	// ErrNotRunning is returned by Stop when the tenant has no live
	// session.
	ErrNotRunning = errors.New("no running session for tenant")

	// ErrCredential marks start failures caused by missing or
	// undecryptable credentials. No connection was attempted.
	ErrCredential = errors.New("credential error")

	// ErrConnection marks start failures where the gateway login did
	// not reach ready.
	ErrConnection = errors.New("connection error")
)

// defaultStopGrace is how long Stop waits for a session to settle
// before tearing it down directly.
const defaultStopGrace = 10 * time.Second

// SessionState is the lifecycle state of a managed session slot.
type SessionState string

const (
	StateStarting SessionState = "STARTING"
	StateRunning  SessionState = "RUNNING"
	StateStopping SessionState = "STOPPING"
)

// GameClient is the full per-tenant game API surface: the command
// handlers' read view plus the scheduler's alliance fetch.
type GameClient interface {
	commands.GameAPI
	AllianceAPI
}

// APIFactory builds a game API client bound to one tenant's key.
type APIFactory func(apiKey string) GameClient

// TenantSource is the store view the supervisor reads tenant
// configuration from.
type TenantSource interface {
	GetTenant(ctx context.Context, id string) (*tenant.Record, error)
	ListActiveTenants(ctx context.Context) ([]tenant.Record, error)
}

// MemberStore is the store view sessions read and sync ticks write.
type MemberStore interface {
	commands.MemberReader
	MemberWriter
}

type managedSession struct {
	record    *tenant.Record
	svc       *sessionService
	token     suture.ServiceToken
	state     SessionState
	startedAt time.Time
}

// Supervisor owns the registry of live tenant sessions. At most one
// session exists per tenant id; the slot is reserved atomically before
// any credential or connection work so concurrent starts cannot race
// into a double session.
type Supervisor struct {
	tree      *Tree
	vault     *vault.Vault
	tenants   TenantSource
	members   MemberStore
	dial      gateway.Dialer
	newAPI    APIFactory
	stopGrace time.Duration

	mu       sync.Mutex
	sessions map[string]*managedSession
}

// SupervisorConfig tunes the supervisor. Zero values use defaults.
type SupervisorConfig struct {
	// StopGrace is the maximum time Stop waits for a session to settle.
	StopGrace time.Duration
}

// NewSupervisor wires the supervisor over the supervision tree, the
// credential vault, the tenant store, and the per-session factories.
func NewSupervisor(tree *Tree, v *vault.Vault, tenants TenantSource, members MemberStore, dial gateway.Dialer, newAPI APIFactory, cfg SupervisorConfig) *Supervisor {
	if cfg.StopGrace == 0 {
		cfg.StopGrace = defaultStopGrace
	}
	return &Supervisor{
		tree:      tree,
		vault:     v,
		tenants:   tenants,
		members:   members,
		dial:      dial,
		newAPI:    newAPI,
		stopGrace: cfg.StopGrace,
		sessions:  make(map[string]*managedSession),
	}
}

// Start brings up a session for the tenant. The precondition check
// (status ACTIVE, both credentials present) runs before any decryption
// or connection I/O. On any failure after the slot reservation the
// reservation is rolled back, so a failed start leaves no residue.
func (s *Supervisor) Start(ctx context.Context, record *tenant.Record) error {
	if err := record.CanStartSession(); err != nil {
		metrics.SessionStarts.WithLabelValues("credential_error").Inc()
		return fmt.Errorf("%w: %w", ErrCredential, err)
	}

	s.mu.Lock()
	if _, exists := s.sessions[record.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, record.ID)
	}
	s.sessions[record.ID] = &managedSession{
		record:    record,
		state:     StateStarting,
		startedAt: time.Now().UTC(),
	}
	s.mu.Unlock()

	sess, err := s.buildSession(ctx, record)
	if err != nil {
		s.mu.Lock()
		delete(s.sessions, record.ID)
		s.mu.Unlock()
		return err
	}

	svc := newSessionService(record.ID, sess, s.rebuilder(record.ID))
	token := s.tree.AddSession(svc)

	s.mu.Lock()
	entry := s.sessions[record.ID]
	entry.svc = svc
	entry.token = token
	entry.state = StateRunning
	entry.startedAt = time.Now().UTC()
	s.mu.Unlock()

	metrics.SessionStarts.WithLabelValues("success").Inc()
	metrics.SessionsRunning.Inc()
	logging.Info().
		Str("tenant_id", record.ID).
		Int("alliance_id", record.AllianceID).
		Str("alliance_name", record.AllianceName).
		Str("guild_id", record.GuildID).
		Msg("bot session started")
	return nil
}

// buildSession decrypts the tenant's credentials, assembles the
// session collaborators, and starts the session. Errors are classified
// as ErrCredential (before any connection) or ErrConnection.
func (s *Supervisor) buildSession(ctx context.Context, record *tenant.Record) (*Session, error) {
	apiKey, err := s.vault.Decrypt(record.APIKeyEncrypted)
	if err != nil {
		metrics.SessionStarts.WithLabelValues("credential_error").Inc()
		return nil, fmt.Errorf("%w: decrypt api key: %w", ErrCredential, err)
	}
	botToken, err := s.vault.Decrypt(record.BotTokenEncrypted)
	if err != nil {
		metrics.SessionStarts.WithLabelValues("credential_error").Inc()
		return nil, fmt.Errorf("%w: decrypt bot token: %w", ErrCredential, err)
	}

	api := s.newAPI(apiKey)
	dispatcher := commands.NewDispatcher(commands.Deps{Members: s.members, API: api})
	scheduler := NewScheduler(record, api, s.members)
	sess := NewSession(record, s.dial(), dispatcher, scheduler, botToken)

	if err := sess.Start(ctx); err != nil {
		metrics.SessionStarts.WithLabelValues("connection_error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return sess, nil
}

// rebuilder returns the restart path for the session service: reload
// the tenant's current configuration and build a fresh session, so
// credential or guild changes take effect on the supervised restart.
func (s *Supervisor) rebuilder(tenantID string) func(ctx context.Context) (*Session, error) {
	return func(ctx context.Context) (*Session, error) {
		record, err := s.tenants.GetTenant(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("reload tenant: %w", err)
		}
		if err := record.CanStartSession(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCredential, err)
		}
		sess, err := s.buildSession(ctx, record)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if entry, ok := s.sessions[tenantID]; ok {
			entry.record = record
			entry.startedAt = time.Now().UTC()
		}
		s.mu.Unlock()

		metrics.SessionStarts.WithLabelValues("success").Inc()
		return sess, nil
	}
}

// Stop tears down the tenant's session. Fails with ErrNotRunning when
// no live session exists; teardown trouble past that point is logged
// and the registry slot is freed regardless, so a wedged connection
// can never leave a tenant permanently unstartable.
func (s *Supervisor) Stop(tenantID string) error {
	s.mu.Lock()
	entry, ok := s.sessions[tenantID]
	if !ok || entry.state != StateRunning {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRunning, tenantID)
	}
	entry.state = StateStopping
	s.mu.Unlock()

	if err := s.tree.RemoveSessionAndWait(entry.token, s.stopGrace); err != nil {
		logging.Err(err).
			Str("tenant_id", tenantID).
			Dur("grace", s.stopGrace).
			Msg("session did not settle in time, tearing down directly")
		entry.svc.stop()
	}

	s.mu.Lock()
	delete(s.sessions, tenantID)
	s.mu.Unlock()

	metrics.SessionsRunning.Dec()
	logging.Info().Str("tenant_id", tenantID).Msg("bot session stopped")
	return nil
}

// Restart stops any live session for the tenant and starts a new one
// from the tenant's current stored configuration.
func (s *Supervisor) Restart(ctx context.Context, tenantID string) error {
	if err := s.Stop(tenantID); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	record, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("reload tenant: %w", err)
	}
	return s.Start(ctx, record)
}

// StartAll starts sessions for every ACTIVE tenant. Tenants that fail
// the start precondition are skipped with a log line; start failures
// are collected per tenant and do not stop the fleet rollout.
func (s *Supervisor) StartAll(ctx context.Context) error {
	records, err := s.tenants.ListActiveTenants(ctx)
	if err != nil {
		return fmt.Errorf("list active tenants: %w", err)
	}

	var errs []error
	started := 0
	for i := range records {
		record := &records[i]
		if err := record.CanStartSession(); err != nil {
			logging.Warn().
				Str("tenant_id", record.ID).
				Str("alliance_name", record.AllianceName).
				Err(err).
				Msg("skipping tenant at fleet startup")
			continue
		}
		if err := s.Start(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("start %s: %w", record.ID, err))
			continue
		}
		started++
	}

	logging.Info().
		Int("started", started).
		Int("total", len(records)).
		Int("failed", len(errs)).
		Msg("fleet startup complete")
	return errors.Join(errs...)
}

// Shutdown stops every live session concurrently and returns once all
// of them have settled. One tenant's teardown never blocks another's.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id, entry := range s.sessions {
		if entry.state == StateRunning {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := s.Stop(id); err != nil && !errors.Is(err, ErrNotRunning) {
				return fmt.Errorf("stop %s: %w", id, err)
			}
			return nil
		})
	}
	err := g.Wait()
	logging.Info().Int("sessions", len(ids)).Msg("all bot sessions settled")
	return err
}

// GetByGuild returns the tenant whose live session is scoped to the
// given guild.
func (s *Supervisor) GetByGuild(guildID string) (*tenant.Record, bool) {
	if guildID == "" {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.sessions {
		if entry.state == StateRunning && entry.record.GuildID == guildID {
			return entry.record, true
		}
	}
	return nil, false
}

// IsManaged reports whether a live session is scoped to the guild.
func (s *Supervisor) IsManaged(guildID string) bool {
	_, ok := s.GetByGuild(guildID)
	return ok
}

// SessionInfo is one entry of a Stats snapshot.
type SessionInfo struct {
	TenantID     string       `json:"tenant_id"`
	AllianceID   int          `json:"alliance_id"`
	AllianceName string       `json:"alliance_name"`
	GuildID      string       `json:"guild_id,omitempty"`
	State        SessionState `json:"state"`
	StartedAt    time.Time    `json:"started_at"`
	Uptime       string       `json:"uptime"`
}

// Stats is a consistent snapshot of the session registry.
type Stats struct {
	Running  int           `json:"running"`
	Sessions []SessionInfo `json:"sessions"`
}

// Stats returns a snapshot of all managed sessions, ordered by tenant
// id.
func (s *Supervisor) Stats() Stats {
	now := time.Now().UTC()

	s.mu.Lock()
	out := Stats{Sessions: make([]SessionInfo, 0, len(s.sessions))}
	for id, entry := range s.sessions {
		if entry.state == StateRunning {
			out.Running++
		}
		out.Sessions = append(out.Sessions, SessionInfo{
			TenantID:     id,
			AllianceID:   entry.record.AllianceID,
			AllianceName: entry.record.AllianceName,
			GuildID:      entry.record.GuildID,
			State:        entry.state,
			StartedAt:    entry.startedAt,
			Uptime:       now.Sub(entry.startedAt).Round(time.Second).String(),
		})
	}
	s.mu.Unlock()

	sort.Slice(out.Sessions, func(i, j int) bool {
		return out.Sessions[i].TenantID < out.Sessions[j].TenantID
	})
	return out
}
