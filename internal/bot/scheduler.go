// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/orbistech/allianced/internal/logging"
	"github.com/orbistech/allianced/internal/metrics"
	"github.com/orbistech/allianced/internal/pnw"
	"github.com/orbistech/allianced/internal/tenant"
)

// defaultTickTimeout bounds a single sync tick, covering the alliance
// fetch and all store writes.
const defaultTickTimeout = 2 * time.Minute

// AllianceAPI is the game-data view the scheduler reads.
type AllianceAPI interface {
	GetAlliance(ctx context.Context, allianceID int) (*pnw.Alliance, error)
}

// MemberWriter is the store view sync ticks write through.
type MemberWriter interface {
	UpsertMember(ctx context.Context, tenantID string, member tenant.Member) error
	DeleteMembersNotIn(ctx context.Context, tenantID string, nationIDs map[int]struct{}) (int, error)
}

// Scheduler runs the recurring member sync for one tenant session. A
// failed tick is logged and counted but never cancels the schedule;
// ticks for the same tenant never overlap, a tick that would start
// while the previous one is still running is skipped.
type Scheduler struct {
	record      *tenant.Record
	api         AllianceAPI
	members     MemberWriter
	interval    time.Duration
	tickTimeout time.Duration

	// tickMu serializes ticks. TryLock failing means a tick is in
	// flight and the new one is skipped.
	tickMu sync.Mutex

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler for the tenant's configured sync
// interval. It does not start ticking until Start is called.
func NewScheduler(record *tenant.Record, api AllianceAPI, members MemberWriter) *Scheduler {
	return &Scheduler{
		record:      record,
		api:         api,
		members:     members,
		interval:    record.SyncInterval(),
		tickTimeout: defaultTickTimeout,
	}
}

// Start begins the recurring sync, running one tick immediately.
// Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.stopChan)
}

func (s *Scheduler) run(stopChan chan struct{}) {
	defer s.wg.Done()

	_ = s.RunTick(context.Background())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			_ = s.RunTick(context.Background())
		}
	}
}

// Stop halts the schedule and waits for an in-flight tick to finish.
// Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
}

// RunTick performs one member sync now. The error is also logged here,
// the schedule loop deliberately ignores it.
func (s *Scheduler) RunTick(ctx context.Context) error {
	if !s.tickMu.TryLock() {
		metrics.SyncTicks.WithLabelValues("skipped").Inc()
		logging.Debug().
			Str("tenant_id", s.record.ID).
			Msg("sync tick skipped, previous tick still running")
		return nil
	}
	defer s.tickMu.Unlock()

	start := time.Now()
	upserted, removed, err := s.tick(ctx)
	metrics.SyncDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SyncTicks.WithLabelValues("failure").Inc()
		logging.Err(err).
			Str("tenant_id", s.record.ID).
			Int("alliance_id", s.record.AllianceID).
			Msg("member sync tick failed")
		return err
	}

	metrics.SyncTicks.WithLabelValues("success").Inc()
	metrics.SyncMembersUpserted.Add(float64(upserted))
	logging.Debug().
		Str("tenant_id", s.record.ID).
		Int("alliance_id", s.record.AllianceID).
		Int("members_upserted", upserted).
		Int("members_removed", removed).
		Dur("duration", time.Since(start)).
		Msg("member sync tick complete")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) (upserted, removed int, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.tickTimeout)
	defer cancel()

	alliance, err := s.api.GetAlliance(ctx, s.record.AllianceID)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch alliance: %w", err)
	}

	tickTime := time.Now().UTC()
	keep := make(map[int]struct{}, len(alliance.Members))
	for _, m := range alliance.Members {
		nationID := pnw.NationIDInt(m.ID)
		if nationID <= 0 {
			continue
		}
		member := tenant.Member{
			NationID:      nationID,
			NationName:    m.NationName,
			LeaderName:    m.LeaderName,
			DiscordID:     m.DiscordID,
			Position:      m.AlliancePosition,
			PositionID:    m.AlliancePositionID,
			Cities:        m.Cities,
			Score:         m.Score,
			LastActive:    pnw.ParseTime(m.LastActive),
			DataUpdatedAt: tickTime,
		}
		if err := s.members.UpsertMember(ctx, s.record.ID, member); err != nil {
			return upserted, 0, fmt.Errorf("upsert member %d: %w", nationID, err)
		}
		upserted++
		keep[nationID] = struct{}{}
	}

	removed, err = s.members.DeleteMembersNotIn(ctx, s.record.ID, keep)
	if err != nil {
		return upserted, 0, fmt.Errorf("prune departed members: %w", err)
	}
	return upserted, removed, nil
}
