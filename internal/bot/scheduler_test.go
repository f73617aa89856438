// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/orbistech/allianced/internal/pnw"
)

func TestSchedulerTickSyncsMembers(t *testing.T) {
	api := &stubAPI{alliance: &pnw.Alliance{
		ID:   "4242",
		Name: "Test Alliance",
		Members: []pnw.AllianceMember{
			{ID: "11", NationName: "Alpha", LeaderName: "Ann", Cities: 12, Score: 3400.5, LastActive: "2026-08-20 10:00:00", AlliancePosition: "OFFICER", AlliancePositionID: 3, DiscordID: "100200300"},
			{ID: "not-a-number", NationName: "Broken"},
			{ID: "22", NationName: "Bravo", LeaderName: "Bob", Cities: 8, Score: 1200.0},
		},
	}}
	members := &recordingMembers{}
	s := NewScheduler(testTenantRecord(), api, members)

	if err := s.RunTick(context.Background()); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	ids := members.upsertedIDs()
	if len(ids) != 2 || ids[0] != 11 || ids[1] != 22 {
		t.Fatalf("upserted ids = %v, want [11 22]", ids)
	}
	first := members.upserts[0]
	if first.DataUpdatedAt.IsZero() {
		t.Error("DataUpdatedAt not stamped")
	}
	if first.LastActive == nil {
		t.Error("LastActive not parsed")
	}
	if first.Position != "OFFICER" || first.DiscordID != "100200300" {
		t.Errorf("member fields not carried over: %+v", first)
	}
	if members.lastKeep == nil {
		t.Fatal("DeleteMembersNotIn not called")
	}
	if _, ok := members.lastKeep[11]; !ok {
		t.Error("keep set missing nation 11")
	}
	if _, ok := members.lastKeep[22]; !ok {
		t.Error("keep set missing nation 22")
	}
}

func TestSchedulerFailedTickKeepsTicking(t *testing.T) {
	api := &stubAPI{err: errors.New("api down")}
	s := NewScheduler(testTenantRecord(), api, &recordingMembers{})
	s.interval = 10 * time.Millisecond

	s.Start()
	time.Sleep(150 * time.Millisecond)
	s.Stop()

	if calls := api.callCount(); calls < 3 {
		t.Fatalf("got %d tick attempts after failures, want at least 3", calls)
	}
}

func TestSchedulerFailedTickReturnsError(t *testing.T) {
	api := &stubAPI{err: errors.New("api down")}
	s := NewScheduler(testTenantRecord(), api, &recordingMembers{})

	if err := s.RunTick(context.Background()); err == nil {
		t.Fatal("expected tick error")
	}
}

func TestSchedulerSkipsOverlappingTick(t *testing.T) {
	api := &stubAPI{
		entered: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	s := NewScheduler(testTenantRecord(), api, &recordingMembers{})

	done := make(chan error, 1)
	go func() { done <- s.RunTick(context.Background()) }()

	select {
	case <-api.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first tick never reached the API")
	}

	// Second tick while the first is in flight must be skipped.
	if err := s.RunTick(context.Background()); err != nil {
		t.Fatalf("overlapping tick: %v", err)
	}
	if calls := api.callCount(); calls != 1 {
		t.Fatalf("got %d API calls, want 1", calls)
	}

	close(api.block)
	if err := <-done; err != nil {
		t.Fatalf("first tick: %v", err)
	}
}

func TestSchedulerStopIdempotent(t *testing.T) {
	s := NewScheduler(testTenantRecord(), &stubAPI{}, &recordingMembers{})
	s.interval = time.Hour

	s.Start()
	s.Stop()
	s.Stop()

	// Restartable after a stop.
	s.Start()
	s.Stop()
}
