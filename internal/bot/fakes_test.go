// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package bot

import (
	"context"
	"sync"
	"time"

	"github.com/orbistech/allianced/internal/gateway"
	"github.com/orbistech/allianced/internal/pnw"
	"github.com/orbistech/allianced/internal/tenant"
)

// stubAPI is a canned GameClient. GetAlliance can be made to fail, or
// to block until released, for schedule and overlap tests.
type stubAPI struct {
	mu       sync.Mutex
	calls    int
	err      error
	alliance *pnw.Alliance

	entered chan struct{}
	block   chan struct{}
}

func (a *stubAPI) GetAlliance(ctx context.Context, allianceID int) (*pnw.Alliance, error) {
	a.mu.Lock()
	a.calls++
	err := a.err
	alliance := a.alliance
	entered := a.entered
	block := a.block
	a.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	if alliance == nil {
		alliance = &pnw.Alliance{ID: "4242", Name: "Test Alliance"}
	}
	return alliance, nil
}

func (a *stubAPI) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *stubAPI) GetNation(ctx context.Context, nationID int) (*pnw.Nation, error) {
	return nil, pnw.ErrNationNotFound
}

func (a *stubAPI) SearchNations(ctx context.Context, term string) ([]pnw.NationSummary, error) {
	return nil, nil
}

func (a *stubAPI) GetWars(ctx context.Context, filter pnw.WarFilter) ([]pnw.War, error) {
	return nil, nil
}

// recordingMembers implements MemberStore in memory, recording the
// writes sync ticks make.
type recordingMembers struct {
	mu       sync.Mutex
	members  []tenant.Member
	upserts  []tenant.Member
	lastKeep map[int]struct{}
	listErr  error
}

func (m *recordingMembers) ListMembers(ctx context.Context, tenantID string) ([]tenant.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]tenant.Member, len(m.members))
	copy(out, m.members)
	tenant.SortByScore(out)
	return out, nil
}

func (m *recordingMembers) GetMember(ctx context.Context, tenantID string, nationID int) (*tenant.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.members {
		if m.members[i].NationID == nationID {
			member := m.members[i]
			return &member, nil
		}
	}
	return nil, nil
}

func (m *recordingMembers) ListInactiveMembers(ctx context.Context, tenantID string, threshold time.Time) ([]tenant.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tenant.Member
	for _, member := range m.members {
		if member.LastActive != nil && member.LastActive.Before(threshold) {
			out = append(out, member)
		}
	}
	return out, nil
}

func (m *recordingMembers) UpsertMember(ctx context.Context, tenantID string, member tenant.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, member)
	return nil
}

func (m *recordingMembers) DeleteMembersNotIn(ctx context.Context, tenantID string, nationIDs map[int]struct{}) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastKeep = nationIDs
	return 0, nil
}

func (m *recordingMembers) upsertedIDs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, 0, len(m.upserts))
	for _, u := range m.upserts {
		ids = append(ids, u.NationID)
	}
	return ids
}

// fakeConn is an in-memory gateway.Conn. Events are injected through
// the bound handlers.
type fakeConn struct {
	mu              sync.Mutex
	handlers        gateway.Handlers
	loginErr        error
	logins          int
	lastToken       string
	registeredGuild string
	registered      []gateway.CommandDescriptor
	destroys        int
}

func (c *fakeConn) Bind(h gateway.Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
}

func (c *fakeConn) Login(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logins++
	c.lastToken = token
	return c.loginErr
}

func (c *fakeConn) RegisterCommands(ctx context.Context, guildID string, commands []gateway.CommandDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registeredGuild = guildID
	c.registered = commands
	return nil
}

func (c *fakeConn) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroys++
	return nil
}

func (c *fakeConn) interact(inter *gateway.Interaction) {
	c.mu.Lock()
	h := c.handlers
	c.mu.Unlock()
	if h.Interaction != nil {
		h.Interaction(inter)
	}
}

func (c *fakeConn) drop(err error) {
	c.mu.Lock()
	h := c.handlers
	c.mu.Unlock()
	if h.Disconnect != nil {
		h.Disconnect(err)
	}
}

func (c *fakeConn) destroyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroys
}

func testTenantRecord() *tenant.Record {
	return &tenant.Record{
		ID:                "tenant-1",
		AllianceID:        4242,
		AllianceName:      "Test Alliance",
		Subdomain:         "test-alliance",
		Status:            tenant.StatusActive,
		AdminUserID:       "admin-1",
		APIKeyEncrypted:   "blob",
		BotTokenEncrypted: "blob",
		GuildID:           "guild-1",
		CreatedAt:         time.Now().UTC(),
	}
}
