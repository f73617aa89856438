// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/orbistech/allianced/internal/gateway"
	"github.com/orbistech/allianced/internal/pnw"
	"github.com/orbistech/allianced/internal/tenant"
)

type fakeMembers struct {
	members []tenant.Member
	err     error
}

func (f *fakeMembers) ListMembers(ctx context.Context, tenantID string) ([]tenant.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]tenant.Member, len(f.members))
	copy(out, f.members)
	tenant.SortByScore(out)
	return out, nil
}

func (f *fakeMembers) GetMember(ctx context.Context, tenantID string, nationID int) (*tenant.Member, error) {
	for i := range f.members {
		if f.members[i].NationID == nationID {
			return &f.members[i], nil
		}
	}
	return nil, nil
}

func (f *fakeMembers) ListInactiveMembers(ctx context.Context, tenantID string, threshold time.Time) ([]tenant.Member, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []tenant.Member
	for _, m := range f.members {
		if m.LastActive != nil && m.LastActive.Before(threshold) {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeAPI struct {
	nation  *pnw.Nation
	results []pnw.NationSummary
	wars    []pnw.War
	lastWar pnw.WarFilter
	err     error
}

func (f *fakeAPI) GetNation(ctx context.Context, nationID int) (*pnw.Nation, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.nation == nil {
		return nil, pnw.ErrNationNotFound
	}
	return f.nation, nil
}

func (f *fakeAPI) SearchNations(ctx context.Context, term string) ([]pnw.NationSummary, error) {
	return f.results, f.err
}

func (f *fakeAPI) GetWars(ctx context.Context, filter pnw.WarFilter) ([]pnw.War, error) {
	f.lastWar = filter
	return f.wars, f.err
}

func captureReply() (*gateway.Reply, func(gateway.Reply) error) {
	captured := &gateway.Reply{}
	return captured, func(r gateway.Reply) error {
		*captured = r
		return nil
	}
}

func testRecord() *tenant.Record {
	return &tenant.Record{
		ID:           "tn-1",
		AllianceID:   4242,
		AllianceName: "Test Alliance",
		Status:       tenant.StatusActive,
		AdminUserID:  "admin",
	}
}

func rosterOf(n int) []tenant.Member {
	members := make([]tenant.Member, n)
	for i := 0; i < n; i++ {
		members[i] = tenant.Member{
			NationID:   1000 + i,
			NationName: fmt.Sprintf("Nation %d", i),
			LeaderName: fmt.Sprintf("Leader %d", i),
			Cities:     5,
			Score:      float64(10000 - i*100),
		}
	}
	return members
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d := NewDispatcher(Deps{Members: &fakeMembers{}, API: &fakeAPI{}})
	_, sink := captureReply()
	inter := gateway.NewTestInteraction("bogus", "", nil, sink)

	err := d.Dispatch(context.Background(), "bogus", inter, testRecord())
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Dispatch() error = %v, want ErrUnknownCommand", err)
	}
}

func TestDispatcher_Descriptors(t *testing.T) {
	d := NewDispatcher(Deps{Members: &fakeMembers{}, API: &fakeAPI{}})

	descriptors := d.Descriptors()
	if len(descriptors) != 5 {
		t.Fatalf("Descriptors() len = %d, want 5", len(descriptors))
	}
	seen := map[string]bool{}
	for _, desc := range descriptors {
		if seen[desc.Name] {
			t.Errorf("duplicate command name %q", desc.Name)
		}
		seen[desc.Name] = true
	}
	for _, want := range []string{"alliance", "nation", "member", "war", "help"} {
		if !seen[want] {
			t.Errorf("missing command %q", want)
		}
	}
}

func TestDispatcher_HandlerErrorPropagates(t *testing.T) {
	wantErr := errors.New("store down")
	d := NewDispatcher(Deps{Members: &fakeMembers{err: wantErr}, API: &fakeAPI{}})
	_, sink := captureReply()
	inter := gateway.NewTestInteraction("alliance", "info", nil, sink)

	err := d.Dispatch(context.Background(), "alliance", inter, testRecord())
	if !errors.Is(err, wantErr) {
		t.Errorf("Dispatch() error = %v, want wrapped store error", err)
	}
}

func TestAllianceMembers_Pagination(t *testing.T) {
	d := NewDispatcher(Deps{Members: &fakeMembers{members: rosterOf(25)}, API: &fakeAPI{}})

	tests := []struct {
		name        string
		page        string
		wantEntries int
		wantEmpty   bool
	}{
		{"first page", "1", 10, false},
		{"last partial page", "3", 5, false},
		{"past the end", "4", 0, true},
		{"default page", "", 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := map[string]string{}
			if tt.page != "" {
				options["page"] = tt.page
			}
			reply, sink := captureReply()
			inter := gateway.NewTestInteraction("alliance", "members", options, sink)

			if err := d.Dispatch(context.Background(), "alliance", inter, testRecord()); err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}

			if tt.wantEmpty {
				if reply.Content != "No members found for this page." {
					t.Errorf("reply content = %q, want empty-page reply", reply.Content)
				}
				return
			}
			if len(reply.Embeds) != 1 {
				t.Fatalf("embeds = %d, want 1", len(reply.Embeds))
			}
			got := len(strings.Split(reply.Embeds[0].Description, "\n\n"))
			if got != tt.wantEntries {
				t.Errorf("page entries = %d, want %d", got, tt.wantEntries)
			}
		})
	}
}

func TestAllianceInactive_NoneFound(t *testing.T) {
	d := NewDispatcher(Deps{Members: &fakeMembers{members: rosterOf(3)}, API: &fakeAPI{}})
	reply, sink := captureReply()
	inter := gateway.NewTestInteraction("alliance", "inactive", map[string]string{"days": "10"}, sink)

	if err := d.Dispatch(context.Background(), "alliance", inter, testRecord()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if reply.Content != "No members have been inactive for more than 10 days." {
		t.Errorf("reply content = %q", reply.Content)
	}
}

func TestMemberTop_TieBreakByNationID(t *testing.T) {
	members := []tenant.Member{
		{NationID: 30, NationName: "Charlie", LeaderName: "C", Score: 2000},
		{NationID: 10, NationName: "Alpha", LeaderName: "A", Score: 2000},
		{NationID: 20, NationName: "Bravo", LeaderName: "B", Score: 3000},
	}
	d := NewDispatcher(Deps{Members: &fakeMembers{members: members}, API: &fakeAPI{}})
	reply, sink := captureReply()
	inter := gateway.NewTestInteraction("member", "top", nil, sink)

	if err := d.Dispatch(context.Background(), "member", inter, testRecord()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	desc := reply.Embeds[0].Description
	bravo := strings.Index(desc, "Bravo")
	alpha := strings.Index(desc, "Alpha")
	charlie := strings.Index(desc, "Charlie")
	if !(bravo < alpha && alpha < charlie) {
		t.Errorf("ranking order wrong: bravo=%d alpha=%d charlie=%d\n%s", bravo, alpha, charlie, desc)
	}
}

func TestMemberStats(t *testing.T) {
	members := rosterOf(5)
	d := NewDispatcher(Deps{Members: &fakeMembers{members: members}, API: &fakeAPI{}})

	t.Run("found with rank", func(t *testing.T) {
		reply, sink := captureReply()
		inter := gateway.NewTestInteraction("member", "stats",
			map[string]string{"nation_id": strconv.Itoa(members[1].NationID)}, sink)

		if err := d.Dispatch(context.Background(), "member", inter, testRecord()); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		var rank string
		for _, f := range reply.Embeds[0].Fields {
			if f.Name == "Alliance Rank" {
				rank = f.Value
			}
		}
		if rank != "#2 of 5" {
			t.Errorf("rank = %q, want #2 of 5", rank)
		}
	})

	t.Run("not found", func(t *testing.T) {
		reply, sink := captureReply()
		inter := gateway.NewTestInteraction("member", "stats", map[string]string{"nation_id": "999999"}, sink)

		if err := d.Dispatch(context.Background(), "member", inter, testRecord()); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if reply.Content != "Member not found in alliance." {
			t.Errorf("reply content = %q", reply.Content)
		}
	})
}

func TestMemberFind_PlaceholdersForMissingData(t *testing.T) {
	members := []tenant.Member{
		{NationID: 7, NationName: "Sparse", LeaderName: "Ghost"},
	}
	d := NewDispatcher(Deps{Members: &fakeMembers{members: members}, API: &fakeAPI{}})
	reply, sink := captureReply()
	inter := gateway.NewTestInteraction("member", "find", map[string]string{"query": "sparse"}, sink)

	if err := d.Dispatch(context.Background(), "member", inter, testRecord()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	desc := reply.Embeds[0].Description
	for _, want := range []string{"**Position:** N/A", "**Cities:** N/A", "**Score:** N/A", "**Last Active:** Unknown", "**Discord:** Not linked"} {
		if !strings.Contains(desc, want) {
			t.Errorf("description missing %q:\n%s", want, desc)
		}
	}
}

func TestNationInfo_NotFound(t *testing.T) {
	d := NewDispatcher(Deps{Members: &fakeMembers{}, API: &fakeAPI{}})
	reply, sink := captureReply()
	inter := gateway.NewTestInteraction("nation", "info", map[string]string{"id": "123"}, sink)

	if err := d.Dispatch(context.Background(), "nation", inter, testRecord()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if reply.Content != "Nation not found." {
		t.Errorf("reply content = %q", reply.Content)
	}
}

func TestNationInfo_ColorAndPlaceholders(t *testing.T) {
	api := &fakeAPI{nation: &pnw.Nation{
		ID:         "555",
		NationName: "Redland",
		LeaderName: "Rex",
		Color:      "red",
		Score:      1234.5,
	}}
	d := NewDispatcher(Deps{Members: &fakeMembers{}, API: api})
	reply, sink := captureReply()
	inter := gateway.NewTestInteraction("nation", "info", map[string]string{"id": "555"}, sink)

	if err := d.Dispatch(context.Background(), "nation", inter, testRecord()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	embed := reply.Embeds[0]
	if embed.Color != 0xFF0000 {
		t.Errorf("embed color = %#x, want red", embed.Color)
	}
	var continent string
	for _, f := range embed.Fields {
		if f.Name == "Continent" {
			continent = f.Value
		}
	}
	if continent != "N/A" {
		t.Errorf("continent = %q, want N/A placeholder", continent)
	}
}

func TestWarActive(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		d := NewDispatcher(Deps{Members: &fakeMembers{}, API: &fakeAPI{}})
		reply, sink := captureReply()
		inter := gateway.NewTestInteraction("war", "active", nil, sink)

		if err := d.Dispatch(context.Background(), "war", inter, testRecord()); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if reply.Content != "No active wars found for Test Alliance members." {
			t.Errorf("reply content = %q", reply.Content)
		}
	})

	t.Run("filters by alliance and active", func(t *testing.T) {
		api := &fakeAPI{wars: []pnw.War{{
			ID: "9", WarType: "RAID", TurnsLeft: 12,
			Attacker: &pnw.WarNation{NationName: "A"},
			Defender: &pnw.WarNation{NationName: "B"},
		}}}
		d := NewDispatcher(Deps{Members: &fakeMembers{}, API: api})
		reply, sink := captureReply()
		inter := gateway.NewTestInteraction("war", "active", nil, sink)

		if err := d.Dispatch(context.Background(), "war", inter, testRecord()); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if api.lastWar.AllianceID != 4242 || api.lastWar.Active == nil || !*api.lastWar.Active {
			t.Errorf("war filter = %+v", api.lastWar)
		}
		if !strings.Contains(reply.Embeds[0].Description, "Raid") {
			t.Errorf("description missing war type label:\n%s", reply.Embeds[0].Description)
		}
	})
}

func TestWarInfo_WinnerAndPeace(t *testing.T) {
	api := &fakeAPI{wars: []pnw.War{{
		ID:         "77",
		AttackerID: "1",
		DefenderID: "2",
		WinnerID:   "2",
		WarType:    "ORDINARY",
		AttPeace:   true,
		Attacker:   &pnw.WarNation{NationName: "Att", LeaderName: "AL"},
		Defender:   &pnw.WarNation{NationName: "Def", LeaderName: "DL"},
	}}}
	d := NewDispatcher(Deps{Members: &fakeMembers{}, API: api})
	reply, sink := captureReply()
	inter := gateway.NewTestInteraction("war", "info", map[string]string{"war_id": "77"}, sink)

	if err := d.Dispatch(context.Background(), "war", inter, testRecord()); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	embed := reply.Embeds[0]
	var details, peace string
	for _, f := range embed.Fields {
		switch f.Name {
		case "War Details":
			details = f.Value
		case "Peace Status":
			peace = f.Value
		}
	}
	if !strings.Contains(details, "Won by defender") {
		t.Errorf("details = %q, want defender win", details)
	}
	if peace != "Attacker offered peace" {
		t.Errorf("peace status = %q", peace)
	}
}

func TestHelp(t *testing.T) {
	d := NewDispatcher(Deps{Members: &fakeMembers{}, API: &fakeAPI{}})

	t.Run("general", func(t *testing.T) {
		reply, sink := captureReply()
		inter := gateway.NewTestInteraction("help", "show", nil, sink)

		if err := d.Dispatch(context.Background(), "help", inter, testRecord()); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if len(reply.Embeds[0].Fields) != 5 {
			t.Errorf("help sections = %d, want 5", len(reply.Embeds[0].Fields))
		}
	})

	t.Run("specific", func(t *testing.T) {
		reply, sink := captureReply()
		inter := gateway.NewTestInteraction("help", "show", map[string]string{"command": "war"}, sink)

		if err := d.Dispatch(context.Background(), "help", inter, testRecord()); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if reply.Embeds[0].Title != "War Commands" {
			t.Errorf("title = %q", reply.Embeds[0].Title)
		}
	})

	t.Run("unknown topic", func(t *testing.T) {
		reply, sink := captureReply()
		inter := gateway.NewTestInteraction("help", "show", map[string]string{"command": "bogus"}, sink)

		if err := d.Dispatch(context.Background(), "help", inter, testRecord()); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
		if reply.Content != "Command not found!" {
			t.Errorf("reply content = %q", reply.Content)
		}
	})
}
