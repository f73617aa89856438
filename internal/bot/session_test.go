// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/orbistech/allianced/internal/commands"
	"github.com/orbistech/allianced/internal/gateway"
	"github.com/orbistech/allianced/internal/tenant"
)

// replyCapture collects replies sent through a test interaction.
type replyCapture struct {
	mu      sync.Mutex
	replies []gateway.Reply
}

func (r *replyCapture) sink(reply gateway.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, reply)
	return nil
}

func (r *replyCapture) last(t *testing.T) gateway.Reply {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replies) == 0 {
		t.Fatal("no reply captured")
	}
	return r.replies[len(r.replies)-1]
}

func newTestSession(record *tenant.Record, conn *fakeConn, members commands.MemberReader, api *stubAPI) *Session {
	full := &recordingMembers{}
	var reader commands.MemberReader = full
	var writer MemberWriter = full
	if members != nil {
		reader = members
	}
	dispatcher := commands.NewDispatcher(commands.Deps{Members: reader, API: api})
	scheduler := NewScheduler(record, api, writer)
	return NewSession(record, conn, dispatcher, scheduler, "bot-token")
}

func TestSessionStartLogsInAndRegistersCommands(t *testing.T) {
	record := testTenantRecord()
	conn := &fakeConn{}
	sess := newTestSession(record, conn, nil, &stubAPI{})

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sess.Stop()

	if conn.logins != 1 {
		t.Errorf("logins = %d, want 1", conn.logins)
	}
	if conn.lastToken != "bot-token" {
		t.Errorf("token = %q", conn.lastToken)
	}
	if conn.registeredGuild != record.GuildID {
		t.Errorf("registered guild = %q, want %q", conn.registeredGuild, record.GuildID)
	}
	if len(conn.registered) != 5 {
		t.Errorf("registered %d commands, want 5", len(conn.registered))
	}
}

func TestSessionGuildScopeDenied(t *testing.T) {
	record := testTenantRecord()
	conn := &fakeConn{}
	newTestSession(record, conn, nil, &stubAPI{})

	capture := &replyCapture{}
	inter := gateway.NewTestInteraction("alliance", "info", nil, capture.sink)
	inter.GuildID = "some-other-guild"
	conn.interact(inter)

	reply := capture.last(t)
	if reply.Content != guildDeniedReply {
		t.Errorf("reply = %q, want denial", reply.Content)
	}
	if !reply.Ephemeral {
		t.Error("denial reply should be ephemeral")
	}
}

func TestSessionMatchingGuildAccepted(t *testing.T) {
	record := testTenantRecord()
	conn := &fakeConn{}
	newTestSession(record, conn, &recordingMembers{}, &stubAPI{})

	capture := &replyCapture{}
	inter := gateway.NewTestInteraction("alliance", "info", nil, capture.sink)
	inter.GuildID = record.GuildID
	conn.interact(inter)

	reply := capture.last(t)
	if reply.Content == guildDeniedReply || reply.Content == failureReply {
		t.Fatalf("command was not handled: %q", reply.Content)
	}
	if len(reply.Embeds) == 0 {
		t.Fatal("expected an embed reply")
	}
}

func TestSessionHandlerErrorGenericReply(t *testing.T) {
	record := testTenantRecord()
	conn := &fakeConn{}
	members := &recordingMembers{listErr: context.DeadlineExceeded}
	newTestSession(record, conn, members, &stubAPI{})

	capture := &replyCapture{}
	inter := gateway.NewTestInteraction("alliance", "info", nil, capture.sink)
	inter.GuildID = record.GuildID
	conn.interact(inter)

	reply := capture.last(t)
	if reply.Content != failureReply {
		t.Errorf("reply = %q, want generic failure", reply.Content)
	}
	if !reply.Ephemeral {
		t.Error("failure reply should be ephemeral")
	}
}

// panicReader crashes inside the command handler.
type panicReader struct{}

func (panicReader) ListMembers(ctx context.Context, tenantID string) ([]tenant.Member, error) {
	panic("boom")
}

func (panicReader) GetMember(ctx context.Context, tenantID string, nationID int) (*tenant.Member, error) {
	panic("boom")
}

func (panicReader) ListInactiveMembers(ctx context.Context, tenantID string, threshold time.Time) ([]tenant.Member, error) {
	panic("boom")
}

func TestSessionHandlerPanicContained(t *testing.T) {
	record := testTenantRecord()
	conn := &fakeConn{}
	newTestSession(record, conn, panicReader{}, &stubAPI{})

	capture := &replyCapture{}
	inter := gateway.NewTestInteraction("alliance", "info", nil, capture.sink)
	inter.GuildID = record.GuildID
	conn.interact(inter)

	if reply := capture.last(t); reply.Content != failureReply {
		t.Fatalf("reply = %q, want generic failure", reply.Content)
	}

	// The session keeps serving after a handler crash.
	next := &replyCapture{}
	help := gateway.NewTestInteraction("help", "show", nil, next.sink)
	help.GuildID = record.GuildID
	conn.interact(help)
	if reply := next.last(t); len(reply.Embeds) == 0 {
		t.Fatal("help not handled after crash")
	}
}

func TestSessionUnknownCommandGenericReply(t *testing.T) {
	record := testTenantRecord()
	conn := &fakeConn{}
	newTestSession(record, conn, nil, &stubAPI{})

	capture := &replyCapture{}
	inter := gateway.NewTestInteraction("bogus", "", nil, capture.sink)
	inter.GuildID = record.GuildID
	conn.interact(inter)

	if reply := capture.last(t); reply.Content != failureReply {
		t.Errorf("reply = %q, want generic failure", reply.Content)
	}
}

func TestSessionStopIdempotent(t *testing.T) {
	conn := &fakeConn{}
	sess := newTestSession(testTenantRecord(), conn, nil, &stubAPI{})

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sess.Stop()
	sess.Stop()

	if n := conn.destroyCount(); n != 1 {
		t.Errorf("destroy calls = %d, want 1", n)
	}
}

func TestSessionDisconnectSignalsFatal(t *testing.T) {
	conn := &fakeConn{}
	sess := newTestSession(testTenantRecord(), conn, nil, &stubAPI{})

	conn.drop(nil)
	conn.drop(nil) // second delivery must not block

	select {
	case err := <-sess.Fatal():
		if err == nil {
			t.Fatal("fatal error is nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fatal never signaled")
	}
}
