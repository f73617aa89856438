// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/orbistech/allianced/internal/commands"
	"github.com/orbistech/allianced/internal/gateway"
	"github.com/orbistech/allianced/internal/logging"
	"github.com/orbistech/allianced/internal/metrics"
	"github.com/orbistech/allianced/internal/tenant"
)

const (
	// interactionTimeout bounds a single command execution, including
	// any game API calls the handler makes.
	interactionTimeout = 30 * time.Second

	failureReply     = "There was an error while executing this command!"
	guildDeniedReply = "This bot is only configured for a specific server."
)

// Session is one live bot presence for one tenant: a single gateway
// connection, the command dispatcher serving it, and the member sync
// scheduler. Sessions are single-use; after Stop a replacement Session
// is built for the next start.
type Session struct {
	record     *tenant.Record
	conn       gateway.Conn
	dispatcher *commands.Dispatcher
	scheduler  *Scheduler
	botToken   string

	// fatal receives the first terminal connection error. Buffered so
	// the gateway read loop never blocks on delivery.
	fatal chan error

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewSession binds the event handlers on conn and returns the session.
// The connection is not opened until Start.
func NewSession(record *tenant.Record, conn gateway.Conn, dispatcher *commands.Dispatcher, scheduler *Scheduler, botToken string) *Session {
	s := &Session{
		record:     record,
		conn:       conn,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		botToken:   botToken,
		fatal:      make(chan error, 1),
	}
	conn.Bind(gateway.Handlers{
		Ready: func() {
			logging.Info().
				Str("tenant_id", record.ID).
				Str("alliance_name", record.AllianceName).
				Msg("gateway connection ready")
		},
		Interaction: s.handleInteraction,
		GuildJoin: func(g gateway.Guild) {
			logging.Info().
				Str("tenant_id", record.ID).
				Str("guild_id", g.ID).
				Str("guild_name", g.Name).
				Msg("joined guild")
		},
		GuildLeave: func(g gateway.Guild) {
			logging.Warn().
				Str("tenant_id", record.ID).
				Str("guild_id", g.ID).
				Msg("removed from guild")
		},
		Error: func(err error) {
			logging.Err(err).Str("tenant_id", record.ID).Msg("gateway error")
		},
		Warn: func(msg string) {
			logging.Warn().Str("tenant_id", record.ID).Str("detail", msg).Msg("gateway warning")
		},
		Disconnect: s.handleDisconnect,
	})
	return s
}

// Start logs in, blocks until the connection reports ready, registers
// the command set, and starts the sync scheduler. A failed command
// registration is logged but does not fail the start; registration is
// re-run on the next session start anyway.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return errors.New("session is single-use, already started")
	}
	s.mu.Unlock()

	if err := s.conn.Login(ctx, s.botToken); err != nil {
		return fmt.Errorf("gateway login: %w", err)
	}

	if err := s.conn.RegisterCommands(ctx, s.record.GuildID, s.dispatcher.Descriptors()); err != nil {
		logging.Err(err).
			Str("tenant_id", s.record.ID).
			Str("guild_id", s.record.GuildID).
			Msg("command registration failed")
	}

	s.scheduler.Start()

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

// Stop halts the scheduler and closes the connection. Idempotent; a
// stop of an already-stopped session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.scheduler.Stop()
	if err := s.conn.Destroy(); err != nil {
		logging.Err(err).Str("tenant_id", s.record.ID).Msg("gateway teardown failed")
	}
}

// Fatal delivers the terminal connection error, once. The supervisor's
// session service selects on it to drive restarts.
func (s *Session) Fatal() <-chan error {
	return s.fatal
}

func (s *Session) handleDisconnect(err error) {
	if err == nil {
		err = errors.New("gateway connection closed")
	}
	select {
	case s.fatal <- err:
	default:
	}
}

// handleInteraction runs on the gateway read loop, one interaction at a
// time. A panicking or failing handler is contained here and answered
// with a generic failure reply; it never reaches the connection.
func (s *Session) handleInteraction(inter *gateway.Interaction) {
	if s.record.GuildID != "" && inter.GuildID != s.record.GuildID {
		metrics.CommandsHandled.WithLabelValues(inter.Command, "denied").Inc()
		logging.Warn().
			Str("tenant_id", s.record.ID).
			Str("guild_id", inter.GuildID).
			Str("command", inter.Command).
			Msg("interaction from unconfigured guild denied")
		s.reply(inter, gateway.Reply{Content: guildDeniedReply, Ephemeral: true})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()

	err := s.dispatch(ctx, inter)
	if err == nil {
		metrics.CommandsHandled.WithLabelValues(inter.Command, "success").Inc()
		return
	}

	outcome := "error"
	if errors.Is(err, commands.ErrUnknownCommand) {
		outcome = "unknown"
	}
	metrics.CommandsHandled.WithLabelValues(inter.Command, outcome).Inc()
	logging.Err(err).
		Str("tenant_id", s.record.ID).
		Str("command", inter.Command).
		Str("subcommand", inter.Subcommand).
		Str("user_id", inter.UserID).
		Msg("command failed")
	s.reply(inter, gateway.Reply{Content: failureReply, Ephemeral: true})
}

// dispatch contains handler panics so a crashing command cannot take
// down the read loop.
func (s *Session) dispatch(ctx context.Context, inter *gateway.Interaction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command handler panic: %v", r)
		}
	}()
	return s.dispatcher.Dispatch(ctx, inter.Command, inter, s.record)
}

func (s *Session) reply(inter *gateway.Interaction, reply gateway.Reply) {
	if err := inter.Respond(reply); err != nil {
		logging.Err(err).
			Str("tenant_id", s.record.ID).
			Str("command", inter.Command).
			Msg("interaction reply failed")
	}
}
