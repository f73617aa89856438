// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

// Package gateway defines the chat-platform connection contract and a
// websocket implementation of it.
//
// A session owns exactly one Conn. Handlers are bound before Login and
// are invoked from a single read loop, so events of the same kind are
// delivered serially per connection. The wire protocol is deliberately
// minimal; the session and dispatcher layers only see the
// platform-neutral types defined here.
package gateway

import (
	"context"
	"errors"
	"strconv"
	"time"
)

var (
	// ErrNotConnected is returned by operations that require a
	// completed login.
	ErrNotConnected = errors.New("gateway not connected")

	// ErrLoginFailed is returned when the platform rejects the
	// identify payload.
	ErrLoginFailed = errors.New("gateway login rejected")
)

// Handlers carries the per-session event callbacks. All fields are
// optional; nil handlers drop the event. Bound once before Login and
// never mutated afterward.
type Handlers struct {
	Ready       func()
	Interaction func(*Interaction)
	GuildJoin   func(Guild)
	GuildLeave  func(Guild)
	Error       func(error)
	Warn        func(string)

	// Disconnect fires once when the connection dies outside of
	// Destroy. The session turns this into a supervised restart.
	Disconnect func(error)
}

// Conn is one live connection to the chat platform.
type Conn interface {
	// Bind installs the event handlers. Must be called before Login.
	Bind(Handlers)

	// Login authenticates and blocks until the connection reports
	// ready, the context ends, or the platform rejects the token.
	Login(ctx context.Context, token string) error

	// RegisterCommands publishes the command set, scoped to a guild
	// when guildID is non-empty. Safe to re-run with the same set.
	RegisterCommands(ctx context.Context, guildID string, commands []CommandDescriptor) error

	// Destroy closes the connection. Idempotent.
	Destroy() error
}

// Dialer constructs an unconnected Conn. The supervisor gets one per
// session so tests can substitute fakes.
type Dialer func() Conn

// Guild identifies one chat-platform server.
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Interaction is one inbound slash-command invocation.
type Interaction struct {
	ID         string            `json:"id"`
	GuildID    string            `json:"guild_id"`
	ChannelID  string            `json:"channel_id"`
	UserID     string            `json:"user_id"`
	Command    string            `json:"command"`
	Subcommand string            `json:"subcommand"`
	Options    map[string]string `json:"options"`

	respond func(Reply) error
}

// Respond sends the reply for this invocation.
func (i *Interaction) Respond(reply Reply) error {
	if i.respond == nil {
		return ErrNotConnected
	}
	return i.respond(reply)
}

// StringOption returns a named option value, or "" if absent.
func (i *Interaction) StringOption(name string) string {
	return i.Options[name]
}

// IntOption parses a named option as an integer. The second return is
// false when the option is absent or malformed.
func (i *Interaction) IntOption(name string) (int, bool) {
	raw, ok := i.Options[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Reply is the platform-neutral response to an interaction.
type Reply struct {
	Content   string  `json:"content,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
	Ephemeral bool    `json:"ephemeral,omitempty"`
}

// Embed is a rich reply block.
type Embed struct {
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Color       int       `json:"color,omitempty"`
	Fields      []Field   `json:"fields,omitempty"`
	Footer      string    `json:"footer,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// Field is one name/value pair inside an embed.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// CommandDescriptor declares one top-level slash command.
type CommandDescriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Subcommands []SubcommandDescriptor `json:"subcommands,omitempty"`
}

// SubcommandDescriptor declares one subcommand and its options.
type SubcommandDescriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Options     []OptionDescriptor `json:"options,omitempty"`
}

// OptionDescriptor declares one command option.
type OptionDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"` // "string" or "integer"
	Required    bool   `json:"required,omitempty"`
}

// NewTestInteraction builds an interaction whose reply is captured by
// sink. Used by session and dispatcher tests.
func NewTestInteraction(command, subcommand string, options map[string]string, sink func(Reply) error) *Interaction {
	return &Interaction{
		ID:         "test-interaction",
		Command:    command,
		Subcommand: subcommand,
		Options:    options,
		respond:    sink,
	}
}
