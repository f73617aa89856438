// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

// Package commands implements the per-session slash command set.
//
// A Dispatcher holds the fixed command table for one tenant session:
// alliance info/members/inactive, nation info/search, member
// find/stats/top, war active/info/member, and help. Handlers read
// tenant-scoped member snapshots and the game API, and reply through
// the platform-neutral gateway types. Missing upstream fields render as
// "N/A" or "Unknown" instead of failing the command.
package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orbistech/allianced/internal/gateway"
	"github.com/orbistech/allianced/internal/pnw"
	"github.com/orbistech/allianced/internal/tenant"
)

// PageSize is the fixed page size for list-style handlers.
const PageSize = 10

// ErrUnknownCommand is returned by Dispatch for unregistered names.
var ErrUnknownCommand = errors.New("unknown command")

// MemberReader is the tenant-scoped member snapshot view handlers read.
type MemberReader interface {
	ListMembers(ctx context.Context, tenantID string) ([]tenant.Member, error)
	GetMember(ctx context.Context, tenantID string, nationID int) (*tenant.Member, error)
	ListInactiveMembers(ctx context.Context, tenantID string, threshold time.Time) ([]tenant.Member, error)
}

// GameAPI is the game-data view handlers read. The session constructs
// it with the tenant's own key.
type GameAPI interface {
	GetNation(ctx context.Context, nationID int) (*pnw.Nation, error)
	SearchNations(ctx context.Context, term string) ([]pnw.NationSummary, error)
	GetWars(ctx context.Context, filter pnw.WarFilter) ([]pnw.War, error)
}

// Deps carries the collaborators shared by all handlers of one session.
type Deps struct {
	Members MemberReader
	API     GameAPI
}

// Command is one top-level slash command.
type Command interface {
	Descriptor() gateway.CommandDescriptor
	Execute(ctx context.Context, inter *gateway.Interaction, record *tenant.Record) error
}

// Dispatcher routes an invocation to its handler by command name.
type Dispatcher struct {
	commands map[string]Command
	order    []string
}

// NewDispatcher builds the full command table. Names must be unique;
// a duplicate is a programming error and panics at construction.
func NewDispatcher(deps Deps) *Dispatcher {
	d := &Dispatcher{commands: make(map[string]Command)}
	for _, cmd := range []Command{
		&allianceCommand{members: deps.Members},
		&nationCommand{api: deps.API},
		&memberCommand{members: deps.Members},
		&warCommand{api: deps.API},
		&helpCommand{},
	} {
		d.register(cmd)
	}
	return d
}

func (d *Dispatcher) register(cmd Command) {
	name := cmd.Descriptor().Name
	if _, exists := d.commands[name]; exists {
		panic(fmt.Sprintf("duplicate command %q", name))
	}
	d.commands[name] = cmd
	d.order = append(d.order, name)
}

// Dispatch routes one invocation. Fails with ErrUnknownCommand for
// unregistered names; handler errors propagate to the caller, which
// turns them into a generic failure reply.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, inter *gateway.Interaction, record *tenant.Record) error {
	cmd, ok := d.commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return cmd.Execute(ctx, inter, record)
}

// Descriptors returns the command declarations in registration order,
// for gateway command registration.
func (d *Dispatcher) Descriptors() []gateway.CommandDescriptor {
	out := make([]gateway.CommandDescriptor, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.commands[name].Descriptor())
	}
	return out
}
