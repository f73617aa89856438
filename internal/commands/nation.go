// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orbistech/allianced/internal/gateway"
	"github.com/orbistech/allianced/internal/pnw"
	"github.com/orbistech/allianced/internal/tenant"
)

// nationColors maps in-game trade colors to embed colors.
var nationColors = map[string]int{
	"beige":  0xF5F5DC,
	"gray":   0x808080,
	"lime":   0x00FF00,
	"green":  0x008000,
	"white":  0xFFFFFF,
	"brown":  0xA52A2A,
	"maroon": 0x800000,
	"purple": 0x800080,
	"blue":   0x0000FF,
	"red":    0xFF0000,
	"orange": 0xFFA500,
	"yellow": 0xFFFF00,
	"pink":   0xFFC0CB,
	"black":  0x000000,
}

func nationColor(color string) int {
	if code, ok := nationColors[strings.ToLower(color)]; ok {
		return code
	}
	return colorInfo
}

type nationCommand struct {
	api GameAPI
}

func (c *nationCommand) Descriptor() gateway.CommandDescriptor {
	return gateway.CommandDescriptor{
		Name:        "nation",
		Description: "Get nation information",
		Subcommands: []gateway.SubcommandDescriptor{
			{Name: "info", Description: "Show detailed nation information", Options: []gateway.OptionDescriptor{
				{Name: "id", Description: "Nation ID", Type: "integer", Required: true},
			}},
			{Name: "search", Description: "Search for a nation by name", Options: []gateway.OptionDescriptor{
				{Name: "name", Description: "Nation or leader name", Type: "string", Required: true},
			}},
		},
	}
}

func (c *nationCommand) Execute(ctx context.Context, inter *gateway.Interaction, record *tenant.Record) error {
	switch inter.Subcommand {
	case "info":
		return c.info(ctx, inter)
	case "search":
		return c.search(ctx, inter)
	default:
		return inter.Respond(gateway.Reply{Content: "Unknown subcommand!", Ephemeral: true})
	}
}

func (c *nationCommand) info(ctx context.Context, inter *gateway.Interaction) error {
	nationID, ok := inter.IntOption("id")
	if !ok {
		return inter.Respond(gateway.Reply{Content: "A nation ID is required.", Ephemeral: true})
	}

	nation, err := c.api.GetNation(ctx, nationID)
	if errors.Is(err, pnw.ErrNationNotFound) {
		return inter.Respond(gateway.Reply{Content: "Nation not found."})
	}
	if err != nil {
		return fmt.Errorf("get nation: %w", err)
	}

	fields := []gateway.Field{
		{Name: "Leader", Value: orNA(nation.LeaderName), Inline: true},
		{Name: "Nation ID", Value: nation.ID, Inline: true},
		{Name: "Score", Value: scoreOrNA(nation.Score), Inline: true},
		{Name: "Cities", Value: countOrNA(nation.Cities), Inline: true},
		{Name: "Color", Value: orNA(nation.Color), Inline: true},
		{Name: "Continent", Value: orNA(nation.Continent), Inline: true},
	}
	if nation.Alliance != nil {
		fields = append(fields, gateway.Field{
			Name:  "Alliance",
			Value: fmt.Sprintf("%s (ID: %s)", nation.Alliance.Name, nation.Alliance.ID),
		})
	}

	military := strings.Join([]string{
		"Soldiers: " + countOrNA(nation.Soldiers),
		"Tanks: " + countOrNA(nation.Tanks),
		"Aircraft: " + countOrNA(nation.Aircraft),
		"Ships: " + countOrNA(nation.Ships),
	}, "\n")
	fields = append(fields, gateway.Field{Name: "Military", Value: military, Inline: true})

	var status []string
	if nation.VacationModeTurns > 0 {
		status = append(status, fmt.Sprintf("Vacation Mode: %d turns", nation.VacationModeTurns))
	}
	if nation.BeigeTurns > 0 {
		status = append(status, fmt.Sprintf("Beige: %d turns", nation.BeigeTurns))
	}
	if len(status) == 0 {
		status = append(status, "Active")
	}
	fields = append(fields, gateway.Field{Name: "Status", Value: strings.Join(status, "\n"), Inline: true})

	if last := pnw.ParseTime(nation.LastActive); last != nil {
		fields = append(fields, gateway.Field{
			Name:   "Last Active",
			Value:  relativeDays(*last, time.Now().UTC()),
			Inline: true,
		})
	}

	return inter.Respond(gateway.Reply{Embeds: []gateway.Embed{{
		Title:     nation.NationName,
		Color:     nationColor(nation.Color),
		Fields:    fields,
		Footer:    footerText,
		Timestamp: time.Now().UTC(),
	}}})
}

func (c *nationCommand) search(ctx context.Context, inter *gateway.Interaction) error {
	term := inter.StringOption("name")
	if term == "" {
		return inter.Respond(gateway.Reply{Content: "A search term is required.", Ephemeral: true})
	}

	results, err := c.api.SearchNations(ctx, term)
	if err != nil {
		return fmt.Errorf("search nations: %w", err)
	}
	if len(results) == 0 {
		return inter.Respond(gateway.Reply{Content: "No nations found matching that search term."})
	}

	shown := results
	if len(shown) > maxFindResults {
		shown = shown[:maxFindResults]
	}
	var lines []string
	for _, n := range shown {
		alliance := "None"
		if n.Alliance != nil && n.Alliance.Name != "" {
			alliance = n.Alliance.Name
		}
		lines = append(lines, fmt.Sprintf("**%s** (ID: %s)\n> Leader: %s | Alliance: %s | Score: %s",
			n.NationName, n.ID, n.LeaderName, alliance, scoreOrNA(n.Score)))
	}

	return inter.Respond(gateway.Reply{Embeds: []gateway.Embed{{
		Title:       fmt.Sprintf("Search Results for %q", term),
		Color:       colorInfo,
		Description: strings.Join(lines, "\n\n"),
		Footer:      fmt.Sprintf("Showing %d of %d results", len(shown), len(results)),
		Timestamp:   time.Now().UTC(),
	}}})
}
