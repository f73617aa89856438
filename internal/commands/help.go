// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orbistech/allianced/internal/gateway"
	"github.com/orbistech/allianced/internal/tenant"
)

type helpEntry struct {
	name        string
	description string
	usage       string
	example     string
}

type helpTopic struct {
	title       string
	description string
	entries     []helpEntry
}

var helpTopics = map[string]helpTopic{
	"alliance": {
		title:       "Alliance Commands",
		description: "Commands for alliance information and member management.",
		entries: []helpEntry{
			{"/alliance info", "Display alliance overview with statistics", "/alliance info", "/alliance info"},
			{"/alliance members", "List alliance members with pagination", "/alliance members [page]", "/alliance members page:2"},
			{"/alliance inactive", "Show members inactive for specified days", "/alliance inactive [days]", "/alliance inactive days:7"},
		},
	},
	"nation": {
		title:       "Nation Commands",
		description: "Commands for retrieving nation information.",
		entries: []helpEntry{
			{"/nation info", "Show detailed nation information", "/nation info <id>", "/nation info id:123456"},
			{"/nation search", "Search for nations by name", "/nation search <name>", "/nation search name:\"Nation Name\""},
		},
	},
	"member": {
		title:       "Member Commands",
		description: "Commands for alliance member management and statistics.",
		entries: []helpEntry{
			{"/member find", "Find alliance members by name or Discord mention", "/member find <query>", "/member find query:\"Leader Name\""},
			{"/member stats", "Show detailed statistics for a specific member", "/member stats <nation_id>", "/member stats nation_id:123456"},
			{"/member top", "Show top alliance members by score", "/member top [limit]", "/member top limit:15"},
		},
	},
	"war": {
		title:       "War Commands",
		description: "Commands for war tracking and conflict information.",
		entries: []helpEntry{
			{"/war active", "Show active wars involving alliance members", "/war active [limit]", "/war active limit:15"},
			{"/war info", "Get detailed information about a specific war", "/war info <war_id>", "/war info war_id:123456"},
			{"/war member", "Show all wars for a specific alliance member", "/war member <nation_id>", "/war member nation_id:123456"},
		},
	},
}

type helpCommand struct{}

func (c *helpCommand) Descriptor() gateway.CommandDescriptor {
	return gateway.CommandDescriptor{
		Name:        "help",
		Description: "Show available commands and their usage",
		Subcommands: []gateway.SubcommandDescriptor{
			{Name: "show", Description: "Show command help", Options: []gateway.OptionDescriptor{
				{Name: "command", Description: "Get detailed help for a specific command", Type: "string"},
			}},
		},
	}
}

func (c *helpCommand) Execute(ctx context.Context, inter *gateway.Interaction, record *tenant.Record) error {
	if topic := inter.StringOption("command"); topic != "" {
		return c.specific(inter, topic, record)
	}
	return c.general(inter, record)
}

func (c *helpCommand) general(inter *gateway.Interaction, record *tenant.Record) error {
	return inter.Respond(gateway.Reply{Embeds: []gateway.Embed{{
		Title: record.AllianceName + " - Bot Commands",
		Color: colorInfo,
		Description: "This bot provides alliance management tools for Politics and War. " +
			"Use `/help command:<name>` for detailed information about specific commands.",
		Fields: []gateway.Field{
			{Name: "Alliance Commands", Value: "`/alliance info` - Alliance overview\n" +
				"`/alliance members` - List members\n" +
				"`/alliance inactive` - Show inactive members"},
			{Name: "Nation Commands", Value: "`/nation info <id>` - Nation details\n" +
				"`/nation search <name>` - Search nations"},
			{Name: "Member Commands", Value: "`/member find <query>` - Find members\n" +
				"`/member stats <id>` - Member statistics\n" +
				"`/member top` - Top members by score"},
			{Name: "War Commands", Value: "`/war active` - Active wars\n" +
				"`/war info <id>` - War details\n" +
				"`/war member <id>` - Member's wars"},
			{Name: "Help", Value: "`/help` - Show this help\n" +
				"`/help command:<name>` - Detailed command help"},
		},
		Footer:    fmt.Sprintf("Alliance ID: %d", record.AllianceID),
		Timestamp: time.Now().UTC(),
	}}})
}

func (c *helpCommand) specific(inter *gateway.Interaction, name string, record *tenant.Record) error {
	topic, ok := helpTopics[strings.ToLower(name)]
	if !ok {
		return inter.Respond(gateway.Reply{Content: "Command not found!", Ephemeral: true})
	}

	fields := make([]gateway.Field, 0, len(topic.entries))
	for _, e := range topic.entries {
		fields = append(fields, gateway.Field{
			Name: e.name,
			Value: fmt.Sprintf("**Description:** %s\n**Usage:** `%s`\n**Example:** `%s`",
				e.description, e.usage, e.example),
		})
	}

	return inter.Respond(gateway.Reply{Embeds: []gateway.Embed{{
		Title:       topic.title,
		Color:       colorInfo,
		Description: topic.description,
		Fields:      fields,
		Footer:      record.AllianceName + " " + footerText,
		Timestamp:   time.Now().UTC(),
	}}})
}
