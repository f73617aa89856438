// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/orbistech/allianced/internal/gateway"
	"github.com/orbistech/allianced/internal/tenant"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 20
	maxFindResults  = 10
)

var mentionPattern = regexp.MustCompile(`<@!?(\d+)>`)

type memberCommand struct {
	members MemberReader
}

func (c *memberCommand) Descriptor() gateway.CommandDescriptor {
	return gateway.CommandDescriptor{
		Name:        "member",
		Description: "Alliance member management commands",
		Subcommands: []gateway.SubcommandDescriptor{
			{Name: "find", Description: "Find a member by name or Discord ID", Options: []gateway.OptionDescriptor{
				{Name: "query", Description: "Nation name, leader name, or Discord mention", Type: "string", Required: true},
			}},
			{Name: "stats", Description: "Show member statistics", Options: []gateway.OptionDescriptor{
				{Name: "nation_id", Description: "Nation ID", Type: "integer", Required: true},
			}},
			{Name: "top", Description: "Show top members by score", Options: []gateway.OptionDescriptor{
				{Name: "limit", Description: "Number of top members to show (1-20)", Type: "integer"},
			}},
		},
	}
}

func (c *memberCommand) Execute(ctx context.Context, inter *gateway.Interaction, record *tenant.Record) error {
	switch inter.Subcommand {
	case "find":
		return c.find(ctx, inter, record)
	case "stats":
		return c.stats(ctx, inter, record)
	case "top":
		return c.top(ctx, inter, record)
	default:
		return inter.Respond(gateway.Reply{Content: "Unknown subcommand!", Ephemeral: true})
	}
}

func (c *memberCommand) find(ctx context.Context, inter *gateway.Interaction, record *tenant.Record) error {
	query := inter.StringOption("query")
	if query == "" {
		return inter.Respond(gateway.Reply{Content: "A search query is required.", Ephemeral: true})
	}

	discordID := query
	if m := mentionPattern.FindStringSubmatch(query); m != nil {
		discordID = m[1]
	}

	all, err := c.members.ListMembers(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	lower := strings.ToLower(query)
	var matches []tenant.Member
	for _, m := range all {
		if strings.Contains(strings.ToLower(m.NationName), lower) ||
			strings.Contains(strings.ToLower(m.LeaderName), lower) ||
			(m.DiscordID != "" && m.DiscordID == discordID) {
			matches = append(matches, m)
		}
	}
	if len(matches) == 0 {
		return inter.Respond(gateway.Reply{Content: "No members found matching that query."})
	}

	now := time.Now().UTC()
	embed := gateway.Embed{
		Title:     fmt.Sprintf("Member Search Results for %q", query),
		Color:     colorInfo,
		Timestamp: now,
	}

	if len(matches) == 1 {
		m := matches[0]
		discord := "Not linked"
		if m.DiscordID != "" {
			discord = "<@" + m.DiscordID + ">"
		}
		lastActive := "Unknown"
		if m.LastActive != nil {
			lastActive = relativeDays(*m.LastActive, now)
		}
		embed.Description = strings.Join([]string{
			fmt.Sprintf("**%s** (ID: %d)", m.NationName, m.NationID),
			"**Leader:** " + m.LeaderName,
			"**Position:** " + orNA(m.Position),
			"**Cities:** " + countOrNA(m.Cities),
			"**Score:** " + scoreOrNA(m.Score),
			"**Discord:** " + discord,
			"**Last Active:** " + lastActive,
		}, "\n")
	} else {
		shown := matches
		if len(shown) > maxFindResults {
			shown = shown[:maxFindResults]
			embed.Footer = fmt.Sprintf("Showing %d of %d results", maxFindResults, len(matches))
		}
		var lines []string
		for _, m := range shown {
			lines = append(lines, fmt.Sprintf("**%s** (%s)\n> ID: %d | Score: %s",
				m.NationName, m.LeaderName, m.NationID, scoreOrNA(m.Score)))
		}
		embed.Description = strings.Join(lines, "\n\n")
	}

	return inter.Respond(gateway.Reply{Embeds: []gateway.Embed{embed}})
}

func (c *memberCommand) stats(ctx context.Context, inter *gateway.Interaction, record *tenant.Record) error {
	nationID, ok := inter.IntOption("nation_id")
	if !ok {
		return inter.Respond(gateway.Reply{Content: "A nation ID is required.", Ephemeral: true})
	}

	all, err := c.members.ListMembers(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	// ListMembers is already ranked: descending score, nation id
	// ascending on ties.
	rank := 0
	var member *tenant.Member
	for i := range all {
		if all[i].NationID == nationID {
			rank = i + 1
			member = &all[i]
			break
		}
	}
	if member == nil {
		return inter.Respond(gateway.Reply{Content: "Member not found in alliance."})
	}

	now := time.Now().UTC()
	fields := []gateway.Field{
		{Name: "Leader", Value: orNA(member.LeaderName), Inline: true},
		{Name: "Nation ID", Value: fmt.Sprintf("%d", member.NationID), Inline: true},
		{Name: "Alliance Rank", Value: fmt.Sprintf("#%d of %d", rank, len(all)), Inline: true},
		{Name: "Position", Value: orNA(member.Position), Inline: true},
		{Name: "Cities", Value: countOrNA(member.Cities), Inline: true},
		{Name: "Score", Value: scoreOrNA(member.Score), Inline: true},
		{Name: "Activity Status", Value: activityStatus(member.LastActive, now)},
	}
	if member.DiscordID != "" {
		fields = append(fields, gateway.Field{Name: "Discord", Value: "<@" + member.DiscordID + ">", Inline: true})
	}
	if member.JoinedAlliance != nil {
		fields = append(fields, gateway.Field{
			Name:   "Alliance Tenure",
			Value:  fmt.Sprintf("%d days", daysSince(*member.JoinedAlliance, now)),
			Inline: true,
		})
	}

	return inter.Respond(gateway.Reply{Embeds: []gateway.Embed{{
		Title:     member.NationName + " - Member Statistics",
		Color:     colorInfo,
		Fields:    fields,
		Footer:    footerText,
		Timestamp: now,
	}}})
}

func (c *memberCommand) top(ctx context.Context, inter *gateway.Interaction, record *tenant.Record) error {
	limit, ok := inter.IntOption("limit")
	if !ok || limit < 1 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}

	all, err := c.members.ListMembers(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	if len(all) == 0 {
		return inter.Respond(gateway.Reply{Content: "No members found."})
	}
	if len(all) > limit {
		all = all[:limit]
	}

	var lines []string
	for i, m := range all {
		lines = append(lines, fmt.Sprintf("**%d.** **%s** (%s)\n> Score: %s | Cities: %s",
			i+1, m.NationName, m.LeaderName, scoreOrNA(m.Score), countOrNA(m.Cities)))
	}

	return inter.Respond(gateway.Reply{Embeds: []gateway.Embed{{
		Title:       fmt.Sprintf("%s - Top %d Members", record.AllianceName, limit),
		Color:       colorInfo,
		Description: strings.Join(lines, "\n\n"),
		Footer:      footerText,
		Timestamp:   time.Now().UTC(),
	}}})
}
