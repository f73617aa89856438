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

const (
	defaultInactiveDays = 7
	maxInactiveShown    = 15
)

type allianceCommand struct {
	members MemberReader
}

func (c *allianceCommand) Descriptor() gateway.CommandDescriptor {
	return gateway.CommandDescriptor{
		Name:        "alliance",
		Description: "Get alliance information and statistics",
		Subcommands: []gateway.SubcommandDescriptor{
			{Name: "info", Description: "Show alliance overview"},
			{Name: "members", Description: "List alliance members", Options: []gateway.OptionDescriptor{
				{Name: "page", Description: "Page number (10 members per page)", Type: "integer"},
			}},
			{Name: "inactive", Description: "Show inactive members", Options: []gateway.OptionDescriptor{
				{Name: "days", Description: "Days of inactivity threshold", Type: "integer"},
			}},
		},
	}
}

func (c *allianceCommand) Execute(ctx context.Context, inter *gateway.Interaction, record *tenant.Record) error {
	switch inter.Subcommand {
	case "info":
		return c.info(ctx, inter, record)
	case "members":
		return c.list(ctx, inter, record)
	case "inactive":
		return c.inactive(ctx, inter, record)
	default:
		return inter.Respond(gateway.Reply{Content: "Unknown subcommand!", Ephemeral: true})
	}
}

func (c *allianceCommand) info(ctx context.Context, inter *gateway.Interaction, record *tenant.Record) error {
	members, err := c.members.ListMembers(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	totalCities := 0
	totalScore := 0.0
	for _, m := range members {
		totalCities += m.Cities
		totalScore += m.Score
	}
	avgScore := 0.0
	if len(members) > 0 {
		avgScore = totalScore / float64(len(members))
	}

	return inter.Respond(gateway.Reply{Embeds: []gateway.Embed{{
		Title: record.AllianceName + " - Alliance Information",
		Color: colorInfo,
		Fields: []gateway.Field{
			{Name: "Alliance ID", Value: fmt.Sprintf("%d", record.AllianceID), Inline: true},
			{Name: "Members", Value: fmt.Sprintf("%d", len(members)), Inline: true},
			{Name: "Total Cities", Value: fmt.Sprintf("%d", totalCities), Inline: true},
			{Name: "Total Score", Value: formatScore(totalScore), Inline: true},
			{Name: "Average Score", Value: formatScore(avgScore), Inline: true},
			{Name: "Status", Value: string(record.Status), Inline: true},
		},
		Footer:    footerText,
		Timestamp: time.Now().UTC(),
	}}})
}

func (c *allianceCommand) list(ctx context.Context, inter *gateway.Interaction, record *tenant.Record) error {
	page, ok := inter.IntOption("page")
	if !ok || page < 1 {
		page = 1
	}

	all, err := c.members.ListMembers(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	offset := (page - 1) * PageSize
	end := offset + PageSize
	if end > len(all) {
		end = len(all)
	}
	if offset >= len(all) {
		return inter.Respond(gateway.Reply{Content: "No members found for this page."})
	}
	pageMembers := all[offset:end]

	var lines []string
	for i, m := range pageMembers {
		lines = append(lines, fmt.Sprintf("**%d.** %s (%s)\n> Cities: %s | Score: %s",
			offset+i+1, m.NationName, m.LeaderName, countOrNA(m.Cities), scoreOrNA(m.Score)))
	}
	totalPages := (len(all) + PageSize - 1) / PageSize

	return inter.Respond(gateway.Reply{Embeds: []gateway.Embed{{
		Title:       fmt.Sprintf("%s - Members (Page %d)", record.AllianceName, page),
		Color:       colorInfo,
		Description: strings.Join(lines, "\n\n"),
		Footer:      fmt.Sprintf("Page %d of %d | Total: %d members", page, totalPages, len(all)),
		Timestamp:   time.Now().UTC(),
	}}})
}

func (c *allianceCommand) inactive(ctx context.Context, inter *gateway.Interaction, record *tenant.Record) error {
	days, ok := inter.IntOption("days")
	if !ok || days < 1 {
		days = defaultInactiveDays
	}

	now := time.Now().UTC()
	threshold := now.Add(-time.Duration(days) * 24 * time.Hour)
	inactive, err := c.members.ListInactiveMembers(ctx, record.ID, threshold)
	if err != nil {
		return fmt.Errorf("list inactive members: %w", err)
	}
	if len(inactive) == 0 {
		return inter.Respond(gateway.Reply{
			Content: fmt.Sprintf("No members have been inactive for more than %d days.", days),
		})
	}

	shown := inactive
	if len(shown) > maxInactiveShown {
		shown = shown[:maxInactiveShown]
	}
	var lines []string
	for _, m := range shown {
		since := "Unknown"
		if m.LastActive != nil {
			since = fmt.Sprintf("%d days ago", daysSince(*m.LastActive, now))
		}
		lines = append(lines, fmt.Sprintf("**%s** (%s)\n> Last active: %s", m.NationName, m.LeaderName, since))
	}

	return inter.Respond(gateway.Reply{Embeds: []gateway.Embed{{
		Title: record.AllianceName + " - Inactive Members",
		Color: colorAlert,
		Description: fmt.Sprintf("Members inactive for more than %d days:\n\n%s",
			days, strings.Join(lines, "\n\n")),
		Footer:    fmt.Sprintf("Showing %d of %d inactive members", len(shown), len(inactive)),
		Timestamp: now,
	}}})
}
