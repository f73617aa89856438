// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/orbistech/allianced/internal/gateway"
	"github.com/orbistech/allianced/internal/pnw"
	"github.com/orbistech/allianced/internal/tenant"
)

const (
	defaultWarLimit = 10
	maxWarLimit     = 20
)

// warTypeLabels maps API war types to display labels.
var warTypeLabels = map[string]string{
	"ORDINARY":  "Ordinary War",
	"ATTRITION": "Attrition War",
	"RAID":      "Raid",
	"NUCLEAR":   "Nuclear War",
}

func warTypeLabel(warType string) string {
	if label, ok := warTypeLabels[warType]; ok {
		return label
	}
	return warType
}

type warCommand struct {
	api GameAPI
}

func (c *warCommand) Descriptor() gateway.CommandDescriptor {
	return gateway.CommandDescriptor{
		Name:        "war",
		Description: "War and conflict tracking commands",
		Subcommands: []gateway.SubcommandDescriptor{
			{Name: "active", Description: "Show active wars involving alliance members", Options: []gateway.OptionDescriptor{
				{Name: "limit", Description: "Number of wars to show (1-20)", Type: "integer"},
			}},
			{Name: "info", Description: "Get detailed information about a specific war", Options: []gateway.OptionDescriptor{
				{Name: "war_id", Description: "War ID", Type: "integer", Required: true},
			}},
			{Name: "member", Description: "Show wars for a specific alliance member", Options: []gateway.OptionDescriptor{
				{Name: "nation_id", Description: "Nation ID", Type: "integer", Required: true},
			}},
		},
	}
}

func (c *warCommand) Execute(ctx context.Context, inter *gateway.Interaction, record *tenant.Record) error {
	switch inter.Subcommand {
	case "active":
		return c.active(ctx, inter, record)
	case "info":
		return c.info(ctx, inter)
	case "member":
		return c.member(ctx, inter)
	default:
		return inter.Respond(gateway.Reply{Content: "Unknown subcommand!", Ephemeral: true})
	}
}

func (c *warCommand) active(ctx context.Context, inter *gateway.Interaction, record *tenant.Record) error {
	limit, ok := inter.IntOption("limit")
	if !ok || limit < 1 {
		limit = defaultWarLimit
	}
	if limit > maxWarLimit {
		limit = maxWarLimit
	}

	activeOnly := true
	wars, err := c.api.GetWars(ctx, pnw.WarFilter{
		AllianceID: record.AllianceID,
		Active:     &activeOnly,
		Limit:      limit,
	})
	if err != nil {
		return fmt.Errorf("get wars: %w", err)
	}
	if len(wars) == 0 {
		return inter.Respond(gateway.Reply{
			Content: fmt.Sprintf("No active wars found for %s members.", record.AllianceName),
		})
	}

	now := time.Now().UTC()
	var lines []string
	for _, w := range wars {
		lines = append(lines, strings.Join([]string{
			fmt.Sprintf("**War ID:** %s | %s", w.ID, warTypeLabel(w.WarType)),
			"**Attacker:** " + participantName(w.Attacker),
			"**Defender:** " + participantName(w.Defender),
			fmt.Sprintf("**Started:** %s | **Turns Left:** %s", startedAgo(w.Date, now), turnsLeft(w.TurnsLeft)),
		}, "\n"))
	}

	return inter.Respond(gateway.Reply{Embeds: []gateway.Embed{{
		Title:       record.AllianceName + " - Active Wars",
		Color:       colorAlert,
		Description: strings.Join(lines, "\n\n"),
		Footer:      fmt.Sprintf("Showing %d active wars", len(wars)),
		Timestamp:   now,
	}}})
}

func (c *warCommand) info(ctx context.Context, inter *gateway.Interaction) error {
	warID, ok := inter.IntOption("war_id")
	if !ok {
		return inter.Respond(gateway.Reply{Content: "A war ID is required.", Ephemeral: true})
	}

	wars, err := c.api.GetWars(ctx, pnw.WarFilter{IDs: []int{warID}, Limit: 1})
	if err != nil {
		return fmt.Errorf("get wars: %w", err)
	}
	if len(wars) == 0 {
		return inter.Respond(gateway.Reply{Content: "War not found."})
	}
	war := wars[0]

	finished := war.WinnerID != "" && war.WinnerID != "0"
	status := "Ongoing"
	color := colorAlert
	if finished {
		color = colorWon
		switch war.WinnerID {
		case war.AttackerID:
			status = "Won by attacker"
		case war.DefenderID:
			status = "Won by defender"
		default:
			status = "Finished"
		}
	}

	fields := []gateway.Field{
		{Name: "Attacker", Value: participantDetail(war.Attacker), Inline: true},
		{Name: "Defender", Value: participantDetail(war.Defender), Inline: true},
		{Name: "War Details", Value: strings.Join([]string{
			"**Type:** " + warTypeLabel(war.WarType),
			"**Started:** " + startedAgo(war.Date, time.Now().UTC()),
			"**Status:** " + status,
		}, "\n")},
		{Name: "War Points", Value: fmt.Sprintf("**Attacker:** %d\n**Defender:** %d", war.AttPoints, war.DefPoints), Inline: true},
	}
	if !finished {
		fields = append(fields, gateway.Field{Name: "Turns Left", Value: turnsLeft(war.TurnsLeft), Inline: true})
	}

	var peace []string
	if war.AttPeace {
		peace = append(peace, "Attacker offered peace")
	}
	if war.DefPeace {
		peace = append(peace, "Defender offered peace")
	}
	if len(peace) > 0 {
		fields = append(fields, gateway.Field{Name: "Peace Status", Value: strings.Join(peace, "\n")})
	}

	return inter.Respond(gateway.Reply{Embeds: []gateway.Embed{{
		Title:     "War Information - ID: " + war.ID,
		Color:     color,
		Fields:    fields,
		Footer:    footerText,
		Timestamp: time.Now().UTC(),
	}}})
}

func (c *warCommand) member(ctx context.Context, inter *gateway.Interaction) error {
	nationID, ok := inter.IntOption("nation_id")
	if !ok {
		return inter.Respond(gateway.Reply{Content: "A nation ID is required.", Ephemeral: true})
	}

	asAttacker, err := c.api.GetWars(ctx, pnw.WarFilter{AttackerID: nationID, Limit: defaultWarLimit})
	if err != nil {
		return fmt.Errorf("get attacker wars: %w", err)
	}
	asDefender, err := c.api.GetWars(ctx, pnw.WarFilter{DefenderID: nationID, Limit: defaultWarLimit})
	if err != nil {
		return fmt.Errorf("get defender wars: %w", err)
	}

	type memberWar struct {
		war  pnw.War
		role string
	}
	merged := make([]memberWar, 0, len(asAttacker)+len(asDefender))
	for _, w := range asAttacker {
		merged = append(merged, memberWar{war: w, role: "Attacker"})
	}
	for _, w := range asDefender {
		merged = append(merged, memberWar{war: w, role: "Defender"})
	}
	if len(merged) == 0 {
		return inter.Respond(gateway.Reply{
			Content: fmt.Sprintf("No wars found for nation ID %d.", nationID),
		})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return warDate(merged[i].war).After(warDate(merged[j].war))
	})
	if len(merged) > defaultWarLimit {
		merged = merged[:defaultWarLimit]
	}

	now := time.Now().UTC()
	nationIDStr := strconv.Itoa(nationID)
	var lines []string
	for _, mw := range merged {
		opponent := participantName(mw.war.Defender)
		if mw.role == "Defender" {
			opponent = participantName(mw.war.Attacker)
		}
		status := "Active"
		if mw.war.WinnerID != "" && mw.war.WinnerID != "0" {
			if mw.war.WinnerID == nationIDStr {
				status = "Won"
			} else {
				status = "Lost"
			}
		}
		lines = append(lines, strings.Join([]string{
			fmt.Sprintf("**War ID:** %s | %s", mw.war.ID, warTypeLabel(mw.war.WarType)),
			fmt.Sprintf("**Role:** %s vs **%s**", mw.role, opponent),
			fmt.Sprintf("**Status:** %s | **Started:** %s", status, startedAgo(mw.war.Date, now)),
		}, "\n"))
	}

	return inter.Respond(gateway.Reply{Embeds: []gateway.Embed{{
		Title:       fmt.Sprintf("Wars for Nation ID: %d", nationID),
		Color:       colorAlert,
		Description: strings.Join(lines, "\n\n"),
		Footer:      fmt.Sprintf("Showing %d wars", len(merged)),
		Timestamp:   now,
	}}})
}

func participantName(p *pnw.WarNation) string {
	if p == nil || p.NationName == "" {
		return "Unknown"
	}
	return p.NationName
}

func participantAlliance(p *pnw.WarNation) string {
	if p == nil || p.Alliance == nil || p.Alliance.Name == "" {
		return "None"
	}
	return p.Alliance.Name
}

func participantLeader(p *pnw.WarNation) string {
	if p == nil || p.LeaderName == "" {
		return "Unknown"
	}
	return p.LeaderName
}

func participantDetail(p *pnw.WarNation) string {
	return fmt.Sprintf("**%s** (%s)\nAlliance: %s",
		participantName(p), participantLeader(p), participantAlliance(p))
}

func startedAgo(date string, now time.Time) string {
	if t := pnw.ParseTime(date); t != nil {
		return relativeDays(*t, now)
	}
	return "Unknown"
}

func turnsLeft(turns int) string {
	if turns <= 0 {
		return "N/A"
	}
	return strconv.Itoa(turns)
}

func warDate(w pnw.War) time.Time {
	if t := pnw.ParseTime(w.Date); t != nil {
		return *t
	}
	return time.Time{}
}
