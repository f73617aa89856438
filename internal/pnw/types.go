// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package pnw

import (
	"strconv"
	"time"
)

// Alliance is the alliance projection the sync scheduler and the
// alliance commands consume.
type Alliance struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Acronym string           `json:"acronym"`
	Founded string           `json:"founded"`
	Members []AllianceMember `json:"members"`
}

// AllianceMember is one nation inside an alliance query result.
type AllianceMember struct {
	ID                 string  `json:"id"`
	NationName         string  `json:"nation_name"`
	LeaderName         string  `json:"leader_name"`
	Cities             int     `json:"num_cities"`
	Score              float64 `json:"score"`
	LastActive         string  `json:"last_active"`
	Discord            string  `json:"discord"`
	DiscordID          string  `json:"discord_id"`
	AlliancePosition   string  `json:"alliance_position"`
	AlliancePositionID int     `json:"alliance_position_id"`
}

// AllianceRef is the nested alliance reference on nation results.
type AllianceRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Nation is the full nation projection used by the nation commands.
type Nation struct {
	ID                string       `json:"id"`
	NationName        string       `json:"nation_name"`
	LeaderName        string       `json:"leader_name"`
	Alliance          *AllianceRef `json:"alliance"`
	Cities            int          `json:"num_cities"`
	Score             float64      `json:"score"`
	Color             string       `json:"color"`
	Continent         string       `json:"continent"`
	LastActive        string       `json:"last_active"`
	Founded           string       `json:"date"`
	Soldiers          int          `json:"soldiers"`
	Tanks             int          `json:"tanks"`
	Aircraft          int          `json:"aircraft"`
	Ships             int          `json:"ships"`
	Discord           string       `json:"discord"`
	DiscordID         string       `json:"discord_id"`
	VacationModeTurns int          `json:"vacation_mode_turns"`
	BeigeTurns        int          `json:"beige_turns"`
}

// NationSummary is the reduced projection returned by nation search.
type NationSummary struct {
	ID         string       `json:"id"`
	NationName string       `json:"nation_name"`
	LeaderName string       `json:"leader_name"`
	Alliance   *AllianceRef `json:"alliance"`
	Score      float64      `json:"score"`
}

// WarNation carries the participant projection on war results.
type WarNation struct {
	NationName string       `json:"nation_name"`
	LeaderName string       `json:"leader_name"`
	Alliance   *AllianceRef `json:"alliance"`
}

// War is one war record.
type War struct {
	ID         string     `json:"id"`
	AttackerID string     `json:"att_id"`
	DefenderID string     `json:"def_id"`
	Attacker   *WarNation `json:"attacker"`
	Defender   *WarNation `json:"defender"`
	WarType    string     `json:"war_type"`
	Date       string     `json:"date"`
	TurnsLeft  int        `json:"turns_left"`
	WinnerID   string     `json:"winner_id"`
	AttPoints  int        `json:"att_points"`
	DefPoints  int        `json:"def_points"`
	AttPeace   bool       `json:"att_peace"`
	DefPeace   bool       `json:"def_peace"`
}

// WarFilter narrows a war query. Zero values are omitted from the
// query; Active defaults to unfiltered.
type WarFilter struct {
	IDs        []int
	AllianceID int
	NationID   int // matches either side
	AttackerID int
	DefenderID int
	Active     *bool
	Limit      int
}

// KeyInfo identifies the nation a verified API key belongs to.
type KeyInfo struct {
	NationID   string       `json:"nation_id"`
	NationName string       `json:"nation_name"`
	AllianceID string       `json:"alliance_id"`
	Alliance   *AllianceRef `json:"alliance"`
}

// NationIDInt parses the string nation id the API returns. Returns 0
// for malformed ids.
func NationIDInt(id string) int {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0
	}
	return n
}

// timeLayouts covers the timestamp formats the API emits across
// fields. Tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses an API timestamp. Returns nil for empty or
// unparseable values so callers can store "activity unknown".
func ParseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
