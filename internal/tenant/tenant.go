// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

// Package tenant defines the tenant (alliance) domain model shared by the
// store, the supervisor, and the command handlers.
//
// A Record is a read-only snapshot of one tenant's configuration as
// loaded from the store. The bot core never mutates a Record in place;
// credential changes go through the store and take effect on the next
// session start.
package tenant

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
)

// Status is the provisioning state of a tenant.
type Status string

// Tenant statuses. Only ACTIVE tenants may run a bot session.
const (
	StatusActive    Status = "ACTIVE"
	StatusPending   Status = "PENDING"
	StatusSuspended Status = "SUSPENDED"
)

// DefaultSyncIntervalMinutes is applied when a tenant has no explicit
// sync interval configured.
const DefaultSyncIntervalMinutes = 30

var (
	// ErrNotActive is returned when a session start is attempted for a
	// tenant whose status is not ACTIVE.
	ErrNotActive = errors.New("tenant is not active")

	// ErrMissingCredentials is returned when a session start is attempted
	// for a tenant lacking an encrypted API key or bot token. The check
	// precedes all decryption and connection I/O.
	ErrMissingCredentials = errors.New("tenant is missing encrypted credentials")
)

// validate is the package-level validator instance. validator.New is
// expensive; the instance is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Record is a point-in-time snapshot of one tenant's configuration.
// The encrypted fields are opaque vault blobs (see internal/vault);
// plaintext secrets never appear on this struct.
type Record struct {
	ID           string `json:"id" validate:"required"`
	AllianceID   int    `json:"alliance_id" validate:"required,gt=0"`
	AllianceName string `json:"alliance_name" validate:"required"`

	// Subdomain is the tenant's unique portal subdomain: lowercase
	// alphanumerics and hyphens, no dots.
	Subdomain string `json:"subdomain" validate:"required,lowercase,hostname_rfc1123,excludes=."`

	Status Status `json:"status" validate:"required,oneof=ACTIVE PENDING SUSPENDED"`

	// AdminUserID is the chat-platform user id of the tenant's configured
	// administrator.
	AdminUserID string `json:"admin_user_id" validate:"required"`

	// APIKeyEncrypted and BotTokenEncrypted are vault blobs; empty means
	// the credential has not been configured yet.
	APIKeyEncrypted   string `json:"api_key_encrypted,omitempty"`
	BotTokenEncrypted string `json:"bot_token_encrypted,omitempty"`

	// GuildID scopes the bot to one chat-platform guild when set.
	// Empty means commands are registered globally.
	GuildID string `json:"guild_id,omitempty"`

	SyncIntervalMinutes int `json:"sync_interval_minutes,omitempty" validate:"omitempty,gte=1"`

	CreatedAt    time.Time `json:"created_at"`
	AuthorizedAt time.Time `json:"authorized_at,omitempty"`
}

// Validate checks structural invariants of the record.
func (r *Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid tenant record: %w", err)
	}
	return nil
}

// HasCredentials reports whether both encrypted secrets are present.
func (r *Record) HasCredentials() bool {
	return r.APIKeyEncrypted != "" && r.BotTokenEncrypted != ""
}

// CanStartSession checks the session start precondition: status ACTIVE
// and both encrypted credentials present. Returns a sentinel error
// naming the failed condition.
func (r *Record) CanStartSession() error {
	if r.Status != StatusActive {
		return fmt.Errorf("%w: status %s", ErrNotActive, r.Status)
	}
	if !r.HasCredentials() {
		return ErrMissingCredentials
	}
	return nil
}

// SyncInterval returns the configured sync interval as a duration,
// falling back to the default of 30 minutes.
func (r *Record) SyncInterval() time.Duration {
	minutes := r.SyncIntervalMinutes
	if minutes <= 0 {
		minutes = DefaultSyncIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// IsAdmin reports whether the given chat-platform user id is the
// tenant's configured administrator.
func (r *Record) IsAdmin(userID string) bool {
	return userID != "" && userID == r.AdminUserID
}

// Member is a point-in-time mirror of one external game nation belonging
// to the tenant's alliance, keyed by (tenant id, nation id) in the store.
type Member struct {
	NationID   int    `json:"nation_id"`
	NationName string `json:"nation_name"`
	LeaderName string `json:"leader_name"`

	// DiscordID links the nation to a chat-platform user when the player
	// has configured one in the game. Optional.
	DiscordID string `json:"discord_id,omitempty"`

	Position   string  `json:"position,omitempty"`
	PositionID int     `json:"position_id,omitempty"`
	Cities     int     `json:"cities,omitempty"`
	Score      float64 `json:"score,omitempty"`

	LastActive     *time.Time `json:"last_active,omitempty"`
	JoinedAlliance *time.Time `json:"joined_alliance,omitempty"`

	// DataUpdatedAt is the time of the sync tick that last wrote this
	// snapshot. Last write wins on re-sync.
	DataUpdatedAt time.Time `json:"data_updated_at"`
}

// SortByScore orders members by descending score. Ties are broken by
// ascending nation id so rankings are deterministic regardless of the
// order the upstream API returned them in.
func SortByScore(members []Member) {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].NationID < members[j].NationID
	})
}
