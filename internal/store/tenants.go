// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/orbistech/allianced/internal/tenant"
)

// CreateTenantParams carries the provisioning inputs for a new tenant.
// Credentials are configured separately via UpdateTenantCredentials once
// the administrator has completed setup.
type CreateTenantParams struct {
	AllianceID   int
	AllianceName string
	Subdomain    string
	AdminUserID  string
	GuildID      string
}

// CreateTenant provisions a new ACTIVE tenant and its subdomain index
// entry. The tenant id is generated. Fails with ErrSubdomainTaken if the
// subdomain is already indexed.
func (s *Store) CreateTenant(ctx context.Context, params CreateTenantParams) (*tenant.Record, error) {
	record := &tenant.Record{
		ID:           uuid.NewString(),
		AllianceID:   params.AllianceID,
		AllianceName: params.AllianceName,
		Subdomain:    params.Subdomain,
		Status:       tenant.StatusActive,
		AdminUserID:  params.AdminUserID,
		GuildID:      params.GuildID,
		CreatedAt:    time.Now().UTC(),
		AuthorizedAt: time.Now().UTC(),
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal tenant: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		subKey := []byte(subdomainKeyPrefix + record.Subdomain)
		if _, err := txn.Get(subKey); err == nil {
			return ErrSubdomainTaken
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check subdomain index: %w", err)
		}

		if err := txn.Set([]byte(tenantKeyPrefix+record.ID), data); err != nil {
			return fmt.Errorf("set tenant: %w", err)
		}
		if err := txn.Set(subKey, []byte(record.ID)); err != nil {
			return fmt.Errorf("set subdomain index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetTenant loads a tenant by id. Fails with ErrTenantNotFound.
func (s *Store) GetTenant(ctx context.Context, id string) (*tenant.Record, error) {
	var record tenant.Record

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tenantKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrTenantNotFound
		}
		if err != nil {
			return fmt.Errorf("get tenant: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetTenantBySubdomain loads a tenant through the subdomain index.
func (s *Store) GetTenantBySubdomain(ctx context.Context, subdomain string) (*tenant.Record, error) {
	var id string

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(subdomainKeyPrefix + subdomain))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrTenantNotFound
		}
		if err != nil {
			return fmt.Errorf("get subdomain index: %w", err)
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetTenant(ctx, id)
}

// ListActiveTenants returns all tenants with status ACTIVE, in key order.
func (s *Store) ListActiveTenants(ctx context.Context) ([]tenant.Record, error) {
	var records []tenant.Record

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(tenantKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record tenant.Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return fmt.Errorf("decode tenant: %w", err)
			}
			if record.Status == tenant.StatusActive {
				records = append(records, record)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateTenantStatus sets a tenant's status. Deactivation is a status
// change; tenant records are never deleted.
func (s *Store) UpdateTenantStatus(ctx context.Context, id string, status tenant.Status) error {
	return s.updateTenant(id, func(r *tenant.Record) {
		r.Status = status
	})
}

// UpdateTenantCredentials replaces the tenant's encrypted credential
// fields. Pass an empty string to leave a field unchanged. Blobs must be
// produced by the vault; this method never sees plaintext secrets.
func (s *Store) UpdateTenantCredentials(ctx context.Context, id, apiKeyEncrypted, botTokenEncrypted string) error {
	return s.updateTenant(id, func(r *tenant.Record) {
		if apiKeyEncrypted != "" {
			r.APIKeyEncrypted = apiKeyEncrypted
		}
		if botTokenEncrypted != "" {
			r.BotTokenEncrypted = botTokenEncrypted
		}
	})
}

// UpdateTenantGuild records the chat-platform guild id the bot is scoped
// to. Written when the bot first joins a guild and none is configured.
func (s *Store) UpdateTenantGuild(ctx context.Context, id, guildID string) error {
	return s.updateTenant(id, func(r *tenant.Record) {
		r.GuildID = guildID
	})
}

// updateTenant applies a mutation to a stored tenant record inside one
// transaction.
func (s *Store) updateTenant(id string, mutate func(*tenant.Record)) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(tenantKeyPrefix + id)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrTenantNotFound
		}
		if err != nil {
			return fmt.Errorf("get tenant: %w", err)
		}

		var record tenant.Record
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		}); err != nil {
			return fmt.Errorf("decode tenant: %w", err)
		}

		mutate(&record)

		data, err := json.Marshal(&record)
		if err != nil {
			return fmt.Errorf("marshal tenant: %w", err)
		}
		return txn.Set(key, data)
	})
}
