// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

// Package store implements the persistence layer on BadgerDB.
//
// The bot core depends on a small contract: load a tenant by id or
// subdomain, list active tenants, read/write encrypted credential
// fields, and upsert/query member snapshots. Tenant isolation is
// structural: every member key embeds the tenant id, and every query
// takes the tenant id explicitly. No ambient tenant context exists.
//
// Key layout:
//
//	tenant:<id>                      -> tenant.Record (JSON)
//	tenant_subdomain:<subdomain>     -> tenant id
//	member:<tenant id>:<nation id>   -> tenant.Member (JSON)
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/orbistech/allianced/internal/logging"
)

// Key prefixes for BadgerDB storage.
const (
	tenantKeyPrefix    = "tenant:"
	subdomainKeyPrefix = "tenant_subdomain:"
	memberKeyPrefix    = "member:"
)

var (
	// ErrTenantNotFound is returned when no tenant exists for the given
	// id or subdomain.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrSubdomainTaken is returned by CreateTenant when the subdomain
	// index already points at another tenant.
	ErrSubdomainTaken = errors.New("subdomain already in use")
)

// Store is a BadgerDB-backed implementation of the persistence
// collaborator. Safe for concurrent use; Badger provides transactional
// isolation.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the Badger database at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = badgerLogger{}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an in-memory store. Used by tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = badgerLogger{}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger routes Badger's internal logging through zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Debug().Str("component", "badger").Msgf(format, args...)
}
