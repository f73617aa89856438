// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/orbistech/allianced/internal/tenant"
)

// memberKey builds the composite key for one member snapshot. Nation ids
// are zero-padded so keys iterate in numeric order.
func memberKey(tenantID string, nationID int) []byte {
	return []byte(fmt.Sprintf("%s%s:%010d", memberKeyPrefix, tenantID, nationID))
}

// UpsertMember writes a member snapshot keyed by (tenant id, nation id).
// Last write wins; the caller stamps DataUpdatedAt with the sync tick
// time.
func (s *Store) UpsertMember(ctx context.Context, tenantID string, member tenant.Member) error {
	if member.NationID <= 0 {
		return fmt.Errorf("invalid nation id %d", member.NationID)
	}

	data, err := json.Marshal(&member)
	if err != nil {
		return fmt.Errorf("marshal member: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(memberKey(tenantID, member.NationID), data)
	})
}

// ListMembers returns all member snapshots for a tenant, ordered by
// descending score with ascending nation id as tie-break.
func (s *Store) ListMembers(ctx context.Context, tenantID string) ([]tenant.Member, error) {
	members, err := s.scanMembers(tenantID, nil)
	if err != nil {
		return nil, err
	}
	tenant.SortByScore(members)
	return members, nil
}

// GetMember returns one member snapshot, or nil if the nation is not a
// tracked member of the tenant's alliance.
func (s *Store) GetMember(ctx context.Context, tenantID string, nationID int) (*tenant.Member, error) {
	var member *tenant.Member

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(memberKey(tenantID, nationID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return fmt.Errorf("get member: %w", err)
		}
		member = &tenant.Member{}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, member)
		})
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// ListInactiveMembers returns members whose last recorded game activity
// is older than the threshold, ordered oldest first. Members with no
// recorded activity at all are excluded; the command layer reports those
// as "Unknown" separately.
func (s *Store) ListInactiveMembers(ctx context.Context, tenantID string, threshold time.Time) ([]tenant.Member, error) {
	members, err := s.scanMembers(tenantID, func(m *tenant.Member) bool {
		return m.LastActive != nil && m.LastActive.Before(threshold)
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].LastActive.Before(*members[j].LastActive)
	})
	return members, nil
}

// DeleteMembersNotIn removes snapshots for nations no longer present in
// the alliance. Called after a full sync with the surviving nation ids.
func (s *Store) DeleteMembersNotIn(ctx context.Context, tenantID string, nationIDs map[int]struct{}) (int, error) {
	current, err := s.scanMembers(tenantID, nil)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, m := range current {
		if _, ok := nationIDs[m.NationID]; ok {
			continue
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(memberKey(tenantID, m.NationID))
		})
		if err != nil {
			return deleted, fmt.Errorf("delete member %d: %w", m.NationID, err)
		}
		deleted++
	}
	return deleted, nil
}

// scanMembers iterates the tenant's member prefix, keeping entries the
// filter accepts (nil filter keeps everything).
func (s *Store) scanMembers(tenantID string, keep func(*tenant.Member) bool) ([]tenant.Member, error) {
	var members []tenant.Member

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(memberKeyPrefix + tenantID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var member tenant.Member
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &member)
			})
			if err != nil {
				return fmt.Errorf("decode member: %w", err)
			}
			if keep == nil || keep(&member) {
				members = append(members, member)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}
