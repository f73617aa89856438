// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package tenant

import (
	"errors"
	"testing"
	"time"
)

func validRecord() *Record {
	return &Record{
		ID:                "tn-1",
		AllianceID:        1234,
		AllianceName:      "Test Alliance",
		Subdomain:         "test-alliance",
		Status:            StatusActive,
		AdminUserID:       "admin-user",
		APIKeyEncrypted:   "blob-a",
		BotTokenEncrypted: "blob-b",
		CreatedAt:         time.Now(),
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Record)
		wantErr bool
	}{
		{"valid", func(r *Record) {}, false},
		{"missing id", func(r *Record) { r.ID = "" }, true},
		{"zero alliance id", func(r *Record) { r.AllianceID = 0 }, true},
		{"uppercase subdomain", func(r *Record) { r.Subdomain = "Test" }, true},
		{"dotted subdomain", func(r *Record) { r.Subdomain = "a.b" }, true},
		{"bad status", func(r *Record) { r.Status = "DELETED" }, true},
		{"missing admin", func(r *Record) { r.AdminUserID = "" }, true},
		{"no credentials is valid", func(r *Record) {
			r.APIKeyEncrypted = ""
			r.BotTokenEncrypted = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(r)
			err := r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecord_CanStartSession(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Record)
		wantErr error
	}{
		{"active with credentials", func(r *Record) {}, nil},
		{"pending", func(r *Record) { r.Status = StatusPending }, ErrNotActive},
		{"suspended", func(r *Record) { r.Status = StatusSuspended }, ErrNotActive},
		{"no api key", func(r *Record) { r.APIKeyEncrypted = "" }, ErrMissingCredentials},
		{"no bot token", func(r *Record) { r.BotTokenEncrypted = "" }, ErrMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(r)
			err := r.CanStartSession()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CanStartSession() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecord_SyncInterval(t *testing.T) {
	tests := []struct {
		name    string
		minutes int
		want    time.Duration
	}{
		{"default", 0, 30 * time.Minute},
		{"explicit", 5, 5 * time.Minute},
		{"negative falls back", -1, 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			r.SyncIntervalMinutes = tt.minutes
			if got := r.SyncInterval(); got != tt.want {
				t.Errorf("SyncInterval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecord_IsAdmin(t *testing.T) {
	r := validRecord()
	if !r.IsAdmin("admin-user") {
		t.Error("IsAdmin(admin-user) = false, want true")
	}
	if r.IsAdmin("someone-else") {
		t.Error("IsAdmin(someone-else) = true, want false")
	}
	if r.IsAdmin("") {
		t.Error("IsAdmin(\"\") = true, want false")
	}
}

func TestSortByScore(t *testing.T) {
	members := []Member{
		{NationID: 3, Score: 1000},
		{NationID: 1, Score: 2500},
		{NationID: 5, Score: 1000},
		{NationID: 2, Score: 4000},
	}

	SortByScore(members)

	wantOrder := []int{2, 1, 3, 5}
	for i, want := range wantOrder {
		if members[i].NationID != want {
			t.Errorf("position %d: nation id = %d, want %d", i, members[i].NationID, want)
		}
	}
}
