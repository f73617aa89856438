// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package pnw

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
)

// fakeAPI records the last GraphQL document and serves a canned
// response per top-level query field.
type fakeAPI struct {
	lastDoc   string
	responses map[string]string
	status    int
}

func (f *fakeAPI) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Query string `json:"query"`
		}
		_ = json.Unmarshal(body, &req)
		f.lastDoc = req.Query

		if f.status != 0 {
			w.WriteHeader(f.status)
			return
		}
		for field, resp := range f.responses {
			if strings.Contains(req.Query, field) {
				_, _ = w.Write([]byte(resp))
				return
			}
		}
		_, _ = w.Write([]byte(`{"data":{}}`))
	}
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)
	return NewClient(Config{
		Endpoint:          server.URL,
		APIKey:            "test-key",
		RequestsPerMinute: 60000,
	})
}

func TestClient_ValidateKey(t *testing.T) {
	api := &fakeAPI{responses: map[string]string{
		"me": `{"data":{"me":{"nation_id":"1001","nation_name":"Testland","alliance_id":"42","alliance":{"id":"42","name":"Test Alliance"}}}}`,
	}}
	c := newTestClient(t, api)

	info, err := c.ValidateKey(context.Background())
	if err != nil {
		t.Fatalf("ValidateKey() error = %v", err)
	}
	if info.NationID != "1001" || info.Alliance == nil || info.Alliance.Name != "Test Alliance" {
		t.Errorf("ValidateKey() = %+v", info)
	}
}

func TestClient_ValidateKeyRejected(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeAPI
	}{
		{"null identity", &fakeAPI{responses: map[string]string{"me": `{"data":{"me":null}}`}}},
		{"unauthorized", &fakeAPI{status: http.StatusUnauthorized}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.api)
			_, err := c.ValidateKey(context.Background())
			if !errors.Is(err, ErrInvalidKey) {
				t.Errorf("ValidateKey() error = %v, want ErrInvalidKey", err)
			}
		})
	}
}

func TestClient_NoKey(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})
	c.SetKey("")

	if _, err := c.GetAlliance(context.Background(), 42); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("GetAlliance() error = %v, want ErrNoAPIKey", err)
	}
}

func TestClient_GetAlliance(t *testing.T) {
	api := &fakeAPI{responses: map[string]string{
		"alliances": `{"data":{"alliances":{"data":[{
			"id":"42","name":"Test Alliance","acronym":"TA","founded":"2020-01-15",
			"members":[
				{"id":"1001","nation_name":"Testland","leader_name":"Tester","num_cities":12,"score":2345.67,"last_active":"2026-08-27 10:00:00","alliance_position":"MEMBER","alliance_position_id":2},
				{"id":"1002","nation_name":"Otherland","leader_name":"Other","num_cities":8,"score":1500,"last_active":"","alliance_position":"OFFICER","alliance_position_id":4}
			]}]}}}`,
	}}
	c := newTestClient(t, api)

	alliance, err := c.GetAlliance(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetAlliance() error = %v", err)
	}
	if alliance.Name != "Test Alliance" || len(alliance.Members) != 2 {
		t.Fatalf("GetAlliance() = %+v", alliance)
	}
	if alliance.Members[0].Cities != 12 || alliance.Members[0].Score != 2345.67 {
		t.Errorf("member[0] = %+v", alliance.Members[0])
	}
	if !strings.Contains(api.lastDoc, "id: [42]") {
		t.Errorf("query doc = %q, want alliance id filter", api.lastDoc)
	}
}

func TestClient_GetAllianceNotFound(t *testing.T) {
	api := &fakeAPI{responses: map[string]string{
		"alliances": `{"data":{"alliances":{"data":[]}}}`,
	}}
	c := newTestClient(t, api)

	if _, err := c.GetAlliance(context.Background(), 99); !errors.Is(err, ErrAllianceNotFound) {
		t.Errorf("GetAlliance() error = %v, want ErrAllianceNotFound", err)
	}
}

func TestClient_GetNationNotFound(t *testing.T) {
	api := &fakeAPI{responses: map[string]string{
		"nations": `{"data":{"nations":{"data":[]}}}`,
	}}
	c := newTestClient(t, api)

	if _, err := c.GetNation(context.Background(), 12345); !errors.Is(err, ErrNationNotFound) {
		t.Errorf("GetNation() error = %v, want ErrNationNotFound", err)
	}
}

func TestClient_SearchNationsMergesAndDedups(t *testing.T) {
	// Same canned response for both lookups, so every id collides and
	// the merged set must contain each nation once.
	api := &fakeAPI{responses: map[string]string{
		"nations": `{"data":{"nations":{"data":[
			{"id":"1","nation_name":"Alpha","leader_name":"A","score":100},
			{"id":"2","nation_name":"Beta","leader_name":"B","score":200}
		]}}}`,
	}}
	c := newTestClient(t, api)

	results, err := c.SearchNations(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("SearchNations() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("SearchNations() len = %d, want 2 after dedup", len(results))
	}
}

func TestClient_GetWarsFilter(t *testing.T) {
	api := &fakeAPI{responses: map[string]string{
		"wars": `{"data":{"wars":{"data":[{"id":"7","att_id":"1","def_id":"2","attacker":{"nation_name":"A"},"defender":{"nation_name":"B"},"war_type":"ORDINARY","turns_left":40,"att_points":3,"def_points":1}]}}}`,
	}}
	c := newTestClient(t, api)

	active := true
	wars, err := c.GetWars(context.Background(), WarFilter{AllianceID: 42, Active: &active, Limit: 10})
	if err != nil {
		t.Fatalf("GetWars() error = %v", err)
	}
	if len(wars) != 1 || wars[0].WarType != "ORDINARY" || wars[0].TurnsLeft != 40 {
		t.Errorf("GetWars() = %+v", wars)
	}

	for _, want := range []string{"first: 10", "alliance_id: [42]", "active: true"} {
		if !strings.Contains(api.lastDoc, want) {
			t.Errorf("query doc = %q, missing %q", api.lastDoc, want)
		}
	}
	if strings.Contains(api.lastDoc, "or_id") {
		t.Errorf("query doc = %q, has or_id without nation filter", api.lastDoc)
	}
}

func TestClient_GraphQLErrors(t *testing.T) {
	api := &fakeAPI{responses: map[string]string{
		"alliances": `{"data":null,"errors":[{"message":"something broke"}]}`,
	}}
	c := newTestClient(t, api)

	_, err := c.GetAlliance(context.Background(), 42)
	if err == nil || !strings.Contains(err.Error(), "something broke") {
		t.Errorf("GetAlliance() error = %v, want graphql error surfaced", err)
	}
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	api := &fakeAPI{status: http.StatusInternalServerError}
	c := newTestClient(t, api)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := c.GetAlliance(ctx, 42); err == nil {
			t.Fatalf("request %d unexpectedly succeeded", i)
		}
	}

	_, err := c.GetAlliance(ctx, 42)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error after failure streak = %v, want ErrOpenState", err)
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"2026-08-27T10:00:00+00:00", true},
		{"2026-08-27 10:00:00", true},
		{"2026-08-27", true},
		{"", false},
		{"not a time", false},
	}

	for _, tt := range tests {
		got := ParseTime(tt.value)
		if (got != nil) != tt.want {
			t.Errorf("ParseTime(%q) = %v, want parsed %v", tt.value, got, tt.want)
		}
	}
}

func TestNationIDInt(t *testing.T) {
	if got := NationIDInt("1001"); got != 1001 {
		t.Errorf("NationIDInt(1001) = %d", got)
	}
	if got := NationIDInt("abc"); got != 0 {
		t.Errorf("NationIDInt(abc) = %d, want 0", got)
	}
}
