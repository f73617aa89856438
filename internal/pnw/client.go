// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

// Package pnw implements the Politics & War GraphQL API client.
//
// One client is constructed per tenant session with that tenant's
// decrypted API key. Requests pass through a token-bucket rate limiter
// and a circuit breaker so a degraded API cannot stall sync ticks or
// cascade failures across commands. The breaker uses real time for its
// recovery window; tests exercise the wrapped transport directly.
package pnw

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/orbistech/allianced/internal/logging"
	"github.com/orbistech/allianced/internal/metrics"
)

// DefaultEndpoint is the production GraphQL endpoint.
const DefaultEndpoint = "https://api.politicsandwar.com/graphql"

const (
	defaultTimeout           = 15 * time.Second
	defaultRequestsPerMinute = 60
)

var (
	// ErrNoAPIKey is returned when a query is attempted before a key
	// has been set.
	ErrNoAPIKey = errors.New("no api key configured")

	// ErrInvalidKey is returned by ValidateKey when the API rejects the
	// key or returns no identity for it.
	ErrInvalidKey = errors.New("api key rejected")

	// ErrAllianceNotFound is returned when an alliance query matches
	// nothing.
	ErrAllianceNotFound = errors.New("alliance not found")

	// ErrNationNotFound is returned when a nation query matches nothing.
	ErrNationNotFound = errors.New("nation not found")
)

// Config configures a Client. Zero values fall back to production
// defaults.
type Config struct {
	Endpoint          string
	APIKey            string
	RequestsPerMinute int
	Timeout           time.Duration
}

// Client is a per-tenant game API client. Safe for concurrent use; the
// key can be rotated at runtime via SetKey.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	cb       *gobreaker.CircuitBreaker[[]byte]

	mu     sync.RWMutex
	apiKey string
}

// NewClient builds a client around cfg.
func NewClient(cfg Config) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = defaultRequestsPerMinute
	}

	cbName := "pnw-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Per-tenant traffic is low volume, so trip on a
			// consecutive-failure streak rather than a failure ratio.
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm/6+1),
		cb:       cb,
		apiKey:   cfg.APIKey,
	}
}

// SetKey replaces the API key used for subsequent requests.
func (c *Client) SetKey(key string) {
	c.mu.Lock()
	c.apiKey = key
	c.mu.Unlock()
}

func (c *Client) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// graphQLError is one entry of the GraphQL errors array.
type graphQLError struct {
	Message string `json:"message"`
}

// query posts a GraphQL document and returns the raw "data" payload.
func (c *Client) query(ctx context.Context, doc string) (json.RawMessage, error) {
	key := c.key()
	if key == "" {
		return nil, ErrNoAPIKey
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.post(ctx, key, doc)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.APIRequests.WithLabelValues("rejected").Inc()
		} else {
			metrics.APIRequests.WithLabelValues("failure").Inc()
		}
		return nil, err
	}
	metrics.APIRequests.WithLabelValues("success").Inc()

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			msgs[i] = e.Message
		}
		return nil, fmt.Errorf("graphql error: %s", strings.Join(msgs, "; "))
	}
	return envelope.Data, nil
}

func (c *Client) post(ctx context.Context, key, doc string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"query": doc})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	fullURL := c.endpoint + "?api_key=" + url.QueryEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrInvalidKey
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

// ValidateKey verifies the configured key and returns the nation it
// belongs to. Fails with ErrInvalidKey when the API rejects it.
func (c *Client) ValidateKey(ctx context.Context) (*KeyInfo, error) {
	data, err := c.query(ctx, `{ me { nation_id nation_name alliance_id alliance { id name } } }`)
	if err != nil {
		return nil, err
	}

	var result struct {
		Me *KeyInfo `json:"me"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode me: %w", err)
	}
	if result.Me == nil || result.Me.NationID == "" {
		return nil, ErrInvalidKey
	}
	return result.Me, nil
}

// GetAlliance fetches an alliance with its full member roster.
func (c *Client) GetAlliance(ctx context.Context, allianceID int) (*Alliance, error) {
	doc := fmt.Sprintf(`{ alliances(id: [%d], first: 1) { data { id name acronym founded members { id nation_name leader_name num_cities score last_active discord discord_id alliance_position alliance_position_id } } } }`, allianceID)

	data, err := c.query(ctx, doc)
	if err != nil {
		return nil, err
	}

	var result struct {
		Alliances struct {
			Data []Alliance `json:"data"`
		} `json:"alliances"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode alliances: %w", err)
	}
	if len(result.Alliances.Data) == 0 {
		return nil, ErrAllianceNotFound
	}
	return &result.Alliances.Data[0], nil
}

// GetNation fetches one nation by id.
func (c *Client) GetNation(ctx context.Context, nationID int) (*Nation, error) {
	doc := fmt.Sprintf(`{ nations(id: [%d], first: 1) { data { id nation_name leader_name alliance { id name } num_cities score color continent last_active date soldiers tanks aircraft ships discord discord_id vacation_mode_turns beige_turns } } }`, nationID)

	data, err := c.query(ctx, doc)
	if err != nil {
		return nil, err
	}

	var result struct {
		Nations struct {
			Data []Nation `json:"data"`
		} `json:"nations"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode nations: %w", err)
	}
	if len(result.Nations.Data) == 0 {
		return nil, ErrNationNotFound
	}
	return &result.Nations.Data[0], nil
}

// SearchNations looks a term up as both a nation name and a leader
// name, merging the two result sets with nation-name matches first.
func (c *Client) SearchNations(ctx context.Context, term string) ([]NationSummary, error) {
	byNation, err := c.searchNationsBy(ctx, "nation_name", term)
	if err != nil {
		return nil, err
	}
	byLeader, err := c.searchNationsBy(ctx, "leader_name", term)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(byNation))
	merged := make([]NationSummary, 0, len(byNation)+len(byLeader))
	for _, n := range byNation {
		seen[n.ID] = struct{}{}
		merged = append(merged, n)
	}
	for _, n := range byLeader {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		merged = append(merged, n)
	}
	return merged, nil
}

func (c *Client) searchNationsBy(ctx context.Context, field, term string) ([]NationSummary, error) {
	doc := fmt.Sprintf(`{ nations(%s: [%q], first: 5) { data { id nation_name leader_name alliance { id name } score } } }`, field, term)

	data, err := c.query(ctx, doc)
	if err != nil {
		return nil, err
	}

	var result struct {
		Nations struct {
			Data []NationSummary `json:"data"`
		} `json:"nations"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode nations: %w", err)
	}
	return result.Nations.Data, nil
}

// GetWars fetches wars matching the filter.
func (c *Client) GetWars(ctx context.Context, filter WarFilter) ([]War, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	args := []string{fmt.Sprintf("first: %d", limit)}
	if len(filter.IDs) > 0 {
		ids := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			ids[i] = fmt.Sprintf("%d", id)
		}
		args = append(args, fmt.Sprintf("id: [%s]", strings.Join(ids, ", ")))
	}
	if filter.AllianceID > 0 {
		args = append(args, fmt.Sprintf("alliance_id: [%d]", filter.AllianceID))
	}
	if filter.NationID > 0 {
		args = append(args, fmt.Sprintf("or_id: [%d]", filter.NationID))
	}
	if filter.AttackerID > 0 {
		args = append(args, fmt.Sprintf("att_id: [%d]", filter.AttackerID))
	}
	if filter.DefenderID > 0 {
		args = append(args, fmt.Sprintf("def_id: [%d]", filter.DefenderID))
	}
	if filter.Active != nil {
		args = append(args, fmt.Sprintf("active: %t", *filter.Active))
	}

	doc := fmt.Sprintf(`{ wars(%s) { data { id att_id def_id attacker { nation_name leader_name alliance { id name } } defender { nation_name leader_name alliance { id name } } war_type date turns_left winner_id att_points def_points att_peace def_peace } } }`, strings.Join(args, ", "))

	data, err := c.query(ctx, doc)
	if err != nil {
		return nil, err
	}

	var result struct {
		Wars struct {
			Data []War `json:"data"`
		} `json:"wars"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode wars: %w", err)
	}
	return result.Wars.Data, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
