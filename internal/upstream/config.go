// Package upstream talks to the remote banking backend: it resolves the
// runtime feature configuration served to the dashboard and proxies every
// /api request that no local route handles.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"finboard/internal/cache"
)

// Backend modes reported to the dashboard.
const (
	ModeStatic   = "static"
	ModeDisabled = "disabled"
	ModeLive     = "live"
)

const (
	defaultAPIBaseURL   = "/api"
	defaultFetchTimeout = 5 * time.Second
	fallbackCacheTTL    = 5 * time.Second
	configCacheKey      = "runtime-config"
	maxConfigBody       = 1 << 20
)

// RuntimeConfig is the feature configuration the dashboard boots with.
type RuntimeConfig struct {
	APIBaseURL        string `json:"apiBaseUrl"`
	FeatureUseBackend bool   `json:"FEATURE_USE_BACKEND"`
	FeatureManualData bool   `json:"FEATURE_MANUAL_DATA"`
	FeatureStaticDB   bool   `json:"FEATURE_STATIC_DB"`
	BackendMode       string `json:"backendMode"`
}

// Guards are the server-side limits applied to any runtime config.
type Guards struct {
	ManualData bool
	StaticDB   bool
}

// Base returns the unguarded defaults for this server.
func (g Guards) Base() RuntimeConfig {
	return RuntimeConfig{
		APIBaseURL:        defaultAPIBaseURL,
		FeatureUseBackend: true,
		FeatureManualData: g.ManualData,
		FeatureStaticDB:   g.StaticDB,
	}
}

// Enforce clamps cfg to what the server allows. Manual data needs both the
// server and the payload to agree; static mode on either side wins and turns
// the live backend off.
func (g Guards) Enforce(cfg RuntimeConfig) RuntimeConfig {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	cfg.FeatureManualData = g.ManualData && cfg.FeatureManualData
	cfg.FeatureStaticDB = g.StaticDB || cfg.FeatureStaticDB
	if cfg.FeatureStaticDB {
		cfg.FeatureUseBackend = false
	}

	switch {
	case cfg.FeatureStaticDB:
		cfg.BackendMode = ModeStatic
	case !cfg.FeatureUseBackend:
		cfg.BackendMode = ModeDisabled
	default:
		cfg.BackendMode = ModeLive
	}
	return cfg
}

// Fallback is served whenever the backend config cannot be used.
func (g Guards) Fallback() RuntimeConfig {
	return g.Enforce(g.Base())
}

// ParsePayload validates a backend config document and applies guards.
// apiBaseUrl must be a non-empty string; feature flags that are present but
// not booleans are ignored.
func (g Guards) ParsePayload(raw []byte) (RuntimeConfig, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return RuntimeConfig{}, fmt.Errorf("config payload is not an object")
	}

	var base string
	if err := json.Unmarshal(payload["apiBaseUrl"], &base); err != nil || strings.TrimSpace(base) == "" {
		return RuntimeConfig{}, fmt.Errorf("config payload missing required apiBaseUrl string")
	}

	cfg := g.Base()
	cfg.APIBaseURL = strings.TrimSpace(base)

	for name, dst := range map[string]*bool{
		"FEATURE_USE_BACKEND": &cfg.FeatureUseBackend,
		"FEATURE_MANUAL_DATA": &cfg.FeatureManualData,
		"FEATURE_STATIC_DB":   &cfg.FeatureStaticDB,
	} {
		value, ok := payload[name]
		if !ok {
			continue
		}
		var flag bool
		if err := json.Unmarshal(value, &flag); err != nil || string(value) == "null" {
			slog.Warn("Ignoring invalid flag in backend config", "flag", name)
			continue
		}
		*dst = flag
	}

	return g.Enforce(cfg), nil
}

// ConfigClient fetches the runtime config from the backend. Concurrent
// callers share one request and results are cached for a short TTL.
type ConfigClient struct {
	endpoint string
	client   *http.Client
	guards   Guards
	ttl      time.Duration
	cache    *cache.LRUCache[RuntimeConfig]
	group    singleflight.Group
}

// ConfigClientOptions configures NewConfigClient. Zero values use defaults.
type ConfigClientOptions struct {
	Timeout  time.Duration
	CacheTTL time.Duration
	Client   *http.Client
}

func NewConfigClient(backendURL string, guards Guards, opts ConfigClientOptions) *ConfigClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &ConfigClient{
		endpoint: strings.TrimRight(backendURL, "/") + "/api/config",
		client:   client,
		guards:   guards,
		ttl:      opts.CacheTTL,
		cache:    cache.NewLRUCache[RuntimeConfig](1, opts.CacheTTL),
	}
}

// Cache exposes the underlying cache for registration with a cache.Manager.
func (c *ConfigClient) Cache() cache.Cleaner {
	return c.cache
}

// Resolve returns the guarded runtime config, falling back to the server
// defaults when the backend is unreachable or returns an invalid payload.
func (c *ConfigClient) Resolve(ctx context.Context) RuntimeConfig {
	if cfg, ok := c.cache.Get(configCacheKey); ok {
		return cfg
	}

	v, _, _ := c.group.Do(configCacheKey, func() (any, error) {
		// Detached so one cancelled caller does not fail the shared fetch.
		fetchCtx := context.WithoutCancel(ctx)
		cfg, err := c.Fetch(fetchCtx)
		if err != nil {
			slog.WarnContext(ctx, "Falling back to static runtime config", "error", err, "endpoint", c.endpoint)
			cfg = c.guards.Fallback()
			c.cache.SetWithTTL(configCacheKey, cfg, min(c.ttl, fallbackCacheTTL))
			return cfg, nil
		}
		c.cache.SetWithTTL(configCacheKey, cfg, c.ttl)
		return cfg, nil
	})
	return v.(RuntimeConfig)
}

// Fetch performs one uncached request against the backend.
func (c *ConfigClient) Fetch(ctx context.Context) (RuntimeConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("build config request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("fetch backend config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RuntimeConfig{}, fmt.Errorf("backend config request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxConfigBody))
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("read backend config: %w", err)
	}
	return c.guards.ParsePayload(body)
}
