package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries all process-start settings. None of these are
// renegotiable per connection.
type Config struct {
	Server    *ServerConfig    `json:"server"`
	Limits    *LimitsConfig    `json:"limits"`
	Auth      *AuthConfig      `json:"auth"`
	WebSocket *WebSocketConfig `json:"websocket"`
}

// ServerConfig covers the HTTP listener hosting the WebSocket endpoint
// and the health/stats API.
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// LimitsConfig bounds shared resources: the registry ceiling, the
// per-connection outbound queue depth, and the message-rate window.
type LimitsConfig struct {
	MaxConnections     int           `json:"max_connections"`
	OutboundQueueDepth int           `json:"outbound_queue_depth"`
	RateLimit          int           `json:"rate_limit"`
	RateWindow         time.Duration `json:"rate_window"`
	AuthTimeout        time.Duration `json:"auth_timeout"`
}

// AuthConfig configures token verification.
type AuthConfig struct {
	Secret   string        `json:"secret"`
	Issuer   string        `json:"issuer"`
	TokenTTL time.Duration `json:"token_ttl"`
}

// WebSocketConfig tunes the transport layer.
type WebSocketConfig struct {
	PingInterval     time.Duration `json:"ping_interval"`
	ReadTimeout      time.Duration `json:"read_timeout"`
	WriteTimeout     time.Duration `json:"write_timeout"`
	HandshakeTimeout time.Duration `json:"handshake_timeout"`
}

// DefaultConfig returns working defaults for a single-process
// deployment. The auth secret must be overridden outside development.
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Limits: &LimitsConfig{
			MaxConnections:     1024,
			OutboundQueueDepth: 64,
			RateLimit:          20,
			RateWindow:         10 * time.Second,
			AuthTimeout:        15 * time.Second,
		},
		Auth: &AuthConfig{
			Secret:   "dev-secret-change-me",
			Issuer:   "roomhub",
			TokenTTL: time.Hour,
		},
		WebSocket: &WebSocketConfig{
			PingInterval:     30 * time.Second,
			ReadTimeout:      60 * time.Second,
			WriteTimeout:     10 * time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Validate rejects configurations that would fail at runtime.
func (c *Config) Validate() error {
	if c.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}

	if c.Limits == nil {
		return fmt.Errorf("limits configuration is required")
	}
	if c.Limits.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.Limits.OutboundQueueDepth <= 0 {
		return fmt.Errorf("outbound queue depth must be positive")
	}
	if c.Limits.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.Limits.RateWindow <= 0 {
		return fmt.Errorf("rate window must be positive")
	}
	if c.Limits.AuthTimeout <= 0 {
		return fmt.Errorf("auth timeout must be positive")
	}

	if c.Auth == nil {
		return fmt.Errorf("auth configuration is required")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret cannot be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token TTL must be positive")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("websocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("websocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket timeouts must be positive")
	}
	if c.WebSocket.HandshakeTimeout <= 0 {
		return fmt.Errorf("websocket handshake timeout must be positive")
	}

	return nil
}

// LoadFromEnv overlays ROOMHUB_* environment variables on the defaults.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	if host := os.Getenv("ROOMHUB_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("ROOMHUB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if secret := os.Getenv("ROOMHUB_AUTH_SECRET"); secret != "" {
		cfg.Auth.Secret = secret
	}
	if issuer := os.Getenv("ROOMHUB_AUTH_ISSUER"); issuer != "" {
		cfg.Auth.Issuer = issuer
	}

	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	envDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	envInt("ROOMHUB_MAX_CONNECTIONS", &cfg.Limits.MaxConnections)
	envInt("ROOMHUB_OUTBOUND_QUEUE_DEPTH", &cfg.Limits.OutboundQueueDepth)
	envInt("ROOMHUB_RATE_LIMIT", &cfg.Limits.RateLimit)
	envDuration("ROOMHUB_RATE_WINDOW", &cfg.Limits.RateWindow)
	envDuration("ROOMHUB_AUTH_TIMEOUT", &cfg.Limits.AuthTimeout)
	envDuration("ROOMHUB_AUTH_TOKEN_TTL", &cfg.Auth.TokenTTL)
	envDuration("ROOMHUB_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("ROOMHUB_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("ROOMHUB_WS_PING_INTERVAL", &cfg.WebSocket.PingInterval)
	envDuration("ROOMHUB_WS_READ_TIMEOUT", &cfg.WebSocket.ReadTimeout)
	envDuration("ROOMHUB_WS_WRITE_TIMEOUT", &cfg.WebSocket.WriteTimeout)
	envDuration("ROOMHUB_WS_HANDSHAKE_TIMEOUT", &cfg.WebSocket.HandshakeTimeout)

	return cfg
}

// configFile mirrors the JSON configuration file; durations are
// human-readable strings ("30s", "1m") rather than nanosecond counts.
type configFile struct {
	Server *struct {
		Host         string `json:"host"`
		Port         int    `json:"port"`
		ReadTimeout  string `json:"read_timeout"`
		WriteTimeout string `json:"write_timeout"`
	} `json:"server"`
	Limits *struct {
		MaxConnections     int    `json:"max_connections"`
		OutboundQueueDepth int    `json:"outbound_queue_depth"`
		RateLimit          int    `json:"rate_limit"`
		RateWindow         string `json:"rate_window"`
		AuthTimeout        string `json:"auth_timeout"`
	} `json:"limits"`
	Auth *struct {
		Secret   string `json:"secret"`
		Issuer   string `json:"issuer"`
		TokenTTL string `json:"token_ttl"`
	} `json:"auth"`
	WebSocket *struct {
		PingInterval     string `json:"ping_interval"`
		ReadTimeout      string `json:"read_timeout"`
		WriteTimeout     string `json:"write_timeout"`
		HandshakeTimeout string `json:"handshake_timeout"`
	} `json:"websocket"`
}

// LoadFromFile reads a JSON config file over the defaults and validates
// the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	setDuration := func(dst *time.Duration, raw string) {
		if raw == "" {
			return
		}
		if d, err := time.ParseDuration(raw); err == nil {
			*dst = d
		}
	}

	if file.Server != nil {
		if file.Server.Host != "" {
			cfg.Server.Host = file.Server.Host
		}
		if file.Server.Port > 0 {
			cfg.Server.Port = file.Server.Port
		}
		setDuration(&cfg.Server.ReadTimeout, file.Server.ReadTimeout)
		setDuration(&cfg.Server.WriteTimeout, file.Server.WriteTimeout)
	}
	if file.Limits != nil {
		if file.Limits.MaxConnections > 0 {
			cfg.Limits.MaxConnections = file.Limits.MaxConnections
		}
		if file.Limits.OutboundQueueDepth > 0 {
			cfg.Limits.OutboundQueueDepth = file.Limits.OutboundQueueDepth
		}
		if file.Limits.RateLimit > 0 {
			cfg.Limits.RateLimit = file.Limits.RateLimit
		}
		setDuration(&cfg.Limits.RateWindow, file.Limits.RateWindow)
		setDuration(&cfg.Limits.AuthTimeout, file.Limits.AuthTimeout)
	}
	if file.Auth != nil {
		if file.Auth.Secret != "" {
			cfg.Auth.Secret = file.Auth.Secret
		}
		if file.Auth.Issuer != "" {
			cfg.Auth.Issuer = file.Auth.Issuer
		}
		setDuration(&cfg.Auth.TokenTTL, file.Auth.TokenTTL)
	}
	if file.WebSocket != nil {
		setDuration(&cfg.WebSocket.PingInterval, file.WebSocket.PingInterval)
		setDuration(&cfg.WebSocket.ReadTimeout, file.WebSocket.ReadTimeout)
		setDuration(&cfg.WebSocket.WriteTimeout, file.WebSocket.WriteTimeout)
		setDuration(&cfg.WebSocket.HandshakeTimeout, file.WebSocket.HandshakeTimeout)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return cfg, nil
}

// Load resolves configuration with precedence file > environment >
// defaults. A missing or unreadable file falls back silently so that
// environment-only deployments work.
func Load(path string) *Config {
	cfg := LoadFromEnv()

	if path != "" {
		if fileCfg, err := LoadFromFile(path); err == nil {
			cfg = fileCfg
		}
	}

	return cfg
}
