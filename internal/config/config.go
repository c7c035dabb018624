// Package config loads HIVEMIND's JSON configuration file, with
// ${VAR} / ${VAR:default} environment-variable interpolation performed
// on the raw bytes before unmarshalling. A local .env is loaded first
// (if present) so development setups don't need exported shell vars.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
)

// Config is the top-level, immutable configuration value the core is
// wired from at startup. Nothing downstream reads os.Getenv directly.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Engines    EnginesConfig    `json:"engines"`
	Routing    RoutingConfig    `json:"routing"`
	Dispatcher DispatcherConfig `json:"dispatcher"`
	Dialogue   DialogueConfig   `json:"dialogue"`
	Sessions   SessionsConfig   `json:"sessions"`
	Database   DatabaseConfig   `json:"database"`
	MessageBus MessageBusConfig `json:"message_bus"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

// EngineProfileConfig mirrors internal/engine.Profile in JSON-loadable form.
type EngineProfileConfig struct {
	CLIPath         string   `json:"cli_path"`
	DefaultModel    string   `json:"default_model"`
	MaxTokens       int      `json:"max_tokens"`
	OutputFormat    string   `json:"output_format"`
	AllowedTools    []string `json:"allowed_tools,omitempty"`
	SystemPrompt    string   `json:"system_prompt,omitempty"`
	TimeoutSeconds  float64  `json:"timeout_seconds"`
	ReasoningEffort string   `json:"reasoning_effort,omitempty"`
}

type EnginesConfig struct {
	Primary    EngineProfileConfig `json:"primary"`
	Consultant EngineProfileConfig `json:"consultant"`
}

type RoutingConfig struct {
	MaxTeams           int     `json:"max_teams"`
	MaxAgentsPerTeam   int     `json:"max_agents_per_team"`
	MinMatchScore      float64 `json:"min_match_score"`
	MultiTeamThreshold float64 `json:"multi_team_threshold"`
}

type DispatcherConfig struct {
	MaxGlobalConcurrent  int     `json:"max_global_concurrent"`
	MaxPerTeam           int     `json:"max_per_team"`
	MaxPerAgent          int     `json:"max_per_agent"`
	DefaultTimeoutSeconds float64 `json:"default_timeout_seconds"`
}

type DialogueConfig struct {
	MaxTurns               int     `json:"max_turns"`
	VerifyResults          bool    `json:"verify_results"`
	ConsultantTimeoutSeconds float64 `json:"consultant_timeout_seconds"` // HIVEMIND_CLAUDE_TIMEOUT
}

type SessionsConfig struct {
	TTLSeconds int `json:"ttl_seconds"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type MessageBusConfig struct {
	URL string `json:"url"`
}

func (d DispatcherConfig) DefaultTimeout() time.Duration {
	if d.DefaultTimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(d.DefaultTimeoutSeconds * float64(time.Second))
}

func (d DialogueConfig) ConsultantTimeout() time.Duration {
	if d.ConsultantTimeoutSeconds <= 0 {
		return 45 * time.Second
	}
	return time.Duration(d.ConsultantTimeoutSeconds * float64(time.Second))
}

func (s SessionsConfig) TTL() time.Duration {
	if s.TTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(s.TTLSeconds) * time.Second
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads dotenvPath (if it exists) into the process environment,
// then reads a JSON config file at path and substitutes environment
// variable references before unmarshalling.
func Load(path, dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if _, err := os.Stat(dotenvPath); err == nil {
			if err := godotenv.Load(dotenvPath); err != nil {
				return nil, fmt.Errorf("load dotenv %s: %w", dotenvPath, err)
			}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
