package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full simulation configuration.
type Config struct {
	Seed      int64            `mapstructure:"seed"`
	Bus       BusConfig        `mapstructure:"bus"`
	Memory    MemoryConfig     `mapstructure:"memory"`
	Debate    DebateConfig     `mapstructure:"debate"`
	Vote      VoteConfig       `mapstructure:"vote"`
	Redis     RedisConfig      `mapstructure:"redis"`
	Senators  []SenatorConfig  `mapstructure:"senators"`
	Schedules []ScheduleConfig `mapstructure:"schedules"`
}

// BusConfig controls the event bus.
type BusConfig struct {
	// HistoryLimit bounds the retained event history ring.
	HistoryLimit int `mapstructure:"history_limit"`
}

// MemoryConfig controls per-senator event memory.
type MemoryConfig struct {
	// MaxItems triggers consolidation once a store grows past it.
	MaxItems int `mapstructure:"max_items"`
	// RetentionPolicy is "importance", "recency" or "both".
	RetentionPolicy string `mapstructure:"retention_policy"`
}

// DebateConfig controls debate pacing.
type DebateConfig struct {
	Rounds   int `mapstructure:"rounds"`
	PacingMs int `mapstructure:"pacing_ms"`
}

// VoteConfig controls vote behavior.
type VoteConfig struct {
	// NeutralPolicy is "abstain" or "resolve".
	NeutralPolicy string `mapstructure:"neutral_policy"`
}

// RedisConfig controls the optional memory-snapshot store.
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	DB      int    `mapstructure:"db"`
}

// SenatorConfig declares one participant.
type SenatorConfig struct {
	ID      string `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Faction string `mapstructure:"faction"`
	Rank    int    `mapstructure:"rank"`
}

// ScheduleConfig declares one recurring debate.
type ScheduleConfig struct {
	Cron   string `mapstructure:"cron"`
	Topic  string `mapstructure:"topic"`
	Rounds int    `mapstructure:"rounds"`
}

// Load reads configuration from path (optional) with SENATE_* env
// overrides and built-in defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SENATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("seed", 0)
	v.SetDefault("bus.history_limit", 100)
	v.SetDefault("memory.max_items", 500)
	v.SetDefault("memory.retention_policy", "both")
	v.SetDefault("debate.rounds", 1)
	v.SetDefault("debate.pacing_ms", 0)
	v.SetDefault("vote.neutral_policy", "abstain")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
}

// Validate checks cross-field constraints and rejects unknown enums.
func (c *Config) Validate() error {
	switch c.Vote.NeutralPolicy {
	case "abstain", "resolve":
	default:
		return fmt.Errorf("config: vote.neutral_policy must be abstain or resolve, got %q", c.Vote.NeutralPolicy)
	}
	switch c.Memory.RetentionPolicy {
	case "importance", "recency", "both":
	default:
		return fmt.Errorf("config: memory.retention_policy must be importance, recency or both, got %q", c.Memory.RetentionPolicy)
	}
	if c.Bus.HistoryLimit <= 0 {
		c.Bus.HistoryLimit = 100
	}
	if c.Debate.Rounds <= 0 {
		c.Debate.Rounds = 1
	}
	seen := make(map[string]bool, len(c.Senators))
	for _, s := range c.Senators {
		if s.ID == "" {
			return fmt.Errorf("config: senator with empty id")
		}
		if seen[s.ID] {
			return fmt.Errorf("config: duplicate senator id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}
