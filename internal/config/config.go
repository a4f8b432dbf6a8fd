package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port      string `yaml:"port"`
		RateLimit struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Leaderboard struct {
		TTL string `yaml:"ttl"`
		Top int    `yaml:"top"`
	} `yaml:"leaderboard"`
	Access struct {
		TTL string `yaml:"ttl"`
	} `yaml:"access"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	AI struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		Timeout string `yaml:"timeout"`
	} `yaml:"ai"`
}

// Load reads YAML config from path. A missing file yields the zero config so
// the service can start on defaults; ${VAR} references are expanded from the environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// LeaderboardTop is the number of finishers the status endpoint shows, at most 10.
func (c Config) LeaderboardTop() int {
	if c.Leaderboard.Top <= 0 || c.Leaderboard.Top > 10 {
		return 10
	}
	return c.Leaderboard.Top
}
