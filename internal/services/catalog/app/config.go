package app

import (
	"time"

	platformcmd "github.com/tellingsounds/lama/internal/platform/cmd"
)

// Config holds runtime settings read from LAMA_* variables.
type Config struct {
	EventsDBPath      string        `env:"EVENTS_DB_PATH" envDefault:"data/lama-events.db"`
	ProjectionsDBPath string        `env:"PROJECTIONS_DB_PATH" envDefault:"data/lama-projections.db"`
	SearchRedisAddr   string        `env:"SEARCH_REDIS_ADDR"`
	SearchRedisKey    string        `env:"SEARCH_REDIS_KEY" envDefault:"lama:search:entities"`
	SearchTTL         time.Duration `env:"SEARCH_TTL" envDefault:"0s"`
	AdminActors       []string      `env:"ADMIN_ACTORS" envSeparator:","`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"LOG_FORMAT" envDefault:"text"`
	Timeout           time.Duration `env:"TIMEOUT" envDefault:"5m"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
