package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// SyncConfig tunes the round synchronization engine.
type SyncConfig struct {
	CorrectGuessScore  int64         `env:"CORRECT_GUESS_SCORE" envDefault:"100"`
	AutoReadyDelay     time.Duration `env:"AUTO_READY_DELAY" envDefault:"5s"`
	DebounceWindow     time.Duration `env:"DEBOUNCE_WINDOW" envDefault:"1500ms"`
	RoomGracePeriod    time.Duration `env:"ROOM_GRACE_PERIOD" envDefault:"30s"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	JanitorInterval    time.Duration `env:"JANITOR_INTERVAL" envDefault:"1m"`
}

func LoadSync() (SyncConfig, error) {
	var cfg SyncConfig
	err := env.Parse(&cfg)
	return cfg, err
}
