package config

import "github.com/caarlos0/env/v11"

type BotConfig struct {
	WSURL    string `env:"WS_URL" envDefault:"ws://localhost:8080/ws"`
	GameID   string `env:"GAME_ID"`
	PlayerID string `env:"PLAYER_ID" envDefault:"bot"`
	// Answer is sent for every round; empty means a random wrong guess.
	Answer string `env:"BOT_ANSWER"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
