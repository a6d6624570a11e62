package config

import "testing"

func TestLoadBotDefaults(t *testing.T) {
	cfg, err := LoadBot()
	if err != nil {
		t.Fatalf("LoadBot() error = %v", err)
	}
	if cfg.WSURL != "ws://localhost:8080/ws" {
		t.Fatalf("WSURL = %q, want ws://localhost:8080/ws", cfg.WSURL)
	}
	if cfg.PlayerID != "bot" {
		t.Fatalf("PlayerID = %q, want bot", cfg.PlayerID)
	}
}

func TestLoadBotOverrides(t *testing.T) {
	t.Setenv("WS_URL", "ws://127.0.0.1:9000/ws")
	t.Setenv("GAME_ID", "game-1")
	t.Setenv("PLAYER_ID", "p2")
	t.Setenv("BOT_ANSWER", "paris")

	cfg, err := LoadBot()
	if err != nil {
		t.Fatalf("LoadBot() error = %v", err)
	}
	if cfg.WSURL != "ws://127.0.0.1:9000/ws" {
		t.Fatalf("WSURL = %q", cfg.WSURL)
	}
	if cfg.GameID != "game-1" || cfg.PlayerID != "p2" || cfg.Answer != "paris" {
		t.Fatalf("unexpected bot config: %+v", cfg)
	}
}
