package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"wallpaper-guesser/internal/config"
	"wallpaper-guesser/internal/roundsync"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "inspect"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected %s subcommand, got %v err=%v", name, cmd, err)
		}
	}
}

func TestSyncOptionsFromConfig(t *testing.T) {
	opts := syncOptions(config.SyncConfig{AutoReadyDelay: 3 * time.Second, DebounceWindow: time.Second})
	if opts.AutoReadyDelay != 3*time.Second || opts.DebounceWindow != time.Second {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestMemoryStoreSeedsDemoGame(t *testing.T) {
	ctx := context.Background()
	opened, err := openStore(ctx, config.ServerConfig{StoreDriver: config.StoreDriverMemory, SeedDemoGame: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer opened.close()

	eng := newEngine(opened.store, config.SyncConfig{CorrectGuessScore: 5, AutoReadyDelay: time.Hour})
	defer eng.coord.Close()

	res, err := eng.coord.SubmitGuess(ctx, roundsync.GuessRequest{GameID: demoGameID, Position: 1, PlayerID: "alice", Answer: "Mountain Lake"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Correct || res.Score != 5 || res.TotalCount != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := eng.rooms.Events(demoGameID).ReplayAfter(""); len(got) == 0 {
		t.Fatalf("expected broadcast to reach the room buffer")
	}
}

func TestInspectPrintsReconciledView(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SEED_DEMO_GAME", "true")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"inspect", demoGameID})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var view roundsync.View
	if err := json.Unmarshal(out.Bytes(), &view); err != nil {
		t.Fatalf("decode output: %v (%s)", err, out.String())
	}
	if view.GameID != demoGameID || view.CurrentRound != 1 || len(view.Participants) != 2 {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestInspectUnknownGameFails(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "error")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"inspect", "nope"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected error for unknown game")
	}
}
