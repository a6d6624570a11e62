package main

import (
	"context"
	"fmt"

	"wallpaper-guesser/internal/config"
	"wallpaper-guesser/internal/room"
	"wallpaper-guesser/internal/roundsync"
	"wallpaper-guesser/internal/store"
	"wallpaper-guesser/internal/store/memstore"

	"github.com/rs/zerolog/log"
)

const demoGameID = "demo"

// gameStore is what the server needs from either store driver.
type gameStore interface {
	roundsync.Store
	room.MembershipStore
	CreateGame(ctx context.Context, ng store.NewGame) (*store.Game, error)
}

type openedStore struct {
	store gameStore
	ping  func(ctx context.Context) error
	close func()
}

func openStore(ctx context.Context, cfg config.ServerConfig) (openedStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		ms := memstore.New()
		if cfg.SeedDemoGame {
			if err := seedDemoGame(ctx, ms); err != nil {
				return openedStore{}, err
			}
		}
		log.Warn().Msg("using in-memory store; state is lost on restart")
		return openedStore{store: ms, close: func() {}}, nil
	default:
		st, err := store.New(cfg.PostgresDSN)
		if err != nil {
			return openedStore{}, fmt.Errorf("store init: %w", err)
		}
		if err := st.Ping(ctx); err != nil {
			st.Close()
			return openedStore{}, fmt.Errorf("db ping: %w", err)
		}
		if err := st.EnsureSchema(ctx); err != nil {
			st.Close()
			return openedStore{}, fmt.Errorf("ensure schema: %w", err)
		}
		return openedStore{store: st, ping: st.Ping, close: st.Close}, nil
	}
}

func seedDemoGame(ctx context.Context, st gameStore) error {
	_, err := st.CreateGame(ctx, store.NewGame{
		ID:        demoGameID,
		PlayerIDs: []string{"alice", "bob"},
		Answers:   []string{"mountain lake", "desert dunes", "city skyline"},
		Status:    store.GameStatusInProgress,
	})
	if err != nil {
		return fmt.Errorf("seed demo game: %w", err)
	}
	log.Info().Str("game_id", demoGameID).Msg("seeded demo game")
	return nil
}

func syncOptions(cfg config.SyncConfig) roundsync.Options {
	return roundsync.Options{
		AutoReadyDelay: cfg.AutoReadyDelay,
		DebounceWindow: cfg.DebounceWindow,
	}
}

// engine bundles the coordinator and room manager wired to one store.
type engine struct {
	coord *roundsync.Coordinator
	rooms *room.Manager
}

func newEngine(st gameStore, cfg config.SyncConfig) *engine {
	coord := roundsync.NewCoordinator(st, roundsync.FixedScorer{Reward: cfg.CorrectGuessScore}, syncOptions(cfg))
	rooms := room.NewManager(coord, st, room.Options{GracePeriod: cfg.RoomGracePeriod})
	coord.SetBroadcaster(rooms)
	return &engine{coord: coord, rooms: rooms}
}
