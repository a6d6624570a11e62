package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"wallpaper-guesser/internal/config"
	"wallpaper-guesser/internal/room"
	"wallpaper-guesser/internal/roundsync"
	"wallpaper-guesser/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var wrongGuesses = []string{"forest", "beach", "snowy peak", "night city", "waterfall"}

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.GameID == "" {
		log.Fatal().Msg("GAME_ID is required")
	}

	conn, _, err := websocket.DefaultDialer.Dial(cfg.WSURL, nil)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.WSURL).Msg("dial")
	}
	defer conn.Close()

	b := &bot{
		cfg:     cfg,
		conn:    conn,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		guessed: map[int]bool{},
	}
	if err := b.send(ws.ClientMessage{Type: ws.TypeJoin, GameID: cfg.GameID, PlayerID: cfg.PlayerID}); err != nil {
		log.Fatal().Err(err).Msg("join")
	}
	if err := b.run(); err != nil {
		log.Error().Err(err).Msg("bot stopped")
		os.Exit(1)
	}
}

type bot struct {
	cfg     config.BotConfig
	conn    *websocket.Conn
	rnd     *rand.Rand
	guessed map[int]bool
}

func (b *bot) run() error {
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev room.StreamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		done, err := b.handle(ev)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (b *bot) handle(ev room.StreamEvent) (bool, error) {
	raw, err := json.Marshal(ev.Data)
	if err != nil {
		return false, err
	}
	switch ev.Event {
	case room.EventCaughtUp:
		var p room.CaughtUpPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return false, err
		}
		if p.Phase == roundsync.PhaseGameFinished {
			return true, nil
		}
		if p.Result != nil {
			b.guessed[p.Round] = true
			return false, b.send(ws.ClientMessage{Type: ws.TypeReady, GameID: b.cfg.GameID})
		}
		return false, b.guess(p.Round)
	case roundsync.EventRoundStarted:
		var p roundsync.RoundStartedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return false, err
		}
		return false, b.guess(p.Round)
	case roundsync.EventRoundCompleted:
		var p roundsync.RoundCompletedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return false, err
		}
		log.Info().Int("round", p.Round).Int("results", len(p.Results)).Msg("round completed")
		return false, b.send(ws.ClientMessage{Type: ws.TypeReady, GameID: b.cfg.GameID})
	case roundsync.EventGameFinished:
		log.Info().RawJSON("result", raw).Msg("game finished")
		return true, nil
	case room.EventError:
		log.Warn().RawJSON("error", raw).Msg("server error")
	}
	return false, nil
}

func (b *bot) guess(round int) error {
	if round < 1 || b.guessed[round] {
		return nil
	}
	b.guessed[round] = true
	answer := b.cfg.Answer
	if answer == "" {
		answer = wrongGuesses[b.rnd.Intn(len(wrongGuesses))]
	}
	log.Info().Int("round", round).Str("answer", answer).Msg("guessing")
	return b.send(ws.ClientMessage{Type: ws.TypeSubmitGuess, GameID: b.cfg.GameID, Round: round, Answer: answer})
}

func (b *bot) send(msg ws.ClientMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	return b.conn.WriteMessage(websocket.TextMessage, payload)
}
