// Package ws serves the websocket push channel players use to join a game,
// submit guesses and signal readiness.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wallpaper-guesser/internal/room"
	"wallpaper-guesser/internal/roundsync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const actionTimeout = 10 * time.Second

// Engine is the part of the coordinator the push channel drives.
type Engine interface {
	SubmitGuess(ctx context.Context, req roundsync.GuessRequest) (roundsync.GuessResult, error)
	MarkReady(ctx context.Context, gameID, playerID string) (roundsync.ReadyResult, error)
	Snapshot(ctx context.Context, gameID string) (roundsync.View, error)
}

type Rooms interface {
	Join(ctx context.Context, gameID, playerID string, conn room.Conn) error
	Leave(gameID, playerID string, conn room.Conn) bool
}

type Server struct {
	engine   Engine
	rooms    Rooms
	upgrader websocket.Upgrader
}

func NewServer(engine Engine, rooms Rooms) *Server {
	return &Server{
		engine:   engine,
		rooms:    rooms,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	client := newClient(conn)
	metricWSConnectionsTotal.Add(1)
	metricWSConnectionsActive.Add(1)
	log.Debug().Str("conn_id", client.id).Str("remote", r.RemoteAddr).Msg("ws connected")

	go client.writePump()
	s.readLoop(client)
}

func (s *Server) readLoop(c *Client) {
	defer func() {
		s.unregister(c)
		metricWSConnectionsActive.Add(-1)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var in ClientMessage
		if err := json.Unmarshal(msg, &in); err != nil {
			gameID, _ := c.binding()
			room.SendError(c, gameID, "", fmt.Errorf("%w: malformed message", roundsync.ErrInvalidRequest))
			continue
		}
		s.handleMessage(c, in)
	}
}

func (s *Server) handleMessage(c *Client, in ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	if in.Type == TypeJoin {
		s.handleJoin(ctx, c, in)
		return
	}
	gameID, playerID := c.binding()
	if playerID == "" {
		room.SendError(c, "", in.Type, fmt.Errorf("%w: join a game first", roundsync.ErrInvalidRequest))
		return
	}

	switch in.Type {
	case TypeSubmitGuess:
		res, err := s.engine.SubmitGuess(ctx, roundsync.GuessRequest{
			GameID:   gameID,
			Position: in.Round,
			PlayerID: playerID,
			Answer:   in.Answer,
		})
		if err != nil {
			room.SendError(c, gameID, in.Type, err)
			return
		}
		reply(c, gameID, EventGuessResult, GuessResultPayload{GuessResult: res, PlayerID: playerID})
	case TypeReady:
		res, err := s.engine.MarkReady(ctx, gameID, playerID)
		if err != nil {
			room.SendError(c, gameID, in.Type, err)
			return
		}
		reply(c, gameID, EventReadyResult, res)
	case TypeSync:
		view, err := s.engine.Snapshot(ctx, gameID)
		if err != nil {
			room.SendError(c, gameID, in.Type, err)
			return
		}
		reply(c, gameID, EventSync, view)
	case TypeLeave:
		s.rooms.Leave(gameID, playerID, c)
		c.bind("", "")
		reply(c, gameID, EventLeft, map[string]string{"player_id": playerID})
	default:
		room.SendError(c, gameID, in.Type, fmt.Errorf("%w: unknown message type %q", roundsync.ErrInvalidRequest, in.Type))
	}
}

func (s *Server) handleJoin(ctx context.Context, c *Client, in ClientMessage) {
	if in.GameID == "" || in.PlayerID == "" {
		room.SendError(c, in.GameID, in.Type, fmt.Errorf("%w: game_id and player_id are required", roundsync.ErrInvalidRequest))
		return
	}
	if gameID, playerID := c.binding(); playerID != "" {
		if gameID == in.GameID && playerID == in.PlayerID {
			return
		}
		s.rooms.Leave(gameID, playerID, c)
	}
	c.bind(in.GameID, in.PlayerID)
	if err := s.rooms.Join(ctx, in.GameID, in.PlayerID, c); err != nil {
		c.bind("", "")
		room.SendError(c, in.GameID, in.Type, err)
		return
	}
	log.Info().Str("game_id", in.GameID).Str("player_id", in.PlayerID).Str("conn_id", c.id).Msg("player joined")
}

func (s *Server) unregister(c *Client) {
	if gameID, playerID := c.binding(); playerID != "" {
		if s.rooms.Leave(gameID, playerID, c) {
			log.Info().Str("game_id", gameID).Str("player_id", playerID).Str("conn_id", c.id).Msg("player disconnected")
		}
	}
	c.Close()
}

func reply(c *Client, gameID, event string, data any) {
	if err := c.Send(room.NewDirectEvent(event, gameID, data)); err != nil {
		log.Debug().Err(err).Str("game_id", gameID).Str("conn_id", c.ID()).Str("event", event).Msg("reply send failed")
	}
}
