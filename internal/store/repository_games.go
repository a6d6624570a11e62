package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// CreateGame inserts a game with one round per answer and its fixed
// participant list in a single transaction.
func (s *Store) CreateGame(ctx context.Context, ng NewGame) (*Game, error) {
	if len(ng.Answers) == 0 {
		return nil, errors.New("game needs at least one round")
	}
	if len(ng.PlayerIDs) == 0 {
		return nil, errors.New("game needs at least one player")
	}
	if ng.ID == "" {
		ng.ID = NewID()
	}
	if ng.Status == "" {
		ng.Status = GameStatusWaiting
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO games (id, status, total_rounds) VALUES ($1, $2, $3)`,
		ng.ID, ng.Status, len(ng.Answers)); err != nil {
		return nil, mapDuplicate(err)
	}
	for _, playerID := range ng.PlayerIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO game_players (game_id, player_id) VALUES ($1, $2)`,
			ng.ID, playerID); err != nil {
			return nil, mapDuplicate(err)
		}
	}
	for i, answer := range ng.Answers {
		if _, err := tx.Exec(ctx,
			`INSERT INTO rounds (id, game_id, position, answer) VALUES ($1, $2, $3, $4)`,
			NewID(), ng.ID, i+1, answer); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.GetGame(ctx, ng.ID)
}

func (s *Store) GetGame(ctx context.Context, gameID string) (*Game, error) {
	var (
		g        Game
		winnerID pgtype.Text
		finished pgtype.Timestamptz
	)
	err := s.Pool.QueryRow(ctx,
		`SELECT id, status, total_rounds, winner_id, created_at, finished_at FROM games WHERE id = $1`,
		gameID).Scan(&g.ID, &g.Status, &g.TotalRounds, &winnerID, &g.CreatedAt, &finished)
	if err != nil {
		return nil, mapNotFound(err)
	}
	g.WinnerID = textVal(winnerID)
	g.FinishedAt = timePtrVal(finished)
	return &g, nil
}

func (s *Store) SetGameStatus(ctx context.Context, gameID, status string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE games SET status = $2 WHERE id = $1`, gameID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteGame writes the terminal status. Completing an already finished
// game is a no-op so a repeated finish cannot move the winner.
func (s *Store) CompleteGame(ctx context.Context, gameID, winnerID string) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE games SET status = $3, winner_id = $2, finished_at = now()
		 WHERE id = $1 AND status <> $3`,
		gameID, textParam(winnerID), GameStatusFinished)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.GetGame(ctx, gameID); err != nil {
		return err
	}
	return nil
}

// ListParticipants returns the game's players ordered by player id.
func (s *Store) ListParticipants(ctx context.Context, gameID string) ([]string, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT player_id FROM game_players WHERE game_id = $1 ORDER BY player_id`, gameID)
	if err != nil {
		return nil, err
	}
	players, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return players, nil
}

func (s *Store) IsParticipant(ctx context.Context, gameID, playerID string) (bool, error) {
	var ok bool
	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM game_players WHERE game_id = $1 AND player_id = $2)`,
		gameID, playerID).Scan(&ok)
	return ok, err
}
