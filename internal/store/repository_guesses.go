package store

import "context"

// InsertGuess appends a guess. A second guess for the same (game, player,
// position) fails with ErrDuplicate.
func (s *Store) InsertGuess(ctx context.Context, g Guess) (*Guess, error) {
	if g.ID == "" {
		g.ID = NewID()
	}
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO guesses (id, game_id, round_id, position, player_id, answer, correct, score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		g.ID, g.GameID, g.RoundID, g.Position, g.PlayerID, g.Answer, g.Correct, g.Score,
	).Scan(&g.CreatedAt)
	if err != nil {
		return nil, mapDuplicate(err)
	}
	return &g, nil
}

func (s *Store) GuessExists(ctx context.Context, gameID, playerID string, position int) (bool, error) {
	var ok bool
	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM guesses WHERE game_id = $1 AND player_id = $2 AND position = $3)`,
		gameID, playerID, position).Scan(&ok)
	return ok, err
}

func (s *Store) CountGuesses(ctx context.Context, gameID, playerID string) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx,
		`SELECT count(*) FROM guesses WHERE game_id = $1 AND player_id = $2`,
		gameID, playerID).Scan(&n)
	return n, err
}

// SumScores returns the summed score per participant, zero for players
// without a guess.
func (s *Store) SumScores(ctx context.Context, gameID string) (map[string]int64, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT gp.player_id, COALESCE(SUM(g.score), 0)
		 FROM game_players gp
		 LEFT JOIN guesses g ON g.game_id = gp.game_id AND g.player_id = gp.player_id
		 WHERE gp.game_id = $1
		 GROUP BY gp.player_id`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var (
			playerID string
			total    int64
		)
		if err := rows.Scan(&playerID, &total); err != nil {
			return nil, err
		}
		out[playerID] = total
	}
	return out, rows.Err()
}

func (s *Store) ListGuesses(ctx context.Context, gameID, playerID string) ([]Guess, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, game_id, round_id, position, player_id, answer, correct, score, created_at
		 FROM guesses WHERE game_id = $1 AND player_id = $2 ORDER BY position`, gameID, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Guess
	for rows.Next() {
		var g Guess
		if err := rows.Scan(&g.ID, &g.GameID, &g.RoundID, &g.Position, &g.PlayerID, &g.Answer, &g.Correct, &g.Score, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
