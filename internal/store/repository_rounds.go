package store

import "context"

func (s *Store) GetRoundByPosition(ctx context.Context, gameID string, position int) (*Round, error) {
	var r Round
	err := s.Pool.QueryRow(ctx,
		`SELECT id, game_id, position, answer, guess_count FROM rounds WHERE game_id = $1 AND position = $2`,
		gameID, position).Scan(&r.ID, &r.GameID, &r.Position, &r.Answer, &r.GuessCount)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &r, nil
}

func (s *Store) IncrementRoundGuessCount(ctx context.Context, roundID string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE rounds SET guess_count = guess_count + 1 WHERE id = $1`, roundID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
