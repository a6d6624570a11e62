package memstore

import (
	"context"
	"errors"
	"testing"

	"wallpaper-guesser/internal/store"
)

func TestInsertGuessRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	st := New()
	g, err := st.CreateGame(ctx, store.NewGame{PlayerIDs: []string{"p2", "p1"}, Answers: []string{"paris", "rome"}})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	players, _ := st.ListParticipants(ctx, g.ID)
	if len(players) != 2 || players[0] != "p1" {
		t.Fatalf("expected sorted participants, got %v", players)
	}
	round, err := st.GetRoundByPosition(ctx, g.ID, 1)
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	guess := store.Guess{GameID: g.ID, RoundID: round.ID, Position: 1, PlayerID: "p1", Answer: "paris", Correct: true, Score: 100}
	if _, err := st.InsertGuess(ctx, guess); err != nil {
		t.Fatalf("insert guess: %v", err)
	}
	if _, err := st.InsertGuess(ctx, guess); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	n, _ := st.CountGuesses(ctx, g.ID, "p1")
	if n != 1 {
		t.Fatalf("expected 1 guess, got %d", n)
	}
	scores, _ := st.SumScores(ctx, g.ID)
	if scores["p1"] != 100 || scores["p2"] != 0 {
		t.Fatalf("unexpected scores %v", scores)
	}
}

func TestGetRoundByPositionOutOfRange(t *testing.T) {
	ctx := context.Background()
	st := New()
	g, err := st.CreateGame(ctx, store.NewGame{PlayerIDs: []string{"p1"}, Answers: []string{"oslo"}})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if _, err := st.GetRoundByPosition(ctx, g.ID, 2); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.GetRoundByPosition(ctx, g.ID, 0); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for position 0, got %v", err)
	}
}

func TestCompleteGameKeepsFirstWinner(t *testing.T) {
	ctx := context.Background()
	st := New()
	g, _ := st.CreateGame(ctx, store.NewGame{PlayerIDs: []string{"p1", "p2"}, Answers: []string{"oslo"}, Status: store.GameStatusInProgress})
	if err := st.CompleteGame(ctx, g.ID, "p1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := st.CompleteGame(ctx, g.ID, "p2"); err != nil {
		t.Fatalf("second complete: %v", err)
	}
	got, _ := st.GetGame(ctx, g.ID)
	if got.Status != store.GameStatusFinished || got.WinnerID != "p1" {
		t.Fatalf("unexpected game after complete: %+v", got)
	}
}
