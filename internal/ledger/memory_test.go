package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/realdoomsman/bagflip-casino/internal/game"
)

func TestMemory_RecordPendingGame_Duplicate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.RecordPendingGame(ctx, "g1", "alice", game.KindCoinFlip, 100, game.ChoiceHeads, "c"); err != nil {
		t.Fatalf("first record error: %v", err)
	}
	_, err := m.RecordPendingGame(ctx, "g1", "bob", game.KindEvenOdd, 50, game.ChoiceEven, "c")
	if !errors.Is(err, ErrDuplicateRequest) {
		t.Errorf("err = %v, want ErrDuplicateRequest", err)
	}

	// Duplicate attempt must not clobber the original.
	g, err := m.GetGame(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGame error: %v", err)
	}
	if g.Player != "alice" || g.Wager != 100 {
		t.Errorf("original game mutated: %+v", g)
	}
}

func TestMemory_SettleGame_WinUpdatesEverything(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.RecordPendingGame(ctx, "g1", "alice", game.KindCoinFlip, 100, game.ChoiceHeads, "c")
	res, err := m.SettleGame(ctx, "g1", 1, true)
	if err != nil {
		t.Fatalf("SettleGame error: %v", err)
	}
	if res.AlreadySettled {
		t.Error("first settle reported AlreadySettled")
	}
	if res.TreasuryBalance != InitialTreasuryBalance-200 {
		t.Errorf("treasury balance = %d, want %d", res.TreasuryBalance, InitialTreasuryBalance-200)
	}

	stats, err := m.GetUserStats(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserStats error: %v", err)
	}
	if stats.TotalWins != 1 || stats.TotalWon != 200 || stats.BiggestWin != 200 {
		t.Errorf("user stats = %+v, want 1 win of 200", stats)
	}

	treasury, _ := m.GetTreasuryStats(ctx)
	if treasury.HouseLosses != 1 || treasury.TotalPaid != 200 || treasury.TotalWagered != 100 {
		t.Errorf("treasury stats = %+v", treasury)
	}

	feed, _ := m.GetLiveFeed(ctx, 10)
	if len(feed) != 1 || feed[0].ID != "g1" || !feed[0].Won {
		t.Errorf("feed = %+v, want one won event for g1", feed)
	}
}

func TestMemory_SettleGame_LossCreditsTreasury(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.RecordPendingGame(ctx, "g1", "alice", game.KindDiceHighLow, 500, game.ChoiceHigh, "c")
	res, err := m.SettleGame(ctx, "g1", 10, false)
	if err != nil {
		t.Fatalf("SettleGame error: %v", err)
	}
	if res.TreasuryBalance != InitialTreasuryBalance+500 {
		t.Errorf("treasury balance = %d, want %d", res.TreasuryBalance, InitialTreasuryBalance+500)
	}

	stats, _ := m.GetUserStats(ctx, "alice")
	if stats.TotalLosses != 1 || stats.TotalLost != 500 || stats.BiggestLoss != 500 {
		t.Errorf("user stats = %+v", stats)
	}
}

func TestMemory_SettleGame_Idempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.RecordPendingGame(ctx, "g1", "alice", game.KindCoinFlip, 100, game.ChoiceHeads, "c")
	first, err := m.SettleGame(ctx, "g1", 1, true)
	if err != nil {
		t.Fatalf("first settle error: %v", err)
	}

	second, err := m.SettleGame(ctx, "g1", 1, true)
	if err != nil {
		t.Fatalf("second settle error: %v", err)
	}
	if !second.AlreadySettled {
		t.Error("second settle did not report AlreadySettled")
	}
	if second.Game.Value != first.Game.Value || second.Game.Won != first.Game.Won {
		t.Errorf("second settle changed outcome: %+v vs %+v", second.Game, first.Game)
	}
	if second.TreasuryBalance != first.TreasuryBalance {
		t.Errorf("treasury moved on retry: %d vs %d", second.TreasuryBalance, first.TreasuryBalance)
	}

	stats, _ := m.GetUserStats(ctx, "alice")
	if stats.TotalGames != 1 {
		t.Errorf("total games = %d after retry, want 1", stats.TotalGames)
	}
}

func TestMemory_SettleGame_UnknownIDNoMutation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	before, _ := m.GetTreasuryStats(ctx)
	_, err := m.SettleGame(ctx, "missing", 1, true)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	after, _ := m.GetTreasuryStats(ctx)
	if before.Balance != after.Balance || before.TotalWagered != after.TotalWagered {
		t.Errorf("treasury mutated on failed settle: %+v -> %+v", before, after)
	}
}

func TestMemory_SettleGame_PayoutHeldWhenTreasuryShort(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	wager := InitialTreasuryBalance // payout of 2x would overdraw
	m.RecordPendingGame(ctx, "g1", "alice", game.KindCoinFlip, wager, game.ChoiceHeads, "c")
	res, err := m.SettleGame(ctx, "g1", 1, true)
	if err != nil {
		t.Fatalf("SettleGame error: %v", err)
	}
	if !res.PayoutHeld {
		t.Error("expected payout to be held")
	}
	if res.TreasuryBalance != InitialTreasuryBalance {
		t.Errorf("treasury balance moved on held payout: %d", res.TreasuryBalance)
	}
	if res.TreasuryBalance < 0 {
		t.Error("treasury went negative")
	}
	if !res.Game.Won {
		t.Error("held payout must still record the win")
	}
}

func TestMemory_Conservation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	type play struct {
		wager int64
		won   bool
	}
	plays := []play{
		{100, true}, {250, false}, {50, true}, {1000, false},
		{10, false}, {777, true}, {300, false},
	}

	var expectedDelta int64
	for i, pl := range plays {
		id := fmt.Sprintf("g%d", i)
		m.RecordPendingGame(ctx, id, "alice", game.KindCoinFlip, pl.wager, game.ChoiceHeads, "c")
		if _, err := m.SettleGame(ctx, id, 1, pl.won); err != nil {
			t.Fatalf("settle %s: %v", id, err)
		}
		if pl.won {
			expectedDelta -= pl.wager * 2
		} else {
			expectedDelta += pl.wager
		}
	}

	treasury, _ := m.GetTreasuryStats(ctx)
	if got := treasury.Balance - InitialTreasuryBalance; got != expectedDelta {
		t.Errorf("treasury delta = %d, want %d", got, expectedDelta)
	}
}

func TestMemory_JoinRoom_RaceExactlyOneWinner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.CreateRoom(ctx, "r1", "creator", game.KindCoinFlip, 100, game.ChoiceHeads, time.Now().Add(time.Minute))

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	joined, rejected := 0, 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.JoinRoom(ctx, "r1", fmt.Sprintf("opponent-%d", i), 1, false)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case errors.Is(err, ErrRoomNotAvailable):
				rejected++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if joined != 1 || rejected != n-1 {
		t.Errorf("joined = %d rejected = %d, want 1 and %d", joined, rejected, n-1)
	}

	room, _ := m.GetRoom(ctx, "r1")
	if room.Status != RoomFinished {
		t.Errorf("room status = %s, want finished", room.Status)
	}
	if room.Winner != room.Opponent {
		t.Errorf("winner = %s, want opponent %s", room.Winner, room.Opponent)
	}
}

func TestMemory_JoinRoom_SettlesBothSides(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.CreateRoom(ctx, "r1", "creator", game.KindCoinFlip, 100, game.ChoiceHeads, time.Now().Add(time.Minute))
	room, err := m.JoinRoom(ctx, "r1", "opponent", 1, true)
	if err != nil {
		t.Fatalf("JoinRoom error: %v", err)
	}
	if room.Winner != "creator" {
		t.Errorf("winner = %s, want creator", room.Winner)
	}

	creatorStats, _ := m.GetUserStats(ctx, "creator")
	opponentStats, _ := m.GetUserStats(ctx, "opponent")
	if creatorStats.TotalWins != 1 || creatorStats.TotalWon != 200 {
		t.Errorf("creator stats = %+v", creatorStats)
	}
	if opponentStats.TotalLosses != 1 || opponentStats.TotalLost != 100 {
		t.Errorf("opponent stats = %+v", opponentStats)
	}

	// PvP is peer-to-peer; the treasury never moves.
	treasury, _ := m.GetTreasuryStats(ctx)
	if treasury.Balance != InitialTreasuryBalance {
		t.Errorf("treasury balance = %d, want untouched %d", treasury.Balance, InitialTreasuryBalance)
	}
}

func TestMemory_JoinRoom_ExpiredIsNotAvailable(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.CreateRoom(ctx, "r1", "creator", game.KindCoinFlip, 100, game.ChoiceHeads, time.Now().Add(-time.Second))
	_, err := m.JoinRoom(ctx, "r1", "opponent", 1, false)
	if !errors.Is(err, ErrRoomNotAvailable) {
		t.Errorf("err = %v, want ErrRoomNotAvailable", err)
	}
}

func TestMemory_CancelRoom(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.CreateRoom(ctx, "r1", "creator", game.KindCoinFlip, 100, game.ChoiceHeads, time.Now().Add(time.Minute))
	room, err := m.CancelRoom(ctx, "r1")
	if err != nil {
		t.Fatalf("CancelRoom error: %v", err)
	}
	if room.Status != RoomCancelled {
		t.Errorf("status = %s, want cancelled", room.Status)
	}

	if _, err := m.CancelRoom(ctx, "r1"); !errors.Is(err, ErrRoomNotAvailable) {
		t.Errorf("second cancel err = %v, want ErrRoomNotAvailable", err)
	}
	if _, err := m.JoinRoom(ctx, "r1", "opponent", 1, false); !errors.Is(err, ErrRoomNotAvailable) {
		t.Errorf("join after cancel err = %v, want ErrRoomNotAvailable", err)
	}
	if _, err := m.CancelRoom(ctx, "missing"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("cancel missing err = %v, want ErrRoomNotFound", err)
	}
}

func TestMemory_ExpireRooms(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Now()
	m.CreateRoom(ctx, "stale", "creator", game.KindCoinFlip, 100, game.ChoiceHeads, now.Add(-time.Minute))
	m.CreateRoom(ctx, "fresh", "creator", game.KindCoinFlip, 100, game.ChoiceHeads, now.Add(time.Minute))

	expired, err := m.ExpireRooms(ctx, now)
	if err != nil {
		t.Fatalf("ExpireRooms error: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "stale" {
		t.Errorf("expired = %+v, want just stale", expired)
	}

	// An expired room is reachable only via cancellation, never via join.
	if _, err := m.JoinRoom(ctx, "stale", "opponent", 1, false); !errors.Is(err, ErrRoomNotAvailable) {
		t.Errorf("join expired err = %v, want ErrRoomNotAvailable", err)
	}
	open, _ := m.ListOpenRooms(ctx)
	if len(open) != 1 || open[0].ID != "fresh" {
		t.Errorf("open rooms = %+v, want just fresh", open)
	}
}

func TestMemory_MarkGameRefunded(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.RecordPendingGame(ctx, "g1", "alice", game.KindCoinFlip, 100, game.ChoiceHeads, "c")
	g, err := m.MarkGameRefunded(ctx, "g1")
	if err != nil {
		t.Fatalf("MarkGameRefunded error: %v", err)
	}
	if g.Status != GameRefunded {
		t.Errorf("status = %s, want refunded", g.Status)
	}

	// Refund is idempotent; settling a refunded game is not allowed.
	if _, err := m.MarkGameRefunded(ctx, "g1"); err != nil {
		t.Errorf("second refund error: %v", err)
	}
	if _, err := m.SettleGame(ctx, "g1", 1, true); !errors.Is(err, ErrGameNotPending) {
		t.Errorf("settle refunded err = %v, want ErrGameNotPending", err)
	}

	// Refunds leave aggregates untouched.
	treasury, _ := m.GetTreasuryStats(ctx)
	if treasury.TotalWagered != 0 {
		t.Errorf("treasury wagered = %d after refund, want 0", treasury.TotalWagered)
	}
}

func TestMemory_FeedTrimsToLimit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < FeedLimit+25; i++ {
		id := fmt.Sprintf("g%d", i)
		m.RecordPendingGame(ctx, id, "alice", game.KindCoinFlip, 10, game.ChoiceHeads, "c")
		m.SettleGame(ctx, id, 1, false)
	}

	feed, _ := m.GetLiveFeed(ctx, FeedLimit*2)
	if len(feed) != FeedLimit {
		t.Errorf("feed length = %d, want %d", len(feed), FeedLimit)
	}
	if feed[0].ID != fmt.Sprintf("g%d", FeedLimit+24) {
		t.Errorf("newest event = %s, want g%d", feed[0].ID, FeedLimit+24)
	}
}

func TestMemory_LeaderboardRanking(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	// alice wins 200, bob wins 400, carol wins 200 (tie with alice).
	games := []struct {
		id, player string
		wager      int64
		won        bool
	}{
		{"g1", "alice", 100, true},
		{"g2", "bob", 200, true},
		{"g3", "carol", 100, true},
		{"g4", "dave", 500, false},
	}
	for _, g := range games {
		m.RecordPendingGame(ctx, g.id, g.player, game.KindCoinFlip, g.wager, game.ChoiceHeads, "c")
		m.SettleGame(ctx, g.id, 1, g.won)
	}

	board, err := m.GetLeaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("GetLeaderboard error: %v", err)
	}
	if len(board) != 4 {
		t.Fatalf("leaderboard size = %d, want 4", len(board))
	}
	if board[0].Player != "bob" || board[0].Rank != 1 {
		t.Errorf("top entry = %+v, want bob rank 1", board[0])
	}
	// Tied total_won shares a rank, ordered by player id.
	if board[1].Player != "alice" || board[2].Player != "carol" {
		t.Errorf("tie order = %s, %s, want alice then carol", board[1].Player, board[2].Player)
	}
	if board[1].Rank != 2 || board[2].Rank != 2 {
		t.Errorf("tie ranks = %d, %d, want both 2", board[1].Rank, board[2].Rank)
	}
	if board[3].Player != "dave" || board[3].Rank != 3 {
		t.Errorf("last entry = %+v, want dave rank 3", board[3])
	}
}

func TestMemory_DailyStats(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.RecordPendingGame(ctx, "g1", "alice", game.KindCoinFlip, 100, game.ChoiceHeads, "c")
	m.SettleGame(ctx, "g1", 1, true)
	m.RecordPendingGame(ctx, "g2", "bob", game.KindDiceHighLow, 300, game.ChoiceHigh, "c")
	m.SettleGame(ctx, "g2", 10, false)
	m.RecordPendingGame(ctx, "g3", "alice", game.KindCoinFlip, 50, game.ChoiceHeads, "c")
	m.SettleGame(ctx, "g3", 1, true)

	daily, err := m.GetDailyStats(ctx)
	if err != nil {
		t.Fatalf("GetDailyStats error: %v", err)
	}
	if daily.BiggestWin == nil || daily.BiggestWin.Player != "alice" || daily.BiggestWin.Amount != 200 {
		t.Errorf("biggest win = %+v", daily.BiggestWin)
	}
	if daily.BiggestLoss == nil || daily.BiggestLoss.Player != "bob" || daily.BiggestLoss.Amount != 300 {
		t.Errorf("biggest loss = %+v", daily.BiggestLoss)
	}
	if daily.HighestWager == nil || daily.HighestWager.Amount != 300 {
		t.Errorf("highest wager = %+v", daily.HighestWager)
	}
	if daily.BestStreak == nil || daily.BestStreak.Player != "alice" || daily.BestStreak.Streak != 2 {
		t.Errorf("best streak = %+v", daily.BestStreak)
	}
	// House paid 2x100 and 2x50, collected 300.
	if want := int64(300 - 200 - 100); daily.HouseProfitLoss != want {
		t.Errorf("house pnl = %d, want %d", daily.HouseProfitLoss, want)
	}
}
