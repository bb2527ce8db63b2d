package ledger

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/realdoomsman/bagflip-casino/internal/game"
)

// Memory is the non-durable Ledger used in dev mode and unit tests. A single
// store mutex gives it the same linearizability the postgres implementation
// gets from row locks; every method applies all of its effects or none.
type Memory struct {
	mu       sync.Mutex
	games    map[string]*Game
	rooms    map[string]*Room
	stats    map[string]*UserStats
	treasury TreasuryStats
	feed     []FeedEvent
}

func NewMemory() *Memory {
	return &Memory{
		games: make(map[string]*Game),
		rooms: make(map[string]*Room),
		stats: make(map[string]*UserStats),
		treasury: TreasuryStats{
			Balance:     InitialTreasuryBalance,
			LastUpdated: time.Now(),
		},
	}
}

func (m *Memory) Close() {}

func (m *Memory) RecordPendingGame(ctx context.Context, id, player string, kind game.Kind, wager int64, choice game.Choice, commitment string) (Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.games[id]; exists {
		return Game{}, fmt.Errorf("%w: %s", ErrDuplicateRequest, id)
	}

	g := &Game{
		ID:         id,
		Player:     player,
		Kind:       kind,
		Wager:      wager,
		Choice:     choice,
		Status:     GamePending,
		Commitment: commitment,
		CreatedAt:  time.Now(),
	}
	m.games[id] = g
	return *g, nil
}

func (m *Memory) SettleGame(ctx context.Context, id string, value int64, won bool) (SettleResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[id]
	if !ok {
		return SettleResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if g.Status == GameSettled {
		return SettleResult{
			Game:            *g,
			AlreadySettled:  true,
			PayoutHeld:      g.PayoutHeld,
			TreasuryBalance: m.treasury.Balance,
		}, nil
	}
	if g.Status != GamePending {
		return SettleResult{}, fmt.Errorf("%w: %s is %s", ErrGameNotPending, id, g.Status)
	}

	g.Status = GameSettled
	g.Value = value
	g.Won = won

	now := time.Now()
	m.treasury.TotalWagered += g.Wager
	if won {
		payout := g.Wager * 2
		if m.treasury.Balance < payout {
			// Fail closed: the win is recorded but the payout is held for
			// manual reconciliation rather than draining below zero.
			g.PayoutHeld = true
			log.Printf("[LEDGER] Payout of %d for %s held: treasury balance %d", payout, id, m.treasury.Balance)
		} else {
			m.treasury.Balance -= payout
			m.treasury.TotalPaid += payout
		}
		m.treasury.HouseLosses++
	} else {
		m.treasury.Balance += g.Wager
		m.treasury.HouseWins++
	}
	m.treasury.LastUpdated = now

	m.applyUserResult(g.Player, won, g.Wager, now)
	m.appendFeed(FeedEvent{
		ID:        g.ID,
		Player:    g.Player,
		GameKind:  string(g.Kind),
		Wager:     g.Wager,
		Won:       won,
		Timestamp: now,
	})

	return SettleResult{
		Game:            *g,
		PayoutHeld:      g.PayoutHeld,
		TreasuryBalance: m.treasury.Balance,
	}, nil
}

func (m *Memory) MarkGameRefunded(ctx context.Context, id string) (Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[id]
	if !ok {
		return Game{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if g.Status == GameRefunded {
		return *g, nil
	}
	if g.Status != GamePending {
		return Game{}, fmt.Errorf("%w: %s is %s", ErrGameNotPending, id, g.Status)
	}
	g.Status = GameRefunded
	return *g, nil
}

func (m *Memory) CreateRoom(ctx context.Context, id, creator string, kind game.Kind, wager int64, creatorChoice game.Choice, expiresAt time.Time) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rooms[id]; exists {
		return Room{}, fmt.Errorf("%w: %s", ErrDuplicateRequest, id)
	}

	r := &Room{
		ID:            id,
		Creator:       creator,
		Wager:         wager,
		Kind:          kind,
		CreatorChoice: creatorChoice,
		Status:        RoomWaiting,
		CreatedAt:     time.Now(),
		ExpiresAt:     expiresAt,
	}
	m.rooms[id] = r
	return *r, nil
}

func (m *Memory) JoinRoom(ctx context.Context, id, opponent string, value int64, creatorWon bool) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[id]
	if !ok {
		return Room{}, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	if r.Status != RoomWaiting || time.Now().After(r.ExpiresAt) {
		return Room{}, fmt.Errorf("%w: %s is %s", ErrRoomNotAvailable, id, r.Status)
	}

	r.Opponent = opponent
	r.Value = value
	r.Status = RoomFinished
	if creatorWon {
		r.Winner = r.Creator
	} else {
		r.Winner = opponent
	}

	now := time.Now()
	m.applyUserResult(r.Creator, creatorWon, r.Wager, now)
	m.applyUserResult(opponent, !creatorWon, r.Wager, now)
	m.appendFeed(FeedEvent{
		ID:        r.ID,
		Player:    r.Winner,
		GameKind:  "PvP " + string(r.Kind),
		Wager:     r.Wager,
		Won:       true,
		Timestamp: now,
	})

	return *r, nil
}

func (m *Memory) CancelRoom(ctx context.Context, id string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[id]
	if !ok {
		return Room{}, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	if r.Status != RoomWaiting {
		return Room{}, fmt.Errorf("%w: %s is %s", ErrRoomNotAvailable, id, r.Status)
	}
	r.Status = RoomCancelled
	return *r, nil
}

func (m *Memory) ExpireRooms(ctx context.Context, now time.Time) ([]Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []Room
	for _, r := range m.rooms {
		if r.Status == RoomWaiting && r.ExpiresAt.Before(now) {
			r.Status = RoomCancelled
			expired = append(expired, *r)
		}
	}
	return expired, nil
}

func (m *Memory) GetGame(ctx context.Context, id string) (Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[id]
	if !ok {
		return Game{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *g, nil
}

func (m *Memory) GetRoom(ctx context.Context, id string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[id]
	if !ok {
		return Room{}, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return *r, nil
}

func (m *Memory) ListOpenRooms(ctx context.Context) ([]Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var open []Room
	for _, r := range m.rooms {
		if r.Status == RoomWaiting && r.ExpiresAt.After(now) {
			open = append(open, *r)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].CreatedAt.After(open[j].CreatedAt) })
	return open, nil
}

func (m *Memory) GetUserStats(ctx context.Context, player string) (UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.stats[player]
	if !ok {
		return UserStats{}, fmt.Errorf("%w: no stats for %s", ErrNotFound, player)
	}
	return *s, nil
}

func (m *Memory) GetTreasuryStats(ctx context.Context) (TreasuryStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.treasury, nil
}

func (m *Memory) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]LeaderboardEntry, 0, len(m.stats))
	for _, s := range m.stats {
		e := LeaderboardEntry{
			Player:     s.Player,
			TotalWon:   s.TotalWon,
			TotalGames: s.TotalGames,
		}
		if s.TotalGames > 0 {
			e.WinRate = float64(s.TotalWins) / float64(s.TotalGames) * 100
		}
		entries = append(entries, e)
	}
	rankEntries(entries)

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *Memory) GetLiveFeed(ctx context.Context, limit int) ([]FeedEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.feed)
	if limit <= 0 || limit > n {
		limit = n
	}
	// Feed is stored oldest-first; serve newest-first.
	out := make([]FeedEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.feed[i])
	}
	return out, nil
}

func (m *Memory) GetStats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		TotalGames:   int64(len(m.games)),
		TotalRooms:   int64(len(m.rooms)),
		TotalPlayers: int64(len(m.stats)),
		Treasury:     m.treasury,
	}, nil
}

func (m *Memory) GetDailyStats(ctx context.Context) (DailyStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-24 * time.Hour)

	var out DailyStats
	byPlayer := make(map[string][]*Game)
	for _, g := range m.games {
		if g.Status != GameSettled || g.CreatedAt.Before(cutoff) {
			continue
		}
		byPlayer[g.Player] = append(byPlayer[g.Player], g)

		if g.Won {
			out.HouseProfitLoss -= g.Wager * 2
			if out.BiggestWin == nil || g.Wager*2 > out.BiggestWin.Amount {
				out.BiggestWin = &DailyHighlight{Player: g.Player, Amount: g.Wager * 2, Kind: string(g.Kind)}
			}
		} else {
			out.HouseProfitLoss += g.Wager
			if out.BiggestLoss == nil || g.Wager > out.BiggestLoss.Amount {
				out.BiggestLoss = &DailyHighlight{Player: g.Player, Amount: g.Wager, Kind: string(g.Kind)}
			}
		}
		if out.HighestWager == nil || g.Wager > out.HighestWager.Amount {
			out.HighestWager = &DailyHighlight{Player: g.Player, Amount: g.Wager, Kind: string(g.Kind)}
		}
	}

	for player, games := range byPlayer {
		sort.Slice(games, func(i, j int) bool { return games[i].CreatedAt.After(games[j].CreatedAt) })
		streak := 0
		for _, g := range games {
			if !g.Won {
				break
			}
			streak++
		}
		if out.BestStreak == nil || streak > out.BestStreak.Streak {
			if streak > 0 {
				out.BestStreak = &DailyStreak{Player: player, Streak: streak}
			}
		}
	}

	return out, nil
}

// applyUserResult mutates one player's aggregate for a settled wager.
// Callers hold the store mutex.
func (m *Memory) applyUserResult(player string, won bool, wager int64, now time.Time) {
	s, ok := m.stats[player]
	if !ok {
		s = &UserStats{Player: player}
		m.stats[player] = s
	}

	s.TotalGames++
	s.TotalWagered += wager
	s.LastPlayed = now
	if won {
		s.TotalWins++
		s.TotalWon += wager * 2
		if wager*2 > s.BiggestWin {
			s.BiggestWin = wager * 2
		}
	} else {
		s.TotalLosses++
		s.TotalLost += wager
		if wager > s.BiggestLoss {
			s.BiggestLoss = wager
		}
	}
}

func (m *Memory) appendFeed(e FeedEvent) {
	m.feed = append(m.feed, e)
	if len(m.feed) > FeedLimit {
		m.feed = m.feed[len(m.feed)-FeedLimit:]
	}
}

// rankEntries assigns dense ranks by total won, ties broken by player id so
// the ordering is deterministic.
func rankEntries(entries []LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalWon != entries[j].TotalWon {
			return entries[i].TotalWon > entries[j].TotalWon
		}
		return entries[i].Player < entries[j].Player
	})
	rank := 0
	var prev int64 = -1
	for i := range entries {
		if entries[i].TotalWon != prev {
			rank++
			prev = entries[i].TotalWon
		}
		entries[i].Rank = rank
	}
}
