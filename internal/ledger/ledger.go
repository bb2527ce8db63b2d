package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/realdoomsman/bagflip-casino/internal/game"
)

// InitialTreasuryBalance seeds the singleton treasury row, in the smallest
// currency unit.
const InitialTreasuryBalance int64 = 113_000_000

// FeedLimit bounds the live feed ring; older events are trimmed on append.
const FeedLimit = 100

var (
	ErrDuplicateRequest = errors.New("ledger: duplicate request id")
	ErrNotFound         = errors.New("ledger: game not found")
	ErrGameNotPending   = errors.New("ledger: game is not pending")
	ErrRoomNotFound     = errors.New("ledger: room not found")
	ErrRoomNotAvailable = errors.New("ledger: room not available")
)

type GameStatus string

const (
	GamePending  GameStatus = "pending"
	GameSettled  GameStatus = "settled"
	GameRefunded GameStatus = "refunded"
)

// Game is one single-player wager against the treasury. The id doubles as
// the idempotency key: rows are append-only, so a reused id is rejected by
// the primary key for as long as the row lives.
type Game struct {
	ID         string     `json:"id"`
	Player     string     `json:"player"`
	Kind       game.Kind  `json:"game_kind"`
	Wager      int64      `json:"wager"`
	Choice     game.Choice `json:"choice"`
	Status     GameStatus `json:"status"`
	Value      int64      `json:"value"`
	Won        bool       `json:"won"`
	PayoutHeld bool       `json:"payout_held"`
	Commitment string     `json:"commitment"`
	CreatedAt  time.Time  `json:"created_at"`
}

type RoomStatus string

const (
	RoomWaiting   RoomStatus = "waiting"
	RoomFinished  RoomStatus = "finished"
	RoomCancelled RoomStatus = "cancelled"
)

// Room is a two-player head-to-head wager. The creator's wager is escrowed
// at creation; the opponent implicitly matches it on join. There is no
// durable "playing" state: join and settlement are one transition.
type Room struct {
	ID            string      `json:"id"`
	Creator       string      `json:"creator"`
	Opponent      string      `json:"opponent,omitempty"`
	Wager         int64       `json:"wager"`
	Kind          game.Kind   `json:"game_kind"`
	CreatorChoice game.Choice `json:"creator_choice"`
	Winner        string      `json:"winner,omitempty"`
	Value         int64       `json:"value"`
	Status        RoomStatus  `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	ExpiresAt     time.Time   `json:"expires_at"`
}

type UserStats struct {
	Player       string    `json:"player"`
	TotalGames   int64     `json:"total_games"`
	TotalWins    int64     `json:"total_wins"`
	TotalLosses  int64     `json:"total_losses"`
	TotalWagered int64     `json:"total_wagered"`
	TotalWon     int64     `json:"total_won"`
	TotalLost    int64     `json:"total_lost"`
	BiggestWin   int64     `json:"biggest_win"`
	BiggestLoss  int64     `json:"biggest_loss"`
	LastPlayed   time.Time `json:"last_played"`
}

type TreasuryStats struct {
	Balance      int64     `json:"treasury_balance"`
	TotalWagered int64     `json:"total_wagered"`
	TotalPaid    int64     `json:"total_paid"`
	HouseWins    int64     `json:"house_wins"`
	HouseLosses  int64     `json:"house_losses"`
	LastUpdated  time.Time `json:"last_updated"`
}

type LeaderboardEntry struct {
	Player     string  `json:"player"`
	TotalWon   int64   `json:"total_won"`
	TotalGames int64   `json:"total_games"`
	WinRate    float64 `json:"win_rate"`
	Rank       int     `json:"rank"`
}

type FeedEvent struct {
	ID        string    `json:"id"`
	Player    string    `json:"player"`
	GameKind  string    `json:"game_type"`
	Wager     int64     `json:"wager"`
	Won       bool      `json:"won"`
	Timestamp time.Time `json:"timestamp"`
}

// SettleResult reports the outcome of a SettleGame call. AlreadySettled is
// set when the id was settled before this call; the embedded Game then
// carries the prior result unchanged.
type SettleResult struct {
	Game            Game  `json:"game"`
	AlreadySettled  bool  `json:"already_settled"`
	PayoutHeld      bool  `json:"payout_held"`
	TreasuryBalance int64 `json:"treasury_balance"`
}

// Stats is the dashboard aggregate.
type Stats struct {
	TotalGames   int64         `json:"total_games"`
	TotalRooms   int64         `json:"total_rooms"`
	TotalPlayers int64         `json:"total_players"`
	Treasury     TreasuryStats `json:"treasury"`
}

type DailyHighlight struct {
	Player string `json:"player"`
	Amount int64  `json:"amount"`
	Kind   string `json:"game"`
}

type DailyStreak struct {
	Player string `json:"player"`
	Streak int    `json:"streak"`
}

type DailyStats struct {
	BiggestWin      *DailyHighlight `json:"biggest_win_today"`
	BiggestLoss     *DailyHighlight `json:"biggest_loss_today"`
	HighestWager    *DailyHighlight `json:"highest_wager"`
	BestStreak      *DailyStreak    `json:"highest_win_streak"`
	HouseProfitLoss int64           `json:"house_profit_loss"`
}

// Ledger owns every persisted entity and all mutations on them. Each write
// is all-or-nothing, and writes on a single entity are linearized: two
// settlements of one game id, or two joins of one room, never both apply.
type Ledger interface {
	// RecordPendingGame accepts a wager before any randomness is revealed.
	// The commitment is the randomness provider's pre-draw commitment.
	RecordPendingGame(ctx context.Context, id, player string, kind game.Kind, wager int64, choice game.Choice, commitment string) (Game, error)

	// SettleGame marks a pending game settled and applies the economic
	// effects in the same unit: treasury, user stats, feed, leaderboard.
	// A second call with the same id is a no-op returning the prior result.
	SettleGame(ctx context.Context, id string, value int64, won bool) (SettleResult, error)

	// MarkGameRefunded moves a pending game to refunded after a randomness
	// or resolution failure. Refunded games touch no aggregates.
	MarkGameRefunded(ctx context.Context, id string) (Game, error)

	CreateRoom(ctx context.Context, id, creator string, kind game.Kind, wager int64, creatorChoice game.Choice, expiresAt time.Time) (Room, error)

	// JoinRoom claims a waiting, unexpired room for the opponent and
	// settles it in the same unit. Exactly one concurrent caller wins the
	// claim; the rest get ErrRoomNotAvailable.
	JoinRoom(ctx context.Context, id, opponent string, value int64, creatorWon bool) (Room, error)

	// CancelRoom refunds a still-waiting room.
	CancelRoom(ctx context.Context, id string) (Room, error)

	// ExpireRooms cancels every waiting room whose expiry has passed and
	// returns them so the caller can refund and notify.
	ExpireRooms(ctx context.Context, now time.Time) ([]Room, error)

	GetGame(ctx context.Context, id string) (Game, error)
	GetRoom(ctx context.Context, id string) (Room, error)
	ListOpenRooms(ctx context.Context) ([]Room, error)
	GetUserStats(ctx context.Context, player string) (UserStats, error)
	GetTreasuryStats(ctx context.Context) (TreasuryStats, error)
	GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	GetLiveFeed(ctx context.Context, limit int) ([]FeedEvent, error)
	GetStats(ctx context.Context) (Stats, error)
	GetDailyStats(ctx context.Context) (DailyStats, error)

	Close()
}
