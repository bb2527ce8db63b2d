package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/realdoomsman/bagflip-casino/internal/game"
)

const pgUniqueViolation = "23505"

// Postgres is the durable Ledger. Per-entity linearization comes from row
// locks: every mutation selects its game, room and treasury rows FOR UPDATE
// inside one transaction, so concurrent writers on the same id serialize at
// the database.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger: commit tx: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (p *Postgres) RecordPendingGame(ctx context.Context, id, player string, kind game.Kind, wager int64, choice game.Choice, commitment string) (Game, error) {
	var g Game
	err := p.pool.QueryRow(ctx, `
		INSERT INTO games (id, player, game_type, wager, player_choice, status, commitment)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
		RETURNING id, player, game_type, wager, player_choice, status, value, won, payout_held, commitment, created_at`,
		id, player, string(kind), wager, int(choice), commitment,
	).Scan(&g.ID, &g.Player, &g.Kind, &g.Wager, &g.Choice, &g.Status, &g.Value, &g.Won, &g.PayoutHeld, &g.Commitment, &g.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Game{}, fmt.Errorf("%w: %s", ErrDuplicateRequest, id)
		}
		return Game{}, fmt.Errorf("ledger: record pending game: %w", err)
	}
	return g, nil
}

func (p *Postgres) SettleGame(ctx context.Context, id string, value int64, won bool) (SettleResult, error) {
	var res SettleResult
	err := p.withTx(ctx, func(tx pgx.Tx) error {
		g, err := lockGame(ctx, tx, id)
		if err != nil {
			return err
		}
		if g.Status == GameSettled {
			res = SettleResult{Game: g, AlreadySettled: true, PayoutHeld: g.PayoutHeld}
			return tx.QueryRow(ctx, `SELECT treasury_balance FROM treasury_stats WHERE id = 1`).
				Scan(&res.TreasuryBalance)
		}
		if g.Status != GamePending {
			return fmt.Errorf("%w: %s is %s", ErrGameNotPending, id, g.Status)
		}

		var balance int64
		if err := tx.QueryRow(ctx, `
			SELECT treasury_balance FROM treasury_stats WHERE id = 1 FOR UPDATE`).Scan(&balance); err != nil {
			return fmt.Errorf("ledger: lock treasury: %w", err)
		}

		payoutHeld := false
		if won {
			payout := g.Wager * 2
			if balance < payout {
				payoutHeld = true
				log.Printf("[LEDGER] Payout of %d for %s held: treasury balance %d", payout, id, balance)
				_, err = tx.Exec(ctx, `
					UPDATE treasury_stats SET
						total_wagered = total_wagered + $1,
						house_losses = house_losses + 1,
						last_updated = NOW()
					WHERE id = 1`, g.Wager)
			} else {
				balance -= payout
				_, err = tx.Exec(ctx, `
					UPDATE treasury_stats SET
						treasury_balance = treasury_balance - $1,
						total_wagered = total_wagered + $2,
						total_paid = total_paid + $1,
						house_losses = house_losses + 1,
						last_updated = NOW()
					WHERE id = 1`, payout, g.Wager)
			}
		} else {
			balance += g.Wager
			_, err = tx.Exec(ctx, `
				UPDATE treasury_stats SET
					treasury_balance = treasury_balance + $1,
					total_wagered = total_wagered + $1,
					house_wins = house_wins + 1,
					last_updated = NOW()
				WHERE id = 1`, g.Wager)
		}
		if err != nil {
			return fmt.Errorf("ledger: update treasury: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE games SET status = 'settled', value = $2, won = $3, payout_held = $4
			WHERE id = $1`, id, value, won, payoutHeld); err != nil {
			return fmt.Errorf("ledger: settle game: %w", err)
		}

		if err := applyUserResult(ctx, tx, g.Player, won, g.Wager); err != nil {
			return err
		}
		if err := appendFeed(ctx, tx, FeedEvent{
			ID: g.ID, Player: g.Player, GameKind: string(g.Kind), Wager: g.Wager, Won: won,
		}); err != nil {
			return err
		}
		if err := refreshLeaderboard(ctx, tx, g.Player); err != nil {
			return err
		}

		g.Status = GameSettled
		g.Value = value
		g.Won = won
		g.PayoutHeld = payoutHeld
		res = SettleResult{Game: g, PayoutHeld: payoutHeld, TreasuryBalance: balance}
		return nil
	})
	if err != nil {
		return SettleResult{}, err
	}
	return res, nil
}

func (p *Postgres) MarkGameRefunded(ctx context.Context, id string) (Game, error) {
	var g Game
	err := p.withTx(ctx, func(tx pgx.Tx) error {
		locked, err := lockGame(ctx, tx, id)
		if err != nil {
			return err
		}
		if locked.Status == GameRefunded {
			g = locked
			return nil
		}
		if locked.Status != GamePending {
			return fmt.Errorf("%w: %s is %s", ErrGameNotPending, id, locked.Status)
		}
		if _, err := tx.Exec(ctx, `UPDATE games SET status = 'refunded' WHERE id = $1`, id); err != nil {
			return fmt.Errorf("ledger: refund game: %w", err)
		}
		locked.Status = GameRefunded
		g = locked
		return nil
	})
	if err != nil {
		return Game{}, err
	}
	return g, nil
}

func (p *Postgres) CreateRoom(ctx context.Context, id, creator string, kind game.Kind, wager int64, creatorChoice game.Choice, expiresAt time.Time) (Room, error) {
	var r Room
	err := p.pool.QueryRow(ctx, `
		INSERT INTO pvp_rooms (id, creator, wager, game_type, creator_choice, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, 'waiting', $6)
		RETURNING id, creator, COALESCE(opponent, ''), wager, game_type, creator_choice,
		          COALESCE(winner, ''), value, status, created_at, expires_at`,
		id, creator, wager, string(kind), int(creatorChoice), expiresAt,
	).Scan(&r.ID, &r.Creator, &r.Opponent, &r.Wager, &r.Kind, &r.CreatorChoice,
		&r.Winner, &r.Value, &r.Status, &r.CreatedAt, &r.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Room{}, fmt.Errorf("%w: %s", ErrDuplicateRequest, id)
		}
		return Room{}, fmt.Errorf("ledger: create room: %w", err)
	}
	return r, nil
}

func (p *Postgres) JoinRoom(ctx context.Context, id, opponent string, value int64, creatorWon bool) (Room, error) {
	var r Room
	err := p.withTx(ctx, func(tx pgx.Tx) error {
		locked, err := lockRoom(ctx, tx, id)
		if err != nil {
			return err
		}
		if locked.Status != RoomWaiting || time.Now().After(locked.ExpiresAt) {
			return fmt.Errorf("%w: %s is %s", ErrRoomNotAvailable, id, locked.Status)
		}

		winner := locked.Creator
		if !creatorWon {
			winner = opponent
		}

		// The status predicate makes the claim a compare-and-swap even if
		// the row lock were ever bypassed.
		tag, err := tx.Exec(ctx, `
			UPDATE pvp_rooms SET opponent = $2, winner = $3, value = $4, status = 'finished'
			WHERE id = $1 AND status = 'waiting'`, id, opponent, winner, value)
		if err != nil {
			return fmt.Errorf("ledger: claim room: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrRoomNotAvailable, id)
		}

		if err := applyUserResult(ctx, tx, locked.Creator, creatorWon, locked.Wager); err != nil {
			return err
		}
		if err := applyUserResult(ctx, tx, opponent, !creatorWon, locked.Wager); err != nil {
			return err
		}
		if err := appendFeed(ctx, tx, FeedEvent{
			ID: locked.ID, Player: winner, GameKind: "PvP " + string(locked.Kind), Wager: locked.Wager, Won: true,
		}); err != nil {
			return err
		}
		if err := refreshLeaderboard(ctx, tx, locked.Creator, opponent); err != nil {
			return err
		}

		locked.Opponent = opponent
		locked.Winner = winner
		locked.Value = value
		locked.Status = RoomFinished
		r = locked
		return nil
	})
	if err != nil {
		return Room{}, err
	}
	return r, nil
}

func (p *Postgres) CancelRoom(ctx context.Context, id string) (Room, error) {
	var r Room
	err := p.withTx(ctx, func(tx pgx.Tx) error {
		locked, err := lockRoom(ctx, tx, id)
		if err != nil {
			return err
		}
		if locked.Status != RoomWaiting {
			return fmt.Errorf("%w: %s is %s", ErrRoomNotAvailable, id, locked.Status)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE pvp_rooms SET status = 'cancelled' WHERE id = $1`, id); err != nil {
			return fmt.Errorf("ledger: cancel room: %w", err)
		}
		locked.Status = RoomCancelled
		r = locked
		return nil
	})
	if err != nil {
		return Room{}, err
	}
	return r, nil
}

func (p *Postgres) ExpireRooms(ctx context.Context, now time.Time) ([]Room, error) {
	rows, err := p.pool.Query(ctx, `
		UPDATE pvp_rooms SET status = 'cancelled'
		WHERE status = 'waiting' AND expires_at < $1
		RETURNING id, creator, COALESCE(opponent, ''), wager, game_type, creator_choice,
		          COALESCE(winner, ''), value, status, created_at, expires_at`, now)
	if err != nil {
		return nil, fmt.Errorf("ledger: expire rooms: %w", err)
	}
	defer rows.Close()
	return scanRooms(rows)
}

func (p *Postgres) GetGame(ctx context.Context, id string) (Game, error) {
	g, err := scanGame(p.pool.QueryRow(ctx, `
		SELECT id, player, game_type, wager, player_choice, status, value, won, payout_held, commitment, created_at
		FROM games WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Game{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return g, err
}

func (p *Postgres) GetRoom(ctx context.Context, id string) (Room, error) {
	r, err := scanRoom(p.pool.QueryRow(ctx, `
		SELECT id, creator, COALESCE(opponent, ''), wager, game_type, creator_choice,
		       COALESCE(winner, ''), value, status, created_at, expires_at
		FROM pvp_rooms WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Room{}, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return r, err
}

func (p *Postgres) ListOpenRooms(ctx context.Context) ([]Room, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, creator, COALESCE(opponent, ''), wager, game_type, creator_choice,
		       COALESCE(winner, ''), value, status, created_at, expires_at
		FROM pvp_rooms
		WHERE status = 'waiting' AND expires_at > NOW()
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ledger: list rooms: %w", err)
	}
	defer rows.Close()
	return scanRooms(rows)
}

func (p *Postgres) GetUserStats(ctx context.Context, player string) (UserStats, error) {
	var s UserStats
	var lastPlayed sql.NullTime
	err := p.pool.QueryRow(ctx, `
		SELECT player, total_games, total_wins, total_losses, total_wagered,
		       total_won, total_lost, biggest_win, biggest_loss, last_played
		FROM user_stats WHERE player = $1`, player,
	).Scan(&s.Player, &s.TotalGames, &s.TotalWins, &s.TotalLosses, &s.TotalWagered,
		&s.TotalWon, &s.TotalLost, &s.BiggestWin, &s.BiggestLoss, &lastPlayed)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserStats{}, fmt.Errorf("%w: no stats for %s", ErrNotFound, player)
	}
	if err != nil {
		return UserStats{}, fmt.Errorf("ledger: get user stats: %w", err)
	}
	if lastPlayed.Valid {
		s.LastPlayed = lastPlayed.Time
	}
	return s, nil
}

func (p *Postgres) GetTreasuryStats(ctx context.Context) (TreasuryStats, error) {
	var t TreasuryStats
	err := p.pool.QueryRow(ctx, `
		SELECT treasury_balance, total_wagered, total_paid, house_wins, house_losses, last_updated
		FROM treasury_stats WHERE id = 1`,
	).Scan(&t.Balance, &t.TotalWagered, &t.TotalPaid, &t.HouseWins, &t.HouseLosses, &t.LastUpdated)
	if err != nil {
		return TreasuryStats{}, fmt.Errorf("ledger: get treasury stats: %w", err)
	}
	return t, nil
}

func (p *Postgres) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx, `
		SELECT player, total_won, total_games, win_rate, COALESCE(rank, 0)
		FROM leaderboard_cache
		ORDER BY rank ASC, player ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: get leaderboard: %w", err)
	}
	defer rows.Close()

	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Player, &e.TotalWon, &e.TotalGames, &e.WinRate, &e.Rank); err != nil {
			return nil, fmt.Errorf("ledger: scan leaderboard: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) GetLiveFeed(ctx context.Context, limit int) ([]FeedEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id, player, game_type, wager, won, timestamp
		FROM live_feed_events
		ORDER BY timestamp DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: get live feed: %w", err)
	}
	defer rows.Close()

	var out []FeedEvent
	for rows.Next() {
		var e FeedEvent
		if err := rows.Scan(&e.ID, &e.Player, &e.GameKind, &e.Wager, &e.Won, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("ledger: scan feed event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	err := p.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM games),
			(SELECT COUNT(*) FROM pvp_rooms),
			(SELECT COUNT(*) FROM user_stats)`,
	).Scan(&s.TotalGames, &s.TotalRooms, &s.TotalPlayers)
	if err != nil {
		return Stats{}, fmt.Errorf("ledger: get stats: %w", err)
	}
	s.Treasury, err = p.GetTreasuryStats(ctx)
	return s, err
}

func (p *Postgres) GetDailyStats(ctx context.Context) (DailyStats, error) {
	var out DailyStats

	scanHighlight := func(query string) (*DailyHighlight, error) {
		var h DailyHighlight
		err := p.pool.QueryRow(ctx, query).Scan(&h.Player, &h.Amount, &h.Kind)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("ledger: daily stats: %w", err)
		}
		return &h, nil
	}

	var err error
	out.BiggestWin, err = scanHighlight(`
		SELECT player, wager * 2, game_type FROM games
		WHERE status = 'settled' AND won AND created_at > NOW() - INTERVAL '24 hours'
		ORDER BY wager DESC LIMIT 1`)
	if err != nil {
		return DailyStats{}, err
	}
	out.BiggestLoss, err = scanHighlight(`
		SELECT player, wager, game_type FROM games
		WHERE status = 'settled' AND NOT won AND created_at > NOW() - INTERVAL '24 hours'
		ORDER BY wager DESC LIMIT 1`)
	if err != nil {
		return DailyStats{}, err
	}
	out.HighestWager, err = scanHighlight(`
		SELECT player, wager, game_type FROM games
		WHERE status = 'settled' AND created_at > NOW() - INTERVAL '24 hours'
		ORDER BY wager DESC LIMIT 1`)
	if err != nil {
		return DailyStats{}, err
	}

	// Longest run of consecutive wins ending at a player's latest game.
	var streak DailyStreak
	err = p.pool.QueryRow(ctx, `
		WITH recent AS (
			SELECT player, won,
			       ROW_NUMBER() OVER (PARTITION BY player ORDER BY created_at DESC) AS rn
			FROM games
			WHERE status = 'settled' AND created_at > NOW() - INTERVAL '24 hours'
		),
		streaks AS (
			SELECT player, COUNT(*) AS streak FROM recent r
			WHERE won AND NOT EXISTS (
				SELECT 1 FROM recent r2
				WHERE r2.player = r.player AND r2.rn < r.rn AND NOT r2.won
			)
			GROUP BY player
		)
		SELECT player, streak FROM streaks ORDER BY streak DESC, player ASC LIMIT 1`,
	).Scan(&streak.Player, &streak.Streak)
	if err == nil && streak.Streak > 0 {
		out.BestStreak = &streak
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return DailyStats{}, fmt.Errorf("ledger: daily streak: %w", err)
	}

	err = p.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN won THEN -(wager * 2) ELSE wager END), 0)
		FROM games
		WHERE status = 'settled' AND created_at > NOW() - INTERVAL '24 hours'`,
	).Scan(&out.HouseProfitLoss)
	if err != nil {
		return DailyStats{}, fmt.Errorf("ledger: daily house pnl: %w", err)
	}

	return out, nil
}

// ---- transaction helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (Game, error) {
	var g Game
	err := row.Scan(&g.ID, &g.Player, &g.Kind, &g.Wager, &g.Choice, &g.Status,
		&g.Value, &g.Won, &g.PayoutHeld, &g.Commitment, &g.CreatedAt)
	if err != nil {
		return Game{}, err
	}
	return g, nil
}

func scanRoom(row rowScanner) (Room, error) {
	var r Room
	err := row.Scan(&r.ID, &r.Creator, &r.Opponent, &r.Wager, &r.Kind, &r.CreatorChoice,
		&r.Winner, &r.Value, &r.Status, &r.CreatedAt, &r.ExpiresAt)
	if err != nil {
		return Room{}, err
	}
	return r, nil
}

func scanRooms(rows pgx.Rows) ([]Room, error) {
	var out []Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan room: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func lockGame(ctx context.Context, tx pgx.Tx, id string) (Game, error) {
	g, err := scanGame(tx.QueryRow(ctx, `
		SELECT id, player, game_type, wager, player_choice, status, value, won, payout_held, commitment, created_at
		FROM games WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Game{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Game{}, fmt.Errorf("ledger: lock game: %w", err)
	}
	return g, nil
}

func lockRoom(ctx context.Context, tx pgx.Tx, id string) (Room, error) {
	r, err := scanRoom(tx.QueryRow(ctx, `
		SELECT id, creator, COALESCE(opponent, ''), wager, game_type, creator_choice,
		       COALESCE(winner, ''), value, status, created_at, expires_at
		FROM pvp_rooms WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Room{}, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	if err != nil {
		return Room{}, fmt.Errorf("ledger: lock room: %w", err)
	}
	return r, nil
}

func applyUserResult(ctx context.Context, tx pgx.Tx, player string, won bool, wager int64) error {
	var wins, losses, wonAmt, lostAmt int64
	if won {
		wins, wonAmt = 1, wager*2
	} else {
		losses, lostAmt = 1, wager
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO user_stats (player, total_games, total_wins, total_losses,
			total_wagered, total_won, total_lost, biggest_win, biggest_loss, last_played)
		VALUES ($1, 1, $2, $3, $4, $5, $6, $5, $6, NOW())
		ON CONFLICT (player) DO UPDATE SET
			total_games = user_stats.total_games + 1,
			total_wins = user_stats.total_wins + $2,
			total_losses = user_stats.total_losses + $3,
			total_wagered = user_stats.total_wagered + $4,
			total_won = user_stats.total_won + $5,
			total_lost = user_stats.total_lost + $6,
			biggest_win = GREATEST(user_stats.biggest_win, $5),
			biggest_loss = GREATEST(user_stats.biggest_loss, $6),
			last_played = NOW()`,
		player, wins, losses, wager, wonAmt, lostAmt)
	if err != nil {
		return fmt.Errorf("ledger: update user stats: %w", err)
	}
	return nil
}

func appendFeed(ctx context.Context, tx pgx.Tx, e FeedEvent) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO live_feed_events (id, player, game_type, wager, won, timestamp)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Player, e.GameKind, e.Wager, e.Won); err != nil {
		return fmt.Errorf("ledger: append feed event: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM live_feed_events WHERE id NOT IN (
			SELECT id FROM live_feed_events ORDER BY timestamp DESC LIMIT $1
		)`, FeedLimit); err != nil {
		return fmt.Errorf("ledger: trim feed: %w", err)
	}
	return nil
}

// refreshLeaderboard re-caches the named players' rows and recomputes dense
// ranks, inside the caller's transaction so readers never see a half-ranked
// board.
func refreshLeaderboard(ctx context.Context, tx pgx.Tx, players ...string) error {
	for _, player := range players {
		if _, err := tx.Exec(ctx, `
			INSERT INTO leaderboard_cache (player, total_won, total_games, win_rate, updated_at)
			SELECT player, total_won, total_games,
			       CASE WHEN total_games > 0
			            THEN total_wins::DOUBLE PRECISION / total_games * 100
			            ELSE 0 END,
			       NOW()
			FROM user_stats WHERE player = $1
			ON CONFLICT (player) DO UPDATE SET
				total_won = EXCLUDED.total_won,
				total_games = EXCLUDED.total_games,
				win_rate = EXCLUDED.win_rate,
				updated_at = NOW()`, player); err != nil {
			return fmt.Errorf("ledger: refresh leaderboard row: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE leaderboard_cache SET rank = ranked.r
		FROM (
			SELECT player, DENSE_RANK() OVER (ORDER BY total_won DESC) AS r
			FROM leaderboard_cache
		) ranked
		WHERE leaderboard_cache.player = ranked.player`); err != nil {
		return fmt.Errorf("ledger: rank leaderboard: %w", err)
	}
	return nil
}
