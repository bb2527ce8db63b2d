package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/realdoomsman/bagflip-casino/internal/ledger"
)

const (
	keyLeaderboard = "casino:snapshot:leaderboard"
	keyStats       = "casino:snapshot:stats"

	// SnapshotTTL bounds how stale a cached read can be. Reads are
	// eventually-consistent snapshots; the ledger stays the source of truth.
	SnapshotTTL = 5 * time.Second
)

// Snapshots caches the hot read endpoints (leaderboard, dashboard stats) so
// bursts of viewers do not hammer the ledger. A nil Snapshots is a no-op.
type Snapshots struct {
	client *redis.Client
}

// NewSnapshots returns nil when svc is nil so callers can wire it blindly.
func NewSnapshots(svc Service) *Snapshots {
	if svc == nil {
		return nil
	}
	return &Snapshots{client: svc.GetClient()}
}

func (s *Snapshots) StoreLeaderboard(ctx context.Context, entries []ledger.LeaderboardEntry) {
	s.store(ctx, keyLeaderboard, entries)
}

func (s *Snapshots) Leaderboard(ctx context.Context) ([]ledger.LeaderboardEntry, bool) {
	var entries []ledger.LeaderboardEntry
	if !s.load(ctx, keyLeaderboard, &entries) {
		return nil, false
	}
	return entries, true
}

func (s *Snapshots) StoreStats(ctx context.Context, st ledger.Stats) {
	s.store(ctx, keyStats, st)
}

func (s *Snapshots) Stats(ctx context.Context) (ledger.Stats, bool) {
	var st ledger.Stats
	if !s.load(ctx, keyStats, &st) {
		return ledger.Stats{}, false
	}
	return st, true
}

// Invalidate drops both snapshots; called after every settlement so viewers
// converge quickly.
func (s *Snapshots) Invalidate(ctx context.Context) {
	if s == nil {
		return
	}
	s.client.Del(ctx, keyLeaderboard, keyStats)
}

func (s *Snapshots) store(ctx context.Context, key string, v any) {
	if s == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.client.Set(ctx, key, data, SnapshotTTL)
}

func (s *Snapshots) load(ctx context.Context, key string, v any) bool {
	if s == nil {
		return false
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}
