package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/realdoomsman/bagflip-casino/internal/ledger"
)

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		value      string
		defaultVal string
		expected   string
	}{
		{"set value", "CACHE_TEST_SET", "custom", "fallback", "custom"},
		{"unset value", "CACHE_TEST_UNSET", "", "fallback", "fallback"},
		{"empty value uses default", "CACHE_TEST_EMPTY", "", "fallback", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
				defer os.Unsetenv(tt.key)
			}
			if got := getEnv(tt.key, tt.defaultVal); got != tt.expected {
				t.Errorf("getEnv(%q) = %q, want %q", tt.key, got, tt.expected)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		value      string
		defaultVal int
		expected   int
	}{
		{"valid int", "CACHE_TEST_INT", "7", 0, 7},
		{"invalid int uses default", "CACHE_TEST_BAD", "seven", 3, 3},
		{"unset uses default", "CACHE_TEST_MISSING", "", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				os.Setenv(tt.key, tt.value)
				defer os.Unsetenv(tt.key)
			}
			if got := getEnvAsInt(tt.key, tt.defaultVal); got != tt.expected {
				t.Errorf("getEnvAsInt(%q) = %d, want %d", tt.key, got, tt.expected)
			}
		})
	}
}

func TestNilSnapshotsIsNoOp(t *testing.T) {
	ctx := context.Background()

	var snaps *Snapshots

	snaps.StoreLeaderboard(ctx, []ledger.LeaderboardEntry{{Player: "0xabc", Rank: 1}})
	snaps.StoreStats(ctx, ledger.Stats{TotalGames: 1})
	snaps.Invalidate(ctx)

	if _, ok := snaps.Leaderboard(ctx); ok {
		t.Error("nil snapshots reported a cached leaderboard")
	}
	if _, ok := snaps.Stats(ctx); ok {
		t.Error("nil snapshots reported cached stats")
	}
}

func TestSnapshotsUnreachableRedisDegrades(t *testing.T) {
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	})
	snaps := NewSnapshots(&service{client: client})
	if snaps == nil {
		t.Fatal("NewSnapshots() returned nil for a live service")
	}

	// Writes fail silently; reads report a miss so callers fall through
	// to the ledger.
	snaps.StoreStats(ctx, ledger.Stats{TotalGames: 7})
	snaps.StoreLeaderboard(ctx, []ledger.LeaderboardEntry{{Player: "0xabc", Rank: 1}})
	snaps.Invalidate(ctx)

	if _, ok := snaps.Stats(ctx); ok {
		t.Error("unreachable redis reported cached stats")
	}
	if _, ok := snaps.Leaderboard(ctx); ok {
		t.Error("unreachable redis reported a cached leaderboard")
	}
}

func TestNewSnapshotsNilService(t *testing.T) {
	if snaps := NewSnapshots(nil); snaps != nil {
		t.Error("expected nil snapshots for nil cache service")
	}
}
