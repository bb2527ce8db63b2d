package payout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrPayoutFailed is returned when every delivery attempt was exhausted.
var ErrPayoutFailed = errors.New("payout: dispatch failed")

// Dispatcher delivers winnings to a player and returns a transfer
// signature. Implementations must be safe for concurrent use.
type Dispatcher interface {
	Send(ctx context.Context, player string, amount int64) (string, error)
}

// SimDispatcher simulates transfer delivery with bounded retries. It stands
// in for the real treasury wallet during development and tests.
type SimDispatcher struct {
	MaxAttempts int
	Backoff     time.Duration

	// FailFirst makes the first N attempts fail; used by tests to
	// exercise the retry path.
	FailFirst int

	mu       sync.Mutex
	attempts int
}

func NewSimDispatcher() *SimDispatcher {
	return &SimDispatcher{
		MaxAttempts: 3,
		Backoff:     50 * time.Millisecond,
	}
}

func (d *SimDispatcher) Send(ctx context.Context, player string, amount int64) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("%w: non-positive amount %d", ErrPayoutFailed, amount)
	}

	var lastErr error
	for attempt := 1; attempt <= d.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrPayoutFailed, err)
		}

		d.mu.Lock()
		d.attempts++
		failing := d.attempts <= d.FailFirst
		d.mu.Unlock()

		if failing {
			lastErr = fmt.Errorf("simulated transfer failure (attempt %d)", attempt)
			log.Printf("[PAYOUT] Send to %s failed: %v", player, lastErr)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrPayoutFailed, ctx.Err())
			case <-time.After(d.Backoff):
			}
			continue
		}

		sig := newSignature()
		log.Printf("[PAYOUT] Sent %d to %s (sig %s)", amount, player, sig)
		return sig, nil
	}

	return "", fmt.Errorf("%w: %v", ErrPayoutFailed, lastErr)
}

func newSignature() string {
	buf := make([]byte, 32)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
