package vrf

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLocalProvider_CommitThenReveal(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()

	commitment, err := p.Commit(ctx, "game-1")
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if len(commitment) != 64 {
		t.Errorf("commitment length = %d, want 64 hex chars", len(commitment))
	}

	r, err := p.RequestRandomness(ctx, "game-1")
	if err != nil {
		t.Fatalf("RequestRandomness() error: %v", err)
	}
	if len(r.Payload) < PayloadSize {
		t.Errorf("payload length = %d, want >= %d", len(r.Payload), PayloadSize)
	}
	if r.Commitment != commitment {
		t.Errorf("revealed commitment %s does not match committed %s", r.Commitment, commitment)
	}
	if !Verify(r.ServerSeed, "game-1", r.Nonce, r.Commitment, r.Payload) {
		t.Error("revealed randomness failed verification against its commitment")
	}
}

func TestLocalProvider_RevealWithoutCommit(t *testing.T) {
	p := NewLocalProvider()

	_, err := p.RequestRandomness(context.Background(), "never-committed")
	if !errors.Is(err, ErrNotCommitted) {
		t.Errorf("err = %v, want ErrNotCommitted", err)
	}
}

func TestLocalProvider_RevealIsOneShot(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()

	if _, err := p.Commit(ctx, "game-1"); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if _, err := p.RequestRandomness(ctx, "game-1"); err != nil {
		t.Fatalf("first reveal error: %v", err)
	}
	if _, err := p.RequestRandomness(ctx, "game-1"); !errors.Is(err, ErrNotCommitted) {
		t.Errorf("second reveal err = %v, want ErrNotCommitted", err)
	}
}

func TestLocalProvider_AbortDiscardsCommit(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()

	if _, err := p.Commit(ctx, "game-1"); err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if err := p.Abort(ctx, "game-1"); err != nil {
		t.Fatalf("Abort() error: %v", err)
	}

	if _, err := p.RequestRandomness(ctx, "game-1"); !errors.Is(err, ErrNotCommitted) {
		t.Errorf("reveal after abort error = %v, want ErrNotCommitted", err)
	}

	// Aborting an unknown id is harmless.
	if err := p.Abort(ctx, "never-committed"); err != nil {
		t.Errorf("Abort(unknown) error = %v, want nil", err)
	}
}

func TestLocalProvider_DistinctRequestsDistinctPayloads(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()

	seen := make(map[string]bool)
	for _, id := range []string{"a", "b", "c", "d"} {
		if _, err := p.Commit(ctx, id); err != nil {
			t.Fatalf("Commit(%s) error: %v", id, err)
		}
		r, err := p.RequestRandomness(ctx, id)
		if err != nil {
			t.Fatalf("RequestRandomness(%s) error: %v", id, err)
		}
		key := hex.EncodeToString(r.Payload)
		if seen[key] {
			t.Fatalf("duplicate payload for request %s", id)
		}
		seen[key] = true
	}
}

func TestVerify_RejectsTamperedTranscript(t *testing.T) {
	p := NewLocalProvider()
	ctx := context.Background()

	p.Commit(ctx, "game-1")
	r, err := p.RequestRandomness(ctx, "game-1")
	if err != nil {
		t.Fatalf("RequestRandomness() error: %v", err)
	}

	tampered := append([]byte(nil), r.Payload...)
	tampered[0] ^= 0xff
	if Verify(r.ServerSeed, "game-1", r.Nonce, r.Commitment, tampered) {
		t.Error("Verify accepted a tampered payload")
	}
	if Verify("wrong-seed", "game-1", r.Nonce, r.Commitment, r.Payload) {
		t.Error("Verify accepted a wrong server seed")
	}
	if Verify(r.ServerSeed, "game-1", r.Nonce+1, r.Commitment, r.Payload) {
		t.Error("Verify accepted a wrong nonce")
	}
}

func TestOracleProvider_RoundTrip(t *testing.T) {
	payload := make([]byte, 32)
	for i := range payload {
		payload[i] = byte(i)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/commit":
			json.NewEncoder(w).Encode(map[string]string{"commitment": "abc123"})
		case "/randomness":
			if r.URL.Query().Get("request_id") != "game-1" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"payload":     hex.EncodeToString(payload),
				"server_seed": "seed",
				"commitment":  "abc123",
				"nonce":       7,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewOracleProvider(srv.URL, 2*time.Second)
	ctx := context.Background()

	commitment, err := p.Commit(ctx, "game-1")
	if err != nil {
		t.Fatalf("Commit() error: %v", err)
	}
	if commitment != "abc123" {
		t.Errorf("commitment = %q, want abc123", commitment)
	}

	r, err := p.RequestRandomness(ctx, "game-1")
	if err != nil {
		t.Fatalf("RequestRandomness() error: %v", err)
	}
	if len(r.Payload) != 32 || r.Nonce != 7 {
		t.Errorf("unexpected randomness: %d bytes, nonce %d", len(r.Payload), r.Nonce)
	}
}

func TestOracleProvider_AbortIsBestEffort(t *testing.T) {
	p := NewOracleProvider("http://127.0.0.1:1", time.Second)

	if err := p.Abort(context.Background(), "game-1"); err != nil {
		t.Errorf("Abort() error = %v, want nil for unreachable oracle", err)
	}
}

func TestOracleProvider_UnreachableIsUnavailable(t *testing.T) {
	p := NewOracleProvider("http://127.0.0.1:1", 200*time.Millisecond)

	if _, err := p.Commit(context.Background(), "game-1"); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Commit err = %v, want ErrProviderUnavailable", err)
	}
	if _, err := p.RequestRandomness(context.Background(), "game-1"); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("RequestRandomness err = %v, want ErrProviderUnavailable", err)
	}
}

func TestOracleProvider_ShortPayloadIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"payload": "aabb", "server_seed": "s", "commitment": "c", "nonce": 1,
		})
	}))
	defer srv.Close()

	p := NewOracleProvider(srv.URL, time.Second)
	if _, err := p.RequestRandomness(context.Background(), "game-1"); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestOracleProvider_TimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	p := NewOracleProvider(srv.URL, 50*time.Millisecond)
	if _, err := p.RequestRandomness(context.Background(), "game-1"); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
}
