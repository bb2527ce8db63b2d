package vrf

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// LocalProvider is the non-production randomness source: a commit-then-reveal
// HMAC transcript seeded from crypto/rand. It is selected explicitly via
// VRF_MODE=local and is never used as a fallback when the oracle fails.
type LocalProvider struct {
	mu      sync.Mutex
	pending map[string]localCommit
	nonce   uint64
}

type localCommit struct {
	serverSeed string
	commitment string
	nonce      uint64
}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{pending: make(map[string]localCommit)}
}

func (p *LocalProvider) Mode() string { return ModeLocal }

func (p *LocalProvider) Commit(ctx context.Context, requestID string) (string, error) {
	seed, err := generateSeed()
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.nonce++
	c := localCommit{
		serverSeed: seed,
		commitment: Commitment(seed),
		nonce:      p.nonce,
	}
	p.pending[requestID] = c

	log.Printf("[VRF] Committed %s (nonce %d, commitment %s...)", requestID, c.nonce, c.commitment[:16])
	return c.commitment, nil
}

func (p *LocalProvider) Abort(ctx context.Context, requestID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, requestID)
	return nil
}

func (p *LocalProvider) RequestRandomness(ctx context.Context, requestID string) (Randomness, error) {
	p.mu.Lock()
	c, ok := p.pending[requestID]
	if ok {
		delete(p.pending, requestID)
	}
	p.mu.Unlock()

	if !ok {
		return Randomness{}, fmt.Errorf("%w: %s", ErrNotCommitted, requestID)
	}

	return Randomness{
		Payload:    derivePayload(c.serverSeed, requestID, c.nonce),
		ServerSeed: c.serverSeed,
		Commitment: c.commitment,
		Nonce:      c.nonce,
	}, nil
}
