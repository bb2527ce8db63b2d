package vrf

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	ModeLocal  = "local"
	ModeOracle = "oracle"

	// PayloadSize is the minimum number of random bytes a provider must
	// return for one request.
	PayloadSize = 32
)

var (
	// ErrProviderUnavailable is returned when the oracle cannot deliver
	// randomness within its deadline. Callers must refund, never fall back
	// to a weaker source.
	ErrProviderUnavailable = errors.New("vrf: provider unavailable")

	// ErrNotCommitted is returned when randomness is requested for an id
	// that was never committed. The wager must be locked in against the
	// commitment before any bytes are revealed.
	ErrNotCommitted = errors.New("vrf: randomness requested before commit")
)

// Randomness is one revealed draw plus the material needed to audit it.
type Randomness struct {
	Payload    []byte `json:"-"`
	ServerSeed string `json:"server_seed"`
	Commitment string `json:"commitment"`
	Nonce      uint64 `json:"nonce"`
}

// Provider produces one unpredictable payload per request id.
//
// Commit fixes the draw for a request id and returns a commitment that is
// persisted with the pending wager; RequestRandomness reveals the bytes
// afterwards. The two-step shape is what makes the draw non-chooseable:
// whoever observes the request cannot pick an outcome after seeing it.
type Provider interface {
	Commit(ctx context.Context, requestID string) (commitment string, err error)
	RequestRandomness(ctx context.Context, requestID string) (Randomness, error)

	// Abort discards a commitment that will never be revealed, such as one
	// made for a request id that turned out to be a duplicate.
	Abort(ctx context.Context, requestID string) error

	Mode() string
}

// derivePayload computes the revealed bytes for a committed request.
func derivePayload(serverSeed, requestID string, nonce uint64) []byte {
	data := fmt.Sprintf("%s:%d", requestID, nonce)
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(data))
	return h.Sum(nil)
}

// Commitment hashes a server seed for publication before the reveal.
func Commitment(serverSeed string) string {
	h := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(h[:])
}

// Verify recomputes the transcript for a revealed draw. Players use this to
// check that the payload matches the commitment published before their
// wager was accepted.
func Verify(serverSeed, requestID string, nonce uint64, commitment string, payload []byte) bool {
	if Commitment(serverSeed) != commitment {
		return false
	}
	return hmac.Equal(derivePayload(serverSeed, requestID, nonce), payload)
}

// generateSeed returns a cryptographically secure random seed.
func generateSeed() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("vrf: seed generation failed: %w", err)
	}
	return hex.EncodeToString(b), nil
}
