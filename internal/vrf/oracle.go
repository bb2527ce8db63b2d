package vrf

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// OracleProvider delegates randomness to an external verifiable oracle over
// HTTP. Every call is bounded by the configured timeout; any transport or
// protocol failure surfaces as ErrProviderUnavailable so the caller routes
// to the refund path instead of waiting or substituting weaker bytes.
type OracleProvider struct {
	baseURL string
	client  *http.Client
}

func NewOracleProvider(baseURL string, timeout time.Duration) *OracleProvider {
	return &OracleProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *OracleProvider) Mode() string { return ModeOracle }

type oracleCommitResponse struct {
	Commitment string `json:"commitment"`
}

type oracleRevealResponse struct {
	Payload    string `json:"payload"`
	ServerSeed string `json:"server_seed"`
	Commitment string `json:"commitment"`
	Nonce      uint64 `json:"nonce"`
}

func (p *OracleProvider) Commit(ctx context.Context, requestID string) (string, error) {
	body, _ := json.Marshal(map[string]string{"request_id": requestID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/commit", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		log.Printf("[VRF] Oracle commit failed for %s: %v", requestID, err)
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: oracle commit returned %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var out oracleCommitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if out.Commitment == "" {
		return "", fmt.Errorf("%w: oracle returned empty commitment", ErrProviderUnavailable)
	}
	return out.Commitment, nil
}

// Abort is best effort: the oracle expires unrevealed commitments on its
// own, so a delivery failure here is not an error.
func (p *OracleProvider) Abort(ctx context.Context, requestID string) error {
	body, _ := json.Marshal(map[string]string{"request_id": requestID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/abort", bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		log.Printf("[VRF] Oracle abort failed for %s: %v", requestID, err)
		return nil
	}
	resp.Body.Close()
	return nil
}

func (p *OracleProvider) RequestRandomness(ctx context.Context, requestID string) (Randomness, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/randomness?request_id="+requestID, nil)
	if err != nil {
		return Randomness{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		log.Printf("[VRF] Oracle reveal failed for %s: %v", requestID, err)
		return Randomness{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Randomness{}, fmt.Errorf("%w: oracle reveal returned %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var out oracleRevealResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Randomness{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	payload, err := hex.DecodeString(out.Payload)
	if err != nil {
		return Randomness{}, fmt.Errorf("%w: undecodable payload: %v", ErrProviderUnavailable, err)
	}
	if len(payload) < PayloadSize {
		return Randomness{}, fmt.Errorf("%w: oracle payload is %d bytes, need %d", ErrProviderUnavailable, len(payload), PayloadSize)
	}

	return Randomness{
		Payload:    payload,
		ServerSeed: out.ServerSeed,
		Commitment: out.Commitment,
		Nonce:      out.Nonce,
	}, nil
}
