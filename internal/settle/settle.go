package settle

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/realdoomsman/bagflip-casino/internal/game"
	"github.com/realdoomsman/bagflip-casino/internal/hub"
	"github.com/realdoomsman/bagflip-casino/internal/ledger"
	"github.com/realdoomsman/bagflip-casino/internal/payout"
	"github.com/realdoomsman/bagflip-casino/internal/vrf"
)

var (
	ErrInvalidWager  = errors.New("settle: wager must be positive")
	ErrMissingPlayer = errors.New("settle: player address required")

	// ErrRequestInFlight is returned when a request id is already pending;
	// the caller should retry once the first attempt finishes.
	ErrRequestInFlight = errors.New("settle: request already in flight")
)

// Bus receives settlement events for fan-out to connected clients.
type Bus interface {
	Broadcast(hub.Event)
}

// PlayRequest is one wager submission. RequestID doubles as the replay
// guard; a client retrying a timed-out call reuses the same id.
type PlayRequest struct {
	RequestID string
	Player    string
	Kind      game.Kind
	Wager     int64
	Choice    game.Choice
}

// PlayResult carries the settled game plus the provably-fair transcript.
type PlayResult struct {
	Game            ledger.Game `json:"game"`
	AlreadySettled  bool        `json:"already_settled"`
	PayoutHeld      bool        `json:"payout_held"`
	Payout          int64       `json:"payout"`
	PayoutSig       string      `json:"payout_sig,omitempty"`
	TreasuryBalance int64       `json:"treasury_balance"`
	ServerSeed      string      `json:"server_seed,omitempty"`
	Commitment      string      `json:"commitment"`
	Nonce           uint64      `json:"nonce"`
}

// Engine drives a wager from commitment to payout. The ledger is the only
// component allowed to mutate balances; the engine sequences the steps and
// feeds the bus.
type Engine struct {
	provider vrf.Provider
	store    ledger.Ledger
	payer    payout.Dispatcher
	bus      Bus
}

func NewEngine(provider vrf.Provider, store ledger.Ledger, payer payout.Dispatcher, bus Bus) *Engine {
	return &Engine{
		provider: provider,
		store:    store,
		payer:    payer,
		bus:      bus,
	}
}

// Play settles one wager end to end: commit randomness, record the pending
// game, reveal, resolve, settle, pay. A duplicate request id returns the
// previously recorded outcome without touching the ledger again.
func (e *Engine) Play(ctx context.Context, req PlayRequest) (PlayResult, error) {
	if err := validate(&req); err != nil {
		return PlayResult{}, err
	}

	commitment, err := e.provider.Commit(ctx, req.RequestID)
	if err != nil {
		return PlayResult{}, fmt.Errorf("settle: commit: %w", err)
	}

	pending, err := e.store.RecordPendingGame(ctx, req.RequestID, req.Player, req.Kind, req.Wager, req.Choice, commitment)
	if err != nil {
		// The commitment just made belongs to no wager; discard it so the
		// provider does not accumulate never-revealed entries.
		if aerr := e.provider.Abort(ctx, req.RequestID); aerr != nil {
			log.Printf("[VRF] Abort failed for %s: %v", req.RequestID, aerr)
		}
		if errors.Is(err, ledger.ErrDuplicateRequest) {
			return e.replay(ctx, req.RequestID)
		}
		return PlayResult{}, err
	}

	rnd, err := e.provider.RequestRandomness(ctx, req.RequestID)
	if err != nil {
		e.refund(ctx, pending)
		return PlayResult{}, fmt.Errorf("settle: reveal: %w", err)
	}

	outcome, err := game.Resolve(rnd.Payload, req.Kind, req.Choice)
	if err != nil {
		e.refund(ctx, pending)
		return PlayResult{}, fmt.Errorf("settle: resolve: %w", err)
	}

	res, err := e.store.SettleGame(ctx, req.RequestID, outcome.Value, outcome.Won)
	if err != nil {
		// The revealed draw is one-shot and cannot be replayed later, so a
		// failed settle refunds the wager instead of leaving it pending.
		e.refund(ctx, pending)
		return PlayResult{}, fmt.Errorf("settle: settle game: %w", err)
	}

	result := PlayResult{
		Game:            res.Game,
		AlreadySettled:  res.AlreadySettled,
		PayoutHeld:      res.PayoutHeld,
		TreasuryBalance: res.TreasuryBalance,
		ServerSeed:      rnd.ServerSeed,
		Commitment:      rnd.Commitment,
		Nonce:           rnd.Nonce,
	}

	if res.AlreadySettled {
		return result, nil
	}

	if res.Game.Won && !res.PayoutHeld {
		result.Payout = 2 * res.Game.Wager
		sig, err := e.payer.Send(ctx, res.Game.Player, result.Payout)
		if err != nil {
			// Ledger already recorded the win; delivery is retried out
			// of band from the settled record.
			log.Printf("[PAYOUT] Delivery failed for game %s: %v", res.Game.ID, err)
		} else {
			result.PayoutSig = sig
		}
	}
	if res.PayoutHeld {
		log.Printf("[SETTLE] Payout held for game %s: treasury balance %d", res.Game.ID, res.TreasuryBalance)
	}

	e.bus.Broadcast(hub.GameSettled(res.Game))

	log.Printf("[SETTLE] Game %s settled: player=%s kind=%s wager=%d won=%t value=%d",
		res.Game.ID, res.Game.Player, res.Game.Kind, res.Game.Wager, res.Game.Won, res.Game.Value)

	return result, nil
}

// replay serves a retried request id from the recorded outcome.
func (e *Engine) replay(ctx context.Context, id string) (PlayResult, error) {
	g, err := e.store.GetGame(ctx, id)
	if err != nil {
		return PlayResult{}, err
	}

	switch g.Status {
	case ledger.GameSettled:
		result := PlayResult{
			Game:           g,
			AlreadySettled: true,
			PayoutHeld:     g.PayoutHeld,
			Commitment:     g.Commitment,
		}
		if g.Won && !g.PayoutHeld {
			result.Payout = 2 * g.Wager
		}
		return result, nil
	case ledger.GamePending:
		return PlayResult{}, fmt.Errorf("%w: %s", ErrRequestInFlight, id)
	default:
		return PlayResult{}, fmt.Errorf("%w: %s", ledger.ErrDuplicateRequest, id)
	}
}

// refund unwinds a pending game after a randomness or resolution failure.
// Nothing reaches the live feed or the aggregates.
func (e *Engine) refund(ctx context.Context, g ledger.Game) {
	refunded, err := e.store.MarkGameRefunded(ctx, g.ID)
	if err != nil {
		log.Printf("[SETTLE] Refund mark failed for game %s: %v", g.ID, err)
		return
	}
	if _, err := e.payer.Send(ctx, refunded.Player, refunded.Wager); err != nil {
		log.Printf("[PAYOUT] Refund delivery failed for game %s: %v", g.ID, err)
	}
	log.Printf("[SETTLE] Game %s refunded: player=%s wager=%d", g.ID, refunded.Player, refunded.Wager)
}

func validate(req *PlayRequest) error {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Player == "" {
		return ErrMissingPlayer
	}
	if req.Wager <= 0 {
		return ErrInvalidWager
	}
	if _, err := game.ParseKind(string(req.Kind)); err != nil {
		return err
	}
	if req.Choice != 0 && req.Choice != 1 {
		return game.ErrInvalidChoice
	}
	return nil
}
