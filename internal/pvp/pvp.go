package pvp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/realdoomsman/bagflip-casino/internal/game"
	"github.com/realdoomsman/bagflip-casino/internal/hub"
	"github.com/realdoomsman/bagflip-casino/internal/ledger"
	"github.com/realdoomsman/bagflip-casino/internal/payout"
	"github.com/realdoomsman/bagflip-casino/internal/vrf"
)

// RoomExpiry is how long a room waits for an opponent before the sweeper
// cancels it.
const RoomExpiry = 5 * time.Minute

// SweepInterval is how often the expiry sweeper runs.
const SweepInterval = 5 * time.Second

var (
	ErrInvalidWager   = errors.New("pvp: wager must be positive")
	ErrMissingPlayer  = errors.New("pvp: player address required")
	ErrSelfJoin       = errors.New("pvp: cannot join your own room")
	ErrNotRoomCreator = errors.New("pvp: only the creator can cancel a room")
)

// Bus receives room lifecycle events for fan-out to connected clients.
type Bus interface {
	Broadcast(hub.Event)
}

// Manager owns the head-to-head room lifecycle. Joining a room draws
// randomness, resolves it against the creator's side and settles the room
// in one ledger transition; there is no intermediate playing state.
type Manager struct {
	provider  vrf.Provider
	store     ledger.Ledger
	payer     payout.Dispatcher
	bus       Bus
	scheduler gocron.Scheduler
}

func NewManager(provider vrf.Provider, store ledger.Ledger, payer payout.Dispatcher, bus Bus) *Manager {
	return &Manager{
		provider: provider,
		store:    store,
		payer:    payer,
		bus:      bus,
	}
}

type CreateRequest struct {
	Creator string
	Kind    game.Kind
	Wager   int64
	Choice  game.Choice
}

// CreateRoom opens a room that expires after RoomExpiry without an
// opponent. The creator's wager is escrowed until join, cancel or expiry.
func (m *Manager) CreateRoom(ctx context.Context, req CreateRequest) (ledger.Room, error) {
	if req.Creator == "" {
		return ledger.Room{}, ErrMissingPlayer
	}
	if req.Wager <= 0 {
		return ledger.Room{}, ErrInvalidWager
	}
	if _, err := game.ParseKind(string(req.Kind)); err != nil {
		return ledger.Room{}, err
	}
	if req.Choice != 0 && req.Choice != 1 {
		return ledger.Room{}, game.ErrInvalidChoice
	}

	id := uuid.NewString()
	room, err := m.store.CreateRoom(ctx, id, req.Creator, req.Kind, req.Wager, req.Choice, time.Now().Add(RoomExpiry))
	if err != nil {
		return ledger.Room{}, err
	}

	m.bus.Broadcast(hub.RoomCreated(room))
	log.Printf("[PVP] Room %s created: creator=%s kind=%s wager=%d", room.ID, room.Creator, room.Kind, room.Wager)
	return room, nil
}

// JoinRoom claims a waiting room for the opponent and settles it in one
// step. The draw happens before the ledger claim; when several opponents
// race, the losers' draws are discarded along with their claims.
func (m *Manager) JoinRoom(ctx context.Context, roomID, opponent string) (ledger.Room, error) {
	if opponent == "" {
		return ledger.Room{}, ErrMissingPlayer
	}

	room, err := m.store.GetRoom(ctx, roomID)
	if err != nil {
		return ledger.Room{}, err
	}
	if room.Creator == opponent {
		return ledger.Room{}, ErrSelfJoin
	}

	drawID := fmt.Sprintf("%s:join:%s", roomID, uuid.NewString())
	if _, err := m.provider.Commit(ctx, drawID); err != nil {
		return ledger.Room{}, fmt.Errorf("pvp: commit: %w", err)
	}
	rnd, err := m.provider.RequestRandomness(ctx, drawID)
	if err != nil {
		return ledger.Room{}, fmt.Errorf("pvp: reveal: %w", err)
	}

	outcome, err := game.Resolve(rnd.Payload, room.Kind, room.CreatorChoice)
	if err != nil {
		return ledger.Room{}, fmt.Errorf("pvp: resolve: %w", err)
	}

	settled, err := m.store.JoinRoom(ctx, roomID, opponent, outcome.Value, outcome.Won)
	if err != nil {
		return ledger.Room{}, err
	}

	pot := 2 * settled.Wager
	if _, err := m.payer.Send(ctx, settled.Winner, pot); err != nil {
		log.Printf("[PAYOUT] Pot delivery failed for room %s: %v", settled.ID, err)
	}

	m.bus.Broadcast(hub.RoomSettled(settled))
	log.Printf("[PVP] Room %s settled: winner=%s pot=%d value=%d", settled.ID, settled.Winner, pot, settled.Value)
	return settled, nil
}

// CancelRoom refunds a still-waiting room. Only the creator may cancel.
func (m *Manager) CancelRoom(ctx context.Context, roomID, caller string) (ledger.Room, error) {
	room, err := m.store.GetRoom(ctx, roomID)
	if err != nil {
		return ledger.Room{}, err
	}
	if room.Creator != caller {
		return ledger.Room{}, ErrNotRoomCreator
	}

	cancelled, err := m.store.CancelRoom(ctx, roomID)
	if err != nil {
		return ledger.Room{}, err
	}

	if _, err := m.payer.Send(ctx, cancelled.Creator, cancelled.Wager); err != nil {
		log.Printf("[PAYOUT] Cancel refund failed for room %s: %v", cancelled.ID, err)
	}

	m.bus.Broadcast(hub.RoomCancelled(cancelled, "cancelled"))
	log.Printf("[PVP] Room %s cancelled by creator", cancelled.ID)
	return cancelled, nil
}

// SweepExpired cancels every waiting room past its expiry, refunding each
// creator. Exposed for tests; the scheduler calls it on SweepInterval.
func (m *Manager) SweepExpired(ctx context.Context) {
	expired, err := m.store.ExpireRooms(ctx, time.Now())
	if err != nil {
		log.Printf("[PVP] Expiry sweep failed: %v", err)
		return
	}

	for _, room := range expired {
		if _, err := m.payer.Send(ctx, room.Creator, room.Wager); err != nil {
			log.Printf("[PAYOUT] Expiry refund failed for room %s: %v", room.ID, err)
		}
		m.bus.Broadcast(hub.RoomCancelled(room, "expired"))
		log.Printf("[PVP] Room %s expired: creator=%s refunded=%d", room.ID, room.Creator, room.Wager)
	}
}

// StartSweeper schedules the expiry sweep. Call Shutdown to stop it.
func (m *Manager) StartSweeper() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("pvp: scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(SweepInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), SweepInterval)
			defer cancel()
			m.SweepExpired(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("pvp: sweep job: %w", err)
	}

	scheduler.Start()
	m.scheduler = scheduler
	log.Printf("[PVP] Expiry sweeper running every %s", SweepInterval)
	return nil
}

// Shutdown stops the expiry sweeper.
func (m *Manager) Shutdown() error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Shutdown()
}
