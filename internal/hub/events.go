package hub

import (
	"time"

	"github.com/realdoomsman/bagflip-casino/internal/ledger"
)

// EventType enumerates every event the hub will carry. Emitting anything
// outside this set is a programming error, so constructors below are the
// only way to build an Event.
type EventType string

const (
	EventGameSettled   EventType = "game_settled"
	EventRoomCreated   EventType = "room_created"
	EventRoomSettled   EventType = "room_settled"
	EventRoomCancelled EventType = "room_cancelled"
)

// Event is the envelope broadcast to websocket clients.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// GameSettledPayload mirrors the live feed entry for a finished solo game.
type GameSettledPayload struct {
	GameID    string `json:"game_id"`
	Player    string `json:"player"`
	GameType  string `json:"game_type"`
	Wager     int64  `json:"wager"`
	Won       bool   `json:"won"`
	Value     int64  `json:"value"`
	Payout    int64  `json:"payout"`
	Timestamp int64  `json:"timestamp"`
}

type RoomCreatedPayload struct {
	RoomID    string `json:"room_id"`
	Creator   string `json:"creator"`
	GameType  string `json:"game_type"`
	Wager     int64  `json:"wager"`
	ExpiresAt int64  `json:"expires_at"`
	Timestamp int64  `json:"timestamp"`
}

type RoomSettledPayload struct {
	RoomID    string `json:"room_id"`
	Creator   string `json:"creator"`
	Opponent  string `json:"opponent"`
	Winner    string `json:"winner"`
	GameType  string `json:"game_type"`
	Pot       int64  `json:"pot"`
	Value     int64  `json:"value"`
	Timestamp int64  `json:"timestamp"`
}

type RoomCancelledPayload struct {
	RoomID    string `json:"room_id"`
	Creator   string `json:"creator"`
	Reason    string `json:"reason"` // "cancelled" or "expired"
	Timestamp int64  `json:"timestamp"`
}

func GameSettled(g ledger.Game) Event {
	payout := int64(0)
	if g.Won && !g.PayoutHeld {
		payout = 2 * g.Wager
	}
	return Event{Type: EventGameSettled, Data: GameSettledPayload{
		GameID:    g.ID,
		Player:    g.Player,
		GameType:  string(g.Kind),
		Wager:     g.Wager,
		Won:       g.Won,
		Value:     g.Value,
		Payout:    payout,
		Timestamp: time.Now().Unix(),
	}}
}

func RoomCreated(r ledger.Room) Event {
	return Event{Type: EventRoomCreated, Data: RoomCreatedPayload{
		RoomID:    r.ID,
		Creator:   r.Creator,
		GameType:  string(r.Kind),
		Wager:     r.Wager,
		ExpiresAt: r.ExpiresAt.Unix(),
		Timestamp: time.Now().Unix(),
	}}
}

func RoomSettled(r ledger.Room) Event {
	return Event{Type: EventRoomSettled, Data: RoomSettledPayload{
		RoomID:    r.ID,
		Creator:   r.Creator,
		Opponent:  r.Opponent,
		Winner:    r.Winner,
		GameType:  string(r.Kind),
		Pot:       2 * r.Wager,
		Value:     r.Value,
		Timestamp: time.Now().Unix(),
	}}
}

func RoomCancelled(r ledger.Room, reason string) Event {
	return Event{Type: EventRoomCancelled, Data: RoomCancelledPayload{
		RoomID:    r.ID,
		Creator:   r.Creator,
		Reason:    reason,
		Timestamp: time.Now().Unix(),
	}}
}
