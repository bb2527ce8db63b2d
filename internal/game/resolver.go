package game

import (
	"encoding/binary"
	"fmt"
)

// Outcome is the resolved result of one game: the display value and whether
// the player's choice won.
type Outcome struct {
	Won   bool  `json:"won"`
	Value int64 `json:"value"`
}

// Resolve maps a randomness payload to a game outcome. It is a pure
// function: same payload, kind and choice always yield the same outcome.
//
// The draw takes the first 8 payload bytes as a little-endian uint64 rather
// than a single byte. 256 mod 100 != 0, so the historical one-byte draw
// over-weighted values 1-56; 2^64 mod 100 leaves a remainder of the order
// of 1e-18, which is negligible. Little-endian keeps byte 0 the least
// significant, so the coin-flip parity is still exactly the parity of the
// first byte.
func Resolve(payload []byte, kind Kind, choice Choice) (Outcome, error) {
	if len(payload) < 8 {
		return Outcome{}, fmt.Errorf("%w: got %d bytes, need 8", ErrShortPayload, len(payload))
	}
	if choice != 0 && choice != 1 {
		return Outcome{}, fmt.Errorf("%w: %d", ErrInvalidChoice, choice)
	}

	draw := binary.LittleEndian.Uint64(payload[:8])

	switch kind {
	case KindCoinFlip:
		value := int64(draw % 2)
		return Outcome{Value: value, Won: value == int64(choice)}, nil

	case KindDiceHighLow:
		value := int64(draw%100) + 1
		if choice == ChoiceHigh {
			return Outcome{Value: value, Won: value > 50}, nil
		}
		return Outcome{Value: value, Won: value <= 50}, nil

	case KindEvenOdd:
		value := int64(draw%100) + 1
		return Outcome{Value: value, Won: value%2 == int64(choice)}, nil
	}

	return Outcome{}, fmt.Errorf("%w: %q", ErrUnsupportedGameKind, kind)
}
