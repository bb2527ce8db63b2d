package game

import (
	"errors"
	"fmt"
)

// Kind identifies one of the supported wager games.
type Kind string

const (
	KindCoinFlip    Kind = "CoinFlip"
	KindDiceHighLow Kind = "DiceHighLow"
	KindEvenOdd     Kind = "EvenOdd"
)

// Choice is the player's side for a game. The meaning is kind-specific:
// CoinFlip tails=0 heads=1, DiceHighLow low=0 high=1, EvenOdd even=0 odd=1.
type Choice int

const (
	ChoiceTails Choice = 0
	ChoiceHeads Choice = 1

	ChoiceLow  Choice = 0
	ChoiceHigh Choice = 1

	ChoiceEven Choice = 0
	ChoiceOdd  Choice = 1
)

var (
	ErrUnsupportedGameKind = errors.New("game: unsupported game kind")
	ErrInvalidChoice       = errors.New("game: invalid choice for game kind")
	ErrShortPayload        = errors.New("game: randomness payload too short")
)

// ParseKind validates a client-supplied game kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCoinFlip, KindDiceHighLow, KindEvenOdd:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedGameKind, s)
}

// ChoiceLabel renders a choice for logs and feed events.
func ChoiceLabel(kind Kind, choice Choice) string {
	switch kind {
	case KindCoinFlip:
		if choice == ChoiceHeads {
			return "heads"
		}
		return "tails"
	case KindDiceHighLow:
		if choice == ChoiceHigh {
			return "high"
		}
		return "low"
	case KindEvenOdd:
		if choice == ChoiceOdd {
			return "odd"
		}
		return "even"
	}
	return "unknown"
}
