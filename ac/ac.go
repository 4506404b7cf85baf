// Package ac defines the vocabulary the arithmetic coding algorithms in this module share:
// the precision window, bit strings, symbol segments and the integer interval arithmetic that narrows a coding range.
// See the root package for the prefix-emitting coder, and the witten subpackage for the textbook realization.
package ac

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidInput is returned for inputs that cannot be coded at all,
	// such as an empty sequence or a symbol that would receive an empty segment.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPrecisionExhausted is returned when the precision window is too narrow for the alphabet's frequency distribution.
	ErrPrecisionExhausted = errors.New("precision exhausted")

	// ErrCorruptStream is returned when a bitstring cannot be decoded with the given segment table.
	ErrCorruptStream = errors.New("corrupt stream")
)

// Limits of the precision window.
// Products of two window-sized values are computed in 128 bits, so the upper bound only keeps 2*N inside a uint64.
const (
	MinWindow Window = 2
	MaxWindow Window = 62
)

// A Window is the number of bits of working precision w.
// The working numeric range is [0, N-1] with N = 2^w.
type Window uint

// N returns 2^w.
func (w Window) N() uint64 { return 1 << w }

// Mask returns N-1, the largest value of the working range.
func (w Window) Mask() uint64 { return w.N() - 1 }

// Half returns N/2.
func (w Window) Half() uint64 { return 1 << (w - 1) }

// Quarter returns N/4.
func (w Window) Quarter() uint64 { return 1 << (w - 2) }

// Validate reports whether w lies within [MinWindow, MaxWindow].
func (w Window) Validate() error {
	if w < MinWindow || w > MaxWindow {
		return errors.Wrapf(ErrInvalidInput, "window %d outside [%d, %d]", w, MinWindow, MaxWindow)
	}
	return nil
}

// Bits is a bitstring in emission order, one 0 or 1 value per element.
type Bits []byte

// String renders b as a string of '0' and '1' characters.
func (b Bits) String() string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, bit := range b {
		sb.WriteByte('0' + bit&1)
	}
	return sb.String()
}

// ParseBits parses a string of '0' and '1' characters.
func ParseBits(s string) (Bits, error) {
	b := make(Bits, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
		case '1':
			b[i] = 1
		default:
			return nil, errors.Wrapf(ErrInvalidInput, "bad bit %q at %d", s[i], i)
		}
	}
	return b, nil
}
