// Package witten implements the arithmetic coding algorithm described in
// Witten, Ian H.; Neal, Radford M.; Cleary, John G. (June 1987). "Arithmetic Coding for Data Compression". Communications of the ACM 30 (6): 520–540,
// over the static segment tables of package ac.
//
// Unlike the coder in the root package, which shifts out a whole common prefix at once and counts straddles in a single scan,
// this realization inspects one bit at a time: it emits while the interval lies in one half and doubles while it lies in the middle quarters.
// Both narrow with ac.Project, so they emit the same bits up to their different terminations.
package witten

import (
	"cmp"

	"github.com/fumin/binac/ac"
	"github.com/pkg/errors"
)

// ErrDecodeInsufficientBits is returned when there are insufficient bits sent to Decode to reconstruct the original data.
var ErrDecodeInsufficientBits = errors.Wrap(ac.ErrCorruptStream, "insufficient bits sent to decoder")

// An arithmeticEncoder carries the state required by an encoder.
type arithmeticEncoder struct {
	low   uint64
	high  uint64
	fbits int
	out   ac.Bits
}

func newAE(w ac.Window) *arithmeticEncoder {
	ae := &arithmeticEncoder{}
	ae.high = w.Mask()
	return ae
}

func (ae *arithmeticEncoder) bitPlusFollow(bit byte) {
	ae.out = append(ae.out, bit)
	for ae.fbits > 0 {
		ae.out = append(ae.out, 1-bit)
		ae.fbits -= 1
	}
}

// Encode codes seq with the segments of table.
// Every symbol of seq must be in table, and the table's window must keep the interval wide enough for its narrowest segment,
// otherwise ErrInvalidInput or ErrPrecisionExhausted is returned.
func Encode[S cmp.Ordered](seq []S, table *ac.Table[S]) (ac.Bits, error) {
	w := table.Window()
	half, firstQtr := w.Half(), w.Quarter()
	thirdQtr := 3 * firstQtr

	ae := newAE(w)
	for _, s := range seq {
		i, ok := table.Index(s)
		if !ok {
			return nil, errors.Wrapf(ac.ErrInvalidInput, "symbol %v not in table", s)
		}

		// narrow range
		iv := ac.Project(table.Segment(i), ac.Interval{Low: ae.low, High: ae.high}, w)
		if iv.Empty() {
			return nil, errors.Wrapf(ac.ErrPrecisionExhausted, "segment of %v vanishes in [%d, %d]", s, ae.low, ae.high)
		}
		ae.low, ae.high = iv.Low, iv.High

		for {
			if ae.high < half {
				ae.bitPlusFollow(0)
			} else if ae.low >= half {
				ae.bitPlusFollow(1)
				ae.low -= half
				ae.high -= half
			} else if ae.low >= firstQtr && ae.high < thirdQtr {
				ae.fbits += 1
				ae.low -= firstQtr
				ae.high -= firstQtr
			} else {
				break
			}

			ae.low = 2 * ae.low
			ae.high = 2*ae.high + 1
		}
	}

	ae.fbits += 1
	if ae.low < firstQtr {
		ae.bitPlusFollow(0)
	} else {
		ae.bitPlusFollow(1)
	}
	return ae.out, nil
}

type arithmeticDecoder struct {
	low   uint64
	high  uint64
	value uint64
}

func newAD(w ac.Window) *arithmeticDecoder {
	ad := &arithmeticDecoder{}
	ad.high = w.Mask()
	return ad
}

// Decode reconstructs originalSize symbols from bits produced by Encode with the same table.
// Bits past the end of src read as zeros; ErrDecodeInsufficientBits is returned once more of them are needed than any termination leaves out.
func Decode[S cmp.Ordered](src ac.Bits, table *ac.Table[S], originalSize int) ([]S, error) {
	w := table.Window()
	half, firstQtr := w.Half(), w.Quarter()
	thirdQtr := 3 * firstQtr

	next, garbageBits := 0, 0
	readDecBit := func() (uint64, error) {
		if next < len(src) {
			b := src[next] & 1
			next++
			return uint64(b), nil
		}
		garbageBits++
		if garbageBits > int(w)-2 {
			return 0, ErrDecodeInsufficientBits
		}
		return 0, nil // the returned bit can actually be random
	}

	ad := newAD(w)
	for i := 0; i < int(w); i++ {
		inb, err := readDecBit()
		if err != nil {
			return nil, err
		}
		ad.value = 2*ad.value + inb
	}

	out := make([]S, 0, originalSize)
	for len(out) < originalSize {
		iv := ac.Interval{Low: ad.low, High: ad.high}
		pos, ok := ac.Position(ad.value, iv, w)
		if !ok {
			return nil, errors.Wrapf(ac.ErrCorruptStream, "value %d outside [%d, %d]", ad.value, ad.low, ad.high)
		}
		j, ok := table.Locate(pos)
		if !ok {
			return nil, errors.Wrapf(ac.ErrCorruptStream, "no segment contains %d", pos)
		}
		out = append(out, table.Symbol(j))

		// narrow range
		iv = ac.Project(table.Segment(j), iv, w)
		ad.low, ad.high = iv.Low, iv.High

		// rescale interval
		for {
			if ad.high < half {
				// do nothing
			} else if ad.low >= half {
				ad.value -= half
				ad.low -= half
				ad.high -= half
			} else if ad.low >= firstQtr && ad.high < thirdQtr {
				ad.value -= firstQtr
				ad.low -= firstQtr
				ad.high -= firstQtr
			} else {
				break
			}

			ad.low = 2 * ad.low
			ad.high = 2*ad.high + 1
			inb, err := readDecBit()
			if err != nil {
				return nil, err
			}
			ad.value = 2*ad.value + inb
		}
	}
	return out, nil
}
