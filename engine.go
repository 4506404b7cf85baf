package binac

import (
	"math/bits"

	"github.com/fumin/binac/ac"
)

// commonPrefix returns the number of leading bits iv.Low and iv.High share in their w-bit representations.
// It is w when the two are equal.
func commonPrefix(iv ac.Interval, w ac.Window) int {
	return int(w) - bits.Len64(iv.Low^iv.High)
}

// shift discards the k leading bits of the interval, filling Low with zeros and High with ones from the right.
func shift(iv ac.Interval, k int, w ac.Window) ac.Interval {
	return ac.Interval{
		Low:  (iv.Low << k) & w.Mask(),
		High: (iv.High<<k)&w.Mask() | (1<<k - 1),
	}
}

// straddles counts the unresolved straddles of an interval whose leading bits differ.
// Below the leading bit, every position where Low has a 1 and High has a 0 is one straddle.
// The scan stops at the first position that does not straddle, since doubling past it would leave [0, N-1].
func straddles(iv ac.Interval, w ac.Window) int {
	n := 0
	for i := int(w) - 2; i >= 0; i-- {
		if iv.Low>>i&1 != 1 || iv.High>>i&1 != 0 {
			break
		}
		n++
	}
	return n
}

// unstraddle doubles the interval around the midpoint n times, stripping the second most significant bit each time.
func unstraddle(iv ac.Interval, n int, w ac.Window) ac.Interval {
	half := w.Half()
	for i := 0; i < n; i++ {
		iv.Low = 2*iv.Low - half
		iv.High = 2*iv.High - half + 1
	}
	return iv
}

// An encoder carries the state of one encoding: the working interval,
// the pending-underflow counter and the bits emitted so far.
type encoder struct {
	w       ac.Window
	iv      ac.Interval
	pending int // straddles awaiting the next determined bit
	idle    int // symbols since the last prefix emission
	out     ac.Bits
}

func newEncoder(w ac.Window) *encoder {
	return &encoder{w: w, iv: ac.Full(w)}
}

// encode narrows the interval to seg and renormalizes it.
func (e *encoder) encode(seg ac.Segment) {
	iv := ac.Project(seg, e.iv, e.w)
	e.idle++

	if k := commonPrefix(iv, e.w); k > 0 {
		e.emit(iv.Low, k)
		iv = shift(iv, k, e.w)
		e.pending = 0
		e.idle = 0
	}

	n := straddles(iv, e.w)
	e.iv = unstraddle(iv, n, e.w)
	e.pending += n
}

// emit appends the k leading bits of v.
// The first of them is followed by one complement bit per pending straddle.
func (e *encoder) emit(v uint64, k int) {
	for i := 0; i < k; i++ {
		bit := byte(v >> (int(e.w) - 1 - i) & 1)
		e.out = append(e.out, bit)
		if i != 0 {
			continue
		}
		for j := 0; j < e.pending; j++ {
			e.out = append(e.out, 1-bit)
		}
	}
}

// finish appends the terminator: a 1 followed by one 0 per symbol coded since the last prefix emission.
// Read with zero padding, the terminator is the midpoint of the final interval, which always lies inside it.
func (e *encoder) finish() ac.Bits {
	e.out = append(e.out, 1)
	for i := 0; i < e.idle; i++ {
		e.out = append(e.out, 0)
	}
	return e.out
}

// A decoder mirrors an encoder's interval while reading a w-bit lookahead value from the bitstring.
type decoder struct {
	w       ac.Window
	iv      ac.Interval
	value   uint64
	pending int
	idle    int
	src     ac.Bits
	pos     int // index of the next unread bit
}

func newDecoder(src ac.Bits, w ac.Window) *decoder {
	d := &decoder{w: w, iv: ac.Full(w), src: src}
	for i := 0; i < int(w); i++ {
		d.value = d.value<<1 | d.next()
	}
	return d
}

// next returns the next bit of the stream, or 0 past its end.
func (d *decoder) next() uint64 {
	var bit uint64
	if d.pos < len(d.src) {
		bit = uint64(d.src[d.pos] & 1)
	}
	d.pos++
	return bit
}

// overrun reports whether the decoder has read further past the end of the stream than any encoder output allows.
// An encoder's terminator leaves the decoder at most w-1 bits plus one per pending straddle beyond the end.
func (d *decoder) overrun() bool {
	return d.pos-len(d.src) > int(d.w)-1+d.pending
}

// length returns the number of bits an encoder emits for the symbols decoded so far, terminator included.
// Every resolved straddle the decoder read a bit for was emitted as one stuffed bit; unresolved ones were not.
func (d *decoder) length() int {
	return d.pos - int(d.w) - d.pending + 1 + d.idle
}

// terminated reports whether the stream ends in the terminator the encoder would append after the symbols decoded so far.
func (d *decoder) terminated() bool {
	n := d.length()
	if n != len(d.src) || d.src[n-1-d.idle]&1 != 1 {
		return false
	}
	for _, b := range d.src[n-d.idle:] {
		if b&1 != 0 {
			return false
		}
	}
	return true
}

// position maps the lookahead value back onto [0, N-1].
func (d *decoder) position() (uint64, bool) {
	return ac.Position(d.value, d.iv, d.w)
}

// narrow repeats the encoder's step for seg, shifting stream bits into the lookahead value instead of emitting them.
func (d *decoder) narrow(seg ac.Segment) {
	iv := ac.Project(seg, d.iv, d.w)
	d.idle++

	if k := commonPrefix(iv, d.w); k > 0 {
		iv = shift(iv, k, d.w)
		for i := 0; i < k; i++ {
			d.value = (d.value<<1 | d.next()) & d.w.Mask()
		}
		d.pending = 0
		d.idle = 0
	}

	n := straddles(iv, d.w)
	d.iv = unstraddle(iv, n, d.w)
	for i := 0; i < n; i++ {
		d.value = 2*d.value - d.w.Half() + d.next()
	}
	d.pending += n
}
