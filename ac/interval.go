package ac

import (
	"math/bits"
)

// An Interval is the closed integer range [Low, High] a coder is currently narrowing.
type Interval struct {
	Low  uint64
	High uint64
}

// Full returns the initial working interval [0, N-1].
func Full(w Window) Interval {
	return Interval{Low: 0, High: w.Mask()}
}

// Width returns High-Low+1, which is 0 for an empty interval.
func (iv Interval) Width() uint64 { return iv.High - iv.Low + 1 }

// Empty reports whether iv contains no integer.
func (iv Interval) Empty() bool { return iv.High < iv.Low }

// Contains reports whether other lies entirely within iv.
func (iv Interval) Contains(other Interval) bool {
	return iv.Low <= other.Low && other.High <= iv.High
}

// Project re-maps seg, a slice of [0, N-1], onto iv:
//
//	[L + ceil(sl*(H-L+1)/N), L + ceil((sh+1)*(H-L+1)/N) - 1]
//
// The result lies within iv whenever the segment lies within [0, N-1].
// It is empty when the projected slice is narrower than one integer.
func Project(seg Segment, iv Interval, w Window) Interval {
	width := iv.Width()
	return Interval{
		Low:  iv.Low + scaleCeil(seg.Low, width, w),
		High: iv.Low + scaleCeil(seg.High+1, width, w) - 1,
	}
}

// Position maps v, a value within iv, back onto [0, N-1].
// It returns floor((v-L)*N/(H-L+1)), which lies in a segment exactly when Project places v inside that segment's projection.
// ok is false if v lies outside iv.
func Position(v uint64, iv Interval, w Window) (pos uint64, ok bool) {
	if iv.Empty() || v < iv.Low || v > iv.High {
		return 0, false
	}
	d := v - iv.Low
	hi, lo := d>>(64-w), d<<w
	pos, _ = bits.Div64(hi, lo, iv.Width())
	return pos, true
}

// scaleCeil returns ceil(x*y / 2^w) without overflowing for x, y <= 2^w.
func scaleCeil(x, y uint64, w Window) uint64 {
	hi, lo := bits.Mul64(x, y)
	q := hi<<(64-w) | lo>>w
	if lo&w.Mask() != 0 {
		q++
	}
	return q
}

// mulDivCeil returns ceil(x*y / z) for results that fit in 64 bits.
func mulDivCeil(x, y, z uint64) uint64 {
	hi, lo := bits.Mul64(x, y)
	q, r := bits.Div64(hi, lo, z)
	if r != 0 {
		q++
	}
	return q
}
