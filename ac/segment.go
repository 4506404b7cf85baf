package ac

import (
	"cmp"
	"fmt"
	"slices"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// A Segment is the closed sub-range [Low, High] of [0, N-1] assigned to one symbol.
type Segment struct {
	Low  uint64
	High uint64
}

// Width returns High-Low+1, which is 0 for an empty segment.
func (s Segment) Width() uint64 { return s.High - s.Low + 1 }

// Contains reports whether pos lies within s.
func (s Segment) Contains(pos uint64) bool { return s.Low <= pos && pos <= s.High }

func (s Segment) String() string { return fmt.Sprintf("[%d, %d]", s.Low, s.High) }

// A Table maps every symbol of an alphabet to its segment.
// Symbols are kept in ascending order and their segments partition [0, N-1] in that same order.
// A Table is immutable once built, so encoders and decoders may share one freely.
type Table[S cmp.Ordered] struct {
	window   Window
	symbols  []S
	segments []Segment
	counts   []uint64
}

// BuildTable counts the symbols of seq and partitions [0, N-1] among them in proportion to their counts.
// The i-th symbol in ascending order receives [left, ceil(cum_i*N/total) - 1], where cum_i is the running count up to and including it.
// ErrInvalidInput is returned if seq is empty, or if some symbol would receive an empty segment under w.
func BuildTable[S cmp.Ordered](seq []S, w Window) (*Table[S], error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if len(seq) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "empty sequence")
	}

	freq := make(map[S]uint64)
	for _, s := range seq {
		freq[s]++
	}
	symbols := lo.Keys(freq)
	slices.Sort(symbols)

	t := &Table[S]{
		window:   w,
		symbols:  symbols,
		segments: make([]Segment, len(symbols)),
		counts:   make([]uint64, len(symbols)),
	}
	total := uint64(len(seq))
	var left, running uint64
	for i, s := range symbols {
		running += freq[s]
		right := mulDivCeil(running, w.N(), total) - 1
		if right < left {
			return nil, errors.Wrapf(ErrInvalidInput, "symbol %v with count %d gets an empty segment at window %d", s, freq[s], w)
		}
		t.segments[i] = Segment{Low: left, High: right}
		t.counts[i] = freq[s]
		left = right + 1
	}
	return t, nil
}

// NewTable rebuilds a table from its parts, for example after receiving them alongside a bitstring.
// counts may be nil when the symbol counts are unknown.
// The parts are copied and validated, see Validate.
func NewTable[S cmp.Ordered](w Window, symbols []S, segments []Segment, counts []uint64) (*Table[S], error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	t := &Table[S]{
		window:   w,
		symbols:  slices.Clone(symbols),
		segments: slices.Clone(segments),
		counts:   slices.Clone(counts),
	}
	if err := t.Validate(); err != nil {
		return nil, multierror.Append(errors.Wrap(ErrInvalidInput, "segment table"), err)
	}
	return t, nil
}

// Validate checks that the symbols are strictly ascending and that their segments are non-empty and partition [0, N-1] in order.
// Every violation found is reported.
func (t *Table[S]) Validate() error {
	var result *multierror.Error
	if len(t.symbols) == 0 {
		result = multierror.Append(result, errors.New("no symbols"))
	}
	if len(t.segments) != len(t.symbols) {
		result = multierror.Append(result, errors.Errorf("%d segments for %d symbols", len(t.segments), len(t.symbols)))
		return result.ErrorOrNil()
	}
	if t.counts != nil && len(t.counts) != len(t.symbols) {
		result = multierror.Append(result, errors.Errorf("%d counts for %d symbols", len(t.counts), len(t.symbols)))
	}

	var next uint64
	for i, seg := range t.segments {
		if i > 0 && t.symbols[i-1] >= t.symbols[i] {
			result = multierror.Append(result, errors.Errorf("symbol %v does not follow %v", t.symbols[i], t.symbols[i-1]))
		}
		if seg.Low != next {
			result = multierror.Append(result, errors.Errorf("segment %v of %v starts at %d, want %d", seg, t.symbols[i], seg.Low, next))
		}
		if seg.High < seg.Low {
			result = multierror.Append(result, errors.Errorf("segment %v of %v is empty", seg, t.symbols[i]))
		}
		if seg.High > t.window.Mask() {
			result = multierror.Append(result, errors.Errorf("segment %v of %v exceeds %d", seg, t.symbols[i], t.window.Mask()))
		}
		next = seg.High + 1
	}
	if len(t.segments) > 0 && next != t.window.N() {
		result = multierror.Append(result, errors.Errorf("segments end at %d, want %d", next-1, t.window.Mask()))
	}
	return result.ErrorOrNil()
}

// Window returns the precision window the table partitions.
func (t *Table[S]) Window() Window { return t.window }

// Len returns the alphabet size.
func (t *Table[S]) Len() int { return len(t.symbols) }

// Symbol returns the i-th symbol in ascending order.
func (t *Table[S]) Symbol(i int) S { return t.symbols[i] }

// Segment returns the segment of the i-th symbol.
func (t *Table[S]) Segment(i int) Segment { return t.segments[i] }

// Count returns the number of occurrences the i-th symbol had, or 0 if the table was rebuilt without counts.
func (t *Table[S]) Count(i int) uint64 {
	if t.counts == nil {
		return 0
	}
	return t.counts[i]
}

// Index returns the position of sym in the table.
func (t *Table[S]) Index(sym S) (int, bool) {
	return slices.BinarySearch(t.symbols, sym)
}

// Lookup returns the segment of sym.
func (t *Table[S]) Lookup(sym S) (Segment, bool) {
	i, ok := t.Index(sym)
	if !ok {
		return Segment{}, false
	}
	return t.segments[i], true
}

// Locate returns the index of the segment containing pos.
func (t *Table[S]) Locate(pos uint64) (int, bool) {
	i := sort.Search(len(t.segments), func(i int) bool { return t.segments[i].High >= pos })
	if i == len(t.segments) || !t.segments[i].Contains(pos) {
		return 0, false
	}
	return i, true
}

// MinWidth returns the width of the narrowest segment.
func (t *Table[S]) MinWidth() uint64 {
	if len(t.segments) == 0 {
		return 0
	}
	return lo.MinBy(t.segments, func(a, b Segment) bool { return a.Width() < b.Width() }).Width()
}

// Symbols returns a copy of the alphabet in ascending order.
func (t *Table[S]) Symbols() []S { return slices.Clone(t.symbols) }

// Segments returns a copy of the segments in symbol order.
func (t *Table[S]) Segments() []Segment { return slices.Clone(t.segments) }
