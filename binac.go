// Package binac provides static binary arithmetic coding.
// A sequence over a finite alphabet is coded into a bitstring using a segment table that partitions a w-bit integer range among the symbols in proportion to their frequencies.
// The coder emits the leading bits its working interval has settled on, and resolves intervals that straddle the midpoint by doubling them while deferring the ambiguous bits.
//
// The segment table is computed once over the whole input and has to accompany the bitstring, together with the window and the symbol count, for decoding.
// Compress and Decompress wrap all of them in a single frame, see package container:
//    go run compress/main.go gettysburg.txt > gettys.bac
//    cat gettys.bac | go run decompress/main.go > gettys.dbac
//    diff gettysburg.txt gettys.dbac
package binac

import (
	"cmp"

	"github.com/fumin/binac/ac"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// MinSegmentWidth is the narrowest segment the coder accepts.
// Renormalization keeps the working interval wider than N/4, so a segment at least this wide always projects onto a non-empty interval.
const MinSegmentWidth = 4

// Encode codes seq with w bits of precision.
// It returns the bitstring together with the segment table the decoder needs.
// ErrInvalidInput is returned for an empty sequence or a symbol whose segment would be empty,
// and ErrPrecisionExhausted if the window cannot give every symbol a segment of at least MinSegmentWidth.
func Encode[S cmp.Ordered](seq []S, w ac.Window) (ac.Bits, *ac.Table[S], error) {
	if err := w.Validate(); err != nil {
		return nil, nil, err
	}
	if alphabet := uint64(len(lo.Uniq(seq))); alphabet*MinSegmentWidth > w.N() {
		return nil, nil, errors.Wrapf(ac.ErrPrecisionExhausted, "%d symbols at window %d", alphabet, w)
	}
	table, err := ac.BuildTable(seq, w)
	if err != nil {
		return nil, nil, errors.Wrap(err, "build segments")
	}
	if narrowest := table.MinWidth(); narrowest < MinSegmentWidth {
		return nil, nil, errors.Wrapf(ac.ErrPrecisionExhausted, "narrowest segment is %d wide at window %d", narrowest, w)
	}

	e := newEncoder(w)
	for _, s := range seq {
		i, _ := table.Index(s)
		e.encode(table.Segment(i))
	}
	return e.finish(), table, nil
}

// Decode reconstructs count symbols from a bitstring produced by Encode with the same table and window.
// The bitstring must be exactly what Encode emits for the decoded symbols:
// ErrCorruptStream is returned if it does not decode under the table, ends early, or carries bits beyond the terminator.
// ErrPrecisionExhausted is returned for a table Encode would have refused.
func Decode[S cmp.Ordered](src ac.Bits, table *ac.Table[S], w ac.Window, count int) ([]S, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, errors.Wrapf(ac.ErrInvalidInput, "negative symbol count %d", count)
	}
	if count == 0 {
		return []S{}, nil
	}
	if table == nil || table.Len() == 0 {
		return nil, errors.Wrap(ac.ErrCorruptStream, "empty segment table")
	}
	if table.Window() != w {
		return nil, errors.Wrapf(ac.ErrCorruptStream, "table built for window %d, decoding with %d", table.Window(), w)
	}
	if narrowest := table.MinWidth(); narrowest < MinSegmentWidth {
		return nil, errors.Wrapf(ac.ErrPrecisionExhausted, "narrowest segment is %d wide at window %d", narrowest, w)
	}

	d := newDecoder(src, w)
	if d.overrun() {
		return nil, errors.Wrapf(ac.ErrCorruptStream, "%d bits cannot hold %d symbols", len(src), count)
	}
	out := make([]S, 0, min(count, 1<<16))
	for len(out) < count {
		pos, ok := d.position()
		if !ok {
			return nil, errors.Wrapf(ac.ErrCorruptStream, "lookahead %d outside [%d, %d] at symbol %d", d.value, d.iv.Low, d.iv.High, len(out))
		}
		i, ok := table.Locate(pos)
		if !ok {
			return nil, errors.Wrapf(ac.ErrCorruptStream, "no segment contains %d at symbol %d", pos, len(out))
		}
		out = append(out, table.Symbol(i))

		d.narrow(table.Segment(i))
		if d.overrun() {
			return nil, errors.Wrapf(ac.ErrCorruptStream, "bitstring of %d bits ends after %d of %d symbols", len(src), len(out), count)
		}
	}
	if n := d.length(); n != len(src) {
		return nil, errors.Wrapf(ac.ErrCorruptStream, "%d symbols code into %d bits, got %d", count, n, len(src))
	}
	if !d.terminated() {
		return nil, errors.Wrapf(ac.ErrCorruptStream, "bitstring does not end in a terminator after %d symbols", count)
	}
	return out, nil
}

// EncodeString codes the runes of s.
func EncodeString(s string, w ac.Window) (ac.Bits, *ac.Table[rune], error) {
	return Encode([]rune(s), w)
}

// DecodeString decodes count runes coded by EncodeString.
func DecodeString(src ac.Bits, table *ac.Table[rune], w ac.Window, count int) (string, error) {
	runes, err := Decode(src, table, w, count)
	if err != nil {
		return "", err
	}
	return string(runes), nil
}
