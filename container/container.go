// Package container serializes everything a decoder needs into a single frame:
// the precision window, the symbol count, the segment table and the bitstring.
//
// A frame is the magic "BAC1" followed by a protobuf wire format message:
//
//	1  window          varint
//	2  count           varint
//	3  segment         bytes, repeated in symbol order: 1 symbol, 2 low, 3 high, 4 count (varints)
//	4  bit length      varint
//	5  bits            bytes, packed with github.com/boljen/go-bitmap
//	15 checksum        fixed64, xxhash64 of every preceding byte, magic included
//
// The checksum is the last field of a frame.
package container

import (
	"bytes"
	"io"

	"github.com/boljen/go-bitmap"
	"github.com/cespare/xxhash/v2"
	"github.com/fumin/binac/ac"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Magic starts every frame.
const Magic = "BAC1"

const (
	fieldWindow   protowire.Number = 1
	fieldCount    protowire.Number = 2
	fieldSegment  protowire.Number = 3
	fieldBitLen   protowire.Number = 4
	fieldBits     protowire.Number = 5
	fieldChecksum protowire.Number = 15

	segmentSymbol protowire.Number = 1
	segmentLow    protowire.Number = 2
	segmentHigh   protowire.Number = 3
	segmentCount  protowire.Number = 4
)

// A Frame is a coded byte sequence together with what it takes to decode it.
// Table is nil when Count is zero.
type Frame struct {
	Window ac.Window
	Count  uint64
	Table  *ac.Table[byte]
	Bits   ac.Bits
}

// Marshal encodes f.
func (f *Frame) Marshal() ([]byte, error) {
	if err := f.Window.Validate(); err != nil {
		return nil, err
	}
	if f.Count > 0 && f.Table == nil {
		return nil, errors.Wrapf(ac.ErrInvalidInput, "frame of %d symbols has no table", f.Count)
	}
	if f.Table != nil && f.Table.Window() != f.Window {
		return nil, errors.Wrapf(ac.ErrInvalidInput, "table window %d in frame of window %d", f.Table.Window(), f.Window)
	}

	b := []byte(Magic)
	b = protowire.AppendTag(b, fieldWindow, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Window))
	b = protowire.AppendTag(b, fieldCount, protowire.VarintType)
	b = protowire.AppendVarint(b, f.Count)
	if f.Table != nil {
		for i := 0; i < f.Table.Len(); i++ {
			b = protowire.AppendTag(b, fieldSegment, protowire.BytesType)
			b = protowire.AppendBytes(b, marshalSegment(f.Table, i))
		}
	}
	b = protowire.AppendTag(b, fieldBitLen, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(len(f.Bits)))
	b = protowire.AppendTag(b, fieldBits, protowire.BytesType)
	b = protowire.AppendBytes(b, pack(f.Bits))

	sum := xxhash.Sum64(b)
	b = protowire.AppendTag(b, fieldChecksum, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, sum)
	return b, nil
}

func marshalSegment(t *ac.Table[byte], i int) []byte {
	seg := t.Segment(i)
	var b []byte
	b = protowire.AppendTag(b, segmentSymbol, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.Symbol(i)))
	b = protowire.AppendTag(b, segmentLow, protowire.VarintType)
	b = protowire.AppendVarint(b, seg.Low)
	b = protowire.AppendTag(b, segmentHigh, protowire.VarintType)
	b = protowire.AppendVarint(b, seg.High)
	b = protowire.AppendTag(b, segmentCount, protowire.VarintType)
	b = protowire.AppendVarint(b, t.Count(i))
	return b
}

func pack(bits ac.Bits) []byte {
	m := bitmap.New(len(bits))
	for i, bit := range bits {
		if bit != 0 {
			m.Set(i, true)
		}
	}
	return m.Data(false)
}

func unpack(data []byte, n uint64) (ac.Bits, error) {
	m := bitmap.Bitmap(data)
	if n > uint64(m.Len()) {
		return nil, errors.Wrapf(ac.ErrCorruptStream, "%d bits in %d bytes", n, len(data))
	}
	bits := make(ac.Bits, n)
	for i := range bits {
		if m.Get(i) {
			bits[i] = 1
		}
	}
	return bits, nil
}

// Unmarshal decodes a frame produced by Marshal.
// Every malformed frame, including one whose checksum does not match, yields ac.ErrCorruptStream.
func Unmarshal(data []byte) (*Frame, error) {
	if !bytes.HasPrefix(data, []byte(Magic)) {
		return nil, errors.Wrap(ac.ErrCorruptStream, "missing frame magic")
	}

	var (
		f        = &Frame{}
		symbols  []byte
		segments []ac.Segment
		counts   []uint64
		bitLen   uint64
		packed   []byte
		sawBits  bool
	)
	b := data[len(Magic):]
	for {
		if len(b) == 0 {
			return nil, errors.Wrap(ac.ErrCorruptStream, "frame ends without checksum")
		}
		offset := len(data) - len(b)
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
		}
		b = b[n:]

		if num == fieldChecksum && typ == protowire.Fixed64Type {
			sum, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
			}
			if want := xxhash.Sum64(data[:offset]); sum != want {
				return nil, errors.Wrapf(ac.ErrCorruptStream, "checksum %x, want %x", sum, want)
			}
			if len(b[n:]) != 0 {
				return nil, errors.Wrapf(ac.ErrCorruptStream, "%d trailing bytes after checksum", len(b[n:]))
			}
			break
		}

		switch {
		case num == fieldWindow && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
			}
			f.Window, b = ac.Window(v), b[n:]
		case num == fieldCount && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
			}
			f.Count, b = v, b[n:]
		case num == fieldSegment && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
			}
			sym, seg, count, err := unmarshalSegment(v)
			if err != nil {
				return nil, err
			}
			symbols, segments, counts = append(symbols, sym), append(segments, seg), append(counts, count)
			b = b[n:]
		case num == fieldBitLen && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
			}
			bitLen, b = v, b[n:]
		case num == fieldBits && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
			}
			packed, sawBits, b = v, true, b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
			}
			b = b[n:]
		}
	}

	if err := f.Window.Validate(); err != nil {
		return nil, errors.Wrapf(ac.ErrCorruptStream, "frame window: %v", err)
	}
	if !sawBits {
		return nil, errors.Wrap(ac.ErrCorruptStream, "frame has no bits")
	}
	bits, err := unpack(packed, bitLen)
	if err != nil {
		return nil, err
	}
	f.Bits = bits

	if len(symbols) > 0 {
		table, err := ac.NewTable(f.Window, symbols, segments, counts)
		if err != nil {
			return nil, errors.Wrapf(ac.ErrCorruptStream, "frame table: %v", err)
		}
		f.Table = table
	}
	if f.Count > 0 && f.Table == nil {
		return nil, errors.Wrapf(ac.ErrCorruptStream, "frame of %d symbols has no table", f.Count)
	}
	return f, nil
}

func unmarshalSegment(b []byte) (byte, ac.Segment, uint64, error) {
	var (
		sym   uint64
		seg   ac.Segment
		count uint64
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, seg, 0, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
		}
		b = b[n:]
		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return 0, seg, 0, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return 0, seg, 0, errors.Wrap(ac.ErrCorruptStream, protowire.ParseError(n).Error())
		}
		b = b[n:]
		switch num {
		case segmentSymbol:
			sym = v
		case segmentLow:
			seg.Low = v
		case segmentHigh:
			seg.High = v
		case segmentCount:
			count = v
		}
	}
	if sym > 0xff {
		return 0, seg, 0, errors.Wrapf(ac.ErrCorruptStream, "symbol %d is not a byte", sym)
	}
	return byte(sym), seg, count, nil
}

// WriteTo writes the marshaled frame to w.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	b, err := f.Marshal()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	if err != nil {
		return int64(n), errors.Wrap(err, "write frame")
	}
	return int64(n), nil
}

// ReadFrom reads r to its end and unmarshals the frame it holds.
func ReadFrom(r io.Reader) (*Frame, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read frame")
	}
	return Unmarshal(data)
}
