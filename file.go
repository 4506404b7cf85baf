package binac

import (
	"io"
	"math"
	"os"

	"github.com/fumin/binac/ac"
	"github.com/fumin/binac/container"
	"github.com/pkg/errors"
)

// NewFrame codes data and wraps the result in a frame.
// Empty data yields a frame without table or bits.
func NewFrame(data []byte, w ac.Window) (*container.Frame, error) {
	f := &container.Frame{Window: w, Count: uint64(len(data))}
	if len(data) == 0 {
		return f, w.Validate()
	}
	bits, table, err := Encode(data, w)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	f.Table, f.Bits = table, bits
	return f, nil
}

// Compress codes the file name with window bits of precision and writes the frame to w.
// It returns the frame it wrote together with its size in bytes.
func Compress(w io.Writer, name string, window ac.Window) (*container.Frame, int64, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, 0, errors.Wrap(err, "")
	}
	f, err := NewFrame(data, window)
	if err != nil {
		return nil, 0, errors.Wrap(err, "")
	}
	n, err := f.WriteTo(w)
	if err != nil {
		return nil, 0, errors.Wrap(err, "")
	}
	return f, n, nil
}

// Decompress reads a frame written by Compress from r and writes the decoded bytes to w.
func Decompress(w io.Writer, r io.Reader) error {
	f, err := container.ReadFrom(r)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if f.Count == 0 {
		return nil
	}
	if f.Count > math.MaxInt {
		return errors.Wrapf(ac.ErrCorruptStream, "symbol count %d", f.Count)
	}

	data, err := Decode(f.Bits, f.Table, f.Window, int(f.Count))
	if err != nil {
		return errors.Wrap(err, "")
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}
