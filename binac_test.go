package binac

import (
	"cmp"
	"fmt"
	"math/bits"
	"math/rand"
	"os"
	"slices"
	"testing"

	"github.com/fumin/binac/ac"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeScenario(t *testing.T) {
	const text = "aaagggcacat"
	encoded, table, err := EncodeString(text, 8)
	require.NoError(t, err)

	assert.Equal(t, "00010101011001101111", encoded.String())
	require.Equal(t, 4, table.Len())
	assert.Equal(t, 'a', table.Symbol(0))
	assert.Equal(t, uint64(0), table.Segment(0).Low)
	assert.Equal(t, 't', table.Symbol(table.Len()-1))
	assert.Equal(t, uint64(255), table.Segment(table.Len()-1).High)

	decoded, err := DecodeString(encoded, table, 8, 11)
	require.NoError(t, err)
	assert.Equal(t, text, decoded)
}

func TestEncodeKnownBits(t *testing.T) {
	testCases := []struct {
		text   string
		window ac.Window
		want   string
	}{
		{text: "aaaaaaaab", window: 8, want: "011"},
		// A lone symbol owns the whole range, so only the terminator is emitted.
		{text: "aaaa", window: 8, want: "10000"},
		{text: "abab", window: 4, want: "01011"},
	}
	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			encoded, table, err := EncodeString(tc.text, tc.window)
			require.NoError(t, err)
			assert.Equal(t, tc.want, encoded.String())

			decoded, err := DecodeString(encoded, table, tc.window, len(tc.text))
			require.NoError(t, err)
			assert.Equal(t, tc.text, decoded)
		})
	}
}

func TestSingleSymbol(t *testing.T) {
	encoded, table, err := EncodeString("aaaa", 8)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, ac.Segment{Low: 0, High: 255}, table.Segment(0))

	decoded, err := DecodeString(encoded, table, 8, 4)
	require.NoError(t, err)
	assert.Equal(t, "aaaa", decoded)
}

// TestCompressionSanity checks that a skewed input codes into fewer bits than a fixed width code.
func TestCompressionSanity(t *testing.T) {
	testCases := []struct {
		text   string
		window ac.Window
	}{
		{text: "aaaaaaaab", window: 8},
		{text: "aaaaaaaaaaaaaaaaaaaaaaaaabbbbbc", window: 8},
		{text: "mississippi mississippi mississippi", window: 12},
	}
	for _, tc := range testCases {
		encoded, table, err := EncodeString(tc.text, tc.window)
		require.NoError(t, err)

		width := bits.Len(uint(table.Len() - 1))
		fixed := len([]rune(tc.text)) * width
		assert.Less(t, len(encoded), fixed, "%q", tc.text)
	}
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	windows := []ac.Window{8, 10, 12, 16, 20, 32, ac.MaxWindow}
	coded := 0
	for trial := 0; trial < 2000; trial++ {
		w := windows[rng.Intn(len(windows))]
		alphabet := 1 + rng.Intn(10)
		weights := make([]float64, alphabet)
		for i := range weights {
			p := rng.Float64()
			weights[i] = p*p*p + 0.01
		}
		seq := make([]uint16, 1+rng.Intn(400))
		for i := range seq {
			seq[i] = uint16(pick(rng, weights))
		}

		encoded, table, err := Encode(seq, w)
		if errors.Is(err, ac.ErrPrecisionExhausted) || errors.Is(err, ac.ErrInvalidInput) {
			continue
		}
		require.NoError(t, err, "trial %d", trial)
		coded++

		decoded, err := Decode(encoded, table, w, len(seq))
		require.NoError(t, err, "trial %d", trial)
		require.Equal(t, seq, decoded, "trial %d", trial)
	}
	require.Greater(t, coded, 1000)
}

func pick(rng *rand.Rand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	r := rng.Float64() * total
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	return len(weights) - 1
}

func TestDeterministic(t *testing.T) {
	contents, err := os.ReadFile("gettysburg.txt")
	require.NoError(t, err)

	first, firstTable, err := Encode(contents, 16)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, table, err := Encode(contents, 16)
		require.NoError(t, err)
		require.Equal(t, first, again)
		require.Equal(t, firstTable, table)
	}
}

func TestGettysburg(t *testing.T) {
	contents, err := os.ReadFile("gettysburg.txt")
	require.NoError(t, err)

	for _, w := range []ac.Window{16, 24, 32} {
		encoded, table, err := Encode(contents, w)
		require.NoError(t, err)
		t.Logf("window %d: encoded bits: %d, original bits: %d", w, len(encoded), 8*len(contents))
		assert.Less(t, len(encoded), 8*len(contents))

		decoded, err := Decode(encoded, table, w, len(contents))
		require.NoError(t, err)
		require.Equal(t, contents, decoded)
	}
}

func TestEncodeErrors(t *testing.T) {
	contents, err := os.ReadFile("gettysburg.txt")
	require.NoError(t, err)

	testCases := []struct {
		name   string
		seq    []byte
		window ac.Window
		kind   error
	}{
		{name: "empty", seq: nil, window: 8, kind: ac.ErrInvalidInput},
		{name: "bad window", seq: []byte("ab"), window: 1, kind: ac.ErrInvalidInput},
		{name: "alphabet too large", seq: []byte("abcde"), window: 4, kind: ac.ErrPrecisionExhausted},
		// The rarest letters of the address get no segment at all at 8 bits.
		{name: "zero width", seq: contents, window: 8, kind: ac.ErrInvalidInput},
		{name: "narrow segment", seq: contents, window: 12, kind: ac.ErrPrecisionExhausted},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Encode(tc.seq, tc.window)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "%+v", err)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	seq := []byte{}
	for i := 0; i < 20; i++ {
		seq = append(seq, "abracadabra"...)
	}
	encoded, table, err := Encode(seq, 12)
	require.NoError(t, err)
	other, err := ac.BuildTable(seq, 16)
	require.NoError(t, err)
	narrow, err := ac.NewTable(12, []byte{'a', 'b'}, []ac.Segment{{Low: 0, High: 0}, {Low: 1, High: 4095}}, nil)
	require.NoError(t, err)

	testCases := []struct {
		name   string
		src    ac.Bits
		table  *ac.Table[byte]
		window ac.Window
		count  int
		kind   error
	}{
		{name: "empty stream", src: nil, table: table, window: 12, count: len(seq), kind: ac.ErrCorruptStream},
		{name: "one bit", src: encoded[:1], table: table, window: 12, count: len(seq), kind: ac.ErrCorruptStream},
		{name: "half the stream", src: encoded[:len(encoded)/2], table: table, window: 12, count: len(seq), kind: ac.ErrCorruptStream},
		{name: "window mismatch", src: encoded, table: other, window: 12, count: len(seq), kind: ac.ErrCorruptStream},
		{name: "nil table", src: encoded, table: nil, window: 12, count: len(seq), kind: ac.ErrCorruptStream},
		{name: "negative count", src: encoded, table: table, window: 12, count: -1, kind: ac.ErrInvalidInput},
		{name: "bad window", src: encoded, table: table, window: 99, count: len(seq), kind: ac.ErrInvalidInput},
		{name: "narrow segment", src: encoded, table: narrow, window: 12, count: len(seq), kind: ac.ErrPrecisionExhausted},
		{name: "one symbol too many", src: encoded, table: table, window: 12, count: len(seq) + 1, kind: ac.ErrCorruptStream},
		{name: "fifty symbols too many", src: encoded, table: table, window: 12, count: len(seq) + 50, kind: ac.ErrCorruptStream},
		{name: "one symbol too few", src: encoded, table: table, window: 12, count: len(seq) - 1, kind: ac.ErrCorruptStream},
		{name: "trailing zero", src: append(slices.Clone(encoded), 0), table: table, window: 12, count: len(seq), kind: ac.ErrCorruptStream},
	}
	for cut := 1; cut <= 10; cut++ {
		testCases = append(testCases, struct {
			name   string
			src    ac.Bits
			table  *ac.Table[byte]
			window ac.Window
			count  int
			kind   error
		}{name: fmt.Sprintf("last %d bits dropped", cut), src: encoded[:len(encoded)-cut], table: table, window: 12, count: len(seq), kind: ac.ErrCorruptStream})
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.src, tc.table, tc.window, tc.count)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "%+v", err)
		})
	}
}

// Truncated streams are either rejected or are themselves the exact coding of what they decode to.
func TestDecodeTruncated(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	rejected := 0
	for trial := 0; trial < 1000; trial++ {
		w := ac.Window(8 + rng.Intn(25))
		seq := make([]byte, 1+rng.Intn(60))
		alphabet := 1 + rng.Intn(8)
		for i := range seq {
			seq[i] = byte('a' + rng.Intn(alphabet))
		}
		encoded, table, err := Encode(seq, w)
		if err != nil {
			continue
		}

		for cut := 1; cut <= 10 && cut < len(encoded); cut++ {
			src := encoded[:len(encoded)-cut]
			decoded, err := Decode(src, table, w, len(seq))
			if err != nil {
				require.True(t, errors.Is(err, ac.ErrCorruptStream), "%+v", err)
				rejected++
				continue
			}
			require.Equal(t, src, encodeWith(decoded, table), "trial %d cut %d", trial, cut)
		}
	}
	assert.Greater(t, rejected, 1000)
}

func encodeWith[S cmp.Ordered](seq []S, table *ac.Table[S]) ac.Bits {
	e := newEncoder(table.Window())
	for _, s := range seq {
		i, _ := table.Index(s)
		e.encode(table.Segment(i))
	}
	return e.finish()
}

func TestDecodeZeroCount(t *testing.T) {
	decoded, err := Decode[byte](nil, nil, 8, 0)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}
