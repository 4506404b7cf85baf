package binac

import (
	"math/rand"
	"testing"

	"github.com/fumin/binac/ac"
	"github.com/fumin/binac/ac/witten"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommonPrefix(t *testing.T) {
	testCases := []struct {
		low, high uint64
		want      int
	}{
		{0b00000000, 0b11111111, 0},
		{0b00000000, 0b01110100, 1},
		{0b10111011, 0b11010000, 1},
		{0b01010000, 0b01010111, 5},
		{0b00101101, 0b00101101, 8},
	}
	for _, tc := range testCases {
		got := commonPrefix(ac.Interval{Low: tc.low, High: tc.high}, 8)
		assert.Equal(t, tc.want, got, "%08b %08b", tc.low, tc.high)
	}
}

func TestShift(t *testing.T) {
	assert.Equal(t, ac.Interval{Low: 0b01110110, High: 0b10100001}, shift(ac.Interval{Low: 0b10111011, High: 0b11010000}, 1, 8))
	assert.Equal(t, ac.Interval{Low: 0b00000000, High: 0b11100111}, shift(ac.Interval{Low: 0b01000000, High: 0b01011100}, 3, 8))
	assert.Equal(t, ac.Full(8), shift(ac.Interval{Low: 0b00101101, High: 0b00101101}, 8, 8))
}

func TestStraddles(t *testing.T) {
	testCases := []struct {
		low, high uint64
		want      int
	}{
		{0b01110110, 0b10100001, 1},
		{0b01110110, 0b10000001, 3},
		{0b00110110, 0b10000001, 0},
		{0b01000000, 0b11000000, 0},
		// Only the run below the leading bit counts, the later 1/0 pair does not.
		{0b00100010, 0b11011101, 0},
		{0b01111111, 0b10000000, 7},
	}
	for _, tc := range testCases {
		got := straddles(ac.Interval{Low: tc.low, High: tc.high}, 8)
		assert.Equal(t, tc.want, got, "%08b %08b", tc.low, tc.high)
	}
}

func TestUnstraddle(t *testing.T) {
	assert.Equal(t, ac.Interval{Low: 108, High: 195}, unstraddle(ac.Interval{Low: 118, High: 161}, 1, 8))
	assert.Equal(t, ac.Full(8), unstraddle(ac.Interval{Low: 0b01111111, High: 0b10000000}, 7, 8))
}

// TestIntervalContainment replays encodings step by step and checks that each narrowing lands inside the interval before it,
// and that renormalization leaves an interval that straddles the midpoint and is wider than a quarter of the range.
func TestIntervalContainment(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for trial := 0; trial < 300; trial++ {
		w := ac.Window(8 + rng.Intn(25))
		seq := make([]byte, 1+rng.Intn(300))
		for i := range seq {
			seq[i] = byte(rng.Intn(1 + rng.Intn(8)))
		}
		table, err := ac.BuildTable(seq, w)
		if err != nil || table.MinWidth() < MinSegmentWidth {
			continue
		}

		e := newEncoder(w)
		for i, s := range seq {
			seg, _ := table.Lookup(s)
			before := e.iv
			projected := ac.Project(seg, before, w)
			require.False(t, projected.Empty(), "trial %d symbol %d", trial, i)
			require.True(t, before.Contains(projected), "trial %d symbol %d: %v not in %v", trial, i, projected, before)

			e.encode(seg)
			require.Less(t, e.iv.Low, w.Half(), "trial %d symbol %d", trial, i)
			require.GreaterOrEqual(t, e.iv.High, w.Half(), "trial %d symbol %d", trial, i)
			require.Greater(t, e.iv.Width(), w.Quarter(), "trial %d symbol %d", trial, i)
		}
	}
}

// TestCanonicalAgreement compares the coder against the textbook one-bit-at-a-time variant.
// Both must emit the same bits up to the point where the coder terminates, after which the
// textbook termination writes one more bit than there are pending straddles, followed by the straddle bits.
func TestCanonicalAgreement(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	compared := 0
	for trial := 0; trial < 1000; trial++ {
		w := ac.Window(8 + rng.Intn(25))
		seq := make([]byte, 1+rng.Intn(300))
		skew := 1 + rng.Intn(4)
		for i := range seq {
			seq[i] = byte(rng.Intn(1+rng.Intn(6)) / skew)
		}

		encoded, table, err := Encode(seq, w)
		if err != nil {
			continue
		}
		compared++

		e := newEncoder(w)
		for _, s := range seq {
			seg, _ := table.Lookup(s)
			e.encode(seg)
		}
		emitted, pending := len(e.out), e.pending

		canonical, err := witten.Encode(seq, table)
		require.NoError(t, err, "trial %d", trial)
		require.Len(t, canonical, emitted+pending+2, "trial %d", trial)
		require.Equal(t, encoded[:emitted], canonical[:emitted], "trial %d", trial)

		decoded, err := witten.Decode(canonical, table, len(seq))
		require.NoError(t, err, "trial %d", trial)
		require.Equal(t, seq, decoded, "trial %d", trial)
	}
	require.Greater(t, compared, 500)
}
