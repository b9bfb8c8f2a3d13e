package sgf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactCoordinateRoundTrip(t *testing.T) {
	for _, size := range []int{9, 13, 19, 25} {
		for x := 0; x < size; x++ {
			for y := 0; y < size; y++ {
				m := NewMove(Black, x, y)
				back, err := MoveFromSGF(m.SGF(size, size), size, size, Black)
				require.NoError(t, err)
				require.Equal(t, m, back, "size %d (%d,%d)", size, x, y)
			}
		}
	}
}

func TestGTPRoundTrip(t *testing.T) {
	for _, size := range []int{19, 25, 37} {
		for x := 0; x < size; x++ {
			m := NewMove(White, x, size-1)
			back, err := MoveFromGTP(m.GTP(), White)
			require.NoError(t, err)
			require.Equal(t, m, back, m.GTP())
		}
	}
}

func TestPassCoordinate(t *testing.T) {
	m, err := MoveFromSGF("tt", 19, 19, Black)
	require.NoError(t, err)
	assert.True(t, m.Pass)
	assert.Equal(t, "pass", m.GTP())
	assert.Equal(t, "", m.SGF(19, 19))

	m, err = MoveFromSGF("", 13, 13, White)
	require.NoError(t, err)
	assert.True(t, m.Pass)

	m, err = MoveFromSGF("tt", 21, 21, Black)
	require.NoError(t, err)
	assert.False(t, m.Pass)
	assert.Equal(t, Point{X: 19, Y: 1}, m.Point)
	assert.Equal(t, "tt", m.SGF(21, 21))
}

func TestGTPColumnsSkipI(t *testing.T) {
	assert.Equal(t, "H1", NewMove(Black, 7, 0).GTP())
	assert.Equal(t, "J1", NewMove(Black, 8, 0).GTP())
	assert.Equal(t, "AA26", NewMove(Black, 25, 25).GTP())

	m, err := MoveFromGTP("q16", Black)
	require.NoError(t, err)
	assert.Equal(t, NewMove(Black, 15, 15), m)

	m, err = MoveFromGTP("PASS", White)
	require.NoError(t, err)
	assert.Equal(t, PassMove(White), m)

	_, err = MoveFromGTP("I5", Black)
	assert.Error(t, err)
	_, err = MoveFromGTP("Z", Black)
	assert.Error(t, err)
}

func TestMoveEquality(t *testing.T) {
	seen := map[Move]bool{NewMove(Black, 3, 3): true}
	assert.True(t, seen[NewMove(Black, 3, 3)])
	assert.False(t, seen[NewMove(White, 3, 3)])
	assert.Equal(t, PassMove(Black), PassMove(Black))
	assert.NotEqual(t, PassMove(Black), NewMove(Black, 0, 0))
}

func TestParsePlayer(t *testing.T) {
	p, ok := ParsePlayer("white")
	assert.True(t, ok)
	assert.Equal(t, White, p)
	assert.Equal(t, Black, p.Opponent())
	_, ok = ParsePlayer("x")
	assert.False(t, ok)
}
