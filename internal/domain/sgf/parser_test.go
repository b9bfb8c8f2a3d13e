package sgf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	apperrors "go_analysis/internal/errors"
)

const sampleRecord = "(;GM[1]SZ[19]KM[6.5];B[pd];W[dp](;B[pp])(;B[dd]))"

func TestParseMainLineAndVariations(t *testing.T) {
	root, err := Parse(sampleRecord)
	require.NoError(t, err)

	assert.Equal(t, []string{"GM", "SZ", "KM"}, root.PropertyCodes())
	line := root.MainLine()
	require.Len(t, line, 4)

	var moves []string
	for _, n := range line[1:] {
		m, ok := n.Move()
		require.True(t, ok)
		moves = append(moves, string(m.Player)+m.GTP())
	}
	assert.Equal(t, []string{"BQ16", "WD4", "BQ4"}, moves)
	assert.Len(t, line[2].Children(), 2)
	assert.Same(t, root, line[3].Root())
}

func TestParseRoundTrip(t *testing.T) {
	root, err := Parse(sampleRecord)
	require.NoError(t, err)
	assert.Equal(t, sampleRecord, root.SGF())

	again, err := Parse(root.SGF())
	require.NoError(t, err)
	assert.Equal(t, root.SGF(), again.SGF())
}

func TestParseEscapes(t *testing.T) {
	root, err := Parse(`(;C[a\]b\\c];B[aa])`)
	require.NoError(t, err)
	assert.Equal(t, `a]b\c`, root.PropertyOr("C", ""))
	assert.Equal(t, `(;C[a\]b\\c];B[aa])`, root.SGF())
}

func TestParseMalformed(t *testing.T) {
	for name, input := range map[string]string{
		"unterminated": "(;B[pd]",
		"garbage":      "(;B[pd] x)",
		"no paren":     "B[pd]",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrMalformedRecord)
		})
	}
}

func TestParseSkipsUselessNodes(t *testing.T) {
	root, err := Parse("(;SZ[9];;B[ee];)")
	require.NoError(t, err)
	assert.Len(t, root.MainLine(), 2)
}

func TestParseClipsSurroundingText(t *testing.T) {
	root, err := Parse("header text (;SZ[9];B[ee]) trailing")
	require.NoError(t, err)
	w, h := root.BoardSize()
	assert.Equal(t, 9, w)
	assert.Equal(t, 9, h)
}

func TestPropertyCodeNormalization(t *testing.T) {
	root, err := Parse("(;SiZe[13]ku[0.5];B[aa])")
	require.NoError(t, err)
	w, _ := root.BoardSize()
	assert.Equal(t, 13, w)
	assert.True(t, root.HasProperty("KU"))
}

func TestFoxKomiFix(t *testing.T) {
	tests := []struct {
		record string
		komi   float64
	}{
		{"(;AP[foxwq]RU[cn]KM[375];B[pd])", 7.5},
		{"(;AP[foxwq]HA[2]KM[0];B[pd])", 0.5},
		{"(;AP[foxwq]RU[Japanese]KM[650];B[pd])", 6.5},
		{"(;AP[other]KM[0];B[pd])", 0},
	}
	for _, tt := range tests {
		root, err := Parse(tt.record)
		require.NoError(t, err)
		assert.Equal(t, tt.komi, root.Komi(), tt.record)
	}
}

func TestRootDefaults(t *testing.T) {
	root, err := Parse("(;B[pd])")
	require.NoError(t, err)
	w, h := root.BoardSize()
	assert.Equal(t, 19, w)
	assert.Equal(t, 19, h)
	assert.Equal(t, DefaultKomi, root.Komi())
	assert.Equal(t, DefaultRuleset, root.Ruleset())
	assert.Equal(t, 0, root.Handicap())

	rect, err := Parse("(;SZ[9:13];B[aa])")
	require.NoError(t, err)
	w, h = rect.BoardSize()
	assert.Equal(t, 9, w)
	assert.Equal(t, 13, h)
}

func TestPlacementsExpandRectangles(t *testing.T) {
	root, err := Parse("(;AB[aa:cc][aa]AW[pd];B[qq])")
	require.NoError(t, err)
	stones := root.Placements()
	require.Len(t, stones, 10)
	assert.Equal(t, NewMove(Black, 0, 16), stones[0])
	assert.Contains(t, stones, NewMove(Black, 0, 18))
	assert.Equal(t, NewMove(White, 15, 15), stones[9])
}

func TestInitialPlayer(t *testing.T) {
	tests := []struct {
		record string
		want   Player
	}{
		{"(;PL[W];B[aa])", White},
		{"(;SZ[19];W[aa])", White},
		{"(;AB[pd])", White},
		{"(;AB[pd]AW[dp])", Black},
		{"(;SZ[19])", Black},
	}
	for _, tt := range tests {
		root, err := Parse(tt.record)
		require.NoError(t, err)
		assert.Equal(t, tt.want, root.InitialPlayer(), tt.record)
	}
}

func TestNextPlayerAndPlay(t *testing.T) {
	root := NewNode(nil)
	first := root.Play(NewMove(Black, 3, 3))
	assert.Equal(t, White, first.NextPlayer())
	assert.Same(t, first, root.Play(NewMove(Black, 3, 3)))

	other := root.Play(NewMove(Black, 15, 15))
	assert.Len(t, root.Children(), 2)
	assert.NotSame(t, first, other)

	comment := NewNode(first)
	comment.SetProperty("C", "no move")
	assert.Equal(t, White, comment.NextPlayer())
}

func TestNodesInTreeBreadthFirst(t *testing.T) {
	root, err := Parse(sampleRecord)
	require.NoError(t, err)
	nodes := root.NodesInTree()
	require.Len(t, nodes, 5)
	m, _ := nodes[4].Move()
	assert.Equal(t, "D16", m.GTP())
}

func TestParseBytesGBK(t *testing.T) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().String("(;PB[李];B[pd])")
	require.NoError(t, err)

	root, err := ParseBytes([]byte(encoded), ".sgf")
	require.NoError(t, err)
	assert.Equal(t, "李", root.PropertyOr("PB", ""))
}

func TestParseBytesCharsetProperty(t *testing.T) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().String("(;CA[gb2312]PW[王];B[pd])")
	require.NoError(t, err)

	root, err := ParseBytes([]byte(encoded), ".SGF")
	require.NoError(t, err)
	assert.Equal(t, "王", root.PropertyOr("PW", ""))
}
