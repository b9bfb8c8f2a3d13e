package sgf

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Player string

const (
	Black Player = "B"
	White Player = "W"
)

// Players in the order moves and placements are read off a node.
var Players = []Player{Black, White}

func (p Player) Opponent() Player {
	if p == Black {
		return White
	}
	return Black
}

// ParsePlayer accepts "B"/"W" in any case, plus "black"/"white".
func ParsePlayer(s string) (Player, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "B", "BLACK":
		return Black, true
	case "W", "WHITE":
		return White, true
	}
	return "", false
}

// Point is a zero-based board coordinate, Y counted from the bottom row.
type Point struct {
	X, Y int
}

// Move is comparable, so it can be used directly as a map key.
// A pass always carries the zero Point.
type Move struct {
	Player Player
	Point  Point
	Pass   bool
}

func NewMove(player Player, x, y int) Move {
	return Move{Player: player, Point: Point{X: x, Y: y}}
}

func PassMove(player Player) Move {
	return Move{Player: player, Pass: true}
}

func (m Move) String() string {
	return fmt.Sprintf("Move(%s%s)", m.Player, m.GTP())
}

var (
	gtpColumns = buildGTPColumns()
	sgfLetters = []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	gtpPattern = regexp.MustCompile(`^([A-Z]+)(\d+)$`)
)

// buildGTPColumns skips I and continues with two-letter columns for boards above 25.
func buildGTPColumns() []string {
	const single = "ABCDEFGHJKLMNOPQRSTUVWXYZ"
	cols := make([]string, 0, len(single)*9)
	for _, c := range single {
		cols = append(cols, string(c))
	}
	for _, prefix := range "ABCDEFGH" {
		for _, c := range single {
			cols = append(cols, string(prefix)+string(c))
		}
	}
	return cols
}

func gtpColumnIndex(col string) int {
	for i, c := range gtpColumns {
		if c == col {
			return i
		}
	}
	return -1
}

func sgfLetterIndex(b byte) int {
	for i, c := range sgfLetters {
		if c == b {
			return i
		}
	}
	return -1
}

// GTP renders the move the way the analysis engine expects it, e.g. "Q16" or "pass".
func (m Move) GTP() string {
	if m.Pass {
		return "pass"
	}
	if m.Point.X < 0 || m.Point.X >= len(gtpColumns) {
		return "pass"
	}
	return gtpColumns[m.Point.X] + strconv.Itoa(m.Point.Y+1)
}

// SGF renders the compact two-letter form; the row axis is inverted relative to GTP.
func (m Move) SGF(width, height int) string {
	if m.Pass {
		return ""
	}
	row := height - m.Point.Y - 1
	if m.Point.X < 0 || m.Point.X >= len(sgfLetters) || row < 0 || row >= len(sgfLetters) {
		return ""
	}
	return string([]byte{sgfLetters[m.Point.X], sgfLetters[row]})
}

// MoveFromGTP parses "D4", "AB12" or "pass".
func MoveFromGTP(coord string, player Player) (Move, error) {
	if strings.Contains(strings.ToLower(coord), "pass") {
		return PassMove(player), nil
	}
	match := gtpPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(coord)))
	if match == nil {
		return Move{}, fmt.Errorf("invalid GTP coordinate %q", coord)
	}
	x := gtpColumnIndex(match[1])
	if x < 0 {
		return Move{}, fmt.Errorf("invalid GTP column in %q", coord)
	}
	row, err := strconv.Atoi(match[2])
	if err != nil || row < 1 {
		return Move{}, fmt.Errorf("invalid GTP row in %q", coord)
	}
	return NewMove(player, x, row-1), nil
}

// MoveFromSGF parses the compact form. "tt" means pass only on boards up to 19x19;
// on larger boards it is an ordinary point.
func MoveFromSGF(coord string, width, height int, player Player) (Move, error) {
	if coord == "" || (coord == "tt" && width <= 19 && height <= 19) {
		return PassMove(player), nil
	}
	if len(coord) < 2 {
		return Move{}, fmt.Errorf("invalid SGF coordinate %q", coord)
	}
	x := sgfLetterIndex(coord[0])
	row := sgfLetterIndex(coord[1])
	if x < 0 || row < 0 {
		return Move{}, fmt.Errorf("invalid SGF coordinate %q", coord)
	}
	return NewMove(player, x, height-row-1), nil
}
