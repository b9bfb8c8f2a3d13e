package sgf

import (
	"strconv"
	"strings"
	"unicode"
)

const (
	DefaultBoardSize = 19
	DefaultKomi      = 6.5
	DefaultRuleset   = "japanese"
)

// Node is one position of a game record. Children are variations, the first child is
// the main line. The parent pointer is only used for lookups towards the root.
type Node struct {
	codes    []string
	props    map[string][]string
	children []*Node
	parent   *Node
}

// NewNode creates a node and attaches it as the last child of parent (if any).
func NewNode(parent *Node) *Node {
	n := &Node{props: make(map[string][]string)}
	if parent != nil {
		n.parent = parent
		parent.children = append(parent.children, n)
	}
	return n
}

// NewMoveNode attaches a child carrying a single move property.
func NewMoveNode(parent *Node, move Move) *Node {
	n := NewNode(parent)
	w, h := n.BoardSize()
	n.SetProperty(string(move.Player), move.SGF(w, h))
	return n
}

// normalizeCode drops lowercase letters the way old records spell codes (SiZe -> SZ).
func normalizeCode(code string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLower(r) {
			return -1
		}
		return r
	}, code)
	if stripped == "" {
		return strings.ToUpper(code)
	}
	return stripped
}

func (n *Node) AddListProperty(code string, values []string) {
	code = normalizeCode(code)
	if _, ok := n.props[code]; !ok {
		n.codes = append(n.codes, code)
	}
	n.props[code] = append(n.props[code], values...)
}

// SetProperty replaces all values of a property, keeping its original position.
func (n *Node) SetProperty(code string, values ...string) {
	code = normalizeCode(code)
	if _, ok := n.props[code]; !ok {
		n.codes = append(n.codes, code)
	}
	n.props[code] = append([]string(nil), values...)
}

func (n *Node) ClearProperty(code string) {
	if _, ok := n.props[code]; !ok {
		return
	}
	delete(n.props, code)
	for i, c := range n.codes {
		if c == code {
			n.codes = append(n.codes[:i], n.codes[i+1:]...)
			break
		}
	}
}

func (n *Node) HasProperty(code string) bool {
	_, ok := n.props[code]
	return ok
}

// Property returns the first value of a property.
func (n *Node) Property(code string) (string, bool) {
	values, ok := n.props[code]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (n *Node) PropertyOr(code, def string) string {
	if v, ok := n.Property(code); ok {
		return v
	}
	return def
}

func (n *Node) ListProperty(code string) []string {
	return n.props[code]
}

// PropertyCodes lists codes in insertion order.
func (n *Node) PropertyCodes() []string {
	return append([]string(nil), n.codes...)
}

func (n *Node) Parent() *Node { return n.parent }

func (n *Node) Children() []*Node { return n.children }

func (n *Node) IsRoot() bool { return n.parent == nil }

func (n *Node) Empty() bool { return len(n.children) == 0 && len(n.props) == 0 }

func (n *Node) Root() *Node {
	r := n
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// BoardSize reads SZ from the root, either "N" or "X:Y".
func (n *Node) BoardSize() (int, int) {
	size := n.Root().PropertyOr("SZ", strconv.Itoa(DefaultBoardSize))
	if x, y, ok := strings.Cut(size, ":"); ok {
		w, errW := strconv.Atoi(strings.TrimSpace(x))
		h, errH := strconv.Atoi(strings.TrimSpace(y))
		if errW != nil || errH != nil || w <= 0 || h <= 0 {
			return DefaultBoardSize, DefaultBoardSize
		}
		return w, h
	}
	s, err := strconv.Atoi(strings.TrimSpace(size))
	if err != nil || s <= 0 {
		return DefaultBoardSize, DefaultBoardSize
	}
	return s, s
}

func (n *Node) Komi() float64 {
	val, ok := n.Root().Property("KM")
	if !ok {
		return DefaultKomi
	}
	km, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return DefaultKomi
	}
	return km
}

func (n *Node) Handicap() int {
	ha, err := strconv.Atoi(strings.TrimSpace(n.Root().PropertyOr("HA", "0")))
	if err != nil {
		return 0
	}
	return ha
}

func (n *Node) Ruleset() string {
	if ru, ok := n.Root().Property("RU"); ok && strings.TrimSpace(ru) != "" {
		return ru
	}
	return DefaultRuleset
}

// Moves returns the B and W moves of this node, black first. Unreadable values are skipped.
func (n *Node) Moves() []Move {
	w, h := n.BoardSize()
	var moves []Move
	for _, pl := range Players {
		for _, v := range n.props[string(pl)] {
			m, err := MoveFromSGF(v, w, h, pl)
			if err != nil {
				continue
			}
			moves = append(moves, m)
		}
	}
	return moves
}

// Move returns the node's move when it carries exactly one.
func (n *Node) Move() (Move, bool) {
	moves := n.Moves()
	if len(moves) != 1 {
		return Move{}, false
	}
	return moves[0], true
}

// Placements returns AB and AW stones with compressed rectangles expanded.
func (n *Node) Placements() []Move {
	var stones []Move
	for _, pl := range Players {
		stones = append(stones, n.expandedPlacements("A"+string(pl), pl)...)
	}
	return stones
}

// ClearPlacements returns AE points; the Player field is empty.
func (n *Node) ClearPlacements() []Move {
	return n.expandedPlacements("AE", "")
}

func (n *Node) expandedPlacements(code string, player Player) []Move {
	values := n.props[code]
	if len(values) == 0 {
		return nil
	}
	w, h := n.BoardSize()
	var out []Move
	seen := make(map[Move]bool)
	add := func(m Move) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	for _, v := range values {
		from, to, compressed := strings.Cut(v, ":")
		if !compressed {
			m, err := MoveFromSGF(v, w, h, player)
			if err != nil || m.Pass {
				continue
			}
			add(m)
			continue
		}
		a, errA := MoveFromSGF(from, w, h, player)
		b, errB := MoveFromSGF(to, w, h, player)
		if errA != nil || errB != nil {
			continue
		}
		for x := a.Point.X; x <= b.Point.X; x++ {
			for y := b.Point.Y; y <= a.Point.Y; y++ {
				if x >= 0 && x < w && y >= 0 && y < h {
					add(NewMove(player, x, y))
				}
			}
		}
	}
	return out
}

// MainLine follows the first child from the root down, root included.
func (n *Node) MainLine() []*Node {
	line := []*Node{n.Root()}
	for cur := line[0]; len(cur.children) > 0; {
		cur = cur.children[0]
		line = append(line, cur)
	}
	return line
}

// NodesInTree lists this node and its descendants breadth first.
func (n *Node) NodesInTree() []*Node {
	queue := []*Node{n}
	var nodes []*Node
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		nodes = append(nodes, item)
		queue = append(queue, item.children...)
	}
	return nodes
}

// Play finds the child that carries move, or creates it.
func (n *Node) Play(move Move) *Node {
	for _, c := range n.children {
		if m, ok := c.Move(); ok && m == move {
			return c
		}
	}
	return NewMoveNode(n, move)
}

func (n *Node) InitialPlayer() Player {
	root := n.Root()
	if pl, ok := root.Property("PL"); ok {
		if strings.ToUpper(strings.TrimSpace(pl)) == "B" {
			return Black
		}
		return White
	}
	for _, child := range root.children {
		for _, pl := range Players {
			if child.HasProperty(string(pl)) {
				return pl
			}
		}
	}
	if root.HasProperty("AB") && !root.HasProperty("AW") {
		return White
	}
	return Black
}

// NextPlayer is the player to move after this node.
func (n *Node) NextPlayer() Player {
	switch {
	case n.IsRoot():
		return n.InitialPlayer()
	case n.HasProperty("B"):
		return White
	case n.HasProperty("W"):
		return Black
	default:
		return n.parent.NextPlayer()
	}
}

var (
	valueEscaper   = strings.NewReplacer(`\`, `\\`, `]`, `\]`)
	valueUnescaper = strings.NewReplacer(`\\`, `\`, `\]`, `]`)
)

// SGF serializes the whole tree this node belongs to.
func (n *Node) SGF() string {
	var b strings.Builder
	b.WriteString("(")
	writeBranch(&b, n.Root())
	b.WriteString(")")
	return b.String()
}

func writeBranch(b *strings.Builder, node *Node) {
	for {
		b.WriteString(";")
		for _, code := range node.codes {
			values := node.props[code]
			if len(values) == 0 {
				continue
			}
			b.WriteString(code)
			for _, v := range values {
				b.WriteString("[")
				b.WriteString(valueEscaper.Replace(v))
				b.WriteString("]")
			}
		}
		if len(node.children) != 1 {
			break
		}
		node = node.children[0]
	}
	for _, c := range node.children {
		b.WriteString("(")
		writeBranch(b, c)
		b.WriteString(")")
	}
}
