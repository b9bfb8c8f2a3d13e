package domain

import (
	"go_analysis/internal/domain/sgf"
)

type QueryOptions struct {
	ID               string
	MaxVisits        int
	StartTurn        *int
	EndTurn          *int
	IncludeOwnership bool
	IncludePolicy    bool
	// ResolveSetupCollision drops a first move that lands on a placed stone.
	ResolveSetupCollision bool
}

// QueryPlan is a query plus what is needed to map engine turn numbers back onto the record.
type QueryPlan struct {
	Query AnalysisQuery
	// Offset turns an engine turn number into the caller-facing turn: 1 normally, 2 after a collision.
	Offset   int
	Expected int
	Collided bool
	Tree     *sgf.Node
}

// BuildQuery reads the main line and setup stones off tree and clamps the requested turn
// range into [0, total moves].
func BuildQuery(tree *sgf.Node, opts QueryOptions) QueryPlan {
	root := tree.Root()

	moves := make([]sgf.Move, 0)
	for _, node := range root.MainLine()[1:] {
		if m, ok := node.Move(); ok {
			moves = append(moves, m)
		}
	}
	placements := root.Placements()
	initialPlayer := root.InitialPlayer()

	plan := QueryPlan{Offset: 1, Tree: root}
	if opts.ResolveSetupCollision && len(moves) > 0 && !moves[0].Pass && collides(moves[0], placements) {
		moves = moves[1:]
		initialPlayer = initialPlayer.Opponent()
		plan.Offset = 2
		plan.Collided = true
	}

	total := len(moves)
	var turns []int
	if total == 0 && len(placements) > 0 {
		turns = []int{0}
	} else {
		turns = TurnRange(total, opts.StartTurn, opts.EndTurn)
	}

	w, h := root.BoardSize()
	plan.Query = AnalysisQuery{
		ID:               opts.ID,
		Moves:            gtpPairs(moves),
		InitialStones:    gtpPairs(placements),
		InitialPlayer:    string(initialPlayer),
		Rules:            root.Ruleset(),
		Komi:             root.Komi(),
		BoardXSize:       w,
		BoardYSize:       h,
		AnalyzeTurns:     turns,
		MaxVisits:        opts.MaxVisits,
		IncludeOwnership: opts.IncludeOwnership,
		IncludePolicy:    opts.IncludePolicy,
	}
	plan.Expected = len(turns)
	return plan
}

// TurnRange returns start..end inclusive, both clamped into [0, total]. Missing bounds
// default to the full range.
func TurnRange(total int, start, end *int) []int {
	s, e := 0, total
	if start != nil {
		s = *start
	}
	if end != nil {
		e = *end
	}
	s = max(0, min(s, total))
	e = max(s, min(e, total))

	turns := make([]int, 0, e-s+1)
	for t := s; t <= e; t++ {
		turns = append(turns, t)
	}
	return turns
}

func collides(first sgf.Move, placements []sgf.Move) bool {
	for _, p := range placements {
		if p.Point == first.Point {
			return true
		}
	}
	return false
}

func gtpPairs(moves []sgf.Move) [][2]string {
	out := make([][2]string, 0, len(moves))
	for _, m := range moves {
		out = append(out, [2]string{string(m.Player), m.GTP()})
	}
	return out
}
