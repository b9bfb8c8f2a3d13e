package domain

import (
	"fmt"
	"sort"
	"strings"

	"go_analysis/internal/domain/sgf"
)

// MaxVariations caps the candidate branches added under one node.
const MaxVariations = 3

// Annotate writes engine results into the tree: a comment on the analyzed node and up to
// MaxVariations candidate branches, each extended by its principal variation.
// offset is the QueryPlan offset the results were produced with.
func Annotate(tree *sgf.Node, results []AnalysisResponse, offset int) {
	line := tree.Root().MainLine()

	for _, res := range results {
		idx := res.TurnNumber + offset - 1
		if idx < 0 || idx >= len(line) {
			continue
		}
		node := line[idx]

		comment := fmt.Sprintf("Winrate: %.1f%%, Score: %.1f", res.RootInfo.Winrate*100, res.RootInfo.ScoreLead)
		if existing, ok := node.Property("C"); ok && existing != "" {
			comment = existing + "\n" + comment
		}
		node.SetProperty("C", comment)

		played := ""
		if idx+1 < len(line) {
			if m, ok := line[idx+1].Move(); ok {
				played = m.GTP()
			}
		}

		toMove, ok := sgf.ParsePlayer(res.RootInfo.CurrentPlayer)
		if !ok {
			toMove = node.NextPlayer()
		}

		candidates := append([]MoveInfo(nil), res.MoveInfos...)
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Order < candidates[j].Order })

		added := 0
		for _, cand := range candidates {
			if added >= MaxVariations {
				break
			}
			if strings.EqualFold(cand.Move, played) {
				continue
			}
			move, err := sgf.MoveFromGTP(cand.Move, toMove)
			if err != nil {
				continue
			}
			variation := node.Play(move)
			variation.SetProperty("C", fmt.Sprintf("Var - Win: %.1f%%, Score: %.1f", cand.Winrate*100, cand.ScoreLead))
			extendPV(variation, cand.PV, toMove.Opponent())
			added++
		}
	}
}

// extendPV plays pv[1:] below node, alternating from player.
func extendPV(node *sgf.Node, pv []string, player sgf.Player) {
	if len(pv) < 2 {
		return
	}
	for _, coord := range pv[1:] {
		move, err := sgf.MoveFromGTP(coord, player)
		if err != nil {
			return
		}
		node = node.Play(move)
		player = player.Opponent()
	}
}
