package domain

import "math"

// AnalysisRequest is what a caller hands to the analysis service.
type AnalysisRequest struct {
	SGF       string `json:"sgf"`
	Visits    int    `json:"visits"`
	StartTurn *int   `json:"start_turn,omitempty"`
	EndTurn   *int   `json:"end_turn,omitempty"`
}

// TurnResult is the caller-facing evaluation of one turn. Percentages and scores are
// rounded to one decimal.
type TurnResult struct {
	Turn          int       `json:"turn"`
	Total         int       `json:"total"`
	Winrate       float64   `json:"winrate"`
	Score         float64   `json:"score"`
	CurrentPlayer string    `json:"currentPlayer"`
	TopMoves      []TopMove `json:"topMoves"`
}

type TopMove struct {
	Move      string   `json:"move"`
	Winrate   float64  `json:"winrate"`
	ScoreLead float64  `json:"scoreLead"`
	Visits    int      `json:"visits"`
	PV        []string `json:"pv"`
}

// StreamItem is one element of a result stream. A non-nil Err is always the last item.
type StreamItem struct {
	Result TurnResult
	Err    error
}

// NewTurnResult shapes an engine response; offset comes from the QueryPlan.
func NewTurnResult(resp AnalysisResponse, offset, total int) TurnResult {
	player := resp.RootInfo.CurrentPlayer
	if player == "" {
		player = "B"
	}
	top := make([]TopMove, 0, len(resp.MoveInfos))
	for _, mi := range resp.MoveInfos {
		pv := mi.PV
		if pv == nil {
			pv = []string{}
		}
		top = append(top, TopMove{
			Move:      mi.Move,
			Winrate:   round1(mi.Winrate * 100),
			ScoreLead: round1(mi.ScoreLead),
			Visits:    mi.Visits,
			PV:        pv,
		})
	}
	return TurnResult{
		Turn:          resp.TurnNumber + offset,
		Total:         total,
		Winrate:       round1(resp.RootInfo.Winrate * 100),
		Score:         round1(resp.RootInfo.ScoreLead),
		CurrentPlayer: player,
		TopMoves:      top,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
