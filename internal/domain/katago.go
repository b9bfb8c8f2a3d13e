package domain

// AnalysisQuery is one line written to the KataGo analysis engine's stdin.
type AnalysisQuery struct {
	ID               string      `json:"id"`
	Moves            [][2]string `json:"moves"` // [["B","D4"], ["W","Q16"], ...]
	InitialStones    [][2]string `json:"initialStones"`
	InitialPlayer    string      `json:"initialPlayer"`
	Rules            string      `json:"rules"`
	Komi             float64     `json:"komi"`
	BoardXSize       int         `json:"boardXSize"`
	BoardYSize       int         `json:"boardYSize"`
	AnalyzeTurns     []int       `json:"analyzeTurns"`
	MaxVisits        int         `json:"maxVisits"`
	IncludeOwnership bool        `json:"includeOwnership"`
	IncludePolicy    bool        `json:"includePolicy"`
}

// AnalysisResponse is one line read from the engine's stdout. Error and Warning lines carry
// only ID, Field and the message.
type AnalysisResponse struct {
	ID             string     `json:"id"`
	TurnNumber     int        `json:"turnNumber"`
	IsDuringSearch bool       `json:"isDuringSearch"`
	RootInfo       RootInfo   `json:"rootInfo"`
	MoveInfos      []MoveInfo `json:"moveInfos"`
	Error          string     `json:"error,omitempty"`
	Warning        string     `json:"warning,omitempty"`
	Field          string     `json:"field,omitempty"`
}

type RootInfo struct {
	CurrentPlayer string  `json:"currentPlayer"` // "W" or "B"
	Winrate       float64 `json:"winrate"`
	ScoreLead     float64 `json:"scoreLead"`
	Visits        int     `json:"visits"`
}

type MoveInfo struct {
	Move      string   `json:"move"`
	Order     int      `json:"order"`
	Winrate   float64  `json:"winrate"`
	ScoreLead float64  `json:"scoreLead"`
	Visits    int      `json:"visits"`
	PV        []string `json:"pv"` // principal variation, starting with Move
}
