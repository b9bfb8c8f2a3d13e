package sgf

import (
	"math"
	"strconv"
	"strings"
)

// ParseNGF reads a NetGo/PandaNet record. Metadata sits on fixed lines
// (size, players, handicap, komi, date, result); moves are "PM" lines.
func ParseNGF(ngf string) (*Node, error) {
	lines := strings.Split(strings.TrimSpace(ngf), "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}

	boardSize, handicap, komi, pw, pb, rawDate := readNGFHeader(lines)

	result := ""
	if len(lines) > 10 {
		switch {
		case strings.Contains(lines[10], "hite win"):
			result = "W+"
		case strings.Contains(lines[10], "lack win"):
			result = "B+"
		}
	}

	if handicap < 0 || handicap > 9 {
		return nil, parseErrorf("handicap %d out of range", handicap)
	}

	root := NewNode(nil)
	root.SetProperty("SZ", strconv.Itoa(boardSize))
	if handicap >= 2 {
		root.SetProperty("HA", strconv.Itoa(handicap))
		// not Tygem, but the same layout
		root.PlaceHandicapStones(handicap, true)
	}
	if komi != 0 {
		root.SetProperty("KM", formatKomi(komi))
	}
	if len(rawDate) == 8 && isDigits(rawDate) {
		root.SetProperty("DT", rawDate[0:4]+"-"+rawDate[4:6]+"-"+rawDate[6:8])
	}
	if pw != "" {
		root.SetProperty("PW", pw)
	}
	if pb != "" {
		root.SetProperty("PB", pb)
	}
	if result != "" {
		root.SetProperty("RE", result)
	}

	node := root
	for _, line := range lines {
		line = strings.ToUpper(strings.TrimSpace(line))
		if len(line) < 7 || line[0:2] != "PM" {
			continue
		}
		if line[4] != 'B' && line[4] != 'W' {
			continue
		}
		// same letters as the compact form, but uppercase and shifted by one
		raw := strings.ToLower(line[5:7])
		value := string([]byte{raw[0] - 1, raw[1] - 1})
		node = NewNode(node)
		node.SetProperty(string(line[4]), value)
	}

	if len(root.Children()) == 0 {
		return nil, parseErrorf("found no moves")
	}
	return root, nil
}

// readNGFHeader falls back to an empty 19x19 header if any field is missing or garbled.
func readNGFHeader(lines []string) (boardSize, handicap int, komi float64, pw, pb, rawDate string) {
	fallback := func() (int, int, float64, string, string, string) {
		return DefaultBoardSize, 0, 0, "", "", ""
	}
	if len(lines) < 9 {
		return fallback()
	}
	var err error
	if boardSize, err = strconv.Atoi(strings.TrimSpace(lines[1])); err != nil {
		return fallback()
	}
	if handicap, err = strconv.Atoi(strings.TrimSpace(lines[5])); err != nil {
		return fallback()
	}
	white, black := strings.Fields(lines[2]), strings.Fields(lines[3])
	if len(white) == 0 || len(black) == 0 {
		return fallback()
	}
	pw, pb = white[0], black[0]
	rawDate = head(lines[8], 8)
	if komi, err = strconv.ParseFloat(strings.TrimSpace(lines[7]), 64); err != nil {
		return fallback()
	}
	if handicap == 0 && komi == math.Trunc(komi) {
		komi += 0.5
	}
	return boardSize, handicap, komi, pw, pb, rawDate
}

func formatKomi(k float64) string {
	return strconv.FormatFloat(k, 'f', -1, 64)
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
