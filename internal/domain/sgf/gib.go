package sgf

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	gibGRLT      = regexp.MustCompile(`GRLT:(\d+),`)
	gibZIPSU     = regexp.MustCompile(`ZIPSU:(\d+),`)
	gibGongje    = regexp.MustCompile(`GONGJE:(\d+),`)
	gibTagDate   = regexp.MustCompile(`C(\d\d\d\d):(\d\d):(\d\d)`)
	gibTagWinner = regexp.MustCompile(`,W(\d+),`)
	gibTagZipsu  = regexp.MustCompile(`,Z(\d+),`)
	gibTagKomi   = regexp.MustCompile(`,G(\d+),`)
)

const (
	gibBlackName = `\[GAMEBLACKNAME=`
	gibWhiteName = `\[GAMEWHITENAME=`
	gibInfoMain  = `\[GAMEINFOMAIN=`
	gibTag       = `\[GAMETAG=`
	gibLineEnd   = `\]`
)

// ParseGIB reads a Tygem record: tagged metadata lines plus INI (setup) and STO (move) lines.
// Tygem boards are always 19x19.
func ParseGIB(gib string) (*Node, error) {
	root := NewNode(nil)
	node := root

	for _, line := range strings.Split(gib, "\n") {
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, gibBlackName) && strings.HasSuffix(line, gibLineEnd) {
			name, rank := gibPlayerName(line[len(gibBlackName) : len(line)-len(gibLineEnd)])
			if name != "" {
				root.SetProperty("PB", name)
			}
			if rank != "" {
				root.SetProperty("BR", rank)
			}
		}

		if strings.HasPrefix(line, gibWhiteName) && strings.HasSuffix(line, gibLineEnd) {
			name, rank := gibPlayerName(line[len(gibWhiteName) : len(line)-len(gibLineEnd)])
			if name != "" {
				root.SetProperty("PW", name)
			}
			if rank != "" {
				root.SetProperty("WR", rank)
			}
		}

		if strings.HasPrefix(line, gibInfoMain) {
			if result := gibResult(line, gibGRLT, gibZIPSU); result != "" {
				root.SetProperty("RE", result)
				if km, ok := gibTenths(gibGongje, line); ok && km != 0 {
					root.SetProperty("KM", formatKomi(km))
				}
			}
		}

		if strings.HasPrefix(line, gibTag) {
			if !root.HasProperty("DT") {
				if m := gibTagDate.FindStringSubmatch(line); m != nil {
					root.SetProperty("DT", fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3]))
				}
			}
			if !root.HasProperty("RE") {
				if result := gibResult(line, gibTagWinner, gibTagZipsu); result != "" {
					root.SetProperty("RE", result)
				}
			}
			if !root.HasProperty("KM") {
				if km, ok := gibTenths(gibTagKomi, line); ok && km != 0 {
					root.SetProperty("KM", formatKomi(km))
				}
			}
		}

		if strings.HasPrefix(line, "INI") {
			if node != root {
				return nil, parseErrorf("INI line after moves: %q", line)
			}
			setup := strings.Fields(line)
			if len(setup) < 4 {
				continue
			}
			handicap, err := strconv.Atoi(setup[3])
			if err != nil {
				continue
			}
			if handicap < 0 || handicap > 9 {
				return nil, parseErrorf("handicap %d out of range", handicap)
			}
			if handicap >= 2 {
				root.SetProperty("HA", strconv.Itoa(handicap))
				root.PlaceHandicapStones(handicap, true)
			}
		}

		if strings.HasPrefix(line, "STO") {
			fields := strings.Fields(line)
			if len(fields) < 6 {
				continue
			}
			player := White
			if fields[3] == "1" {
				player = Black
			}
			x, errX := strconv.Atoi(fields[4])
			row, errY := strconv.Atoi(fields[5])
			if errX != nil || errY != nil {
				continue
			}
			y := 18 - row
			if x < 0 || x >= 19 || y < 0 || y >= 19 {
				return nil, parseErrorf("coordinates for move (%d,%d) out of range on line %q", x, y, line)
			}
			node = NewNode(node)
			node.SetProperty(string(player), NewMove(player, x, y).SGF(19, 19))
		}
	}

	if len(root.Children()) == 0 {
		return nil, parseErrorf("no valid nodes found")
	}
	return root, nil
}

// gibPlayerName splits "Lee Sedol(9p)" into name and rank.
func gibPlayerName(raw string) (string, string) {
	parts := strings.Split(raw, "(")
	if len(parts) == 2 && strings.HasSuffix(parts[1], ")") {
		return strings.TrimSpace(parts[0]), strings.TrimSuffix(parts[1], ")")
	}
	return raw, ""
}

// gibResult decodes GRLT (0 B+pts, 1 W+pts, 3 B+R, 4 W+R, 7 B+T, 8 W+T);
// the point margin is stored times ten.
func gibResult(line string, grltPattern, zipsuPattern *regexp.Regexp) string {
	g := grltPattern.FindStringSubmatch(line)
	z := zipsuPattern.FindStringSubmatch(line)
	if g == nil || z == nil {
		return ""
	}
	grlt, errG := strconv.Atoi(g[1])
	zipsu, errZ := strconv.Atoi(z[1])
	if errG != nil || errZ != nil {
		return ""
	}
	switch grlt {
	case 0:
		return fmt.Sprintf("B+%.1f", float64(zipsu)/10)
	case 1:
		return fmt.Sprintf("W+%.1f", float64(zipsu)/10)
	case 3:
		return "B+R"
	case 4:
		return "W+R"
	case 7:
		return "B+T"
	case 8:
		return "W+T"
	}
	return ""
}

func gibTenths(pattern *regexp.Regexp, line string) (float64, bool) {
	m := pattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return float64(v) / 10, true
}
