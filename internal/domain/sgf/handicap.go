package sgf

import (
	"math"
	"sort"
)

// PlaceHandicapStones writes AB with n stones in the standard layout: corners, then
// center for odd counts, then edge midpoints. Square boards with more than 9 stones get
// a grid ordered from the outside in. tygem swaps the third and fourth stone.
func (n *Node) PlaceHandicapStones(count int, tygem bool) {
	w, h := n.BoardSize()
	if min(w, h) < 3 || count <= 0 {
		return
	}
	stones := HandicapLayout(w, h, count, tygem)
	values := make([]string, 0, len(stones))
	seen := make(map[string]bool)
	for _, p := range stones {
		v := NewMove(Black, p.X, p.Y).SGF(w, h)
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	n.SetProperty("AB", values...)
}

// HandicapLayout returns at most count points for a w x h board.
func HandicapLayout(w, h, count int, tygem bool) []Point {
	if min(w, h) < 3 || count <= 0 {
		return nil
	}
	nearX, nearY := 3, 3
	if w < 13 {
		nearX = min(2, w-1)
	}
	if h < 13 {
		nearY = min(2, h-1)
	}
	farX := w - 1 - nearX
	farY := h - 1 - nearY
	middleX, middleY := w/2, h/2

	var stones []Point
	if count > 9 && w == h {
		perRow := int(math.Ceil(math.Sqrt(float64(count))))
		spacing := float64(farX-nearX) / float64(perRow-1)
		if spacing < float64(nearX) {
			farX++
			nearX--
			spacing = float64(farX-nearX) / float64(perRow-1)
		}
		seen := make(map[int]bool)
		var coords []int
		for i := 0; i < perRow; i++ {
			c := int(math.Floor(0.5 + float64(nearX) + float64(i)*spacing))
			if !seen[c] {
				seen[c] = true
				coords = append(coords, c)
			}
		}
		sort.Ints(coords)
		for _, x := range coords {
			for _, y := range coords {
				stones = append(stones, Point{X: x, Y: y})
			}
		}
		cx, cy := float64(w-1)/2, float64(h-1)/2
		dist := func(p Point) float64 {
			dx, dy := float64(p.X)-cx, float64(p.Y)-cy
			return dx*dx + dy*dy
		}
		sort.SliceStable(stones, func(i, j int) bool { return dist(stones[i]) > dist(stones[j]) })
	} else {
		stones = []Point{
			{farX, farY},
			{nearX, nearY},
			{farX, nearY},
			{nearX, farY},
		}
		if count%2 == 1 {
			stones = append(stones, Point{middleX, middleY})
		}
		stones = append(stones,
			Point{nearX, middleY},
			Point{farX, middleY},
			Point{middleX, nearY},
			Point{middleX, farY},
		)
	}
	if tygem {
		stones[2], stones[3] = stones[3], stones[2]
	}
	if count < len(stones) {
		stones = stones[:count]
	}
	return stones
}
