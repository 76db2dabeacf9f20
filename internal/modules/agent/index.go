package agent

import (
	"github.com/dhconnelly/rtreego"

	"evconnect/internal/geo"
	"evconnect/internal/types"
)

const (
	dimensions  = 2
	minChildren = 4
	maxChildren = 16
	// rtreego rejects zero-length sides.
	minSide = 1e-9
)

type areaItem struct {
	agent int
	area  geo.WorkArea
	rect  *rtreego.Rect
}

func (it *areaItem) Bounds() *rtreego.Rect {
	return it.rect
}

// AreaIndex is an R-tree over the bounding boxes of every valid work area in
// an agent snapshot. Lookups narrow by box and then run the exact shape test.
type AreaIndex struct {
	agents []*Agent
	tree   *rtreego.Rtree
}

func NewAreaIndex(agents []*Agent) *AreaIndex {
	idx := &AreaIndex{
		agents: agents,
		tree:   rtreego.NewTree(dimensions, minChildren, maxChildren),
	}
	for i, a := range agents {
		if a == nil {
			continue
		}
		for _, area := range a.WorkAreas {
			if !area.Valid() {
				continue
			}
			sw, ne := area.Bounds()
			rect, err := rtreego.NewRect(
				rtreego.Point{sw.Lat, sw.Lng},
				[]float64{side(ne.Lat - sw.Lat), side(ne.Lng - sw.Lng)},
			)
			if err != nil {
				continue
			}
			idx.tree.Insert(&areaItem{agent: i, area: area, rect: rect})
		}
	}
	return idx
}

func (idx *AreaIndex) Size() int {
	return idx.tree.Size()
}

// Servicing returns agents with at least one area containing loc, keeping
// the snapshot order.
func (idx *AreaIndex) Servicing(loc types.Point) []*Agent {
	if !loc.Valid() {
		return nil
	}
	probe := rtreego.Point{loc.Lat, loc.Lng}.ToRect(minSide)
	hits := make([]bool, len(idx.agents))
	for _, s := range idx.tree.SearchIntersect(probe) {
		it, ok := s.(*areaItem)
		if !ok || hits[it.agent] {
			continue
		}
		if it.area.Contains(loc) {
			hits[it.agent] = true
		}
	}
	out := make([]*Agent, 0)
	for i, hit := range hits {
		if hit {
			out = append(out, idx.agents[i])
		}
	}
	return out
}

// Servicing filters agents down to those whose declared work areas contain
// loc. Agents with no areas, or only invalid ones, are excluded.
func Servicing(loc types.Point, agents []*Agent) []*Agent {
	return NewAreaIndex(agents).Servicing(loc)
}

func side(v float64) float64 {
	if v < minSide {
		return minSide
	}
	return v
}
