// Package spatial implements the SpatialHashGrid (spec §4.1, C1): a
// uniform-cell bucket index over axis-aligned bounds with O(1) insert,
// update, and removal, grounded on pthm-soup's systems/spatial.go
// SpatialGrid (cell-bucketed grid over a fixed cell size, flat id lists per
// cell) generalized from a toroidal fixed-size world to the CAD document's
// unbounded world by hashing signed cell coordinates into a 64-bit key
// instead of indexing a flat array.
package spatial

import (
	"sort"

	"github.com/rknuus/cadcore/internal/geom"
)

// ID is the generic element identifier the grid indexes; callers (pick,
// snap, transform) use docstore.EntityID but the grid itself stays
// independent of that package to keep it a narrow, reusable index.
type ID uint32

// DefaultCellSize is the tunable default of spec §4.1/§9: 50 world units.
const DefaultCellSize float32 = 50

type cellKey int64

// Grid is a uniform grid mapping cell coordinate -> bucket of ids, plus the
// reverse id -> cells map needed for O(1) removal.
type Grid struct {
	cellSize float32
	cells    map[cellKey][]ID
	byID     map[ID][]cellKey
}

// New creates a grid with the given cell size. A cellSize <= 0 falls back
// to DefaultCellSize.
func New(cellSize float32) *Grid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]ID),
		byID:     make(map[ID][]cellKey),
	}
}

func (g *Grid) cellCoord(v float32) int32 {
	// floor division for negative coordinates
	c := v / g.cellSize
	fc := int32(c)
	if c < 0 && float32(fc) != c {
		fc--
	}
	return fc
}

// hashCell combines two signed 32-bit cell coordinates with two large odd
// multipliers and XOR into a 64-bit key (spec §4.1).
func hashCell(cx, cy int32) cellKey {
	const m1 = int64(0x9E3779B97F4A7C15)
	const m2 = int64(0xC2B2AE3D27D4EB4F)
	h := (int64(cx) * m1) ^ (int64(cy) * m2)
	return cellKey(h)
}

func (g *Grid) cellRange(b geom.AABB) (minCX, minCY, maxCX, maxCY int32) {
	minCX = g.cellCoord(b.MinX)
	minCY = g.cellCoord(b.MinY)
	maxCX = g.cellCoord(b.MaxX)
	maxCY = g.cellCoord(b.MaxY)
	return
}

// Insert rasterizes bounds into its covering cell range and pushes id into
// each cell bucket, recording the cells under id for later removal.
func (g *Grid) Insert(id ID, bounds geom.AABB) {
	minCX, minCY, maxCX, maxCY := g.cellRange(bounds)
	keys := make([]cellKey, 0, (maxCX-minCX+1)*(maxCY-minCY+1))
	for cx := minCX; cx <= maxCX; cx++ {
		for cy := minCY; cy <= maxCY; cy++ {
			k := hashCell(cx, cy)
			g.cells[k] = append(g.cells[k], id)
			keys = append(keys, k)
		}
	}
	g.byID[id] = keys
}

// Remove deletes id from every cell it was recorded under, swap-popping
// each bucket entry and erasing empty buckets.
func (g *Grid) Remove(id ID) {
	keys, ok := g.byID[id]
	if !ok {
		return
	}
	for _, k := range keys {
		bucket := g.cells[k]
		for i, v := range bucket {
			if v == id {
				bucket[i] = bucket[len(bucket)-1]
				bucket = bucket[:len(bucket)-1]
				break
			}
		}
		if len(bucket) == 0 {
			delete(g.cells, k)
		} else {
			g.cells[k] = bucket
		}
	}
	delete(g.byID, id)
}

// Update removes and reinserts id under new bounds (atomic in effect).
func (g *Grid) Update(id ID, bounds geom.AABB) {
	g.Remove(id)
	g.Insert(id, bounds)
}

// Query appends every id whose cell bucket overlaps bounds into out.
// Duplicates are tolerated; callers must sort-unique if they care.
func (g *Grid) Query(bounds geom.AABB, out []ID) []ID {
	minCX, minCY, maxCX, maxCY := g.cellRange(bounds)
	for cx := minCX; cx <= maxCX; cx++ {
		for cy := minCY; cy <= maxCY; cy++ {
			k := hashCell(cx, cy)
			out = append(out, g.cells[k]...)
		}
	}
	return out
}

// SortUnique sorts and de-duplicates an id slice in place, returning the
// deduplicated prefix. Shared by every Query caller (§4.1 "callers must
// sort-unique").
func SortUnique(ids []ID) []ID {
	if len(ids) < 2 {
		return ids
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

// Len reports the number of distinct ids currently indexed.
func (g *Grid) Len() int { return len(g.byID) }
