package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// PointHash buckets points into cubic cells so that all points within a
// fixed radius of a query can be found without a linear scan.
type PointHash struct {
	radius  float64
	buckets map[[3]int][]int
	pts     []r3.Vec
}

// NewPointHash builds a hash over xs for queries of the given radius.
func NewPointHash(xs []Vec, radius float64) *PointHash {
	h := &PointHash{
		radius:  radius,
		buckets: make(map[[3]int][]int),
		pts:     make([]r3.Vec, len(xs)),
	}
	for i := range xs {
		h.pts[i] = xs[i].R3()
		key := h.key(h.pts[i])
		h.buckets[key] = append(h.buckets[key], i)
	}
	return h
}

func (h *PointHash) key(p r3.Vec) [3]int {
	return [3]int{
		int(math.Floor(p.X / h.radius)),
		int(math.Floor(p.Y / h.radius)),
		int(math.Floor(p.Z / h.radius)),
	}
}

// Len returns the number of hashed points.
func (h *PointHash) Len() int { return len(h.pts) }

// Point returns the i-th hashed point.
func (h *PointHash) Point(i int) r3.Vec { return h.pts[i] }

// ForEachNearby calls fn with the index and squared distance of every point
// strictly closer to p than the hash radius.
func (h *PointHash) ForEachNearby(p r3.Vec, fn func(i int, dist2 float64)) {
	r2 := h.radius * h.radius
	k := h.key(p)
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				b := h.buckets[[3]int{k[0] + dx, k[1] + dy, k[2] + dz}]
				for _, i := range b {
					d := r3.Sub(h.pts[i], p)
					dist2 := r3.Dot(d, d)
					if dist2 < r2 {
						fn(i, dist2)
					}
				}
			}
		}
	}
}

// HasNearby returns true if any point is strictly closer to p than the hash
// radius.
func (h *PointHash) HasNearby(p r3.Vec) bool {
	found := false
	h.ForEachNearby(p, func(int, float64) { found = true })
	return found
}

// Insert adds a point to the hash and returns its index.
func (h *PointHash) Insert(p r3.Vec) int {
	i := len(h.pts)
	h.pts = append(h.pts, p)
	key := h.key(p)
	h.buckets[key] = append(h.buckets[key], i)
	return i
}
