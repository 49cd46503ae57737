package geom

const (
	// TetraDirCount is the number of tetrahedra a grid cell is split into.
	TetraDirCount = 6
)

var (
	// dirs gives, for each tetrahedron, the offsets of the two corners which
	// lie between the cell's origin corner and its far corner, (1, 1, 1).
	// Every tetrahedron shares the cell's main diagonal.
	dirs = [TetraDirCount][2][3]int{
		{{1, 0, 0}, {1, 1, 0}},
		{{1, 0, 0}, {1, 0, 1}},
		{{0, 1, 0}, {1, 1, 0}},
		{{0, 0, 1}, {1, 0, 1}},
		{{0, 1, 0}, {0, 1, 1}},
		{{0, 0, 1}, {0, 1, 1}},
	}
)

// TetraIdxs holds the corner offsets of one tetrahedron in a grid cell.
type TetraIdxs struct {
	Corners [4][3]int
}

// NewTetraIdxs returns the corner offsets of the tetrahedron with the given
// direction. dir must be in the range [0, TetraDirCount).
func NewTetraIdxs(dir int) *TetraIdxs {
	idxs := &TetraIdxs{}
	return idxs.Init(dir)
}

// Init sets the corners of idxs using the same rules as NewTetraIdxs.
func (idxs *TetraIdxs) Init(dir int) *TetraIdxs {
	idxs.Corners[0] = [3]int{0, 0, 0}
	idxs.Corners[1] = dirs[dir][0]
	idxs.Corners[2] = dirs[dir][1]
	idxs.Corners[3] = [3]int{1, 1, 1}
	return idxs
}
