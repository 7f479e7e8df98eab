// Package core holds geometry shared by the simulation and the renderer.
package core

// Grid is the rest shape of a cloth sheet: packed xyz positions and the
// triangle list over them.
type Grid struct {
	SizeX, SizeY int
	Length       float32
	Vertices     []float32
	Indices      []uint32
}

// VertexCount returns the number of grid points.
func (g Grid) VertexCount() int { return len(g.Vertices) / 3 }

// IndexCount returns the length of the triangle index list.
func (g Grid) IndexCount() int { return len(g.Indices) }

// BuildGrid lays out sizeX*sizeY points spaced length apart in the y=0
// plane, centred on the origin. Row j runs along +x and rows advance
// along -z. Each quad is split into two triangles with a fixed winding.
// Grids smaller than 2x2 have vertices but no triangles.
func BuildGrid(sizeX, sizeY int, length float32) Grid {
	g := Grid{SizeX: sizeX, SizeY: sizeY, Length: length}
	if sizeX <= 0 || sizeY <= 0 {
		return g
	}

	halfW := float32(sizeX-1) * length / 2
	halfH := float32(sizeY-1) * length / 2

	g.Vertices = make([]float32, 0, sizeX*sizeY*3)
	for j := 0; j < sizeY; j++ {
		for i := 0; i < sizeX; i++ {
			g.Vertices = append(g.Vertices,
				-halfW+float32(i)*length,
				0,
				halfH-float32(j)*length)
		}
	}

	if sizeX < 2 || sizeY < 2 {
		return g
	}

	g.Indices = make([]uint32, 0, (sizeX-1)*(sizeY-1)*6)
	for j := 0; j < sizeY-1; j++ {
		for i := 0; i < sizeX-1; i++ {
			tl := uint32(j*sizeX + i)
			tr := tl + 1
			bl := uint32((j+1)*sizeX + i)
			br := bl + 1
			g.Indices = append(g.Indices, tl, tr, bl, tr, br, bl)
		}
	}
	return g
}
