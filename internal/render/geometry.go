package render

import "fmt"

// QuadVertices is a full-screen quad, position then color, 6 floats per vertex.
var QuadVertices = []float32{
	1, 1, 0, 1, 0, 0,
	-1, 1, 0, 0, 1, 0,
	-1, -1, 0, 0, 0, 1,
	1, -1, 0, 0, 0, 1,
}

// QuadIndices draws the quad as two triangles.
var QuadIndices = []uint16{
	0, 1, 2,
	0, 2, 3,
}

// QuadStride is the number of floats per vertex in QuadVertices.
const QuadStride = 6

// GeometryID identifies uploaded vertex and index buffers.
type GeometryID uint32

// GeometryBackend uploads and frees buffers.
type GeometryBackend interface {
	CreateGeometry(vertices []float32, indices []uint16, stride int) (GeometryID, error)
	DeleteGeometry(id GeometryID)
}

// Geometry owns the quad buffers. Rebuild swaps them atomically: the new
// buffers are uploaded before the old ones are freed, and a failed upload
// keeps the old ones.
type Geometry struct {
	backend GeometryBackend
	id      GeometryID
}

// NewGeometry uploads the quad.
func NewGeometry(b GeometryBackend) (*Geometry, error) {
	g := &Geometry{backend: b}
	if err := g.Rebuild(); err != nil {
		return nil, err
	}
	return g, nil
}

// ID returns the current buffers; 0 after Close.
func (g *Geometry) ID() GeometryID { return g.id }

// IndexCount is the number of indices to draw.
func (g *Geometry) IndexCount() int { return len(QuadIndices) }

// Rebuild re-uploads the quad and frees the previous buffers.
func (g *Geometry) Rebuild() error {
	id, err := g.backend.CreateGeometry(QuadVertices, QuadIndices, QuadStride)
	if err != nil {
		return fmt.Errorf("upload quad: %w", err)
	}
	old := g.id
	g.id = id
	if old != 0 {
		g.backend.DeleteGeometry(old)
	}
	return nil
}

// Close frees the buffers. Safe to call twice.
func (g *Geometry) Close() {
	if g.id != 0 {
		g.backend.DeleteGeometry(g.id)
		g.id = 0
	}
}
