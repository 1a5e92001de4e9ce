package roadmap

import (
	"image"

	"github.com/fogleman/gg"

	"ldprm/internal/geo"
	"ldprm/internal/grid"
)

// Overlay composes the current roadmap, and optionally a solved path, onto
// a copy of base. Edges are drawn thin and blue, the path thick and red,
// and isolated (degree-zero) vertices get a small point marker (spec.md
// §4.3.5). Drawn with fogleman/gg, the 2D-drawing dependency of
// viamrobotics-rdk (see DESIGN.md), in cell coordinates.
func (r *Roadmap) Overlay(base image.Image, cspace *grid.Grid, path []geo.WorldOrd) image.Image {
	dc := gg.NewContextForImage(base)

	dc.SetLineWidth(1)
	dc.SetRGB(0, 0, 1)
	for v, neighbours := range r.g.Container() {
		vOrd := r.network[v]
		vx, vy := cellXY(cspace, vOrd)

		if len(neighbours) == 0 {
			dc.DrawPoint(vx, vy, 1.5)
			dc.SetRGB(0, 0, 1)
			dc.Fill()
			continue
		}

		for _, nb := range neighbours {
			if nb.Vertex < v {
				continue // undirected: draw each edge once, from the smaller endpoint
			}
			nx, ny := cellXY(cspace, r.network[nb.Vertex])
			dc.DrawLine(vx, vy, nx, ny)
			dc.Stroke()
		}
	}

	if len(path) > 1 {
		dc.SetLineWidth(3)
		dc.SetRGB(1, 0, 0)
		x0, y0 := cellXY(cspace, path[0])
		dc.MoveTo(x0, y0)
		for _, ord := range path[1:] {
			x, y := cellXY(cspace, ord)
			dc.LineTo(x, y)
		}
		dc.Stroke()
	}

	return dc.Image()
}

func cellXY(g *grid.Grid, ord geo.WorldOrd) (float64, float64) {
	c := g.WorldToCell(ord)
	return float64(c.Col), float64(c.Row)
}
