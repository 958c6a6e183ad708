package detector

import (
	"github.com/fogleman/gg"
)

// drawJoint renders one keypoint as a filled disc with the white ring
// both skeleton styles share.
func drawJoint(dc *gg.Context, x, y, radius, ring float64, r, g, b int) {
	dc.SetRGB255(r, g, b)
	dc.DrawCircle(x, y, radius)
	dc.Fill()

	dc.SetRGB255(255, 255, 255)
	dc.SetLineWidth(2)
	dc.DrawCircle(x, y, ring)
	dc.Stroke()
}

// drawBone renders one skeleton edge in the current color.
func drawBone(dc *gg.Context, x1, y1, x2, y2 float64) {
	dc.SetLineWidth(2)
	dc.DrawLine(x1, y1, x2, y2)
	dc.Stroke()
}
