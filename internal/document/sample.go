package document

import (
	"github.com/inamate/canvas/internal/geom"
)

// NewSampleProject builds a small demo canvas: one frame holding a few
// shapes of each family, used by the host adapters' "load sample" command.
func NewSampleProject() Project {
	table := NewTable()

	frame := NewFrame(geom.Rect{X: 100, Y: 100, Width: 800, Height: 600}, Style{Stroke: "#6b7280", StrokeWidth: 1})
	frame.Frame.Number = 1
	table.Add(frame)

	fill := "#1e293b"
	card := NewRect(geom.Rect{X: 160, Y: 180, Width: 320, Height: 200}, Style{Stroke: "#38bdf8", StrokeWidth: 2, Fill: &fill})
	table.Add(card)

	table.Add(NewEllipse(geom.Rect{X: 560, Y: 200, Width: 180, Height: 180}, Style{Stroke: "#f472b6", StrokeWidth: 3}))

	table.Add(NewFreeDraw([]geom.Point{
		{X: 180, Y: 480}, {X: 220, Y: 450}, {X: 260, Y: 500}, {X: 300, Y: 460}, {X: 340, Y: 510},
	}, DefaultStyle()))

	table.Add(NewArrow(geom.Pt(500, 520), geom.Pt(700, 600), DefaultStyle()))

	heading := DefaultTypography()
	heading.FontSize = 32
	heading.FontWeight = "bold"
	table.Add(NewText(geom.Pt(160, 120), "Landing page", heading, Style{Stroke: "#ffffff"}))

	return Project{Shapes: table, FrameCounter: 1}
}
