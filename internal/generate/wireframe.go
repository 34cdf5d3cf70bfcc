package generate

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/inamate/canvas/internal/document"
	"github.com/inamate/canvas/internal/geom"
)

// Wireframe is a deterministic Generator that converts the shapes over a
// frame into absolutely positioned HTML, one chunk per shape. It is the
// default generator of the server when no model backend is wired in.
type Wireframe struct {
	// Delay paces chunks so clients see the stream arrive.
	Delay time.Duration
}

func (w Wireframe) Generate(ctx context.Context, req Request) (<-chan Chunk, error) {
	out := make(chan Chunk)
	go func() {
		defer close(out)

		var body strings.Builder
		origin := req.Frame.Origin()
		send := func(c Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, s := range req.Shapes {
			if s.ID == req.FrameID {
				continue
			}
			el := element(s, origin)
			if el == "" {
				continue
			}
			body.WriteString(el)
			if !send(Chunk{Markup: wrap(req, body.String())}) {
				return
			}
			if w.Delay > 0 {
				select {
				case <-time.After(w.Delay):
				case <-ctx.Done():
					return
				}
			}
		}
		send(Chunk{Markup: wrap(req, body.String()), Done: true})
	}()
	return out, nil
}

func wrap(req Request, body string) string {
	title := ""
	if req.Prompt != "" {
		title = fmt.Sprintf(` title="%s"`, html.EscapeString(req.Prompt))
	}
	return fmt.Sprintf(`<div class="frame"%s style="position:relative;width:%gpx;height:%gpx">%s</div>`,
		title, req.Frame.Width, req.Frame.Height, body)
}

func box(r geom.Rect, origin geom.Point) string {
	return fmt.Sprintf("position:absolute;left:%gpx;top:%gpx;width:%gpx;height:%gpx",
		r.X-origin.X, r.Y-origin.Y, r.Width, r.Height)
}

func paint(st document.Style) string {
	var b strings.Builder
	if st.Stroke != "" && st.StrokeWidth > 0 {
		fmt.Fprintf(&b, ";border:%gpx solid %s", st.StrokeWidth, st.Stroke)
	}
	if st.Fill != nil {
		fmt.Fprintf(&b, ";background:%s", *st.Fill)
	}
	return b.String()
}

func element(s document.Shape, origin geom.Point) string {
	switch s.Type {
	case document.ShapeFrame, document.ShapeRect, document.ShapeGenerated:
		return fmt.Sprintf(`<div style="%s%s"></div>`, box(document.Bounds(s), origin), paint(s.Style))
	case document.ShapeEllipse:
		return fmt.Sprintf(`<div style="%s%s;border-radius:50%%"></div>`, box(document.Bounds(s), origin), paint(s.Style))
	case document.ShapeImage:
		src := ""
		if s.Image != nil && len(s.Image.Data) > 0 && s.Image.MIME != "" {
			src = fmt.Sprintf(` src="data:%s;base64,%s"`, s.Image.MIME, base64.StdEncoding.EncodeToString(s.Image.Data))
		}
		return fmt.Sprintf(`<img alt=""%s style="%s">`, src, box(document.Bounds(s), origin))
	case document.ShapeText:
		if s.Text == nil {
			return ""
		}
		t := s.Text.Typography
		return fmt.Sprintf(`<p style="%s;margin:0;color:%s;font-size:%gpx;font-family:%s;font-weight:%s;text-align:%s">%s</p>`,
			box(document.Bounds(s), origin), s.Style.Stroke, t.FontSize, t.FontFamily, t.FontWeight, t.TextAlign,
			html.EscapeString(s.Text.Content))
	case document.ShapeFreeDraw, document.ShapeLine, document.ShapeArrow:
		var pts []geom.Point
		if s.Type == document.ShapeFreeDraw {
			pts = s.Points
		} else if s.Segment != nil {
			pts = []geom.Point{s.Segment.Start, s.Segment.End}
		}
		if len(pts) < 2 {
			return ""
		}
		coords := make([]string, len(pts))
		for i, p := range pts {
			coords[i] = fmt.Sprintf("%g,%g", p.X-origin.X, p.Y-origin.Y)
		}
		return fmt.Sprintf(`<svg style="position:absolute;left:0;top:0;overflow:visible"><polyline fill="none" stroke="%s" stroke-width="%g" points="%s"/></svg>`,
			s.Style.Stroke, s.Style.StrokeWidth, strings.Join(coords, " "))
	default:
		return ""
	}
}
