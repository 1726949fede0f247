package services

import (
	"bytes"
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/yungbote/inkbridge-backend/internal/domain"
	"github.com/yungbote/inkbridge-backend/internal/logger"
)

// InkTransform maps between page coordinates and rendered pixel
// coordinates: px = (x - OffsetX) * Scale.
type InkTransform struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

func (t InkTransform) ToInkX(px float64) float64 { return px/t.Scale + t.OffsetX }
func (t InkTransform) ToInkY(px float64) float64 { return px/t.Scale + t.OffsetY }

// InkRenderer rasterizes a page's strokes to a PNG the recognizer can OCR.
type InkRenderer struct {
	log *logger.Logger

	scale  float64
	margin float64
	maxDim int
}

func NewInkRenderer(log *logger.Logger, scale float64) *InkRenderer {
	if scale <= 0 {
		scale = 6
	}
	return &InkRenderer{
		log:    log.With("service", "InkRenderer"),
		scale:  scale,
		margin: 4,
		maxDim: 4096,
	}
}

// Render draws the strokes in black on white and returns the PNG bytes plus
// the transform used, so recognizer bounding boxes can be mapped back into
// page coordinates.
func (r *InkRenderer) Render(strokes []domain.Stroke) ([]byte, InkTransform, error) {
	if len(strokes) == 0 {
		return nil, InkTransform{}, fmt.Errorf("no strokes to render")
	}

	box := domain.BoundingBox(strokes)
	tr := InkTransform{
		Scale:   r.scale,
		OffsetX: box.MinX - r.margin,
		OffsetY: box.MinY - r.margin,
	}

	width := int((box.MaxX-box.MinX+2*r.margin)*r.scale) + 1
	height := int((box.MaxY-box.MinY+2*r.margin)*r.scale) + 1
	if width < 32 {
		width = 32
	}
	if height < 32 {
		height = 32
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(r.scale * 0.6)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	for _, stroke := range strokes {
		if len(stroke.Points) == 0 {
			continue
		}
		if len(stroke.Points) == 1 {
			p := stroke.Points[0]
			dc.DrawCircle((p.X-tr.OffsetX)*tr.Scale, (p.Y-tr.OffsetY)*tr.Scale, r.scale*0.3)
			dc.Fill()
			continue
		}
		dc.NewSubPath()
		first := stroke.Points[0]
		dc.MoveTo((first.X-tr.OffsetX)*tr.Scale, (first.Y-tr.OffsetY)*tr.Scale)
		for _, p := range stroke.Points[1:] {
			dc.LineTo((p.X-tr.OffsetX)*tr.Scale, (p.Y-tr.OffsetY)*tr.Scale)
		}
		dc.Stroke()
	}

	img := dc.Image()
	if width > r.maxDim || height > r.maxDim {
		factor := float64(r.maxDim) / float64(width)
		if height > width {
			factor = float64(r.maxDim) / float64(height)
		}
		dstW := int(float64(width) * factor)
		dstH := int(float64(height) * factor)
		dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
		img = dst
		tr.Scale *= factor
		r.log.Debug("Downscaled rendered page", "width", dstW, "height", dstH)
	}

	var buf bytes.Buffer
	if err := gg.NewContextForImage(img).EncodePNG(&buf); err != nil {
		return nil, InkTransform{}, fmt.Errorf("encode rendered page: %w", err)
	}
	return buf.Bytes(), tr, nil
}
