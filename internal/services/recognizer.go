package services

import (
	"context"
	"fmt"

	"github.com/yungbote/inkbridge-backend/internal/clients/gcp"
	"github.com/yungbote/inkbridge-backend/internal/domain"
	"github.com/yungbote/inkbridge-backend/internal/logger"
)

// Recognizer turns a page's strokes into recognized text lines with
// vertical bounds and indent levels in page coordinates. A failure is a
// hard stop for the pass; there is no partial retry here.
type Recognizer interface {
	Recognize(ctx context.Context, strokes []domain.Stroke) ([]domain.RecognizedLine, error)
}

type visionRecognizer struct {
	log        *logger.Logger
	vision     gcp.Vision
	renderer   *InkRenderer
	indentUnit float64
}

func NewVisionRecognizer(log *logger.Logger, vision gcp.Vision, renderer *InkRenderer, indentUnit float64) (Recognizer, error) {
	if vision == nil {
		return nil, fmt.Errorf("vision client required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("ink renderer required")
	}
	if indentUnit <= 0 {
		indentUnit = 10
	}
	return &visionRecognizer{
		log:        log.With("service", "VisionRecognizer"),
		vision:     vision,
		renderer:   renderer,
		indentUnit: indentUnit,
	}, nil
}

func (r *visionRecognizer) Recognize(ctx context.Context, strokes []domain.Stroke) ([]domain.RecognizedLine, error) {
	if len(strokes) == 0 {
		return nil, nil
	}

	png, transform, err := r.renderer.Render(strokes)
	if err != nil {
		return nil, fmt.Errorf("render ink: %w", err)
	}

	annotated, err := r.vision.AnnotateInk(ctx, png)
	if err != nil {
		return nil, fmt.Errorf("annotate ink: %w", err)
	}
	if len(annotated) == 0 {
		r.log.Debug("Recognizer returned no lines", "strokes", len(strokes))
		return nil, nil
	}

	// Indent is measured from the leftmost recognized line's left edge,
	// in whole indent units of page coordinates.
	leftEdge := transform.ToInkX(annotated[0].MinX)
	for _, line := range annotated[1:] {
		if x := transform.ToInkX(line.MinX); x < leftEdge {
			leftEdge = x
		}
	}

	lines := make([]domain.RecognizedLine, 0, len(annotated))
	for _, line := range annotated {
		minX := transform.ToInkX(line.MinX)
		indent := int((minX - leftEdge) / r.indentUnit)
		if indent < 0 {
			indent = 0
		}
		lines = append(lines, domain.RecognizedLine{
			Text:      line.Text,
			Canonical: line.Text,
			Indent:    indent,
			Bounds: domain.Bounds{
				MinY: transform.ToInkY(line.MinY),
				MaxY: transform.ToInkY(line.MaxY),
			},
		})
	}
	r.log.Debug("Recognized lines", "strokes", len(strokes), "lines", len(lines))
	return lines, nil
}
