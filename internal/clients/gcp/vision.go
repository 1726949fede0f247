package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/yungbote/inkbridge-backend/internal/logger"
)

// Vision runs handwriting OCR on rendered ink pages.
type Vision interface {
	AnnotateInk(ctx context.Context, png []byte) ([]InkLine, error)
	Close() error
}

// InkLine is one recognized text line with its pixel-space bounding box.
type InkLine struct {
	Text       string
	Confidence float64
	MinX       float64
	MinY       float64
	MaxX       float64
	MaxY       float64
}

type visionService struct {
	log          *logger.Logger
	visionClient *vision.ImageAnnotatorClient
}

func NewVision(log *logger.Logger) (Vision, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "gcp.Vision")

	ctx := context.Background()
	opts := ClientOptionsFromEnv()

	vClient, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &visionService{log: slog, visionClient: vClient}, nil
}

func (s *visionService) Close() error {
	if s == nil || s.visionClient == nil {
		return nil
	}
	return s.visionClient.Close()
}

func (s *visionService) AnnotateInk(ctx context.Context, png []byte) ([]InkLine, error) {
	if len(png) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req := &visionpb.AnnotateImageRequest{
		Image: &visionpb.Image{Content: png},
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
		},
		ImageContext: &visionpb.ImageContext{
			LanguageHints: languageHintsFromEnv(),
		},
	}

	br := &visionpb.BatchAnnotateImagesRequest{Requests: []*visionpb.AnnotateImageRequest{req}}
	resp, err := s.visionClient.BatchAnnotateImages(ctx, br)
	if err != nil {
		return nil, fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, nil
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return nil, fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}

	fta := r0.FullTextAnnotation
	if fta == nil || strings.TrimSpace(fta.Text) == "" {
		return nil, nil
	}

	var lines []InkLine
	for _, pg := range fta.Pages {
		if pg == nil {
			continue
		}
		for _, block := range pg.Blocks {
			if block == nil {
				continue
			}
			for _, para := range block.Paragraphs {
				if para == nil {
					continue
				}
				lines = append(lines, splitParagraphLines(para)...)
			}
		}
	}
	return lines, nil
}

// splitParagraphLines assembles words into visual lines, splitting on the
// recognizer's line-break markers. Handwriting frequently comes back as one
// paragraph spanning several physical lines.
func splitParagraphLines(para *visionpb.Paragraph) []InkLine {
	var lines []InkLine

	var text strings.Builder
	var box *InkLine
	confidence := 0.0
	words := 0

	flush := func() {
		trimmed := strings.TrimSpace(text.String())
		if trimmed != "" && box != nil {
			line := *box
			line.Text = trimmed
			if words > 0 {
				line.Confidence = confidence / float64(words)
			}
			lines = append(lines, line)
		}
		text.Reset()
		box = nil
		confidence = 0
		words = 0
	}

	for _, word := range para.Words {
		if word == nil {
			continue
		}
		for _, sym := range word.Symbols {
			if sym == nil {
				continue
			}
			text.WriteString(sym.Text)
		}
		box = unionBox(box, word.BoundingBox)
		confidence += float64(word.Confidence)
		words++

		switch wordBreak(word) {
		case visionpb.TextAnnotation_DetectedBreak_SPACE,
			visionpb.TextAnnotation_DetectedBreak_SURE_SPACE:
			text.WriteString(" ")
		case visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE,
			visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
			flush()
		}
	}
	flush()
	return lines
}

func wordBreak(word *visionpb.Word) visionpb.TextAnnotation_DetectedBreak_BreakType {
	if len(word.Symbols) == 0 {
		return visionpb.TextAnnotation_DetectedBreak_UNKNOWN
	}
	last := word.Symbols[len(word.Symbols)-1]
	if last == nil || last.Property == nil || last.Property.DetectedBreak == nil {
		return visionpb.TextAnnotation_DetectedBreak_UNKNOWN
	}
	return last.Property.DetectedBreak.Type
}

func unionBox(acc *InkLine, poly *visionpb.BoundingPoly) *InkLine {
	if poly == nil || len(poly.Vertices) == 0 {
		return acc
	}
	for _, v := range poly.Vertices {
		if v == nil {
			continue
		}
		x, y := float64(v.X), float64(v.Y)
		if acc == nil {
			acc = &InkLine{MinX: x, MinY: y, MaxX: x, MaxY: y}
			continue
		}
		if x < acc.MinX {
			acc.MinX = x
		}
		if y < acc.MinY {
			acc.MinY = y
		}
		if x > acc.MaxX {
			acc.MaxX = x
		}
		if y > acc.MaxY {
			acc.MaxY = y
		}
	}
	return acc
}

func languageHintsFromEnv() []string {
	raw := strings.TrimSpace(getenvDefault("VISION_LANGUAGE_HINTS", "en-t-i0-handwrit"))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	hints := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			hints = append(hints, p)
		}
	}
	return hints
}
