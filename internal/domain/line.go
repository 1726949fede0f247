package domain

// Bounds is a vertical position range in page coordinates.
type Bounds struct {
	MinY float64 `json:"minY"`
	MaxY float64 `json:"maxY"`
}

// Overlap returns the length of the overlap between two ranges, expanding
// the receiver by tolerance on both sides. Non-positive means no overlap.
func (b Bounds) Overlap(o Bounds, tolerance float64) float64 {
	lo := b.MinY - tolerance
	hi := b.MaxY + tolerance
	if o.MinY > lo {
		lo = o.MinY
	}
	if o.MaxY < hi {
		hi = o.MaxY
	}
	return hi - lo
}

// RecognizedLine is one line of recognizer output for a transcription pass.
// Canonical holds the recognizer's original text so that user edits to the
// block content do not mask real handwriting changes. SourceLineIDs is set
// only on lines produced by the editor merging previously distinct lines;
// it carries the block ids of the merged originals, surviving block first.
type RecognizedLine struct {
	Text          string   `json:"text"`
	Indent        int      `json:"indent"`
	Bounds        Bounds   `json:"bounds"`
	Canonical     string   `json:"canonical"`
	SourceLineIDs []string `json:"sourceLineIds,omitempty"`
}
