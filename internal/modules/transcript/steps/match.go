package steps

// DefaultMatchTolerance expands line bounds when measuring stroke overlap,
// absorbing slant and baseline drift in the handwriting.
const DefaultMatchTolerance = 5.0

type MatchInput struct {
	Tolerance float64
}

// MatchStrokes assigns every stroke in the pass to the recognized line it
// vertically overlaps most, recording the result on the pass context. A
// stroke with no positive overlap against any line stays unassigned.
//
// This is a heuristic: ascenders and descenders of adjacent handwritten
// lines can overlap, so occasional misassignment is expected and tolerated
// downstream. Ties go to the earlier line.
func MatchStrokes(pass *PassContext, in MatchInput) {
	tolerance := in.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultMatchTolerance
	}

	pass.Assignments = make(map[string]int, len(pass.Strokes))
	pass.LineStrokes = make(map[int][]string, len(pass.Lines))

	for _, stroke := range pass.Strokes {
		if len(stroke.Points) == 0 {
			continue
		}
		minY, maxY := stroke.VerticalExtent()

		best := -1
		bestOverlap := 0.0
		for i, line := range pass.Lines {
			lo := line.Bounds.MinY - tolerance
			hi := line.Bounds.MaxY + tolerance
			if minY > lo {
				lo = minY
			}
			if maxY < hi {
				hi = maxY
			}
			overlap := hi - lo
			if overlap > 0 && overlap > bestOverlap {
				best = i
				bestOverlap = overlap
			}
		}
		if best < 0 {
			continue
		}
		pass.Assignments[stroke.ID] = best
		pass.LineStrokes[best] = append(pass.LineStrokes[best], stroke.ID)
	}
}
