package domain

import (
	"strconv"
	"strings"
)

// Property keys used in the block store's string-keyed property bag.
const (
	PropInkBounds = "ink_bounds"
	PropCanonical = "canonical_transcript"
	PropStrokeIDs = "stroke_ids"
)

// Block is a node in the persisted content tree. ParentID is empty for
// blocks sitting directly under the page's section root.
type Block struct {
	ID       string
	ParentID string
	Content  string
	Props    BlockProps
}

// BlockProps is the strongly-typed view of the store's property bag.
// Bounds is nil when the stored block never recorded its source ink extent
// (legacy blocks); StrokeIDs is empty in the same case.
type BlockProps struct {
	Bounds    *Bounds
	Canonical string
	StrokeIDs []string
}

// Bag serializes the properties to the string-keyed form the block store
// persists. Only set fields appear.
func (p BlockProps) Bag() map[string]string {
	bag := make(map[string]string, 3)
	if p.Bounds != nil {
		bag[PropInkBounds] = strconv.FormatFloat(p.Bounds.MinY, 'g', -1, 64) +
			"," + strconv.FormatFloat(p.Bounds.MaxY, 'g', -1, 64)
	}
	if p.Canonical != "" {
		bag[PropCanonical] = p.Canonical
	}
	if len(p.StrokeIDs) > 0 {
		bag[PropStrokeIDs] = strings.Join(p.StrokeIDs, ",")
	}
	return bag
}

// PropsFromBag parses the string-keyed property bag back into typed form.
// Malformed values degrade to the unset state rather than failing the load.
func PropsFromBag(bag map[string]string) BlockProps {
	var p BlockProps
	if raw, ok := bag[PropInkBounds]; ok {
		parts := strings.Split(raw, ",")
		if len(parts) == 2 {
			minY, errMin := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
			maxY, errMax := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if errMin == nil && errMax == nil {
				p.Bounds = &Bounds{MinY: minY, MaxY: maxY}
			}
		}
	}
	p.Canonical = bag[PropCanonical]
	if raw, ok := bag[PropStrokeIDs]; ok && strings.TrimSpace(raw) != "" {
		for _, id := range strings.Split(raw, ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				p.StrokeIDs = append(p.StrokeIDs, id)
			}
		}
	}
	return p
}
