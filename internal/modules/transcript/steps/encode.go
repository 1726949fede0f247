package steps

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yungbote/inkbridge-backend/internal/domain"
)

// DefaultChunkCapacity bounds how many strokes one persisted record may
// carry, keeping every record under the store's per-record size ceiling.
const DefaultChunkCapacity = 800

// ErrFormatMismatch is returned when persisted ink records are neither the
// chunked layout nor the legacy single-record layout.
var ErrFormatMismatch = errors.New("ink records: unrecognized encoding")

// InkMeta is the first persisted record of a chunked page encoding.
type InkMeta struct {
	TotalStrokes int        `json:"totalStrokes"`
	BoundingBox  domain.Box `json:"boundingBox"`
	Chunks       int        `json:"chunks"`
}

// InkChunk is one fixed-capacity group of strokes.
type InkChunk struct {
	ChunkIndex  int             `json:"chunkIndex"`
	StrokeCount int             `json:"strokeCount"`
	Strokes     []domain.Stroke `json:"strokes"`
}

// legacyInk is the pre-chunking single-record layout: a bare stroke array
// and no metadata. Still readable, never written.
type legacyInk struct {
	Strokes []domain.Stroke `json:"strokes"`
}

// EncodeInk converts a page's strokes into persisted records: the metadata
// record first, then one record per chunk of at most capacity strokes. The
// transform is pure; persistence is the caller's concern. Stroke block
// ownership rides along verbatim so it survives a restart.
func EncodeInk(strokes []domain.Stroke, capacity int) ([]json.RawMessage, error) {
	if capacity <= 0 {
		capacity = DefaultChunkCapacity
	}

	chunkCount := (len(strokes) + capacity - 1) / capacity
	meta := InkMeta{
		TotalStrokes: len(strokes),
		BoundingBox:  domain.BoundingBox(strokes),
		Chunks:       chunkCount,
	}

	records := make([]json.RawMessage, 0, chunkCount+1)
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode ink metadata: %w", err)
	}
	records = append(records, metaRaw)

	for i := 0; i < chunkCount; i++ {
		lo := i * capacity
		hi := lo + capacity
		if hi > len(strokes) {
			hi = len(strokes)
		}
		chunk := InkChunk{
			ChunkIndex:  i,
			StrokeCount: hi - lo,
			Strokes:     strokes[lo:hi],
		}
		raw, err := json.Marshal(chunk)
		if err != nil {
			return nil, fmt.Errorf("encode ink chunk %d: %w", i, err)
		}
		records = append(records, raw)
	}
	return records, nil
}

// DecodeInk restores strokes from persisted records. The layout is detected
// by the presence of a "chunks" field in the first record: present means
// chunked (metadata followed by chunk records), absent means the legacy
// single-record layout with a bare "strokes" array. Anything else fails
// with ErrFormatMismatch.
func DecodeInk(records []json.RawMessage) ([]domain.Stroke, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var head map[string]json.RawMessage
	if err := json.Unmarshal(records[0], &head); err != nil {
		return nil, fmt.Errorf("%w: metadata record is not an object: %v", ErrFormatMismatch, err)
	}

	if _, chunked := head["chunks"]; !chunked {
		if _, ok := head["strokes"]; !ok {
			return nil, fmt.Errorf("%w: first record has neither chunks nor strokes", ErrFormatMismatch)
		}
		var legacy legacyInk
		if err := json.Unmarshal(records[0], &legacy); err != nil {
			return nil, fmt.Errorf("%w: legacy record: %v", ErrFormatMismatch, err)
		}
		return legacy.Strokes, nil
	}

	var meta InkMeta
	if err := json.Unmarshal(records[0], &meta); err != nil {
		return nil, fmt.Errorf("%w: metadata record: %v", ErrFormatMismatch, err)
	}
	if meta.Chunks != len(records)-1 {
		return nil, fmt.Errorf("%w: metadata declares %d chunks, found %d records", ErrFormatMismatch, meta.Chunks, len(records)-1)
	}

	strokes := make([]domain.Stroke, 0, meta.TotalStrokes)
	for i, raw := range records[1:] {
		var chunk InkChunk
		if err := json.Unmarshal(raw, &chunk); err != nil {
			return nil, fmt.Errorf("%w: chunk record %d: %v", ErrFormatMismatch, i, err)
		}
		if chunk.StrokeCount != len(chunk.Strokes) {
			return nil, fmt.Errorf("%w: chunk %d declares %d strokes, holds %d", ErrFormatMismatch, i, chunk.StrokeCount, len(chunk.Strokes))
		}
		strokes = append(strokes, chunk.Strokes...)
	}
	if len(strokes) != meta.TotalStrokes {
		return nil, fmt.Errorf("%w: metadata declares %d strokes, decoded %d", ErrFormatMismatch, meta.TotalStrokes, len(strokes))
	}
	return strokes, nil
}
