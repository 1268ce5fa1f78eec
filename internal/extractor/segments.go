package extractor

import "golang-transaction-extractor/internal/models"

// Segment is the fragment window owned by one anchor
type Segment struct {
	Anchor    models.TimeAnchor
	Start     int
	End       int
	Fragments []models.TextFragment
}

// BuildSegments cuts the stream at each anchor. Window i runs from anchor i
// up to the next anchor, and the last one to the end of the stream.
// Fragments before the first anchor belong to no window.
func BuildSegments(stream *models.TextBlockStream, anchors []models.TimeAnchor) []Segment {
	segments := make([]Segment, 0, len(anchors))
	for i, a := range anchors {
		end := stream.Len()
		if i+1 < len(anchors) {
			end = anchors[i+1].BlockIndex
		}
		if end < a.BlockIndex {
			end = a.BlockIndex
		}
		segments = append(segments, Segment{
			Anchor:    a,
			Start:     a.BlockIndex,
			End:       end,
			Fragments: stream.Window(a.BlockIndex, end),
		})
	}
	return segments
}
