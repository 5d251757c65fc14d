// Package yolo decodes raw YOLO output layers into person bounding boxes.
//
// Each raw candidate is a vector laid out as
//
//	[cx, cy, w, h, objectness, score_0, score_1, ... score_N]
//
// with geometry normalized to the image size. Only the person class (index 0)
// is kept. The package has no OpenCV dependency so it can be exercised
// without a model.
package yolo

import (
	"errors"
	"math"
)

const (
	// ScoreOffset is the index of the first class score; the entries before it
	// hold the box geometry and the objectness score.
	ScoreOffset = 5
	// PersonClassID is the COCO index of the "person" class.
	PersonClassID = 0
	// NMSThreshold is the IoU above which a lower scored box is suppressed.
	NMSThreshold = 0.4
)

var (
	ErrInvalidImage     = errors.New("image dimensions must be positive")
	ErrInvalidThreshold = errors.New("confidence threshold must be within [0, 1]")
)

// BoundingBox is a kept detection in pixel coordinates (top-left corner + size).
type BoundingBox struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float32 `json:"confidence"`
	ClassID    int     `json:"class_id"`
}

// Area returns the box area in square pixels.
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}

// Postprocess filters the raw output layers down to non-overlapping person
// boxes scoring strictly above threshold. Scores are widened to float64
// before the comparison so the threshold is never rounded. The result is in the order boxes
// were selected by non-maximum suppression; it is never nil.
func Postprocess(outputs [][][]float32, width, height int, threshold float64) ([]BoundingBox, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidImage
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, ErrInvalidThreshold
	}

	var candidates []BoundingBox
	for _, layer := range outputs {
		for _, detection := range layer {
			box, ok := decodeCandidate(detection, width, height, threshold)
			if ok {
				candidates = append(candidates, box)
			}
		}
	}

	return NonMaxSuppression(candidates, threshold, NMSThreshold), nil
}

// decodeCandidate turns one raw vector into a pixel box when its best class
// is a person scoring above threshold.
func decodeCandidate(detection []float32, width, height int, threshold float64) (BoundingBox, bool) {
	if len(detection) <= ScoreOffset {
		return BoundingBox{}, false
	}

	classID, confidence := argmax(detection[ScoreOffset:])
	if classID != PersonClassID || !(float64(confidence) > threshold) {
		return BoundingBox{}, false
	}

	centerX := int(float64(detection[0]) * float64(width))
	centerY := int(float64(detection[1]) * float64(height))
	w := int(float64(detection[2]) * float64(width))
	h := int(float64(detection[3]) * float64(height))
	if w <= 0 || h <= 0 {
		return BoundingBox{}, false
	}

	return BoundingBox{
		X:          int(float64(centerX) - float64(w)/2),
		Y:          int(float64(centerY) - float64(h)/2),
		Width:      w,
		Height:     h,
		Confidence: confidence,
		ClassID:    classID,
	}, true
}

// argmax returns the index and value of the largest score; the first index
// wins ties.
func argmax(scores []float32) (int, float32) {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best, scores[best]
}
