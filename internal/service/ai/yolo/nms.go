package yolo

import "sort"

// IoU is the intersection-over-union of two boxes. Areas are plain
// width*height (no inclusive pixel correction).
func IoU(a, b BoundingBox) float64 {
	left := max(a.X, b.X)
	top := max(a.Y, b.Y)
	right := min(a.X+a.Width, b.X+b.Width)
	bottom := min(a.Y+a.Height, b.Y+b.Height)

	if right <= left || bottom <= top {
		return 0
	}

	intersection := float64((right - left) * (bottom - top))
	union := float64(a.Area()+b.Area()) - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// NonMaxSuppression performs class-agnostic greedy suppression: candidates
// scoring above scoreThreshold are visited from highest to lowest confidence
// and kept unless they overlap an already kept box by more than iouThreshold.
// Equal confidences keep their input order.
func NonMaxSuppression(boxes []BoundingBox, scoreThreshold, iouThreshold float64) []BoundingBox {
	order := make([]int, 0, len(boxes))
	for i, box := range boxes {
		if float64(box.Confidence) > scoreThreshold {
			order = append(order, i)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return boxes[order[i]].Confidence > boxes[order[j]].Confidence
	})

	kept := make([]BoundingBox, 0, len(order))
	for _, idx := range order {
		candidate := boxes[idx]
		suppressed := false
		for _, k := range kept {
			if IoU(candidate, k) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, candidate)
		}
	}

	return kept
}
