// DetectionResponse is the payload returned for a single detection run.
package dto

import (
	"time"

	"github.com/thotranphuc276/person-detection/internal/model"
	"github.com/thotranphuc276/person-detection/internal/service/ai/yolo"
)

type DetectionResponse struct {
	ID                  int64     `json:"id"`
	Timestamp           time.Time `json:"timestamp"`
	NumPeople           int       `json:"num_people"`
	OriginalImagePath   string    `json:"original_image_path"`
	ResultImagePath     string    `json:"result_image_path"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
	Boxes               []Box     `json:"boxes,omitempty"`
}

// NewDetectionResponse converts a stored record and its boxes.
func NewDetectionResponse(det *model.Detection, boxes []yolo.BoundingBox) DetectionResponse {
	resp := DetectionResponse{
		ID:                  det.ID,
		Timestamp:           det.Timestamp,
		NumPeople:           det.NumPeople,
		OriginalImagePath:   det.OriginalImagePath,
		ResultImagePath:     det.ResultImagePath,
		ConfidenceThreshold: det.ConfidenceThreshold,
	}
	for _, b := range boxes {
		resp.Boxes = append(resp.Boxes, Box{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height, Confidence: b.Confidence})
	}
	return resp
}
