package model

import (
	"time"

	"github.com/thotranphuc276/person-detection/internal/service/ai/yolo"
)

// DefaultConfidenceThreshold is used when a request does not supply one.
const DefaultConfidenceThreshold = 0.5

// Detection represents a persisted detection run.
type Detection struct {
	ID                  int64     `json:"id"`
	Timestamp           time.Time `json:"timestamp"`
	NumPeople           int       `json:"num_people"`
	OriginalImagePath   string    `json:"original_image_path"`
	ResultImagePath     string    `json:"result_image_path"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
}

// DetectionFilter narrows history queries. Nil pointers and zero times mean "no bound".
type DetectionFilter struct {
	MinPeople *int
	MaxPeople *int
	DateFrom  time.Time
	DateTo    time.Time
	Limit     int
	Offset    int
}

// DetectionOutcome is what the inference step hands back for one image.
type DetectionOutcome struct {
	Boxes           []yolo.BoundingBox
	ImageWidth      int
	ImageHeight     int
	ResultImagePath string
}

// NumPeople is the number of kept person boxes.
func (o *DetectionOutcome) NumPeople() int {
	return len(o.Boxes)
}

// DetectionStats summarises the stored people counts.
type DetectionStats struct {
	Total        int     `json:"total"`
	TotalPeople  int     `json:"total_people"`
	MeanPeople   float64 `json:"mean_people"`
	StdDevPeople float64 `json:"stddev_people"`
	MaxPeople    int     `json:"max_people"`
}
