package repository

import (
	"context"

	"github.com/thotranphuc276/person-detection/internal/model"
	"github.com/thotranphuc276/person-detection/internal/service/ai/yolo"
)

// DetectionRepository defines the interface for detection data operations.
type DetectionRepository interface {
	// Create operations
	Insert(ctx context.Context, det *model.Detection, boxes []yolo.BoundingBox) (int64, error)

	// Read operations
	GetByID(ctx context.Context, id int64) (*model.Detection, error)
	GetBoxes(ctx context.Context, detectionID int64) ([]yolo.BoundingBox, error)
	List(ctx context.Context, filter *model.DetectionFilter) ([]model.Detection, error)
	Count(ctx context.Context, filter *model.DetectionFilter) (int, error)
	Stats(ctx context.Context) (*model.DetectionStats, error)
}
