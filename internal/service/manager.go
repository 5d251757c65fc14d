package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/thotranphuc276/person-detection/internal/dto"
	"github.com/thotranphuc276/person-detection/internal/logger"
	"github.com/thotranphuc276/person-detection/internal/model"
	"github.com/thotranphuc276/person-detection/internal/repository"
	"github.com/thotranphuc276/person-detection/internal/service/ai/yolo"
	"github.com/thotranphuc276/person-detection/internal/service/storage"
	"github.com/thotranphuc276/person-detection/internal/service/telemetry"
)

// ErrNotFound is returned when a detection id has no record.
var ErrNotFound = errors.New("detection not found")

// Detector runs inference on a stored image and writes the annotated result.
type Detector interface {
	Detect(ctx context.Context, imagePath, resultPath string, threshold float64) (*model.DetectionOutcome, error)
}

// Broadcaster pushes a message to live viewers.
type Broadcaster interface {
	Broadcast(message []byte)
}

// HistoryPage is one page of the detection history.
type HistoryPage struct {
	Items      []model.Detection
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// Manager ties a detection request together: store the upload, run the
// detector, persist the record, notify viewers and emit telemetry.
type Manager struct {
	detector  Detector
	files     *storage.FileStore
	repo      repository.DetectionRepository
	hub       Broadcaster
	telemetry telemetry.Sink
	logger    *logger.Logger
	now       func() time.Time
}

func NewManager(detector Detector, files *storage.FileStore, repo repository.DetectionRepository,
	hub Broadcaster, sink telemetry.Sink, logger *logger.Logger) *Manager {
	return &Manager{
		detector:  detector,
		files:     files,
		repo:      repo,
		hub:       hub,
		telemetry: sink,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessUpload stores the image read from body, detects people in it with
// the given confidence threshold and persists the outcome.
func (m *Manager) ProcessUpload(ctx context.Context, filename string, body io.Reader, threshold float64) (*model.Detection, []yolo.BoundingBox, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, nil, fmt.Errorf("%w: %v", yolo.ErrInvalidThreshold, threshold)
	}

	requestID := uuid.NewString()
	start := m.now()

	m.logger.Info("Processing detection request %s for %s", requestID, filename)
	m.emit(telemetry.NewEvent("INFO", "Processing detection request").
		With("request_id", requestID).
		With("confidence_threshold", threshold))

	uploadPath, err := m.files.SaveUpload(body, filename)
	if err != nil {
		m.fail(requestID, err)
		return nil, nil, err
	}

	resultPath, err := m.files.ReserveResult()
	if err != nil {
		m.files.Remove(uploadPath)
		m.fail(requestID, err)
		return nil, nil, err
	}

	outcome, err := m.detector.Detect(ctx, uploadPath, resultPath, threshold)
	if err != nil {
		m.files.Remove(resultPath)
		m.files.Remove(uploadPath)
		m.fail(requestID, err)
		return nil, nil, fmt.Errorf("detection failed: %w", err)
	}

	det := &model.Detection{
		Timestamp:           start,
		NumPeople:           outcome.NumPeople(),
		OriginalImagePath:   uploadPath,
		ResultImagePath:     outcome.ResultImagePath,
		ConfidenceThreshold: threshold,
	}

	id, err := m.repo.Insert(ctx, det, outcome.Boxes)
	if err != nil {
		m.fail(requestID, err)
		return nil, nil, err
	}
	det.ID = id

	elapsed := m.now().Sub(start).Seconds()
	m.logger.Info("Detection %d completed: %d person(s) in %.3fs", id, det.NumPeople, elapsed)
	m.emit(telemetry.NewEvent("INFO", "Detection completed").
		With("request_id", requestID).
		With("detection_id", strconv.FormatInt(id, 10)).
		With("num_people", det.NumPeople).
		With("confidence_threshold", threshold).
		With("image_width", outcome.ImageWidth).
		With("image_height", outcome.ImageHeight).
		With("processing_time", elapsed))

	m.notify(det, outcome.Boxes)
	return det, outcome.Boxes, nil
}

// Get returns a stored detection and its boxes.
func (m *Manager) Get(ctx context.Context, id int64) (*model.Detection, []yolo.BoundingBox, error) {
	det, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if det == nil {
		return nil, nil, ErrNotFound
	}

	boxes, err := m.repo.GetBoxes(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return det, boxes, nil
}

// History returns the requested page of detections matching filter. page is
// 1-based; the filter's Limit and Offset are overwritten.
func (m *Manager) History(ctx context.Context, filter model.DetectionFilter, page, limit int) (*HistoryPage, error) {
	total, err := m.repo.Count(ctx, &filter)
	if err != nil {
		return nil, err
	}

	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	items, err := m.repo.List(ctx, &filter)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("History page %d/%d: %d item(s) of %d (offset %d)", page, totalPages(total, limit), len(items), total, filter.Offset)
	return &HistoryPage{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

// Stats summarises the stored detections.
func (m *Manager) Stats(ctx context.Context) (*model.DetectionStats, error) {
	return m.repo.Stats(ctx)
}

func (m *Manager) notify(det *model.Detection, boxes []yolo.BoundingBox) {
	if m.hub == nil {
		return
	}
	msg, err := json.Marshal(dto.NewDetectionResponse(det, boxes))
	if err != nil {
		m.logger.Error("Failed to encode detection %d for viewers: %v", det.ID, err)
		return
	}
	m.hub.Broadcast(msg)
}

func (m *Manager) fail(requestID string, err error) {
	m.logger.Error("Detection request %s failed: %v", requestID, err)
	m.emit(telemetry.NewEvent("ERROR", "Detection failed").
		With("request_id", requestID).
		With("error", err.Error()))
}

func (m *Manager) emit(event telemetry.Event) {
	if m.telemetry != nil {
		m.telemetry.Submit(event)
	}
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
