package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/thotranphuc276/person-detection/internal/model"
	"github.com/thotranphuc276/person-detection/internal/service/ai/yolo"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// Insert stores a detection record together with its boxes in one
// transaction and returns the new record id.
func (r *DetectionRepository) Insert(ctx context.Context, det *model.Detection, boxes []yolo.BoundingBox) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO detections (timestamp, num_people, original_image_path, result_image_path, confidence_threshold)
		VALUES (?, ?, ?, ?, ?)
	`, formatTime(det.Timestamp), det.NumPeople, det.OriginalImagePath, det.ResultImagePath, det.ConfidenceThreshold)
	if err != nil {
		return 0, fmt.Errorf("failed to insert detection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read detection id: %w", err)
	}

	if len(boxes) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO detection_boxes (detection_id, x, y, width, height, confidence)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return 0, fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, b := range boxes {
			if _, err := stmt.ExecContext(ctx, id, b.X, b.Y, b.Width, b.Height, b.Confidence); err != nil {
				return 0, fmt.Errorf("failed to insert box: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit detection: %w", err)
	}
	return id, nil
}

// GetByID retrieves a detection by its ID. It returns nil, nil when no
// record exists.
func (r *DetectionRepository) GetByID(ctx context.Context, id int64) (*model.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, timestamp, num_people, original_image_path, result_image_path, confidence_threshold
		FROM detections WHERE id = ?
	`, id)

	det, err := scanDetection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get detection: %w", err)
	}
	return det, nil
}

// GetBoxes returns the boxes stored for a detection in insertion order.
func (r *DetectionRepository) GetBoxes(ctx context.Context, detectionID int64) ([]yolo.BoundingBox, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT x, y, width, height, confidence
		FROM detection_boxes WHERE detection_id = ? ORDER BY id
	`, detectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query boxes: %w", err)
	}
	defer rows.Close()

	boxes := []yolo.BoundingBox{}
	for rows.Next() {
		b := yolo.BoundingBox{ClassID: yolo.PersonClassID}
		if err := rows.Scan(&b.X, &b.Y, &b.Width, &b.Height, &b.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan box: %w", err)
		}
		boxes = append(boxes, b)
	}
	return boxes, rows.Err()
}

// List retrieves detections matching filter, newest first.
func (r *DetectionRepository) List(ctx context.Context, filter *model.DetectionFilter) ([]model.Detection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `
		SELECT id, timestamp, num_people, original_image_path, result_image_path, confidence_threshold
		FROM detections` + where + ` ORDER BY timestamp DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	detections := []model.Detection{}
	for rows.Next() {
		det, err := scanDetection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, *det)
	}
	return detections, rows.Err()
}

// Count returns the number of detections matching filter, ignoring paging.
func (r *DetectionRepository) Count(ctx context.Context, filter *model.DetectionFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)

	var count int
	if err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM detections`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count detections: %w", err)
	}
	return count, nil
}

// Stats summarises the people counts of every stored detection.
func (r *DetectionRepository) Stats(ctx context.Context) (*model.DetectionStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `SELECT num_people FROM detections`)
	if err != nil {
		return nil, fmt.Errorf("failed to query people counts: %w", err)
	}
	defer rows.Close()

	var counts []float64
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan people count: %w", err)
		}
		counts = append(counts, float64(n))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats := &model.DetectionStats{Total: len(counts)}
	if len(counts) == 0 {
		return stats, nil
	}

	stats.TotalPeople = int(floats.Sum(counts))
	stats.MaxPeople = int(floats.Max(counts))
	if len(counts) == 1 {
		stats.MeanPeople = counts[0]
		return stats, nil
	}
	stats.MeanPeople, stats.StdDevPeople = stat.MeanStdDev(counts, nil)
	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDetection(s scanner) (*model.Detection, error) {
	var det model.Detection
	var ts string
	if err := s.Scan(&det.ID, &ts, &det.NumPeople, &det.OriginalImagePath, &det.ResultImagePath, &det.ConfidenceThreshold); err != nil {
		return nil, err
	}

	parsed, err := time.Parse(timeLayout, ts)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", ts, err)
	}
	det.Timestamp = parsed
	return &det, nil
}

func buildWhere(filter *model.DetectionFilter) (string, []any) {
	if filter == nil {
		return "", nil
	}

	var clauses []string
	var args []any

	if filter.MinPeople != nil {
		clauses = append(clauses, "num_people >= ?")
		args = append(args, *filter.MinPeople)
	}
	if filter.MaxPeople != nil {
		clauses = append(clauses, "num_people <= ?")
		args = append(args, *filter.MaxPeople)
	}
	if !filter.DateFrom.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, formatTime(filter.DateFrom))
	}
	if !filter.DateTo.IsZero() {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, formatTime(filter.DateTo))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
