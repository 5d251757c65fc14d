package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thotranphuc276/person-detection/internal/model"
	"github.com/thotranphuc276/person-detection/internal/repository/sqlite"
	"github.com/thotranphuc276/person-detection/internal/service/ai/yolo"
)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	db, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.Ping(ctx))
	require.NoError(t, db.Migrate(ctx))
	return db
}

func intPtr(v int) *int { return &v }

func seed(t *testing.T, repo *sqlite.DetectionRepository, base time.Time, people ...int) []int64 {
	t.Helper()

	ids := make([]int64, 0, len(people))
	for i, n := range people {
		id, err := repo.Insert(context.Background(), &model.Detection{
			Timestamp:           base.Add(time.Duration(i) * time.Hour),
			NumPeople:           n,
			OriginalImagePath:   "uploads/in.jpg",
			ResultImagePath:     "results/out.jpg",
			ConfidenceThreshold: model.DefaultConfidenceThreshold,
		}, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

// ========================================
// Connection & Migration
// ========================================

func TestDB_OpenCreatesDirectoryAndFile(t *testing.T) {
	db := newTestDB(t)

	_, err := os.Stat(db.Path())
	require.NoError(t, err)
}

func TestDB_MigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))
}

func TestDB_PingAfterCloseFails(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.Error(t, db.Ping(context.Background()))
}

// ========================================
// Detection Repository
// ========================================

func TestDetectionRepository_InsertAndGet(t *testing.T) {
	repo := sqlite.NewDetectionRepository(newTestDB(t))
	ctx := context.Background()

	ts := time.Date(2024, time.May, 1, 12, 0, 0, 123456000, time.UTC)
	boxes := []yolo.BoundingBox{
		{X: 166, Y: 125, Width: 83, Height: 166, Confidence: 0.9},
		{X: 10, Y: 20, Width: 30, Height: 40, Confidence: 0.75},
	}

	id, err := repo.Insert(ctx, &model.Detection{
		Timestamp:           ts,
		NumPeople:           len(boxes),
		OriginalImagePath:   "uploads/20240501_120000_street.jpg",
		ResultImagePath:     "results/detection_20240501_120000.jpg",
		ConfidenceThreshold: 0.6,
	}, boxes)
	require.NoError(t, err)
	require.Positive(t, id)

	det, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, det)
	require.Equal(t, id, det.ID)
	require.True(t, ts.Equal(det.Timestamp))
	require.Equal(t, 2, det.NumPeople)
	require.Equal(t, "uploads/20240501_120000_street.jpg", det.OriginalImagePath)
	require.Equal(t, "results/detection_20240501_120000.jpg", det.ResultImagePath)
	require.InDelta(t, 0.6, det.ConfidenceThreshold, 1e-9)

	stored, err := repo.GetBoxes(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, 166, stored[0].X)
	require.InDelta(t, 0.9, stored[0].Confidence, 1e-6)
	require.Equal(t, 40, stored[1].Height)
}

func TestDetectionRepository_GetByIDMissing(t *testing.T) {
	repo := sqlite.NewDetectionRepository(newTestDB(t))

	det, err := repo.GetByID(context.Background(), 999)
	require.NoError(t, err)
	require.Nil(t, det)
}

func TestDetectionRepository_ListNewestFirstWithPaging(t *testing.T) {
	repo := sqlite.NewDetectionRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)
	ids := seed(t, repo, base, 0, 1, 2, 3, 4)

	all, err := repo.List(ctx, &model.DetectionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	require.Equal(t, ids[4], all[0].ID)
	require.Equal(t, ids[0], all[4].ID)

	page, err := repo.List(ctx, &model.DetectionFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, ids[2], page[0].ID)
	require.Equal(t, ids[1], page[1].ID)

	total, err := repo.Count(ctx, &model.DetectionFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Equal(t, 5, total)
}

func TestDetectionRepository_Filters(t *testing.T) {
	repo := sqlite.NewDetectionRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)
	seed(t, repo, base, 0, 1, 2, 3, 4)

	tests := []struct {
		name     string
		filter   model.DetectionFilter
		expected int
	}{
		{"no filter", model.DetectionFilter{}, 5},
		{"min people", model.DetectionFilter{MinPeople: intPtr(2)}, 3},
		{"max people", model.DetectionFilter{MaxPeople: intPtr(1)}, 2},
		{"people range", model.DetectionFilter{MinPeople: intPtr(1), MaxPeople: intPtr(3)}, 3},
		{"empty range", model.DetectionFilter{MinPeople: intPtr(4), MaxPeople: intPtr(1)}, 0},
		{"date from", model.DetectionFilter{DateFrom: base.Add(2 * time.Hour)}, 3},
		{"date to", model.DetectionFilter{DateTo: base.Add(time.Hour)}, 2},
		{"date window", model.DetectionFilter{DateFrom: base.Add(time.Hour), DateTo: base.Add(3 * time.Hour)}, 3},
		{"combined", model.DetectionFilter{MinPeople: intPtr(3), DateTo: base.Add(3 * time.Hour)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := tt.filter
			items, err := repo.List(ctx, &filter)
			require.NoError(t, err)
			require.Len(t, items, tt.expected)

			count, err := repo.Count(ctx, &filter)
			require.NoError(t, err)
			require.Equal(t, tt.expected, count)
		})
	}
}

func TestDetectionRepository_DateFilterAcrossTimezones(t *testing.T) {
	repo := sqlite.NewDetectionRepository(newTestDB(t))
	ctx := context.Background()
	seed(t, repo, time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC), 1)

	// 10:00 at +02:00 is 08:00 UTC
	plusTwo := time.FixedZone("plus-two", 2*60*60)
	from := time.Date(2024, time.June, 1, 10, 0, 0, 0, plusTwo)

	count, err := repo.Count(ctx, &model.DetectionFilter{DateFrom: from})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = repo.Count(ctx, &model.DetectionFilter{DateFrom: from.Add(time.Second)})
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestDetectionRepository_Stats(t *testing.T) {
	repo := sqlite.NewDetectionRepository(newTestDB(t))
	ctx := context.Background()

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.Total)
	require.Zero(t, stats.MeanPeople)

	seed(t, repo, time.Now(), 2)
	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Total)
	require.InDelta(t, 2.0, stats.MeanPeople, 1e-9)
	require.Zero(t, stats.StdDevPeople)

	seed(t, repo, time.Now(), 4, 6)
	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 12, stats.TotalPeople)
	require.Equal(t, 6, stats.MaxPeople)
	require.InDelta(t, 4.0, stats.MeanPeople, 1e-9)
	require.InDelta(t, 2.0, stats.StdDevPeople, 1e-9)
}
