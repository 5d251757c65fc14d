package route

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thotranphuc276/person-detection/internal/config"
	"github.com/thotranphuc276/person-detection/internal/dto"
	"github.com/thotranphuc276/person-detection/internal/logger"
	"github.com/thotranphuc276/person-detection/internal/model"
	"github.com/thotranphuc276/person-detection/internal/repository/sqlite"
	"github.com/thotranphuc276/person-detection/internal/service"
	"github.com/thotranphuc276/person-detection/internal/service/ai/yolo"
	"github.com/thotranphuc276/person-detection/internal/service/storage"
	"github.com/thotranphuc276/person-detection/internal/service/telemetry"
	"github.com/thotranphuc276/person-detection/internal/service/websocket"
)

type stubDetector struct {
	boxes []yolo.BoundingBox
	err   error
}

func (d *stubDetector) Detect(ctx context.Context, imagePath, resultPath string, threshold float64) (*model.DetectionOutcome, error) {
	if d.err != nil {
		return nil, d.err
	}
	if err := os.WriteFile(resultPath, []byte("annotated"), 0644); err != nil {
		return nil, err
	}
	var kept []yolo.BoundingBox
	for _, b := range d.boxes {
		if float64(b.Confidence) > threshold {
			kept = append(kept, b)
		}
	}
	return &model.DetectionOutcome{Boxes: kept, ImageWidth: 416, ImageHeight: 416, ResultImagePath: resultPath}, nil
}

type testServer struct {
	handler  http.Handler
	detector *stubDetector
	cfg      *config.Config
	log      *logger.Logger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()

	cfg := &config.Config{
		Env:              config.EnvDevelopment,
		CORSOrigins:      []string{"http://localhost:3000"},
		UploadDirectory:  filepath.Join(root, "uploads"),
		ResultsDirectory: filepath.Join(root, "results"),
		LogDirectory:     filepath.Join(root, "logs"),
	}

	log, err := logger.New(cfg.LogDirectory, true)
	require.NoError(t, err)
	t.Cleanup(log.Close)

	db, err := sqlite.Open(filepath.Join(root, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	detector := &stubDetector{boxes: []yolo.BoundingBox{
		{X: 166, Y: 125, Width: 83, Height: 166, Confidence: 0.9},
		{X: 10, Y: 10, Width: 20, Height: 40, Confidence: 0.6},
	}}
	files := storage.NewFileStore(cfg.UploadDirectory, cfg.ResultsDirectory, log)
	require.NoError(t, files.EnsureDirs())

	hub := websocket.NewHubService(log)
	pipeline := telemetry.New(nil, telemetry.DefaultOptions(), log)
	manager := service.NewManager(detector, files, sqlite.NewDetectionRepository(db), hub, pipeline, log)

	return &testServer{
		handler:  SetupRoutes(manager, hub, pipeline, cfg, log),
		detector: detector,
		cfg:      cfg,
		log:      log,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename, contentType, threshold string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if filename != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		part.Write([]byte("fake image bytes"))
	}
	if threshold != "" {
		require.NoError(t, mw.WriteField("confidence_threshold", threshold))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/detection/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// ========================================
// Root & Detection
// ========================================

func TestRoot(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	info := decode[dto.ServiceInfo](t, rec)
	require.Equal(t, "Person Detection API is running", info.Message)
	require.Equal(t, "development", info.Environment)
}

func TestDetection_Success(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(uploadRequest(t, "street.jpg", "image/jpeg", ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[dto.DetectionResponse](t, rec)
	require.Positive(t, resp.ID)
	require.Equal(t, 2, resp.NumPeople)
	require.InDelta(t, 0.5, resp.ConfidenceThreshold, 1e-9)
	require.Len(t, resp.Boxes, 2)
	require.Equal(t, 166, resp.Boxes[0].X)
	require.FileExists(t, resp.OriginalImagePath)
	require.FileExists(t, resp.ResultImagePath)
}

func TestDetection_CustomThreshold(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(uploadRequest(t, "street.jpg", "image/png", "0.8"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[dto.DetectionResponse](t, rec)
	require.Equal(t, 1, resp.NumPeople)
	require.InDelta(t, 0.8, resp.ConfidenceThreshold, 1e-9)
}

func TestDetection_Rejections(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		req      *http.Request
		status   int
		contains string
	}{
		{"not an image", uploadRequest(t, "notes.txt", "text/plain", ""), http.StatusBadRequest, "File must be an image"},
		{"missing file", uploadRequest(t, "", "", "0.5"), http.StatusUnprocessableEntity, "file"},
		{"threshold too high", uploadRequest(t, "a.jpg", "image/jpeg", "1.5"), http.StatusUnprocessableEntity, "between 0 and 1"},
		{"threshold negative", uploadRequest(t, "a.jpg", "image/jpeg", "-0.1"), http.StatusUnprocessableEntity, "between 0 and 1"},
		{"threshold not a number", uploadRequest(t, "a.jpg", "image/jpeg", "high"), http.StatusUnprocessableEntity, "number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.req)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.Contains(t, decode[dto.ErrorResponse](t, rec).Detail, tt.contains)
		})
	}
}

func TestDetection_UnreadableImage(t *testing.T) {
	s := newTestServer(t)
	s.detector.err = fmt.Errorf("decode: %w", yolo.ErrInvalidImage)

	rec := s.do(uploadRequest(t, "broken.jpg", "image/jpeg", ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid image file", decode[dto.ErrorResponse](t, rec).Detail)
}

func TestDetection_WrongMethod(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/detection/", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// ========================================
// History
// ========================================

func TestHistory_PaginationAndItem(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, s.do(uploadRequest(t, "img.jpg", "image/jpeg", "")).Code)
	}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/history/?page=2&limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	page := decode[dto.HistoryData](t, rec)
	require.Equal(t, 3, page.Total)
	require.Equal(t, 2, page.Page)
	require.Equal(t, 2, page.Limit)
	require.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)

	rec = s.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/history/%d", page.Items[0].ID), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	item := decode[dto.DetectionResponse](t, rec)
	require.Equal(t, page.Items[0].ID, item.ID)
	require.Len(t, item.Boxes, 2)
}

func TestHistory_Defaults(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	page := decode[dto.HistoryData](t, rec)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 10, page.Limit)
	require.Zero(t, page.Total)
	require.Zero(t, page.TotalPages)
	require.NotNil(t, page.Items)
}

func TestHistory_Filters(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(uploadRequest(t, "a.jpg", "image/jpeg", "")).Code)    // 2 people
	require.Equal(t, http.StatusOK, s.do(uploadRequest(t, "b.jpg", "image/jpeg", "0.8")).Code) // 1 person

	rec := s.do(httptest.NewRequest(http.MethodGet, "/history/?min_people=2", nil))
	require.Equal(t, 1, decode[dto.HistoryData](t, rec).Total)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/history/?max_people=1", nil))
	require.Equal(t, 1, decode[dto.HistoryData](t, rec).Total)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/history/?date_from=2000-01-01&date_to=2999-12-31", nil))
	require.Equal(t, 2, decode[dto.HistoryData](t, rec).Total)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/history/?date_to=2000-01-01", nil))
	require.Zero(t, decode[dto.HistoryData](t, rec).Total)
}

func TestHistory_InvalidQuery(t *testing.T) {
	s := newTestServer(t)

	for _, query := range []string{
		"page=0", "page=abc", "limit=0", "limit=101", "min_people=-1", "max_people=x", "date_from=yesterday", "date_to=2024-13-01",
	} {
		t.Run(query, func(t *testing.T) {
			rec := s.do(httptest.NewRequest(http.MethodGet, "/history/?"+query, nil))
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		})
	}
}

func TestHistory_ItemErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/history/999", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Detection not found", decode[dto.ErrorResponse](t, rec).Detail)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/history/abc", nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHistory_Stats(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(uploadRequest(t, "a.jpg", "image/jpeg", "")).Code)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/history/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	stats := decode[model.DetectionStats](t, rec)
	require.Equal(t, 1, stats.Total)
	require.Equal(t, 2, stats.TotalPeople)
}

// ========================================
// Monitoring, logs & static files
// ========================================

func TestMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Telemetry        telemetry.Stats `json:"telemetry"`
		WebsocketClients int             `json:"websocket_clients"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Telemetry.Enabled)
	require.Zero(t, body.Telemetry.Dropped)
	require.Zero(t, body.WebsocketClients)
}

func TestLogs(t *testing.T) {
	s := newTestServer(t)
	s.log.Warning("disk almost full")

	rec := s.do(httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "disk almost full")

	rec = s.do(httptest.NewRequest(http.MethodDelete, "/logs/warning", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "disk almost full")

	rec = s.do(httptest.NewRequest(http.MethodGet, "/logs/secret", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticResults(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(uploadRequest(t, "a.jpg", "image/jpeg", ""))
	resp := decode[dto.DetectionResponse](t, rec)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/results/"+filepath.Base(resp.ResultImagePath), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "annotated", rec.Body.String())

	rec = s.do(httptest.NewRequest(http.MethodGet, "/uploads/"+filepath.Base(resp.OriginalImagePath), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "fake image bytes", rec.Body.String())
}

func TestCORSOnRoutes(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/detection/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := s.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
