package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/thotranphuc276/person-detection/internal/dto"
	"github.com/thotranphuc276/person-detection/internal/logger"
	"github.com/thotranphuc276/person-detection/internal/model"
	"github.com/thotranphuc276/person-detection/internal/service"
	"github.com/thotranphuc276/person-detection/internal/service/ai/yolo"
)

const (
	// MaxUploadSize caps the request body of an upload.
	MaxUploadSize   = 20 << 20
	multipartMemory = 10 << 20
)

// DetectionHandler handles POST /detection/: a multipart "file" field with an
// image and an optional "confidence_threshold" in [0, 1].
func DetectionHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, "File too large", http.StatusRequestEntityTooLarge)
				return
			}
			writeError(w, "Invalid multipart form", http.StatusUnprocessableEntity)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, "Field 'file' is required", http.StatusUnprocessableEntity)
			return
		}
		defer file.Close()

		if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
			writeError(w, "File must be an image", http.StatusBadRequest)
			return
		}

		threshold := model.DefaultConfidenceThreshold
		if v := r.FormValue("confidence_threshold"); v != "" {
			threshold, err = strconv.ParseFloat(v, 64)
			if err != nil {
				writeError(w, "confidence_threshold must be a number", http.StatusUnprocessableEntity)
				return
			}
		}
		if threshold < 0 || threshold > 1 {
			writeError(w, "confidence_threshold must be between 0 and 1", http.StatusUnprocessableEntity)
			return
		}

		det, boxes, err := manager.ProcessUpload(r.Context(), header.Filename, file, threshold)
		switch {
		case err == nil:
		case errors.Is(err, yolo.ErrInvalidThreshold):
			writeError(w, "confidence_threshold must be between 0 and 1", http.StatusUnprocessableEntity)
			return
		case errors.Is(err, yolo.ErrInvalidImage):
			writeError(w, "Invalid image file", http.StatusBadRequest)
			return
		default:
			logger.Error("Error processing image %s: %v", header.Filename, err)
			writeError(w, "Error processing image", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, dto.NewDetectionResponse(det, boxes))
	}
}
