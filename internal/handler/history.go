package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/thotranphuc276/person-detection/internal/dto"
	"github.com/thotranphuc276/person-detection/internal/logger"
	"github.com/thotranphuc276/person-detection/internal/model"
	"github.com/thotranphuc276/person-detection/internal/service"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// HistoryHandler returns a filtered, paginated list of detections, newest first.
func HistoryHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		page, err := intParam(q.Get("page"), defaultPage, 1, 0)
		if err != nil {
			writeError(w, "page: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}
		limit, err := intParam(q.Get("limit"), defaultLimit, 1, maxLimit)
		if err != nil {
			writeError(w, "limit: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}

		var filter model.DetectionFilter
		if filter.MinPeople, err = optionalIntParam(q.Get("min_people")); err != nil {
			writeError(w, "min_people: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if filter.MaxPeople, err = optionalIntParam(q.Get("max_people")); err != nil {
			writeError(w, "max_people: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if filter.DateFrom, err = parseDate(q.Get("date_from"), false); err != nil {
			writeError(w, "date_from: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if filter.DateTo, err = parseDate(q.Get("date_to"), true); err != nil {
			writeError(w, "date_to: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}

		logger.Debug("History request: page=%d limit=%d min_people=%v max_people=%v date_from=%q date_to=%q",
			page, limit, derefInt(filter.MinPeople), derefInt(filter.MaxPeople), q.Get("date_from"), q.Get("date_to"))

		result, err := manager.History(r.Context(), filter, page, limit)
		if err != nil {
			logger.Error("Error querying detection history: %v", err)
			writeError(w, "Error retrieving detection history", http.StatusInternalServerError)
			return
		}

		items := make([]dto.DetectionResponse, 0, len(result.Items))
		for i := range result.Items {
			items = append(items, dto.NewDetectionResponse(&result.Items[i], nil))
		}

		writeJSON(w, http.StatusOK, dto.HistoryData{
			Total:      result.Total,
			Page:       result.Page,
			Limit:      result.Limit,
			TotalPages: result.TotalPages,
			Items:      items,
		})
	}
}

// HistoryItemHandler returns one detection with its boxes.
func HistoryItemHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			writeError(w, "id must be an integer", http.StatusUnprocessableEntity)
			return
		}

		det, boxes, err := manager.Get(r.Context(), id)
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, "Detection not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("Error retrieving detection %d: %v", id, err)
			writeError(w, "Error retrieving detection", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, dto.NewDetectionResponse(det, boxes))
	}
}

// HistoryStatsHandler returns aggregate people counts over all detections.
func HistoryStatsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := manager.Stats(r.Context())
		if err != nil {
			logger.Error("Error computing detection stats: %v", err)
			writeError(w, "Error computing statistics", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// intParam parses an integer query value, returning def when it is empty.
// hi <= 0 means no upper bound.
func intParam(s string, def, lo, hi int) (int, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	if v < lo {
		return 0, fmt.Errorf("must be at least %d", lo)
	}
	if hi > 0 && v > hi {
		return 0, fmt.Errorf("must be at most %d", hi)
	}
	return v, nil
}

func optionalIntParam(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := intParam(s, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

var dateTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// parseDate accepts RFC 3339, a local date-time without zone, or a bare
// "2006-01-02" date. A bare date used as an upper bound covers the whole day.
func parseDate(v string, endOfDay bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a valid date", v)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Microsecond)
	}
	return t, nil
}

func derefInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
