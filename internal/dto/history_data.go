// HistoryData is a paginated response payload for the detection history.
package dto

type HistoryData struct {
	Total      int                 `json:"total"`
	Page       int                 `json:"page"`
	Limit      int                 `json:"limit"`
	TotalPages int                 `json:"total_pages"`
	Items      []DetectionResponse `json:"items"`
}
