package dto

// ErrorResponse carries a human readable failure reason.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
