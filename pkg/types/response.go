package types

// ErrorResponse is the body written for every failed API request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	OmiseCode string `json:"omiseCode,omitempty"`
	Details   any    `json:"details,omitempty"`
}
