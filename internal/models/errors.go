package models

// ErrorResponse is the body of every 4xx/5xx reply.
type ErrorResponse struct {
	Error             string `json:"error"`
	RateLimitExceeded bool   `json:"rate_limit_exceeded,omitempty"`
	ErrorType         string `json:"error_type,omitempty"`
}

const ErrorTypeServer = "server_error"
