package models

import "fmt"

// RateLimitExceededResponse is the API response when an action is attempted too soon.
type RateLimitExceededResponse struct {
	Error      string `json:"error"` // "rate_limit_exceeded"
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"` // seconds
}

// NewRateLimitExceededResponse renders a rejected decision for clients.
func NewRateLimitExceededResponse(d *Decision) *RateLimitExceededResponse {
	secs := d.RetryAfterSeconds()
	return &RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    fmt.Sprintf("Please wait %d seconds before trying again.", secs),
		RetryAfter: secs,
	}
}
