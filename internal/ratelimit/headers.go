package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// SetHeaders writes the canonical X-RateLimit-* headers for a Check result.
func SetHeaders(h http.Header, r Result) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(r.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(r.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(r.ResetAt.Unix(), 10))
}

type deniedBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int64  `json:"retryAfter"`
}

// WriteDenied writes the 429 response body and Retry-After header for a
// denied Check result.
func WriteDenied(w http.ResponseWriter, r Result) {
	retryAfter := int64(r.ResetAt.Sub(time.Now()).Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	SetHeaders(w.Header(), r)
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(deniedBody{
		Error:      "rate limited",
		Message:    "too many requests to this endpoint",
		RetryAfter: retryAfter,
	})
}
