package server

import (
	"encoding/json"
	"net/http"
)

// Problem types for RFC 7807 Problem Details responses.
const (
	ProblemTypeNotFound    = "https://streamwatch.dev/problems/not-found"
	ProblemTypeBadRequest  = "https://streamwatch.dev/problems/bad-request"
	ProblemTypeInternal    = "https://streamwatch.dev/problems/internal-error"
	ProblemTypeRateLimited = "https://streamwatch.dev/problems/rate-limited"
	ProblemTypeUnavailable = "https://streamwatch.dev/problems/unavailable"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes an RFC 7807 Problem Details JSON response.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func problem(w http.ResponseWriter, typ, title string, status int, detail, instance string) {
	WriteProblem(w, Problem{Type: typ, Title: title, Status: status, Detail: detail, Instance: instance})
}

// NotFound writes a 404 problem response.
func NotFound(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeNotFound, "Not Found", http.StatusNotFound, detail, instance)
}

// BadRequest writes a 400 problem response.
func BadRequest(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeBadRequest, "Bad Request", http.StatusBadRequest, detail, instance)
}

// InternalError writes a 500 problem response.
func InternalError(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeInternal, "Internal Server Error", http.StatusInternalServerError, detail, instance)
}

// RateLimited writes a 429 problem response.
func RateLimited(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeRateLimited, "Too Many Requests", http.StatusTooManyRequests, detail, instance)
}

// Unavailable writes a 503 problem response.
func Unavailable(w http.ResponseWriter, detail, instance string) {
	problem(w, ProblemTypeUnavailable, "Service Unavailable", http.StatusServiceUnavailable, detail, instance)
}
