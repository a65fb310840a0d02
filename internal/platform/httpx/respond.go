package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// MaxBodyBytes bounds request bodies accepted by DecodeJSON.
const MaxBodyBytes = 1 << 20

// ProblemDetail represents RFC7807 problem details. Type carries a
// machine-readable tag when the caller supplies one.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	TypedProblem(w, status, "", title, detail)
}

// TypedProblem is Problem with a type tag.
func TypedProblem(w http.ResponseWriter, status int, kind, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Type:   kind,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON decodes a single JSON value from the request body into target.
// An empty body leaves target untouched.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}
