package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the outcome stored on a Record.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Record is the audit trail of one operation call. Records are append
// only; CreatedAt is assigned by the store.
type Record struct {
	ID              uuid.UUID `json:"id"`
	Operation       string    `json:"operation"`
	UserID          *int64    `json:"user_id"`
	RequestPayload  string    `json:"request_payload"`
	ResponsePayload *string   `json:"response_payload"`
	Status          Status    `json:"status"`
	// Duration in seconds.
	Duration     float64   `json:"duration"`
	ErrorMessage *string   `json:"error_message"`
	FailureKind  *string   `json:"failure_kind"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"created_at"`
}

// Sink persists audit records.
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// Filter menampung parameter listing audit.
type Filter struct {
	// UserID restricts the listing to one principal when set.
	UserID   *int64
	Page     int
	PageSize int
}

// PagingInfo menyimpan metadata pagination sederhana.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Page is one slice of the audit trail, newest first.
type Page struct {
	Records []Record   `json:"records"`
	Paging  PagingInfo `json:"paging"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func (f Filter) normalize() Filter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}
