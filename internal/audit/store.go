package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore menyimpan jejak audit ke tabel gateway_audit_records.
type PostgresStore struct {
	db querier
}

// NewPostgresStore constructs the store. A *pgxpool.Pool satisfies db.
func NewPostgresStore(db querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts rec. created_at is assigned by the database.
func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO gateway_audit_records
    (id, operation_name, user_id, request_payload, response_payload, status,
     duration_seconds, error_message, failure_kind, attempts)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.Operation, rec.UserID, rec.RequestPayload, rec.ResponsePayload,
		string(rec.Status), rec.Duration, rec.ErrorMessage, rec.FailureKind, rec.Attempts)
	if err != nil {
		return fmt.Errorf("audit: append %s: %w", rec.Operation, err)
	}
	return nil
}

// List returns one page of records, newest first.
func (s *PostgresStore) List(ctx context.Context, filter Filter) (Page, error) {
	filter = filter.normalize()
	offset := (filter.Page - 1) * filter.PageSize
	rows, err := s.db.Query(ctx, `
SELECT id, operation_name, user_id, request_payload, response_payload, status,
       duration_seconds, error_message, failure_kind, attempts, created_at
FROM gateway_audit_records
WHERE ($1::bigint IS NULL OR user_id = $1)
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3`, filter.UserID, filter.PageSize+1, offset)
	if err != nil {
		return Page{}, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, filter.PageSize)
	for rows.Next() {
		var (
			rec    Record
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.Operation, &rec.UserID, &rec.RequestPayload, &rec.ResponsePayload,
			&status, &rec.Duration, &rec.ErrorMessage, &rec.FailureKind, &rec.Attempts, &rec.CreatedAt); err != nil {
			return Page{}, fmt.Errorf("audit: scan: %w", err)
		}
		rec.Status = Status(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("audit: list: %w", err)
	}
	return paginate(records, filter), nil
}

func paginate(records []Record, filter Filter) Page {
	hasNext := len(records) > filter.PageSize
	if hasNext {
		records = records[:filter.PageSize]
	}
	paging := PagingInfo{Page: filter.Page, PageSize: filter.PageSize, HasNext: hasNext}
	if filter.Page > 1 {
		paging.PrevPage = filter.Page - 1
	}
	if hasNext {
		paging.NextPage = filter.Page + 1
	}
	return Page{Records: records, Paging: paging}
}
