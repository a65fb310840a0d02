//go:build integration

package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umucyo/guarantee-gateway/internal/platform/db/dbtest"
)

// Run with: go test -tags=integration ./internal/audit/...
func TestPostgresStoreAppendAndList(t *testing.T) {
	pool := dbtest.Start(t)
	ctx := context.Background()

	var userID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash) VALUES ('underwriter', 'x') RETURNING id`).Scan(&userID))

	store := NewPostgresStore(pool)
	msg := "remote unavailable"
	kind := "remote_unavailable"
	resp := "<fault/>"
	for i := 0; i < 3; i++ {
		rec := Record{
			ID:             uuid.New(),
			Operation:      "getContractInformation",
			RequestPayload: "{}",
			Status:         StatusSuccess,
			Duration:       0.25,
			Attempts:       1,
		}
		if i == 2 {
			rec.UserID = &userID
			rec.Status = StatusFailed
			rec.ErrorMessage = &msg
			rec.FailureKind = &kind
			rec.ResponsePayload = &resp
		}
		require.NoError(t, store.Append(ctx, rec))
	}

	all, err := store.List(ctx, Filter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, all.Records, 2)
	assert.True(t, all.Paging.HasNext)

	mine, err := store.List(ctx, Filter{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, mine.Records, 1)
	got := mine.Records[0]
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, msg, *got.ErrorMessage)
	assert.Equal(t, kind, *got.FailureKind)
	assert.Equal(t, resp, *got.ResponsePayload)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	require.NoError(t, err)
	mine, err = store.List(ctx, Filter{UserID: &userID})
	require.NoError(t, err)
	assert.Empty(t, mine.Records, "records survive user deletion with a null owner")
}
