package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	assert.Error(t, err)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, slog.Default()).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, QueueAudit, body.Queue)
	assert.Zero(t, body.Pending)
}

func TestClientEnqueuesOntoAuditQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	sink := NewQueueSink(client, nil, nil)
	rec := sampleRecord()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, sink.Append(ctx, rec))
	// same record again is absorbed as a duplicate task ID
	require.NoError(t, sink.Append(ctx, rec))

	pending, err := mr.List("asynq:{" + QueueAudit + "}:pending")
	require.NoError(t, err)
	assert.Equal(t, []string{rec.ID.String()}, pending)
}
