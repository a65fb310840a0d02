package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	records []Record
	ctxErrs []error
	err     error
}

func (m *memorySink) Append(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

type panicSink struct{}

func (panicSink) Append(context.Context, Record) error { panic("boom") }

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestLoggerRecordsSuccessFromWireBytes(t *testing.T) {
	sink := &memorySink{}
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	l := NewLogger(sink, slog.Default(), WithClock(fixedClock(start.Add(1500*time.Millisecond))))

	userID := int64(7)
	l.Record(context.Background(), Entry{
		Operation:    "getTenderInformation",
		UserID:       &userID,
		Started:      start,
		RequestWire:  []byte("<tns:id>UAP</tns:id><tns:password>hunter2</tns:password>"),
		Request:      map[string]any{"ignored": true},
		ResponseWire: []byte("<ok/>"),
		Attempts:     2,
	})

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.NotEmpty(t, rec.ID.String())
	assert.Equal(t, "getTenderInformation", rec.Operation)
	assert.Equal(t, &userID, rec.UserID)
	assert.Equal(t, StatusSuccess, rec.Status)
	assert.InDelta(t, 1.5, rec.Duration, 1e-9)
	assert.Equal(t, "<tns:id>UAP</tns:id><tns:password>********</tns:password>", rec.RequestPayload)
	require.NotNil(t, rec.ResponsePayload)
	assert.Equal(t, "<ok/>", *rec.ResponsePayload)
	assert.Nil(t, rec.ErrorMessage)
	assert.Nil(t, rec.FailureKind)
	assert.Equal(t, 2, rec.Attempts)
}

func TestLoggerRecordsFailureWithJSONFallback(t *testing.T) {
	sink := &memorySink{}
	l := NewLogger(sink, nil)

	l.Record(context.Background(), Entry{
		Operation:   "sendCreditLineFacility",
		Started:     time.Now(),
		Request:     map[string]any{"credit_info": map[string]any{"tenderRefName": "Road"}},
		Err:         errors.New("permission denied for sendCreditLineFacility"),
		FailureKind: "permission_denied",
	})

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, StatusFailed, rec.Status)
	assert.JSONEq(t, `{"credit_info":{"tenderRefName":"Road"}}`, rec.RequestPayload)
	assert.Nil(t, rec.ResponsePayload)
	assert.Nil(t, rec.UserID)
	require.NotNil(t, rec.ErrorMessage)
	assert.Equal(t, "permission denied for sendCreditLineFacility", *rec.ErrorMessage)
	require.NotNil(t, rec.FailureKind)
	assert.Equal(t, "permission_denied", *rec.FailureKind)
}

func TestLoggerFallsBackToFormattedValue(t *testing.T) {
	sink := &memorySink{}
	l := NewLogger(sink, nil, WithRedaction(false))

	l.Record(context.Background(), Entry{
		Operation: "op",
		Request:   map[string]any{"ch": make(chan int)},
		Response:  struct{ Password string }{Password: "visible"},
	})

	require.Len(t, sink.records, 1)
	assert.Contains(t, sink.records[0].RequestPayload, "map[ch:")
	require.NotNil(t, sink.records[0].ResponsePayload)
	assert.Contains(t, *sink.records[0].ResponsePayload, "visible")
}

func TestLoggerWritesOnDetachedContext(t *testing.T) {
	sink := &memorySink{}
	l := NewLogger(sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Record(ctx, Entry{Operation: "op", Err: context.DeadlineExceeded})

	require.Len(t, sink.records, 1)
	assert.NoError(t, sink.ctxErrs[0])
}

func TestLoggerContainsSinkFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	l := NewLogger(&memorySink{err: errors.New("db down")}, logger)
	assert.NotPanics(t, func() { l.Record(context.Background(), Entry{Operation: "op"}) })
	assert.Contains(t, buf.String(), "audit append failed")
	assert.Contains(t, buf.String(), "db down")

	buf.Reset()
	l = NewLogger(panicSink{}, logger)
	assert.NotPanics(t, func() { l.Record(context.Background(), Entry{Operation: "op"}) })
	assert.Contains(t, buf.String(), "audit record panicked")

	l = NewLogger(nil, logger)
	assert.NotPanics(t, func() { l.Record(context.Background(), Entry{Operation: "op"}) })
}

func TestRedact(t *testing.T) {
	cases := map[string]string{
		`<tns:password>s3cr3t</tns:password>`:   `<tns:password>********</tns:password>`,
		`<password xsi:type="x">a</password>`:   `<password xsi:type="x">********</password>`,
		`{"id":"UAP","password":"s\"ecret"}`:    `{"id":"UAP","password":"********"}`,
		`{"password" : "x", "other":"password"}`: `{"password" : "********", "other":"password"}`,
		`<tns:passwordHint>keep</tns:passwordHint>`: `<tns:passwordHint>keep</tns:passwordHint>`,
		"": "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Redact(in), in)
	}
}

func TestPaginate(t *testing.T) {
	records := make([]Record, 3)
	page := paginate(records, Filter{Page: 2, PageSize: 2})
	assert.Len(t, page.Records, 2)
	assert.Equal(t, PagingInfo{Page: 2, PageSize: 2, HasNext: true, PrevPage: 1, NextPage: 3}, page.Paging)

	page = paginate(records[:1], Filter{Page: 1, PageSize: 2})
	assert.Len(t, page.Records, 1)
	assert.False(t, page.Paging.HasNext)

	f := Filter{PageSize: 1000}.normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, MaxPageSize, f.PageSize)
}
