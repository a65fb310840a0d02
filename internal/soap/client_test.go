package soap

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okEnvelope = `<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body><ns:getTenderInformationResponse xmlns:ns="urn:x"><ns:return><ns:resultCode>0000</ns:resultCode></ns:return></ns:getTenderInformationResponse></soapenv:Body></soapenv:Envelope>`

const faultEnvelope = `<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body><soapenv:Fault><faultcode>soapenv:Client</faultcode><faultstring>bad request</faultstring></soapenv:Fault></soapenv:Body></soapenv:Envelope>`

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveAttempt(_ string, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func newTestClient(t *testing.T, url string, policy RetryPolicy, opts ...Option) *Client {
	t.Helper()
	client, err := NewClient(Config{
		Endpoint:  url,
		Namespace: testNS,
		Timeout:   2 * time.Second,
		Retry:     policy,
	}, opts...)
	require.NoError(t, err)
	return client
}

func tenderRequest() Request {
	return Request{
		Operation: "getTenderInformation",
		Args:      map[string]any{"tenderInfoRequest": map[string]any{"tenderRefNumber": "T-1"}},
	}
}

func TestClientSendSuccess(t *testing.T) {
	var gotAction, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		gotType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		_, _ = io.WriteString(w, okEnvelope)
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	client := newTestClient(t, srv.URL, fastPolicy(3), WithObserver(obs))
	ex, err := client.Send(context.Background(), tenderRequest())
	require.NoError(t, err)

	assert.Equal(t, `"urn:getTenderInformation"`, gotAction)
	assert.True(t, strings.HasPrefix(gotType, "text/xml"))
	assert.Contains(t, gotBody, "<tns:tenderRefNumber>T-1</tns:tenderRefNumber>")
	assert.Equal(t, gotBody, string(ex.Request))
	assert.Equal(t, okEnvelope, string(ex.Response))
	assert.Equal(t, 1, ex.Attempts)
	assert.Equal(t, http.StatusOK, ex.StatusCode)
	assert.Equal(t, map[string]any{"return": map[string]any{"resultCode": "0000"}}, ex.Result)
	assert.Equal(t, []string{"success"}, obs.outcomes)
}

func TestClientRetriesTransientStatusThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, okEnvelope)
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	client := newTestClient(t, srv.URL, fastPolicy(3), WithObserver(obs))
	ex, err := client.Send(context.Background(), tenderRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, ex.Attempts)
	assert.Equal(t, []string{"transient", "transient", "success"}, obs.outcomes)
}

func TestClientStopsAfterMaxAttempts(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout} {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(status)
		}))

		client := newTestClient(t, srv.URL, fastPolicy(4))
		ex, err := client.Send(context.Background(), tenderRequest())
		srv.Close()

		require.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, int32(4), calls.Load(), "status %d", status)
		assert.Equal(t, 4, ex.Attempts)
		assert.Equal(t, status, ex.StatusCode)
	}
}

func TestClientDoesNotRetryFault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, faultEnvelope)
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	client := newTestClient(t, srv.URL, fastPolicy(3), WithObserver(obs))
	ex, err := client.Send(context.Background(), tenderRequest())

	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "bad request", fault.Message)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, faultEnvelope, string(ex.Response))
	assert.Equal(t, []string{"fault"}, obs.outcomes)
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, fastPolicy(3))
	_, err := client.Send(context.Background(), tenderRequest())

	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusNotFound, status.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientRetriesConnectionFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := newTestClient(t, url, fastPolicy(2))
	ex, err := client.Send(context.Background(), tenderRequest())
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 2, ex.Attempts)
	assert.NotEmpty(t, ex.Request)
	assert.Empty(t, ex.Response)
}

func TestClientTimeoutBoundsWholeCall(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	obs := &recordingObserver{}
	client, err := NewClient(Config{
		Endpoint: srv.URL,
		Timeout:  50 * time.Millisecond,
		Retry:    fastPolicy(5),
	}, WithObserver(obs))
	require.NoError(t, err)

	started := time.Now()
	_, err = client.Send(context.Background(), tenderRequest())
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Less(t, time.Since(started), time.Second)
	assert.Equal(t, []string{"timeout"}, obs.outcomes)
}

func TestClientRejectsUnencodableRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, fastPolicy(3))
	ex, err := client.Send(context.Background(), Request{Operation: "op", Args: map[string]any{"x": struct{}{}}})
	require.Error(t, err)
	require.NotNil(t, ex)
	assert.Zero(t, ex.Attempts)
	assert.Zero(t, calls.Load())
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 300*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 600*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 1200*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 5*time.Second, p.Backoff(10))
	assert.Zero(t, p.Backoff(0))
	assert.Equal(t, 1, RetryPolicy{}.attempts())
}
