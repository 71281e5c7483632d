package plugins_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/svc-client/pkg/plugins"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_StopsAfterMaxRetries(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{responses: []response{failure(http.StatusInternalServerError, "InternalFailure")}}
	client := newClient(t, transport, nil)

	rc, chain, err := client.NewRequest("PutWidget", map[string]any{"Name": "bolt"})
	require.NoError(t, err)

	err = chain.Execute(context.Background(), rc)

	var svcErr *svc.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "InternalFailure", svcErr.Code)
	assert.Equal(t, int32(4), transport.calls.Load())
	assert.Equal(t, 3, rc.RetryCount)
	assert.Equal(t, 4, rc.Attempt)
	assert.Equal(t, svc.AttemptFailed, rc.AttemptState)
	assert.Len(t, rc.Errors, 4)
	assert.Equal(t, "attempt=4; max=4", transport.request(3).Header.Get("Amz-Sdk-Request"))
}

func TestRetry_MaxRetriesOption(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		maxRetries int
		want       int32
	}{
		{name: "no retries", maxRetries: 0, want: 1},
		{name: "one retry", maxRetries: 1, want: 2},
		{name: "five retries", maxRetries: 5, want: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			transport := &fakeTransport{responses: []response{failure(http.StatusServiceUnavailable, "ServiceUnavailable")}}
			client := newClient(t, transport, nil)

			_, err := client.Call(context.Background(), "PutWidget", map[string]any{"Name": "bolt"},
				svc.WithCallOptions(svc.Options{svc.OptMaxRetries: tt.maxRetries}))
			require.Error(t, err)
			assert.Equal(t, tt.want, transport.calls.Load())
		})
	}
}

func TestRetry_RecoversFromThrottling(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{responses: []response{
		failure(http.StatusBadRequest, "ThrottlingException"),
		ok(`{"Id":"w-2"}`),
	}}
	client := newClient(t, transport, nil)

	rc, chain, err := client.NewRequest("PutWidget", map[string]any{"Name": "bolt"})
	require.NoError(t, err)
	require.NoError(t, chain.Execute(context.Background(), rc))

	assert.Equal(t, map[string]any{"Id": "w-2"}, rc.Data)
	assert.Equal(t, 1, rc.RetryCount)
	assert.Equal(t, svc.AttemptSucceeded, rc.AttemptState)
	assert.Equal(t, int32(2), transport.calls.Load())

	first, second := transport.request(0), transport.request(1)
	assert.Equal(t, first.Body.String(), second.Body.String(), "attempts reuse the built request")
	assert.Equal(t, first.Header.Get("Amz-Sdk-Invocation-Id"), second.Header.Get("Amz-Sdk-Invocation-Id"))
	assert.Equal(t, "attempt=2; max=4", second.Header.Get("Amz-Sdk-Request"))
}

func TestRetry_UnparseableServerErrorBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		want   int32
	}{
		{name: "5xx page is retried", status: http.StatusServiceUnavailable, want: 4},
		{name: "429 page is retried", status: http.StatusTooManyRequests, want: 4},
		{name: "4xx page is not retried", status: http.StatusForbidden, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			transport := &fakeTransport{responses: []response{{status: tt.status, body: "<html>busy</html>"}}}
			client := newClient(t, transport, nil,
				svc.WithOptions(svc.Options{svc.OptThrottleBaseDelay: time.Millisecond, svc.OptRetryMaxDelay: 5 * time.Millisecond}))

			_, err := client.Call(context.Background(), "PutWidget", map[string]any{"Name": "bolt"})

			var parseErr *svc.ProtocolParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, tt.status, parseErr.StatusCode)
			assert.Equal(t, tt.want, transport.calls.Load())
		})
	}
}

func TestRetry_DoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{responses: []response{failure(http.StatusBadRequest, "ValidationException")}}
	client := newClient(t, transport, nil)

	_, err := client.Call(context.Background(), "PutWidget", map[string]any{"Name": "bolt"})
	assert.Equal(t, "ValidationException", svc.ErrorCode(err))
	assert.Equal(t, int32(1), transport.calls.Load())
}

func TestRetry_ClassifierOverride(t *testing.T) {
	t.Parallel()

	override := svc.CodeClassifier{Codes: map[string]svc.ErrorClassification{
		"ValidationException": svc.RetryableTransient,
	}}

	api := widgetsAPI()
	base := plugins.DefaultPlugins(&api.Metadata)

	for i, p := range base {
		if p.Name() == plugins.NameRetry {
			base[i] = plugins.NewRetry(plugins.WithClassifier(override))
		}
	}

	typ, err := svc.NewClientType(api, base...)
	require.NoError(t, err)

	transport := &fakeTransport{responses: []response{
		failure(http.StatusBadRequest, "ValidationException"),
		ok(`{}`),
	}}

	client, err := typ.NewClient(
		svc.WithTransport(transport),
		svc.WithCredentials(&staticCreds{}),
		svc.WithOptions(svc.Options{svc.OptRegion: "us-east-1", svc.OptRetryBaseDelay: time.Millisecond}),
	)
	require.NoError(t, err)

	_, err = client.Call(context.Background(), "PutWidget", map[string]any{"Name": "bolt"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), transport.calls.Load())
}

func TestRetry_InvalidatesExpiredCredentials(t *testing.T) {
	t.Parallel()

	creds := &staticCreds{}
	transport := &fakeTransport{responses: []response{
		failure(http.StatusForbidden, "ExpiredTokenException"),
		ok(`{}`),
	}}
	client := newClient(t, transport, nil, svc.WithCredentials(creds))

	_, err := client.Call(context.Background(), "PutWidget", map[string]any{"Name": "bolt"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), creds.invalidated.Load())
	assert.Equal(t, int32(2), transport.calls.Load())
}

func TestRetry_CancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{responses: []response{failure(http.StatusInternalServerError, "InternalFailure")}}
	client := newClient(t, transport, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Call(ctx, "PutWidget", map[string]any{"Name": "bolt"},
		svc.WithCallOptions(svc.Options{svc.OptRetryBaseDelay: time.Hour, svc.OptRetryMaxDelay: time.Hour}))

	var timeoutErr *svc.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "InternalFailure", svc.ErrorCode(err))
	assert.Equal(t, int32(1), transport.calls.Load())
}

// blockingTransport holds every transmission until the caller gives up.
type blockingTransport struct {
	calls atomic.Int32
}

func (b *blockingTransport) Transmit(ctx context.Context, _ *svc.HTTPRequest, _ time.Duration) (*svc.HTTPResponse, error) {
	b.calls.Add(1)
	<-ctx.Done()

	return nil, ctx.Err()
}

func TestRetry_DeadlineAbortsInFlightSend(t *testing.T) {
	t.Parallel()

	transport := &blockingTransport{}
	client := newClient(t, transport, nil)

	rc, chain, err := client.NewRequest("PutWidget", map[string]any{"Name": "bolt"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = chain.Execute(ctx, rc)

	var timeoutErr *svc.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.Same(t, err, rc.Error)
	assert.Nil(t, rc.Data)
	assert.Equal(t, svc.AttemptFailed, rc.AttemptState)
	assert.Equal(t, 1, rc.Attempt)
	assert.Equal(t, int32(1), transport.calls.Load())
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	full := func(n int64) int64 { return n }
	none := func(int64) int64 { return 0 }

	tests := []struct {
		name       string
		retryCount int
		jitter     func(int64) int64
		want       time.Duration
	}{
		{name: "first retry lower bound", retryCount: 0, jitter: none, want: 50 * time.Millisecond},
		{name: "first retry upper bound", retryCount: 0, jitter: full, want: 100 * time.Millisecond},
		{name: "grows exponentially", retryCount: 3, jitter: full, want: 800 * time.Millisecond},
		{name: "half is guaranteed", retryCount: 3, jitter: none, want: 400 * time.Millisecond},
		{name: "capped", retryCount: 10, jitter: full, want: time.Second},
		{name: "capped lower bound", retryCount: 64, jitter: none, want: 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, plugins.Backoff(100*time.Millisecond, time.Second, tt.retryCount, tt.jitter))
		})
	}

	assert.Zero(t, plugins.Backoff(0, time.Second, 2, full))
}
