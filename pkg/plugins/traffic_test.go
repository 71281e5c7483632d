package plugins_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/fivetwenty-io/svc-client/pkg/plugins"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Parallel()

	t.Run("unlimited by default", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{responses: []response{ok(`{}`)}}
		client := newClient(t, transport, []svc.Plugin{plugins.NewRateLimiter().Plugin()})

		for range 5 {
			_, err := client.Call(context.Background(), "PutWidget", map[string]any{"Name": "bolt"})
			require.NoError(t, err)
		}

		assert.Equal(t, int32(5), transport.calls.Load())
	})

	t.Run("waits for a token", func(t *testing.T) {
		t.Parallel()

		transport := &fakeTransport{responses: []response{ok(`{}`)}}
		client := newClient(t, transport, []svc.Plugin{plugins.NewRateLimiter().Plugin()},
			svc.WithOptions(svc.Options{svc.OptRateLimit: 0.001, svc.OptRateBurst: 1}))

		_, err := client.Call(context.Background(), "PutWidget", map[string]any{"Name": "bolt"})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err = client.Call(ctx, "PutWidget", map[string]any{"Name": "bolt"})

		var timeoutErr *svc.TimeoutError
		require.ErrorAs(t, err, &timeoutErr)
		assert.Equal(t, int32(1), transport.calls.Load())
	})
}

func TestCircuitBreaker(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	breaker := plugins.NewCircuitBreaker(&plugins.CircuitBreakerConfig{
		Threshold:        2,
		Timeout:          time.Minute,
		SuccessThreshold: 1,
	}).WithClock(clock)

	transport := &fakeTransport{responses: []response{
		failure(http.StatusInternalServerError, "InternalFailure"),
		failure(http.StatusInternalServerError, "InternalFailure"),
		ok(`{}`),
	}}
	client := newClient(t, transport, []svc.Plugin{breaker.Plugin()},
		svc.WithOptions(svc.Options{svc.OptMaxRetries: 0}))

	call := func() error {
		_, err := client.Call(context.Background(), "PutWidget", map[string]any{"Name": "bolt"})

		return err
	}

	require.Error(t, call())
	assert.Equal(t, plugins.StateClosed, breaker.State())

	require.Error(t, call())
	assert.Equal(t, plugins.StateOpen, breaker.State())

	err := call()
	require.ErrorIs(t, err, plugins.ErrCircuitOpen)
	assert.Equal(t, int32(2), transport.calls.Load())

	now = now.Add(2 * time.Minute)

	require.NoError(t, call())
	assert.Equal(t, plugins.StateClosed, breaker.State())
	assert.Equal(t, int32(3), transport.calls.Load())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	breaker := plugins.NewCircuitBreaker(&plugins.CircuitBreakerConfig{
		Threshold:        1,
		Timeout:          time.Second,
		SuccessThreshold: 2,
	}).WithClock(func() time.Time { return now })

	breaker.Record(true)
	assert.Equal(t, plugins.StateOpen, breaker.State())

	now = now.Add(2 * time.Second)
	require.NoError(t, breaker.Allow())
	assert.Equal(t, plugins.StateHalfOpen, breaker.State())

	breaker.Record(true)
	assert.Equal(t, plugins.StateOpen, breaker.State())
	require.ErrorIs(t, breaker.Allow(), plugins.ErrCircuitOpen)
}

func TestResolveEndpoint(t *testing.T) {
	t.Parallel()

	regional := &svc.ServiceMetadata{EndpointPrefix: "widgets"}
	global := &svc.ServiceMetadata{EndpointPrefix: "iam", GlobalEndpoint: "iam.example.com"}

	tests := []struct {
		name    string
		meta    *svc.ServiceMetadata
		opts    svc.Options
		want    string
		wantErr error
	}{
		{name: "regional", meta: regional, opts: svc.Options{svc.OptRegion: "eu-west-1"}, want: "https://widgets.eu-west-1.amazonaws.com"},
		{name: "global", meta: global, opts: svc.Options{}, want: "https://iam.example.com"},
		{name: "configured", meta: global, opts: svc.Options{svc.OptEndpoint: "http://localhost:4566"}, want: "http://localhost:4566"},
		{name: "configured without scheme", meta: regional, opts: svc.Options{svc.OptEndpoint: "localhost:4566"}, want: "https://localhost:4566"},
		{name: "missing region", meta: regional, opts: svc.Options{}, wantErr: svc.ErrMissingRegion},
		{name: "no host", meta: regional, opts: svc.Options{svc.OptEndpoint: "https://"}, wantErr: plugins.ErrInvalidEndpoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, err := plugins.ResolveEndpoint(tt.meta, tt.opts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestValidateParams(t *testing.T) {
	t.Parallel()

	str := &svc.Shape{Type: svc.TypeString}
	tag := &svc.Shape{Type: svc.TypeStructure, Members: []*svc.Member{
		{Name: "Key", Shape: str, Required: true},
		{Name: "Value", Shape: str},
	}}
	input := &svc.Shape{Type: svc.TypeStructure, Members: []*svc.Member{
		{Name: "Name", Shape: str, Required: true},
		{Name: "Tags", Shape: &svc.Shape{Type: svc.TypeList, Member: &svc.Member{Shape: tag}}},
		{Name: "Labels", Shape: &svc.Shape{Type: svc.TypeMap, Key: &svc.Member{Shape: str}, Value: &svc.Member{Shape: str}}},
		{Name: "Created", Shape: &svc.Shape{Type: svc.TypeTimestamp}},
		{Name: "Enabled", Shape: &svc.Shape{Type: svc.TypeBoolean}},
	}}

	assert.Empty(t, plugins.ValidateParams(input, map[string]any{
		"Name":    "w",
		"Tags":    []any{map[string]any{"Key": "k", "Value": "v"}},
		"Labels":  map[string]string{"a": "b"},
		"Created": time.Now(),
		"Enabled": true,
	}))

	assert.Equal(t, []string{
		"missing required parameter params.Tags[0].Key",
		`expected params.Labels["a"] to be a string, got int`,
		"expected params.Created to be a timestamp, got string",
		"expected params.Enabled to be a boolean, got string",
		"unexpected parameter params.Extra",
	}, plugins.ValidateParams(input, map[string]any{
		"Name":    "w",
		"Tags":    []any{map[string]any{"Value": "v"}},
		"Labels":  map[string]any{"a": 1},
		"Created": "yesterday",
		"Enabled": "yes",
		"Extra":   1,
	}))

	assert.Nil(t, plugins.ValidateParams(nil, map[string]any{"Anything": 1}))
}
