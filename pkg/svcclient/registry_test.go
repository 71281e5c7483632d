package svcclient_test

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/svc-client/pkg/plugins"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/fivetwenty-io/svc-client/pkg/svcclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tracePlugin() svc.Plugin {
	return &svc.PluginSpec{
		PluginName: "trace-header",
		Handlers: []svc.HandlerSpec{{
			Step: svc.StepBuild,
			Name: "trace.header",
			Handler: svc.HandlerFunc(func(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
				rc.HTTPRequest.Header.Set("X-Trace", "on")

				return next(ctx, rc)
			}),
			After: []string{plugins.HandlerBuild},
		}},
	}
}

func TestRegistry_Lookup(t *testing.T) {
	t.Parallel()

	reg := svcclient.NewRegistry()

	_, err := reg.Lookup("Widgets")
	require.ErrorIs(t, err, svcclient.ErrNoServicesRegistered)

	_, err = reg.Register(loadAPI(t, "Widgets"))
	require.NoError(t, err)
	_, err = reg.Register(loadAPI(t, "Gadgets"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Gadgets", "Widgets"}, reg.Services())

	typ, err := reg.Lookup("widgets")
	require.NoError(t, err)
	assert.Equal(t, "Widgets", typ.API().Metadata.ServiceID)

	_, err = reg.Lookup("Sprockets")
	require.ErrorIs(t, err, svcclient.ErrUnknownService)

	client, err := reg.New("GADGETS", svcclient.WithRegion("us-west-2"))
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", client.Options().String(svc.OptRegion))
}

func TestRegistry_AddPluginAppliesEverywhere(t *testing.T) {
	t.Parallel()

	reg := svcclient.NewRegistry()

	widgets, err := reg.Register(loadAPI(t, "Widgets"))
	require.NoError(t, err)

	require.NoError(t, reg.AddPlugin(tracePlugin()))
	assert.Contains(t, widgets.Chain().Names(), "trace.header")

	gadgets, err := reg.Register(loadAPI(t, "Gadgets"))
	require.NoError(t, err)
	assert.Contains(t, gadgets.Chain().Names(), "trace.header", "later services get registry plugins")

	var seen []string

	client, err := reg.New("Gadgets",
		svcclient.WithRegion("us-east-1"),
		svcclient.WithStaticCredentials("AKID", "SECRET", ""),
		svcclient.WithTransport(svc.TransportFunc(func(_ context.Context, req *svc.HTTPRequest, _ time.Duration) (*svc.HTTPResponse, error) {
			seen = append(seen, req.Header.Get("X-Trace"))

			return &svc.HTTPResponse{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(`{}`)}, nil
		})),
	)
	require.NoError(t, err)

	_, err = client.Call(context.Background(), "PutWidget", map[string]any{"Name": "bolt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"on"}, seen)

	require.NoError(t, reg.RemovePlugin("trace-header"))
	assert.NotContains(t, widgets.Chain().Names(), "trace.header")
	assert.NotContains(t, gadgets.Chain().Names(), "trace.header")

	require.ErrorIs(t, reg.RemovePlugin("trace-header"), svc.ErrPluginNotFound)
}

func TestRegistry_AddPluginFailureKeepsChains(t *testing.T) {
	t.Parallel()

	reg := svcclient.NewRegistry()

	widgets, err := reg.Register(loadAPI(t, "Widgets"))
	require.NoError(t, err)

	before := widgets.Chain().Names()

	cyclic := &svc.PluginSpec{
		PluginName: "cyclic",
		Handlers: []svc.HandlerSpec{
			{Step: svc.StepSend, Name: "cyclic.a", Handler: passThrough(), Before: []string{"cyclic.b"}},
			{Step: svc.StepSend, Name: "cyclic.b", Handler: passThrough(), Before: []string{"cyclic.a"}},
		},
	}

	err = reg.AddPlugin(cyclic)

	var resolution *svc.ChainResolutionError
	require.ErrorAs(t, err, &resolution)
	assert.Equal(t, before, widgets.Chain().Names())
	assert.False(t, widgets.HasPlugin("cyclic"))

	_, err = reg.Register(loadAPI(t, "Gadgets"))
	require.NoError(t, err, "a rejected plugin is not applied to later services")
}

func TestRegistry_ConcurrentCallsDuringPluginChanges(t *testing.T) {
	t.Parallel()

	reg := svcclient.NewRegistry()

	_, err := reg.Register(loadAPI(t, "Widgets"))
	require.NoError(t, err)

	client, err := reg.New("Widgets",
		svcclient.WithRegion("us-east-1"),
		svcclient.WithStaticCredentials("AKID", "SECRET", ""),
		svcclient.WithTransport(svc.TransportFunc(func(context.Context, *svc.HTTPRequest, time.Duration) (*svc.HTTPResponse, error) {
			return &svc.HTTPResponse{StatusCode: http.StatusOK, Header: http.Header{}, Body: []byte(`{}`)}, nil
		})),
	)
	require.NoError(t, err)

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 25 {
				_, err := client.Call(context.Background(), "PutWidget", map[string]any{"Name": "bolt"})
				assert.NoError(t, err)
			}
		}()
	}

	for range 10 {
		require.NoError(t, reg.AddPlugin(tracePlugin()))
		require.NoError(t, reg.RemovePlugin("trace-header"))
	}

	wg.Wait()
}

func passThrough() svc.Handler {
	return svc.HandlerFunc(func(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
		return next(ctx, rc)
	})
}

func TestRegistry_WithRegistryClassifier(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	server := conditionalFailureServer(t, &hits)

	reg := svcclient.NewRegistry(svcclient.WithRegistryClassifier(svc.ClassifierFunc(
		func(_ *svc.RequestContext, err error) svc.ErrorClassification {
			if svc.ErrorCode(err) == "ConditionalCheckFailed" {
				return svc.RetryableTransient
			}

			return svc.Unknown
		})))

	_, err := reg.Register(loadAPI(t, "Widgets"))
	require.NoError(t, err)

	client, err := reg.New("widgets",
		svcclient.WithRegion("us-east-1"),
		svcclient.WithEndpoint(server.URL),
		svcclient.WithStaticCredentials("AKID", "SECRET", ""),
		svcclient.WithOptions(svc.Options{svc.OptRetryBaseDelay: time.Millisecond}),
	)
	require.NoError(t, err)

	_, err = client.Call(context.Background(), "PutWidget", map[string]any{"Name": "bolt"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}
