package svc_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Set(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value any
		want  any
		err   error
	}{
		{name: "string", key: svc.OptRegion, value: "eu-west-1", want: "eu-west-1"},
		{name: "int", key: svc.OptMaxRetries, value: 4, want: 4},
		{name: "int from float", key: svc.OptMaxRetries, value: float64(4), want: 4},
		{name: "int from string", key: svc.OptMaxRetries, value: "7", want: 7},
		{name: "duration", key: svc.OptRetryBaseDelay, value: 50 * time.Millisecond, want: 50 * time.Millisecond},
		{name: "duration from string", key: svc.OptHTTPTimeout, value: "2s", want: 2 * time.Second},
		{name: "bool from string", key: svc.OptValidateParams, value: "false", want: false},
		{name: "float from int", key: svc.OptRateLimit, value: 10, want: float64(10)},
		{name: "unknown key", key: "colour", value: "blue", err: svc.ErrUnknownOption},
		{name: "wrong type", key: svc.OptRegion, value: 42, err: svc.ErrInvalidOptionType},
		{name: "fractional int", key: svc.OptMaxRetries, value: 1.5, err: svc.ErrInvalidOptionType},
		{name: "bad duration", key: svc.OptRetryMaxDelay, value: "soon", err: svc.ErrInvalidOptionType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := svc.NewStore()
			err := store.Set(tt.key, tt.value)

			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)

				_, ok := store.Get(tt.key)
				assert.False(t, ok)

				return
			}

			require.NoError(t, err)

			got, ok := store.Get(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_UpdateIsAllOrNothing(t *testing.T) {
	t.Parallel()

	store := svc.NewStore()
	err := store.Update(svc.Options{svc.OptRegion: "us-west-2", svc.OptMaxRetries: "lots"})
	require.ErrorIs(t, err, svc.ErrInvalidOptionType)
	assert.Empty(t, store.Snapshot())

	require.NoError(t, store.Update(svc.Options{svc.OptRegion: "us-west-2", svc.OptMaxRetries: 2}))
	assert.Equal(t, svc.Options{svc.OptRegion: "us-west-2", svc.OptMaxRetries: 2}, store.Snapshot())

	store.Delete(svc.OptRegion)
	_, ok := store.Get(svc.OptRegion)
	assert.False(t, ok)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	t.Parallel()

	store := svc.NewStore()
	require.NoError(t, store.Set(svc.OptRegion, "us-east-1"))

	snap := store.Snapshot()
	snap[svc.OptRegion] = "mutated"

	got, _ := store.Get(svc.OptRegion)
	assert.Equal(t, "us-east-1", got)

	var nilStore *svc.Store
	assert.Empty(t, nilStore.Snapshot())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	store := svc.NewStore()

	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(2)

		go func() {
			defer wg.Done()

			assert.NoError(t, store.Set(svc.OptRegion, fmt.Sprintf("region-%d", i)))
		}()

		go func() {
			defer wg.Done()

			_ = store.Snapshot()
		}()
	}

	wg.Wait()

	region, ok := store.Get(svc.OptRegion)
	require.True(t, ok)
	assert.Contains(t, region, "region-")
}

func TestOptions_Accessors(t *testing.T) {
	t.Parallel()

	opts := svc.MergeOptions(
		svc.Options{svc.OptRegion: "a", svc.OptMaxRetries: 1},
		svc.Options{svc.OptRegion: "b", svc.OptRetryBaseDelay: time.Second},
		nil,
	)

	assert.Equal(t, "b", opts.String(svc.OptRegion))
	assert.Equal(t, 1, opts.Int(svc.OptMaxRetries, 3))
	assert.Equal(t, 3, opts.Int("missing", 3))
	assert.Equal(t, time.Second, opts.Duration(svc.OptRetryBaseDelay, 0))
	assert.Equal(t, 2.5, opts.Float(svc.OptRateLimit, 2.5))
	assert.True(t, opts.Bool(svc.OptValidateParams, true))
	assert.Contains(t, svc.OptionKeys(), svc.OptSignatureVersion)
}
