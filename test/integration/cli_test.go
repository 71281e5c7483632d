//go:build integration

package integration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLI_ServicesAndOperations(t *testing.T) {
	config := LoadTestConfig()
	config.SkipIfMissingConfig(t)

	runner := NewCommandRunner(config, t)

	out, err := runner.Run("services", "--output", "json")
	require.NoError(t, err)

	var services []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &services))
	require.NotEmpty(t, services)

	for _, service := range services {
		id, _ := service["service"].(string)

		out, err := runner.Run("operations", id, "--output", "json")
		require.NoError(t, err, "operations of %s", id)
		assert.NotEmpty(t, out)
	}
}

func TestCLI_CallRoundTrip(t *testing.T) {
	config := LoadTestConfig()
	config.SkipIfMissingConfig(t)

	runner := NewCommandRunner(config, t)

	name := GenerateTestName("widget")
	params, err := json.Marshal(map[string]any{"Name": name})
	require.NoError(t, err)

	out, err := runner.Run("call", "Widgets", "PutWidget", "--params", string(params), "--output", "json")
	require.NoError(t, err)

	var created map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.NotEmpty(t, created["Id"])

	out, err = runner.Run("call", "Widgets", "ListWidgets", "--all-pages", "--output", "json")
	require.NoError(t, err)

	var pages []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &pages))
	assert.NotEmpty(t, pages)
}

func TestCLI_ValidationFailsLocally(t *testing.T) {
	config := LoadTestConfig()
	config.SkipIfMissingConfig(t)

	runner := NewCommandRunner(config, t)

	_, err := runner.Run("call", "Widgets", "PutWidget", "--params", `{"Unknown":1}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected parameter params.Unknown")
}
