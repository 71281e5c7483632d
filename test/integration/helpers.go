//go:build integration

package integration

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestConfig holds configuration for integration tests.
type TestConfig struct {
	Endpoint        string
	Region          string
	ManifestDir     string
	AccessKeyID     string
	SecretAccessKey string
	NATSURL         string
	SvcPath         string
	Verbose         bool
}

// LoadTestConfig loads configuration from environment variables.
func LoadTestConfig() *TestConfig {
	region := os.Getenv("SVC_INTEGRATION_REGION")
	if region == "" {
		region = "us-east-1"
	}

	return &TestConfig{
		Endpoint:        os.Getenv("SVC_INTEGRATION_ENDPOINT"),
		Region:          region,
		ManifestDir:     os.Getenv("SVC_INTEGRATION_MANIFESTS"),
		AccessKeyID:     os.Getenv("SVC_INTEGRATION_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("SVC_INTEGRATION_SECRET_ACCESS_KEY"),
		NATSURL:         os.Getenv("NATS_URL"),
		SvcPath:         getSvcPath(),
		Verbose:         os.Getenv("SVC_VERBOSE") == "true",
	}
}

// getSvcPath determines the path to the svc binary.
func getSvcPath() string {
	if path := os.Getenv("SVC_BINARY_PATH"); path != "" {
		return path
	}

	for _, candidate := range []string{"../../svc", "./svc", "../svc"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "svc"
}

// SkipIfMissingConfig skips the test when no endpoint is configured.
func (c *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if c.Endpoint == "" || c.ManifestDir == "" {
		t.Skip("SVC_INTEGRATION_ENDPOINT and SVC_INTEGRATION_MANIFESTS must be set")
	}
}

// CommandRunner runs the svc binary against an isolated config file.
type CommandRunner struct {
	config     *TestConfig
	t          *testing.T
	configFile string
}

// NewCommandRunner creates a runner with credentials written to a
// temporary config file.
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	r := &CommandRunner{
		config:     config,
		t:          t,
		configFile: filepath.Join(t.TempDir(), "config.yml"),
	}

	for key, value := range map[string]string{
		"region":                        config.Region,
		"credentials.access_key_id":     config.AccessKeyID,
		"credentials.secret_access_key": config.SecretAccessKey,
	} {
		if value == "" {
			continue
		}

		if _, err := r.Run("configure", "set", key, value); err != nil {
			t.Fatalf("failed to configure %s: %v", key, err)
		}
	}

	return r
}

// Run executes svc with args and returns its standard output.
func (r *CommandRunner) Run(args ...string) (string, error) {
	base := []string{
		"--config", r.configFile,
		"--manifests", r.config.ManifestDir,
		"--endpoint", r.config.Endpoint,
	}

	if r.config.Verbose {
		base = append(base, "--verbose")
	}

	cmd := exec.Command(r.config.SvcPath, append(base, args...)...) // #nosec G204 -- test binary path

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		return stdout.String(), fmt.Errorf("svc %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}

	return stdout.String(), nil
}

// GenerateTestName returns a unique name for test resources.
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
