// Package config loads client settings from a config file and SVC_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fivetwenty-io/svc-client/internal/auth"
	"github.com/fivetwenty-io/svc-client/internal/constants"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by New.
const EnvPrefix = "SVC"

// Keys outside the option set.
const (
	KeyAccessKeyID      = "credentials.access_key_id"
	KeySecretAccessKey  = "credentials.secret_access_key"
	KeySessionToken     = "credentials.session_token"
	KeyMetadataEndpoint = "credentials.metadata_endpoint"
	KeyCache            = "cache"
	KeyManifests        = "manifests"
	KeyOutput           = "output"
)

// New returns a viper instance reading cfgFile, or config.yml under Dir()
// when cfgFile is empty, plus SVC_* environment variables. A missing config
// file is not an error.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}

		v.AddConfigPath(dir)
		v.SetConfigType("yml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range append(svc.OptionKeys(), KeyAccessKeyID, KeySecretAccessKey, KeySessionToken, KeyMetadataEndpoint) {
		_ = v.BindEnv(key)
	}

	v.SetDefault(KeyOutput, "table")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(cfgFile != "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return v, nil
}

// Dir returns $HOME/.svc.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to find home directory: %w", err)
	}

	return filepath.Join(home, ".svc"), nil
}

// Load copies every recognized option set in v into store. Values of the
// wrong shape are rejected by the store.
func Load(v *viper.Viper, store *svc.Store) error {
	opts := svc.Options{}

	for _, key := range svc.OptionKeys() {
		if v.IsSet(key) {
			opts[key] = v.Get(key)
		}
	}

	if err := store.Update(opts); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// Cache builds the credentials cache described under the cache key.
func Cache(v *viper.Viper) (auth.Cache, error) {
	if !v.IsSet(KeyCache) {
		return auth.NewCacheFromConfig(nil)
	}

	cfg := auth.DefaultCacheConfig()
	if err := v.UnmarshalKey(KeyCache, cfg); err != nil {
		return nil, fmt.Errorf("invalid cache configuration: %w", err)
	}

	return auth.NewCacheFromConfig(cfg)
}

// Credentials builds the credentials provider described by v: static keys
// when an access key is set, otherwise a refreshing metadata provider when
// an endpoint is set, otherwise nil.
func Credentials(v *viper.Viper, logger svc.Logger) (svc.CredentialsProvider, error) {
	if id := v.GetString(KeyAccessKeyID); id != "" {
		return auth.NewStaticProvider(id, v.GetString(KeySecretAccessKey), v.GetString(KeySessionToken)), nil
	}

	endpoint := v.GetString(KeyMetadataEndpoint)
	if endpoint == "" {
		return nil, nil //nolint:nilnil
	}

	cache, err := Cache(v)
	if err != nil {
		return nil, err
	}

	return auth.NewRefreshingProvider(
		auth.NewMetadataProvider(endpoint),
		auth.WithCache(cache, "metadata:"+endpoint),
		auth.WithRefreshLogger(logger),
	), nil
}

// Save sets key to value and writes it to the config file, creating
// $HOME/.svc/config.yml when no file was read. Only values already in the
// file and the new one are written, never flag or environment values.
func Save(v *viper.Viper, key string, value any) error {
	if _, known := svc.KnownOptions[key]; known {
		if _, err := svc.NormalizeOption(key, value); err != nil {
			return err
		}
	}

	path := v.ConfigFileUsed()
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}

		path = filepath.Join(dir, "config.yml")
	}

	file := viper.New()
	file.SetConfigFile(path)
	file.SetConfigType("yml")

	if err := file.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read config: %w", err)
	}

	file.Set(key, value)

	if err := os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := file.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	v.Set(key, value)

	return os.Chmod(path, constants.ConfigFilePerm)
}
