package svc

import (
	"fmt"
	"maps"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Recognized option keys.
const (
	OptRegion            = "region"
	OptMaxRetries        = "max_retries"
	OptRetryBaseDelay    = "retry_base_delay"
	OptRetryMaxDelay     = "retry_max_delay"
	OptThrottleBaseDelay = "throttle_base_delay"
	OptSignatureVersion  = "signature_version"
	OptEndpoint          = "endpoint"
	OptHTTPTimeout       = "http_timeout"
	OptUserAgent         = "user_agent"
	OptRateLimit         = "rate_limit"
	OptRateBurst         = "rate_burst"
	OptValidateParams    = "validate_params"
	OptLogLevel          = "log_level"
)

// OptionKind is the value type an option accepts.
type OptionKind int

const (
	KindString OptionKind = iota
	KindInt
	KindFloat
	KindBool
	KindDuration
)

// String returns the kind name.
func (k OptionKind) String() string {
	switch k {
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindBool:
		return "boolean"
	case KindDuration:
		return "duration"
	default:
		return "string"
	}
}

// KnownOptions maps every recognized key to its kind.
var KnownOptions = map[string]OptionKind{
	OptRegion:            KindString,
	OptMaxRetries:        KindInt,
	OptRetryBaseDelay:    KindDuration,
	OptRetryMaxDelay:     KindDuration,
	OptThrottleBaseDelay: KindDuration,
	OptSignatureVersion:  KindString,
	OptEndpoint:          KindString,
	OptHTTPTimeout:       KindDuration,
	OptUserAgent:         KindString,
	OptRateLimit:         KindFloat,
	OptRateBurst:         KindInt,
	OptValidateParams:    KindBool,
	OptLogLevel:          KindString,
}

// OptionKeys returns the recognized keys in sorted order.
func OptionKeys() []string {
	keys := make([]string, 0, len(KnownOptions))
	for k := range KnownOptions {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// NormalizeOption validates value for key and converts it to the canonical
// Go type of the option's kind.
func NormalizeOption(key string, value any) (any, error) {
	kind, ok := KnownOptions[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOption, key)
	}

	normalized, ok := convertOption(kind, value)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects %s, got %T", ErrInvalidOptionType, key, kind, value)
	}

	return normalized, nil
}

func convertOption(kind OptionKind, value any) (any, bool) {
	switch kind {
	case KindString:
		s, ok := value.(string)

		return s, ok
	case KindInt:
		return toInt(value)
	case KindFloat:
		return toFloat(value)
	case KindBool:
		switch v := value.(type) {
		case bool:
			return v, true
		case string:
			b, err := strconv.ParseBool(v)

			return b, err == nil
		}
	case KindDuration:
		switch v := value.(type) {
		case time.Duration:
			return v, true
		case string:
			d, err := time.ParseDuration(v)

			return d, err == nil
		}
	}

	return nil, false
}

func toInt(value any) (any, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v != math.Trunc(v) {
			return nil, false
		}

		return int(v), true
	case string:
		n, err := strconv.Atoi(v)

		return n, err == nil
	}

	return nil, false
}

func toFloat(value any) (any, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)

		return f, err == nil
	}

	return nil, false
}

// Options is a set of configuration values keyed by option name.
type Options map[string]any

// Validate normalizes every value in place.
func (o Options) Validate() error {
	for k, v := range o {
		normalized, err := NormalizeOption(k, v)
		if err != nil {
			return err
		}

		o[k] = normalized
	}

	return nil
}

// String returns a string option or "".
func (o Options) String(key string) string {
	s, _ := o[key].(string)

	return s
}

// Int returns an integer option or def.
func (o Options) Int(key string, def int) int {
	if v, ok := toInt(o[key]); ok {
		n, _ := v.(int)

		return n
	}

	return def
}

// Float returns a numeric option or def.
func (o Options) Float(key string, def float64) float64 {
	if v, ok := toFloat(o[key]); ok {
		f, _ := v.(float64)

		return f
	}

	return def
}

// Bool returns a boolean option or def.
func (o Options) Bool(key string, def bool) bool {
	if b, ok := o[key].(bool); ok {
		return b
	}

	return def
}

// Duration returns a duration option or def.
func (o Options) Duration(key string, def time.Duration) time.Duration {
	if d, ok := o[key].(time.Duration); ok {
		return d
	}

	return def
}

// MergeOptions layers option sets, later layers winning.
func MergeOptions(layers ...Options) Options {
	merged := Options{}
	for _, layer := range layers {
		maps.Copy(merged, layer)
	}

	return merged
}

// Store holds process-wide default options. It is passed explicitly to the
// clients that should see it.
type Store struct {
	mu     sync.RWMutex
	values Options
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{values: Options{}}
}

// Set validates and stores one option.
func (s *Store) Set(key string, value any) error {
	normalized, err := NormalizeOption(key, value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values == nil {
		s.values = Options{}
	}

	s.values[key] = normalized

	return nil
}

// Update stores every option in opts, or none of them if any is invalid.
func (s *Store) Update(opts Options) error {
	normalized := maps.Clone(opts)
	if err := normalized.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values == nil {
		s.values = Options{}
	}

	maps.Copy(s.values, normalized)

	return nil
}

// Get returns one option.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]

	return v, ok
}

// Delete removes one option.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
}

// Snapshot returns a copy of the stored options.
func (s *Store) Snapshot() Options {
	if s == nil {
		return Options{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.values)
}
