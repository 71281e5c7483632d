// Package protocol holds the value conversions shared by the wire codecs.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Static errors for err113 compliance.
var (
	ErrUnsupportedValue = errors.New("unsupported value for shape")
	ErrMissingURIParam  = errors.New("missing required uri parameter")
	ErrBadTimestamp     = errors.New("unrecognized timestamp")
)

const (
	iso8601Format     = "2006-01-02T15:04:05Z"
	iso8601FracFormat = "2006-01-02T15:04:05.999Z"
)

// FormatTimestamp renders t in format.
func FormatTimestamp(t time.Time, format svc.TimestampFormat) string {
	t = t.UTC()

	switch format {
	case svc.TimestampRFC822:
		return t.Format(http.TimeFormat)
	case svc.TimestampUnix:
		if ms := t.Nanosecond() / int(time.Millisecond); ms != 0 {
			return strings.TrimRight(fmt.Sprintf("%d.%03d", t.Unix(), ms), "0")
		}

		return strconv.FormatInt(t.Unix(), 10)
	default:
		if t.Nanosecond() >= int(time.Millisecond) {
			return t.Format(iso8601FracFormat)
		}

		return t.Format(iso8601Format)
	}
}

// ParseTimestamp reads a timestamp in format, falling back to the other
// formats since services are not always consistent.
func ParseTimestamp(s string, format svc.TimestampFormat) (time.Time, error) {
	s = strings.TrimSpace(s)

	parsers := []func(string) (time.Time, error){parseISO8601, http.ParseTime, parseUnix}

	switch format {
	case svc.TimestampRFC822:
		parsers[0], parsers[1] = parsers[1], parsers[0]
	case svc.TimestampUnix:
		parsers[0], parsers[2] = parsers[2], parsers[0]
	}

	for _, parse := range parsers {
		if t, err := parse(s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
}

func parseISO8601(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseUnix(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, err
	}

	return UnixTime(f), nil
}

// UnixTime converts epoch seconds with a millisecond fraction to a time.
func UnixTime(f float64) time.Time {
	sec, frac := math.Modf(f)

	return time.Unix(int64(sec), int64(math.Round(frac*1000))*int64(time.Millisecond)).UTC()
}

// ToInt64 converts any Go integer-like value.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}

		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}

		return int64(n), true
	case json.Number:
		i, err := n.Int64()

		return i, err == nil
	}

	return 0, false
}

// ToFloat64 converts any Go number.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	}

	if i, ok := ToInt64(v); ok {
		return float64(i), true
	}

	return 0, false
}

// ToBytes accepts []byte or string.
func ToBytes(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	}

	return nil, false
}

// ToTime accepts time.Time, *time.Time or an RFC 3339 string.
func ToTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}

		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)

		return parsed, err == nil
	}

	return time.Time{}, false
}

// ToList accepts any slice other than []byte.
func ToList(v any) ([]any, bool) {
	if l, ok := v.([]any); ok {
		return l, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}

	return out, true
}

// ToMap accepts any map keyed by string.
func ToMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	out := make(map[string]any, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}

	return out, true
}

// SortedKeys returns map keys in sorted order so encodings are deterministic.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// FormatScalar renders a scalar for a query string, header, uri or form.
func FormatScalar(shape *svc.Shape, v any, format svc.TimestampFormat) (string, error) {
	typ := svc.TypeString
	if shape != nil {
		typ = shape.Type
	}

	switch typ {
	case svc.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case svc.TypeInteger, svc.TypeLong:
		if i, ok := ToInt64(v); ok {
			return strconv.FormatInt(i, 10), nil
		}
	case svc.TypeFloat, svc.TypeDouble:
		if f, ok := ToFloat64(v); ok {
			return FormatFloat(f), nil
		}
	case svc.TypeBoolean:
		if b, ok := v.(bool); ok {
			return strconv.FormatBool(b), nil
		}
	case svc.TypeTimestamp:
		if t, ok := ToTime(v); ok {
			return FormatTimestamp(t, format), nil
		}
	case svc.TypeBlob:
		if b, ok := ToBytes(v); ok {
			return base64.StdEncoding.EncodeToString(b), nil
		}
	}

	return "", fmt.Errorf("%w: %s got %T", ErrUnsupportedValue, typ, v)
}

// FormatFloat renders a float the way services expect, including the
// non-finite spellings.
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ParseScalar reads a scalar from its text form.
func ParseScalar(shape *svc.Shape, s string, format svc.TimestampFormat) (any, error) {
	typ := svc.TypeString
	if shape != nil {
		typ = shape.Type
	}

	switch typ {
	case svc.TypeInteger, svc.TypeLong:
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	case svc.TypeFloat, svc.TypeDouble:
		switch s {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}

		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	case svc.TypeBoolean:
		return strconv.ParseBool(strings.TrimSpace(s))
	case svc.TypeTimestamp:
		return ParseTimestamp(s, format)
	case svc.TypeBlob:
		return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	default:
		return s, nil
	}
}

// StatusCodeName derives an error code from an HTTP status, for error
// responses with an empty body.
func StatusCodeName(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "HTTP" + strconv.Itoa(status)
	}

	return strings.NewReplacer(" ", "", "-", "", "'", "").Replace(text)
}

// NewServiceError builds a service error with its default classification.
func NewServiceError(op *svc.Operation, code, message string, status int, requestID string) *svc.ServiceError {
	declared := op != nil && op.DeclaresError(code)

	return &svc.ServiceError{
		Code:           code,
		Message:        message,
		StatusCode:     status,
		RequestID:      requestID,
		Declared:       declared,
		Classification: svc.ClassifyServiceError(code, status),
	}
}

// ParseError wraps a decode failure.
func ParseError(protocol string, status int, err error) error {
	return &svc.ProtocolParseError{Protocol: protocol, StatusCode: status, Err: err}
}

// ValidationError wraps a serialization failure caused by a bad parameter.
func ValidationError(op *svc.Operation, err error) error {
	name := ""
	if op != nil {
		name = op.Name
	}

	return &svc.ClientValidationError{Operation: name, Err: err}
}

// Success reports whether status is a 2xx code.
func Success(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

// SanitizeErrorCode strips namespace prefixes and URI suffixes from error
// codes such as "aws.protocoltests#FooError:http://internal".
func SanitizeErrorCode(code string) string {
	if i := strings.Index(code, ":"); i >= 0 {
		code = code[:i]
	}

	if i := strings.LastIndex(code, "#"); i >= 0 {
		code = code[i+1:]
	}

	return strings.TrimSpace(code)
}
