package jsonrpc_test

import (
	"net/http"
	"testing"

	"github.com/fivetwenty-io/svc-client/internal/protocol/jsonrpc"
	"github.com/fivetwenty-io/svc-client/internal/protocol/protocoltest"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var meta = &svc.ServiceMetadata{
	ServiceID:    "Widgets",
	JSONVersion:  "1.1",
	TargetPrefix: "Widgets_20240101",
}

func TestCodec_Serialize(t *testing.T) {
	t.Parallel()

	op := protocoltest.Operation("PutWidget", protocoltest.AllTypesShape())
	req := svc.NewHTTPRequest(http.MethodGet)

	require.NoError(t, jsonrpc.New().Serialize(op, meta, map[string]any{"Name": "w", "Count": 3}, req))

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/", req.Path)
	assert.Equal(t, "application/x-amz-json-1.1", req.Header.Get("Content-Type"))
	assert.Equal(t, "Widgets_20240101.PutWidget", req.Header.Get("X-Amz-Target"))
	assert.JSONEq(t, `{"Name":"w","Count":3}`, req.Body.String())
}

func TestCodec_SerializeEmptyInput(t *testing.T) {
	t.Parallel()

	op := &svc.Operation{Name: "ListWidgets"}
	req := svc.NewHTTPRequest(http.MethodPost)

	require.NoError(t, jsonrpc.New().Serialize(op, meta, nil, req))
	assert.Equal(t, "{}", req.Body.String())
}

func TestCodec_SerializeRejectsWrongType(t *testing.T) {
	t.Parallel()

	op := protocoltest.Operation("PutWidget", protocoltest.AllTypesShape())
	req := svc.NewHTTPRequest(http.MethodPost)

	err := jsonrpc.New().Serialize(op, meta, map[string]any{"Count": "three"}, req)

	var validationErr *svc.ClientValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := jsonrpc.New()
	op := protocoltest.Operation("PutWidget", protocoltest.AllTypesShape())
	params := protocoltest.AllTypesParams()

	req := svc.NewHTTPRequest(http.MethodPost)
	require.NoError(t, codec.Serialize(op, meta, params, req))

	out, err := codec.Deserialize(op, meta, &svc.HTTPResponse{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       req.BodyBytes(),
	})
	require.NoError(t, err)
	assert.Equal(t, params, out)
}

func TestCodec_DeserializeErrors(t *testing.T) {
	t.Parallel()

	op := protocoltest.Operation("GetWidget", protocoltest.AllTypesShape())

	tests := []struct {
		name      string
		status    int
		header    http.Header
		body      string
		code      string
		message   string
		declared  bool
		class     svc.ErrorClassification
		parseFail bool
	}{
		{
			name:     "namespaced type",
			status:   400,
			body:     `{"__type":"com.example#ResourceNotFoundException","message":"no such widget"}`,
			code:     "ResourceNotFoundException",
			message:  "no such widget",
			declared: true,
			class:    svc.ClientError,
		},
		{
			name:    "throttling",
			status:  400,
			body:    `{"__type":"ThrottlingException","Message":"slow down"}`,
			code:    "ThrottlingException",
			message: "slow down",
			class:   svc.RetryableThrottling,
		},
		{
			name:   "header code",
			status: 500,
			header: http.Header{"X-Amzn-Errortype": []string{"InternalFailure:http://internal.example.com/"}},
			body:   `{}`,
			code:   "InternalFailure",
			class:  svc.RetryableTransient,
		},
		{
			name:   "empty body",
			status: 503,
			code:   "ServiceUnavailable",
			class:  svc.RetryableTransient,
		},
		{
			name:      "malformed body",
			status:    400,
			body:      `{"__type":`,
			parseFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			header := tt.header
			if header == nil {
				header = http.Header{}
			}

			header.Set("X-Amzn-RequestId", "req-123")

			_, err := jsonrpc.New().Deserialize(op, meta, &svc.HTTPResponse{
				StatusCode: tt.status,
				Header:     header,
				Body:       []byte(tt.body),
			})
			require.Error(t, err)

			if tt.parseFail {
				var parseErr *svc.ProtocolParseError
				require.ErrorAs(t, err, &parseErr)

				return
			}

			var svcErr *svc.ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, tt.code, svcErr.Code)
			assert.Equal(t, tt.message, svcErr.Message)
			assert.Equal(t, tt.status, svcErr.StatusCode)
			assert.Equal(t, "req-123", svcErr.RequestID)
			assert.Equal(t, tt.declared, svcErr.Declared)
			assert.Equal(t, tt.class, svcErr.Classification)
		})
	}
}

func TestCodec_DeserializeMalformedSuccess(t *testing.T) {
	t.Parallel()

	op := protocoltest.Operation("GetWidget", protocoltest.AllTypesShape())

	_, err := jsonrpc.New().Deserialize(op, meta, &svc.HTTPResponse{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       []byte(`{"Count": "not a number"}`),
	})

	var parseErr *svc.ProtocolParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "json", parseErr.Protocol)
}
