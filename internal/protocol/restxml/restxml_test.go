package restxml_test

import (
	"net/http"
	"testing"

	"github.com/fivetwenty-io/svc-client/internal/protocol/protocoltest"
	"github.com/fivetwenty-io/svc-client/internal/protocol/restxml"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var meta = &svc.ServiceMetadata{
	ServiceID:    "Storage",
	Protocol:     svc.ProtocolRESTXML,
	XMLNamespace: "http://storage.example.com/doc/2024-01-01/",
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := restxml.New()
	shape := protocoltest.AllTypesShape()
	shape.Members = append(shape.Members,
		&svc.Member{Name: "Bucket", Shape: &svc.Shape{Type: svc.TypeString}, Location: svc.LocationURI, LocationName: "Bucket"},
		&svc.Member{Name: "Version", Shape: &svc.Shape{Type: svc.TypeString}, XMLAttribute: true, LocationName: "version"},
	)

	op := &svc.Operation{
		Name:   "PutConfig",
		HTTP:   svc.HTTPBinding{Method: http.MethodPut, RequestURI: "/{Bucket}?config"},
		Input:  shape,
		Output: shape,
	}

	params := protocoltest.AllTypesParams()
	params["Bucket"] = "b"
	params["Version"] = "2"

	req := svc.NewHTTPRequest(http.MethodPut)
	require.NoError(t, codec.Serialize(op, meta, params, req))

	body := req.Body.String()
	assert.Contains(t, body, `<PutConfigRequest xmlns="http://storage.example.com/doc/2024-01-01/" version="2">`)
	assert.Contains(t, body, `<Tags><member>red</member><member>green</member></Tags>`)
	assert.Contains(t, body, `<Flat>1</Flat><Flat>2</Flat><Flat>3</Flat>`)
	assert.Contains(t, body, `<Attributes><entry><key>color</key><value>blue</value></entry>`)
	assert.Contains(t, body, `<Name>widget &amp; co</Name>`)
	assert.Equal(t, "/b", req.Path)
	assert.Equal(t, "application/xml", req.Header.Get("Content-Type"))

	out, err := codec.Deserialize(op, meta, &svc.HTTPResponse{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       req.BodyBytes(),
	})
	require.NoError(t, err)

	want := protocoltest.AllTypesParams()
	want["Version"] = "2"
	assert.Equal(t, want, out)
}

func TestCodec_StructurePayload(t *testing.T) {
	t.Parallel()

	config := &svc.Shape{
		Type: svc.TypeStructure,
		Members: []*svc.Member{
			{Name: "Enabled", Shape: &svc.Shape{Type: svc.TypeBoolean}},
			{Name: "Rules", Shape: &svc.Shape{Type: svc.TypeList, Flattened: true, Member: &svc.Member{Shape: &svc.Shape{Type: svc.TypeString}}}, LocationName: "Rule"},
		},
	}
	shape := &svc.Shape{
		Type:    svc.TypeStructure,
		Payload: "Config",
		Members: []*svc.Member{
			{Name: "Config", Shape: config, LocationName: "LifecycleConfiguration"},
			{Name: "RequestCharged", Shape: &svc.Shape{Type: svc.TypeString}, Location: svc.LocationHeader, LocationName: "X-Request-Charged"},
		},
	}
	op := &svc.Operation{Name: "PutLifecycle", HTTP: svc.HTTPBinding{Method: http.MethodPut, RequestURI: "/?lifecycle"}, Input: shape, Output: shape}

	params := map[string]any{
		"Config":         map[string]any{"Enabled": true, "Rules": []any{"r1", "r2"}},
		"RequestCharged": "requester",
	}

	req := svc.NewHTTPRequest(http.MethodPut)
	require.NoError(t, restxml.New().Serialize(op, meta, params, req))

	assert.Equal(t,
		`<LifecycleConfiguration xmlns="http://storage.example.com/doc/2024-01-01/"><Enabled>true</Enabled><Rule>r1</Rule><Rule>r2</Rule></LifecycleConfiguration>`,
		req.Body.String())

	out, err := restxml.New().Deserialize(op, meta, &svc.HTTPResponse{
		StatusCode: http.StatusOK,
		Header:     req.Header,
		Body:       req.BodyBytes(),
	})
	require.NoError(t, err)
	assert.Equal(t, params, out)
}

func TestCodec_StructurePayloadValues(t *testing.T) {
	t.Parallel()

	shape := &svc.Shape{
		Type:    svc.TypeStructure,
		Payload: "Config",
		Members: []*svc.Member{{Name: "Config", Shape: &svc.Shape{
			Type:    svc.TypeStructure,
			Members: []*svc.Member{{Name: "Enabled", Shape: &svc.Shape{Type: svc.TypeBoolean}}},
		}}},
	}
	op := &svc.Operation{Name: "PutConfig", HTTP: svc.HTTPBinding{Method: http.MethodPut, RequestURI: "/"}, Input: shape}

	t.Run("absent payload sends no body", func(t *testing.T) {
		t.Parallel()

		req := svc.NewHTTPRequest(http.MethodPut)
		require.NoError(t, restxml.New().Serialize(op, meta, map[string]any{}, req))
		assert.Zero(t, req.Body.Len())
	})

	t.Run("non-structure value is rejected", func(t *testing.T) {
		t.Parallel()

		req := svc.NewHTTPRequest(http.MethodPut)
		err := restxml.New().Serialize(op, meta, map[string]any{"Config": "enabled"}, req)

		var validationErr *svc.ClientValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "PutConfig", validationErr.Operation)
		assert.Zero(t, req.Body.Len())
	})
}

func TestCodec_DeserializeErrors(t *testing.T) {
	t.Parallel()

	op := &svc.Operation{Name: "GetObject", Errors: []string{"NoSuchKey"}}

	tests := []struct {
		name      string
		status    int
		body      string
		code      string
		message   string
		requestID string
	}{
		{
			name:      "bare error",
			status:    404,
			body:      `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>gone</Message><RequestId>r-1</RequestId></Error>`,
			code:      "NoSuchKey",
			message:   "gone",
			requestID: "r-1",
		},
		{
			name:      "wrapped error",
			status:    400,
			body:      `<ErrorResponse><Error><Type>Sender</Type><Code>InvalidParameterValue</Code><Message>bad</Message></Error><RequestId>r-2</RequestId></ErrorResponse>`,
			code:      "InvalidParameterValue",
			message:   "bad",
			requestID: "r-2",
		},
		{
			name:      "empty body",
			status:    403,
			code:      "Forbidden",
			requestID: "hdr-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := restxml.New().Deserialize(op, meta, &svc.HTTPResponse{
				StatusCode: tt.status,
				Header:     http.Header{"X-Amz-Request-Id": []string{"hdr-1"}},
				Body:       []byte(tt.body),
			})

			var svcErr *svc.ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, tt.code, svcErr.Code)
			assert.Equal(t, tt.message, svcErr.Message)
			assert.Equal(t, tt.requestID, svcErr.RequestID)
			assert.Equal(t, tt.code == "NoSuchKey", svcErr.Declared)
		})
	}
}

func TestCodec_MalformedBody(t *testing.T) {
	t.Parallel()

	op := &svc.Operation{Name: "GetConfig", Output: protocoltest.AllTypesShape()}

	_, err := restxml.New().Deserialize(op, meta, &svc.HTTPResponse{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       []byte(`<GetConfigResult><Name>unterminated`),
	})

	var parseErr *svc.ProtocolParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "rest-xml", parseErr.Protocol)
}
