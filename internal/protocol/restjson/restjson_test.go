package restjson_test

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/fivetwenty-io/svc-client/internal/protocol/protocoltest"
	"github.com/fivetwenty-io/svc-client/internal/protocol/restjson"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var meta = &svc.ServiceMetadata{ServiceID: "Widgets", Protocol: svc.ProtocolRESTJSON}

func str() *svc.Shape { return &svc.Shape{Type: svc.TypeString} }

func boundShape() *svc.Shape {
	shape := protocoltest.AllTypesShape()
	shape.Members = append(shape.Members,
		&svc.Member{Name: "Bucket", Shape: str(), Location: svc.LocationURI, LocationName: "Bucket"},
		&svc.Member{Name: "Key", Shape: str(), Location: svc.LocationURI, LocationName: "Key"},
		&svc.Member{Name: "MaxItems", Shape: &svc.Shape{Type: svc.TypeInteger}, Location: svc.LocationQuery, LocationName: "max-items"},
		&svc.Member{Name: "Since", Shape: &svc.Shape{Type: svc.TypeTimestamp}, Location: svc.LocationQuery, LocationName: "since"},
		&svc.Member{Name: "Ids", Shape: &svc.Shape{Type: svc.TypeList, Member: &svc.Member{Shape: str()}}, Location: svc.LocationQuery, LocationName: "id"},
		&svc.Member{Name: "Trace", Shape: str(), Location: svc.LocationHeader, LocationName: "X-Trace"},
		&svc.Member{Name: "Modified", Shape: &svc.Shape{Type: svc.TypeTimestamp}, Location: svc.LocationHeader, LocationName: "Last-Modified"},
		&svc.Member{Name: "Meta", Shape: &svc.Shape{Type: svc.TypeMap, Key: &svc.Member{Shape: str()}, Value: &svc.Member{Shape: str()}}, Location: svc.LocationHeaders, LocationName: "X-Meta-"},
	)

	return shape
}

func TestCodec_SerializeLocations(t *testing.T) {
	t.Parallel()

	op := &svc.Operation{
		Name:  "PutObject",
		HTTP:  svc.HTTPBinding{Method: http.MethodPut, RequestURI: "/{Bucket}/{Key+}?acl"},
		Input: boundShape(),
	}

	params := map[string]any{
		"Bucket":   "my bucket",
		"Key":      "photos/2024/cat 1.jpg",
		"MaxItems": 10,
		"Since":    protocoltest.Created,
		"Ids":      []string{"a", "b"},
		"Trace":    "abc",
		"Modified": protocoltest.Created,
		"Meta":     map[string]string{"Color": "blue"},
		"Name":     "body-member",
	}

	req := svc.NewHTTPRequest(http.MethodGet)
	require.NoError(t, restjson.New().Serialize(op, meta, params, req))

	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/my%20bucket/photos/2024/cat%201.jpg", req.Path)
	assert.Equal(t, []string{""}, req.Query["acl"])
	assert.Equal(t, "10", req.Query.Get("max-items"))
	assert.Equal(t, "2024-03-09T16:30:05Z", req.Query.Get("since"))
	assert.Equal(t, []string{"a", "b"}, req.Query["id"])
	assert.Equal(t, "abc", req.Header.Get("X-Trace"))
	assert.Equal(t, "Sat, 09 Mar 2024 16:30:05 GMT", req.Header.Get("Last-Modified"))
	assert.Equal(t, "blue", req.Header.Get("X-Meta-Color"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"Name":"body-member"}`, req.Body.String())
}

func TestCodec_SerializeMissingURIParam(t *testing.T) {
	t.Parallel()

	op := &svc.Operation{
		Name:  "GetObject",
		HTTP:  svc.HTTPBinding{Method: http.MethodGet, RequestURI: "/{Bucket}/{Key+}"},
		Input: boundShape(),
	}

	err := restjson.New().Serialize(op, meta, map[string]any{"Bucket": "b"}, svc.NewHTTPRequest(http.MethodGet))

	var validationErr *svc.ClientValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := restjson.New()
	shape := boundShape()
	shape.Members = append(shape.Members,
		&svc.Member{Name: "Status", Shape: &svc.Shape{Type: svc.TypeInteger}, Location: svc.LocationStatusCode})

	op := &svc.Operation{
		Name:   "PutWidget",
		HTTP:   svc.HTTPBinding{Method: http.MethodPost, RequestURI: "/widgets/{Bucket}"},
		Input:  shape,
		Output: shape,
	}

	params := protocoltest.AllTypesParams()
	params["Bucket"] = "b"
	params["Trace"] = "trace-1"
	params["Modified"] = protocoltest.Created
	params["Meta"] = map[string]any{"Color": "blue", "Owner": "ops"}

	req := svc.NewHTTPRequest(http.MethodPost)
	require.NoError(t, codec.Serialize(op, meta, params, req))

	out, err := codec.Deserialize(op, meta, &svc.HTTPResponse{
		StatusCode: http.StatusCreated,
		Header:     req.Header,
		Body:       req.BodyBytes(),
	})
	require.NoError(t, err)

	want := protocoltest.AllTypesParams()
	want["Trace"] = "trace-1"
	want["Modified"] = protocoltest.Created
	want["Meta"] = map[string]any{"Color": "blue", "Owner": "ops"}
	want["Status"] = int64(http.StatusCreated)

	assert.Equal(t, want, out)
}

func TestCodec_BlobPayload(t *testing.T) {
	t.Parallel()

	shape := &svc.Shape{
		Type:    svc.TypeStructure,
		Payload: "Body",
		Members: []*svc.Member{
			{Name: "Key", Shape: str(), Location: svc.LocationURI, LocationName: "Key"},
			{Name: "Body", Shape: &svc.Shape{Type: svc.TypeBlob, Streaming: true}},
			{Name: "ContentType", Shape: str(), Location: svc.LocationHeader, LocationName: "Content-Type"},
		},
	}
	op := &svc.Operation{
		Name:   "Upload",
		HTTP:   svc.HTTPBinding{Method: http.MethodPut, RequestURI: "/{Key}"},
		Input:  shape,
		Output: shape,
	}

	t.Run("buffered", func(t *testing.T) {
		t.Parallel()

		req := svc.NewHTTPRequest(http.MethodPut)
		require.NoError(t, restjson.New().Serialize(op, meta, map[string]any{
			"Key":         "k",
			"Body":        []byte("raw bytes"),
			"ContentType": "text/plain",
		}, req))

		assert.Equal(t, "raw bytes", req.Body.String())
		assert.Equal(t, "text/plain", req.Header.Get("Content-Type"))

		out, err := restjson.New().Deserialize(op, meta, &svc.HTTPResponse{
			StatusCode: http.StatusOK,
			Header:     req.Header,
			Body:       req.BodyBytes(),
		})
		require.NoError(t, err)
		assert.Equal(t, []byte("raw bytes"), out["Body"])
		assert.Equal(t, "text/plain", out["ContentType"])
	})

	t.Run("streamed", func(t *testing.T) {
		t.Parallel()

		req := svc.NewHTTPRequest(http.MethodPut)
		require.NoError(t, restjson.New().Serialize(op, meta, map[string]any{
			"Key":  "k",
			"Body": bytes.NewReader([]byte("streamed payload")),
		}, req))

		assert.True(t, req.Streaming())
		assert.Equal(t, int64(16), req.StreamLength)
		assert.Zero(t, req.Body.Len())
	})
}

func TestCodec_StructurePayloadValues(t *testing.T) {
	t.Parallel()

	shape := &svc.Shape{
		Type:    svc.TypeStructure,
		Payload: "Policy",
		Members: []*svc.Member{{Name: "Policy", Shape: &svc.Shape{
			Type:    svc.TypeStructure,
			Members: []*svc.Member{{Name: "Version", Shape: str()}},
		}}},
	}
	op := &svc.Operation{Name: "PutPolicy", HTTP: svc.HTTPBinding{Method: http.MethodPut, RequestURI: "/policy"}, Input: shape}

	tests := []struct {
		name     string
		params   map[string]any
		wantBody string
		wantErr  bool
	}{
		{name: "structure", params: map[string]any{"Policy": map[string]any{"Version": "1"}}, wantBody: `{"Version":"1"}`},
		{name: "absent", params: map[string]any{}},
		{name: "scalar", params: map[string]any{"Policy": "v1"}, wantErr: true},
		{name: "list", params: map[string]any{"Policy": []any{"v1"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := svc.NewHTTPRequest(http.MethodPut)
			err := restjson.New().Serialize(op, meta, tt.params, req)

			if tt.wantErr {
				var validationErr *svc.ClientValidationError
				require.ErrorAs(t, err, &validationErr)

				return
			}

			require.NoError(t, err)

			if tt.wantBody == "" {
				assert.Zero(t, req.Body.Len())

				return
			}

			assert.JSONEq(t, tt.wantBody, req.Body.String())
		})
	}
}

func TestCodec_DeserializeError(t *testing.T) {
	t.Parallel()

	op := &svc.Operation{Name: "GetWidget", Output: protocoltest.AllTypesShape(), Errors: []string{"NotFoundException"}}

	_, err := restjson.New().Deserialize(op, meta, &svc.HTTPResponse{
		StatusCode: http.StatusNotFound,
		Header:     http.Header{"X-Amzn-Errortype": []string{"NotFoundException"}},
		Body:       []byte(`{"message":"widget missing"}`),
	})

	var svcErr *svc.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "NotFoundException", svcErr.Code)
	assert.Equal(t, "widget missing", svcErr.Message)
	assert.True(t, svcErr.Declared)
	assert.Equal(t, svc.ClientError, svcErr.Classification)
}

func TestCodec_TimestampFormatsPerField(t *testing.T) {
	t.Parallel()

	shape := &svc.Shape{
		Type: svc.TypeStructure,
		Members: []*svc.Member{
			{Name: "Epoch", Shape: &svc.Shape{Type: svc.TypeTimestamp}},
			{Name: "ISO", Shape: &svc.Shape{Type: svc.TypeTimestamp}, TimestampFormat: svc.TimestampISO8601},
			{Name: "HTTPDate", Shape: &svc.Shape{Type: svc.TypeTimestamp}, TimestampFormat: svc.TimestampRFC822},
		},
	}
	op := &svc.Operation{Name: "Times", HTTP: svc.HTTPBinding{Method: http.MethodPost, RequestURI: "/"}, Input: shape, Output: shape}
	ts := time.Date(2024, time.January, 2, 3, 4, 5, 250*int(time.Millisecond), time.UTC)

	req := svc.NewHTTPRequest(http.MethodPost)
	require.NoError(t, restjson.New().Serialize(op, meta, map[string]any{"Epoch": ts, "ISO": ts, "HTTPDate": ts.Truncate(time.Second)}, req))

	assert.JSONEq(t,
		`{"Epoch":1704164645.25,"ISO":"2024-01-02T03:04:05.25Z","HTTPDate":"Tue, 02 Jan 2024 03:04:05 GMT"}`,
		req.Body.String())
}
