package signer

import (
	"net/http"
	"net/url"
	"sort"
	"strings"

	v4 "github.com/fivetwenty-io/svc-client/internal/signer/v4"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

const v2TimeFormat = "2006-01-02T15:04:05Z"

// V2 signs Query protocol requests by adding signature parameters to the
// form body of a POST, or to the query string when there is no form body.
type V2 struct{}

// Sign implements svc.Signer.
func (s *V2) Sign(req *svc.HTTPRequest, creds svc.Credentials, sc svc.SigningContext) error {
	if err := creds.Validate(sc.Time); err != nil {
		return err
	}

	inBody := req.Method == http.MethodPost && !req.Streaming() && req.Body.Len() > 0

	params := req.Query
	if params == nil {
		params = url.Values{}
	}

	if inBody {
		parsed, err := url.ParseQuery(req.Body.String())
		if err != nil {
			return &svc.CredentialsError{Err: err}
		}

		params = parsed
	}

	params.Del("Signature")
	params.Set("AWSAccessKeyId", creds.AccessKeyID)
	params.Set("SignatureVersion", "2")
	params.Set("SignatureMethod", "HmacSHA256")
	params.Set("Timestamp", sc.Time.UTC().Format(v2TimeFormat))

	if creds.SessionToken != "" {
		params.Set("SecurityToken", creds.SessionToken)
	} else {
		params.Del("SecurityToken")
	}

	path := req.URL().EscapedPath()
	if path == "" {
		path = "/"
	}

	canonical := canonicalParams(params)
	stringToSign := strings.Join([]string{req.Method, strings.ToLower(req.Host()), path, canonical}, "\n")
	signature := signSHA256(creds.SecretAccessKey, stringToSign)

	signed := canonical + "&Signature=" + v4.Escape(signature, true)

	if inBody {
		req.Body.Reset()
		req.Body.WriteString(signed)

		return nil
	}

	params.Set("Signature", signature)
	req.Query = params

	return nil
}

func canonicalParams(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))

	for _, k := range keys {
		for _, v := range params[k] {
			pairs = append(pairs, v4.Escape(k, true)+"="+v4.Escape(v, true))
		}
	}

	return strings.Join(pairs, "&")
}
