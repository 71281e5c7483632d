package signer

import (
	"net/http"
	"sort"
	"strings"

	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Query parameters that are part of the S3 canonical resource.
var subResources = map[string]bool{
	"acl": true, "cors": true, "delete": true, "lifecycle": true, "location": true,
	"logging": true, "notification": true, "partNumber": true, "policy": true,
	"requestPayment": true, "restore": true, "tagging": true, "torrent": true,
	"uploadId": true, "uploads": true, "versionId": true, "versioning": true,
	"versions": true, "website": true,
	"response-cache-control": true, "response-content-disposition": true,
	"response-content-encoding": true, "response-content-language": true,
	"response-content-type": true, "response-expires": true,
}

// S3 signs requests with the legacy storage scheme: an HMAC-SHA1 over the
// method, content headers, x-amz headers and the canonical resource.
type S3 struct{}

// Sign implements svc.Signer.
func (s *S3) Sign(req *svc.HTTPRequest, creds svc.Credentials, sc svc.SigningContext) error {
	if err := creds.Validate(sc.Time); err != nil {
		return err
	}

	if creds.SessionToken != "" {
		req.Header.Set("X-Amz-Security-Token", creds.SessionToken)
	} else {
		req.Header.Del("X-Amz-Security-Token")
	}

	req.Header.Del("Authorization")
	req.Header.Set("Date", sc.Time.UTC().Format(http.TimeFormat))

	req.Header.Set("Authorization", "AWS "+creds.AccessKeyID+":"+signSHA1(creds.SecretAccessKey, StringToSignS3(req)))

	return nil
}

// StringToSignS3 returns the string the S3 signer signs.
func StringToSignS3(req *svc.HTTPRequest) string {
	date := req.Header.Get("Date")
	if req.Header.Get("X-Amz-Date") != "" {
		date = ""
	}

	parts := []string{
		req.Method,
		req.Header.Get("Content-MD5"),
		req.Header.Get("Content-Type"),
		date,
	}

	return strings.Join(parts, "\n") + "\n" + canonicalAmzHeaders(req.Header) + canonicalResource(req)
}

func canonicalAmzHeaders(header http.Header) string {
	values := map[string]string{}

	for k, v := range header {
		name := strings.ToLower(k)
		if strings.HasPrefix(name, "x-amz-") {
			values[name] = strings.Join(v, ",")
		}
	}

	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}

	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name + ":" + strings.TrimSpace(values[name]) + "\n")
	}

	return b.String()
}

func canonicalResource(req *svc.HTTPRequest) string {
	path := req.URL().EscapedPath()
	if path == "" {
		path = "/"
	}

	keys := make([]string, 0)

	for k := range req.Query {
		if subResources[k] {
			keys = append(keys, k)
		}
	}

	if len(keys) == 0 {
		return path
	}

	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))

	for _, k := range keys {
		if v := req.Query.Get(k); v != "" {
			pairs = append(pairs, k+"="+v)
		} else {
			pairs = append(pairs, k)
		}
	}

	return path + "?" + strings.Join(pairs, "&")
}
