package signer

import (
	"fmt"
	"net/http"

	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// V3 signs the Date header with the AWS3-HTTPS scheme.
type V3 struct{}

// Sign implements svc.Signer.
func (s *V3) Sign(req *svc.HTTPRequest, creds svc.Credentials, sc svc.SigningContext) error {
	if err := creds.Validate(sc.Time); err != nil {
		return err
	}

	date := sc.Time.UTC().Format(http.TimeFormat)
	req.Header.Set("Date", date)

	if creds.SessionToken != "" {
		req.Header.Set("X-Amz-Security-Token", creds.SessionToken)
	} else {
		req.Header.Del("X-Amz-Security-Token")
	}

	req.Header.Set("X-Amzn-Authorization", fmt.Sprintf(
		"AWS3-HTTPS AWSAccessKeyId=%s,Algorithm=HmacSHA256,Signature=%s",
		creds.AccessKeyID, signSHA256(creds.SecretAccessKey, date)))

	return nil
}
