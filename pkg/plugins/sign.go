package plugins

import (
	"context"
	"errors"

	"github.com/fivetwenty-io/svc-client/internal/signer"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Credentials fetches credentials for each attempt from the client's
// provider. Anonymous services skip it.
func Credentials() svc.Plugin {
	return &svc.PluginSpec{
		PluginName: NameCredentials,
		Handlers: []svc.HandlerSpec{{
			Step:    svc.StepSign,
			Name:    HandlerCredentials,
			Handler: svc.HandlerFunc(retrieveCredentials),
			After:   []string{HandlerAttemptHeader},
		}},
	}
}

// Signature signs each attempt with the signer named by the
// signature_version option.
func Signature() svc.Plugin {
	return &svc.PluginSpec{
		PluginName: NameSignature,
		Handlers: []svc.HandlerSpec{{
			Step:     svc.StepSign,
			Name:     HandlerSign,
			Handler:  svc.HandlerFunc(signRequest),
			Position: svc.Back,
			After:    []string{HandlerCredentials},
		}},
	}
}

func signatureVersion(rc *svc.RequestContext) string {
	if v := rc.Options.String(svc.OptSignatureVersion); v != "" {
		return v
	}

	if rc.Service != nil {
		return rc.Service.SignatureVersion
	}

	return ""
}

func retrieveCredentials(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	if signatureVersion(rc) == signer.VersionNone {
		return next(ctx, rc)
	}

	if rc.CredentialsProvider == nil {
		return &svc.CredentialsError{Err: svc.ErrNoCredentials}
	}

	creds, err := rc.CredentialsProvider.Retrieve(ctx)
	if err != nil {
		credsErr := &svc.CredentialsError{}
		if errors.As(err, &credsErr) {
			return err
		}

		return &svc.CredentialsError{Err: err}
	}

	rc.Credentials = creds

	return next(ctx, rc)
}

func signRequest(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	s, err := signer.New(signatureVersion(rc))
	if err != nil {
		return &svc.ClientValidationError{Operation: rc.OperationName(), Err: err}
	}

	sc := svc.SigningContext{
		Region: rc.Options.String(svc.OptRegion),
		Time:   rc.Now(),
	}

	if rc.Service != nil {
		sc.ServiceName = rc.Service.SigningService()
	}

	if err := s.Sign(rc.HTTPRequest, rc.Credentials, sc); err != nil {
		return err
	}

	return next(ctx, rc)
}
