// Package svcclient is the entry point for building service clients.
//
// A client is assembled from an API description and the standard plugin
// set: parameter validation, endpoint resolution, protocol build/parse,
// user agent and invocation id headers, credentials, signing, retries and
// transmission over the default HTTP transport.
//
// API descriptions are loaded with package manifest and optional plugins
// (logging, metrics, tracing, rate limiting, circuit breaking) come from
// package plugins, both under github.com/fivetwenty-io/svc-client/pkg.
//
// Quick start
//
//	api, err := manifest.Load("widgets.yml")
//	if err != nil { log.Fatal(err) }
//
//	client, err := svcclient.New(api,
//	  svcclient.WithRegion("us-east-1"),
//	  svcclient.WithStaticCredentials("AKID", "SECRET", ""),
//	)
//	if err != nil { log.Fatal(err) }
//
//	out, err := client.Call(ctx, "PutWidget", map[string]any{"Name": "bolt"})
//
// Service-specific retry rules are layered over the defaults with
// WithClassifier:
//
//	client, err := svcclient.New(api,
//	  svcclient.WithClassifier(svc.CodeClassifier{Codes: map[string]svc.ErrorClassification{
//	    "ConditionalCheckFailed": svc.RetryableTransient,
//	  }}),
//	  svcclient.WithPlugins(plugins.NewRateLimiter().Plugin()),
//	)
//
// A Registry keeps one client type per service so that plugins can be
// added to or removed from every registered service at once:
//
//	reg := svcclient.NewRegistry()
//	_, _ = reg.Register(api)
//	_ = reg.AddPlugin(plugins.Logging())
//	client, err := reg.New("Widgets", svcclient.WithRegion("eu-west-1"))
package svcclient
