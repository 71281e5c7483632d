// Package svc provides the request pipeline shared by every service client.
//
// # Overview
//
// A ClientType binds an API description to an ordered set of plugins. Each
// plugin contributes named handlers to the pipeline steps (validate, build,
// retry, sign, send, parse) and default options. The handlers are resolved
// once into a ResolvedChain; every call then runs that chain against its own
// RequestContext.
//
// Creating a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/svc-client/pkg/svc"
//	  "github.com/fivetwenty-io/svc-client/pkg/svcclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := svcclient.New(api, svcclient.WithRegion("us-east-1"))
//	  if err != nil { log.Fatal(err) }
//
//	  out, err := cli.Call(ctx, "ListTables", map[string]any{"Limit": int64(10)})
//	  if err != nil { log.Fatal(err) }
//	  _ = out
//	}
//
// # Ordering handlers
//
// Within a step handlers keep registration order unless a HandlerSpec says
// otherwise. Before and After name other handlers (or whole steps); Front and
// Back pin a handler as early or as late as its constraints allow. When two
// handlers both ask for the front, the one registered last runs first; when
// two ask for the back, the one registered last runs last. Constraints on
// handlers that are not registered are ignored. Cycles and constraints that
// contradict step order fail resolution with a ChainResolutionError.
//
// # Pagination
//
// Client.Paginate returns a Paginator that re-runs the chain with the
// previous page's continuation tokens. The sequence ends when no token is
// returned or when the service returns the token it was just sent.
//
//	p, _ := cli.Paginate("ListTables", nil)
//	for page, err := range p.Pages(ctx) {
//	  if err != nil { return err }
//	  fmt.Println(page.Items())
//	}
package svc
