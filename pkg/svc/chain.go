package svc

import (
	"context"
	"errors"
	"fmt"
	"maps"
)

// ResolvedChain is an immutable, precomposed handler order. A chain is built
// once per plugin set and shared by every call made while it is current.
type ResolvedChain struct {
	specs    []HandlerSpec
	defaults Options
	entry    Next
}

func newResolvedChain(specs []HandlerSpec) *ResolvedChain {
	next := Next(func(context.Context, *RequestContext) error { return nil })

	for i := len(specs) - 1; i >= 0; i-- {
		handler, downstream := specs[i].Handler, next
		next = func(ctx context.Context, rc *RequestContext) error {
			return handler.Handle(ctx, rc, downstream)
		}
	}

	return &ResolvedChain{specs: specs, entry: next, defaults: Options{}}
}

// Len returns the number of handlers.
func (c *ResolvedChain) Len() int {
	return len(c.specs)
}

// Names returns handler names in execution order.
func (c *ResolvedChain) Names() []string {
	names := make([]string, len(c.specs))
	for i, spec := range c.specs {
		names[i] = spec.Name
	}

	return names
}

// StepNames returns the names of the handlers registered for step.
func (c *ResolvedChain) StepNames(step Step) []string {
	var names []string

	for _, spec := range c.specs {
		if spec.Step == step {
			names = append(names, spec.Name)
		}
	}

	return names
}

// Specs returns a copy of the ordered registrations.
func (c *ResolvedChain) Specs() []HandlerSpec {
	return append([]HandlerSpec(nil), c.specs...)
}

// Defaults returns the merged plugin default options.
func (c *ResolvedChain) Defaults() Options {
	return maps.Clone(c.defaults)
}

// Execute runs the chain against rc. Every exit path, including a panic in a
// handler, leaves the outcome in rc.Error, which is also returned.
func (c *ResolvedChain) Execute(ctx context.Context, rc *RequestContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = rc.Fail(fmt.Errorf("%w: %v", ErrHandlerPanic, r))
		}
	}()

	if err := c.entry(ctx, rc); err != nil && !errors.Is(rc.Error, err) {
		_ = rc.Fail(err)
	}

	return rc.Error
}
