package svc

import "context"

// Step is a named phase of the request pipeline.
type Step string

const (
	StepValidate Step = "validate"
	StepBuild    Step = "build"
	StepRetry    Step = "retry"
	StepSign     Step = "sign"
	StepSend     Step = "send"
	StepParse    Step = "parse"
)

// Steps lists the pipeline phases in execution order.
var Steps = []Step{StepValidate, StepBuild, StepRetry, StepSign, StepSend, StepParse}

func stepIndex(step Step) int {
	for i, s := range Steps {
		if s == step {
			return i
		}
	}

	return -1
}

// IsStep reports whether name is one of the pipeline steps.
func IsStep(name string) bool {
	return stepIndex(Step(name)) >= 0
}

// Next invokes the remainder of the chain.
type Next func(ctx context.Context, rc *RequestContext) error

// Handler is one unit of the pipeline. A handler that does not call next
// short-circuits every handler after it.
type Handler interface {
	Handle(ctx context.Context, rc *RequestContext, next Next) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, rc *RequestContext, next Next) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, rc *RequestContext, next Next) error {
	return f(ctx, rc, next)
}

// Position pins a handler within its step.
type Position int

const (
	Unpinned Position = iota
	Front
	Back
)

// HandlerSpec registers a handler against a step with ordering constraints.
// Before and After name other handlers or steps.
type HandlerSpec struct {
	Step     Step
	Name     string
	Handler  Handler
	Position Position
	Before   []string
	After    []string
}
