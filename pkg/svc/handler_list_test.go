package svc_test

import (
	"context"
	"testing"

	"github.com/fivetwenty-io/svc-client/pkg/svc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passThrough() svc.Handler {
	return svc.HandlerFunc(func(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
		return next(ctx, rc)
	})
}

func spec(step svc.Step, name string) svc.HandlerSpec {
	return svc.HandlerSpec{Step: step, Name: name, Handler: passThrough()}
}

func resolveNames(t *testing.T, specs ...svc.HandlerSpec) []string {
	t.Helper()

	list := svc.NewHandlerList()
	for _, s := range specs {
		list.Add(s)
	}

	chain, err := list.Resolve()
	require.NoError(t, err)

	return chain.Names()
}

func TestHandlerList_RegistrationOrderTies(t *testing.T) {
	t.Parallel()

	names := resolveNames(t,
		spec(svc.StepBuild, "c"),
		spec(svc.StepBuild, "a"),
		spec(svc.StepBuild, "b"),
	)

	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestHandlerList_StepOrder(t *testing.T) {
	t.Parallel()

	names := resolveNames(t,
		spec(svc.StepParse, "parse"),
		spec(svc.StepSend, "send"),
		spec(svc.StepSign, "sign"),
		spec(svc.StepRetry, "retry"),
		spec(svc.StepBuild, "build"),
		spec(svc.StepValidate, "validate"),
	)

	assert.Equal(t, []string{"validate", "build", "retry", "sign", "send", "parse"}, names)
}

func TestHandlerList_BeforeAfter(t *testing.T) {
	t.Parallel()

	a := spec(svc.StepBuild, "a")
	b := spec(svc.StepBuild, "b")
	b.Before = []string{"a"}
	c := spec(svc.StepBuild, "c")
	c.After = []string{"d"}
	d := spec(svc.StepBuild, "d")

	names := resolveNames(t, a, b, c, d)

	assert.Equal(t, []string{"b", "a", "d", "c"}, names)
}

func TestHandlerList_FrontMostRecentFirst(t *testing.T) {
	t.Parallel()

	first := spec(svc.StepBuild, "first-front")
	first.Position = svc.Front
	second := spec(svc.StepBuild, "second-front")
	second.Position = svc.Front

	names := resolveNames(t, spec(svc.StepBuild, "plain"), first, second)

	assert.Equal(t, []string{"second-front", "first-front", "plain"}, names)
}

func TestHandlerList_BackMostRecentLast(t *testing.T) {
	t.Parallel()

	first := spec(svc.StepBuild, "first-back")
	first.Position = svc.Back
	second := spec(svc.StepBuild, "second-back")
	second.Position = svc.Back

	names := resolveNames(t, first, second, spec(svc.StepBuild, "plain"))

	assert.Equal(t, []string{"plain", "first-back", "second-back"}, names)
}

func TestHandlerList_BackStaysLastWithDependents(t *testing.T) {
	t.Parallel()

	tail := spec(svc.StepBuild, "tail")
	tail.Position = svc.Back
	follower := spec(svc.StepBuild, "follower")
	follower.After = []string{"tail"}

	names := resolveNames(t,
		spec(svc.StepBuild, "first"),
		tail,
		follower,
		spec(svc.StepBuild, "last"),
	)

	assert.Equal(t, []string{"first", "last", "tail", "follower"}, names)
}

func TestHandlerList_BackRequiredByFront(t *testing.T) {
	t.Parallel()

	tail := spec(svc.StepBuild, "tail")
	tail.Position = svc.Back
	head := spec(svc.StepBuild, "head")
	head.Position = svc.Front
	head.After = []string{"tail"}

	names := resolveNames(t, spec(svc.StepBuild, "plain"), tail, head)

	assert.Equal(t, []string{"tail", "head", "plain"}, names)
}

func TestHandlerList_FrontRespectsEdges(t *testing.T) {
	t.Parallel()

	front := spec(svc.StepBuild, "front")
	front.Position = svc.Front
	front.After = []string{"setup"}

	names := resolveNames(t, spec(svc.StepBuild, "other"), spec(svc.StepBuild, "setup"), front)

	assert.Equal(t, []string{"setup", "front", "other"}, names)
}

func TestHandlerList_UnknownReferenceIgnored(t *testing.T) {
	t.Parallel()

	a := spec(svc.StepSign, "a")
	a.After = []string{"not-registered"}

	names := resolveNames(t, a, spec(svc.StepSign, "b"))

	assert.Equal(t, []string{"a", "b"}, names)
}

func TestHandlerList_CrossStepConstraints(t *testing.T) {
	t.Parallel()

	t.Run("agreeing constraint is accepted", func(t *testing.T) {
		t.Parallel()

		build := spec(svc.StepBuild, "build")
		build.Before = []string{"sign", string(svc.StepSend)}

		names := resolveNames(t, spec(svc.StepSign, "sign"), build)
		assert.Equal(t, []string{"build", "sign"}, names)
	})

	t.Run("contradicting constraint fails", func(t *testing.T) {
		t.Parallel()

		send := spec(svc.StepSend, "send")
		send.Before = []string{"build"}

		list := svc.NewHandlerList()
		list.Add(spec(svc.StepBuild, "build"))
		list.Add(send)

		chain, err := list.Resolve()
		require.Error(t, err)
		assert.Nil(t, chain)

		var resErr *svc.ChainResolutionError
		require.ErrorAs(t, err, &resErr)
		require.ErrorIs(t, err, svc.ErrStepOrder)
		assert.Contains(t, resErr.Handlers, "send")
	})
}

func TestHandlerList_Cycle(t *testing.T) {
	t.Parallel()

	a := spec(svc.StepBuild, "a")
	a.Before = []string{"b"}
	b := spec(svc.StepBuild, "b")
	b.Before = []string{"c"}
	c := spec(svc.StepBuild, "c")
	c.Before = []string{"a"}

	list := svc.NewHandlerList()
	list.Add(spec(svc.StepBuild, "unrelated"))
	list.Add(a)
	list.Add(b)
	list.Add(c)

	chain, err := list.Resolve()
	require.Error(t, err)
	assert.Nil(t, chain)
	require.ErrorIs(t, err, svc.ErrConstraintCycle)

	var resErr *svc.ChainResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, svc.StepBuild, resErr.Step)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, resErr.Handlers)
	assert.NotContains(t, resErr.Handlers, "unrelated")
}

func TestHandlerList_DuplicateName(t *testing.T) {
	t.Parallel()

	list := svc.NewHandlerList()
	list.Add(spec(svc.StepBuild, "dup"))
	list.Add(spec(svc.StepSign, "dup"))

	_, err := list.Resolve()
	require.ErrorIs(t, err, svc.ErrDuplicateHandler)
}

func TestHandlerList_InvalidSpecs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec svc.HandlerSpec
		want error
	}{
		{name: "unknown step", spec: svc.HandlerSpec{Step: "deliver", Name: "x", Handler: passThrough()}, want: svc.ErrUnknownStep},
		{name: "missing name", spec: svc.HandlerSpec{Step: svc.StepBuild, Handler: passThrough()}, want: svc.ErrInvalidHandler},
		{name: "missing handler", spec: svc.HandlerSpec{Step: svc.StepBuild, Name: "x"}, want: svc.ErrInvalidHandler},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			list := svc.NewHandlerList()
			list.Add(tt.spec)

			_, err := list.Resolve()
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHandlerList_Deterministic(t *testing.T) {
	t.Parallel()

	build := func() *svc.HandlerList {
		list := svc.NewHandlerList()

		for _, name := range []string{"e", "d", "c", "b", "a"} {
			s := spec(svc.StepBuild, name)
			if name == "c" {
				s.Position = svc.Front
			}

			if name == "a" {
				s.Before = []string{"d"}
			}

			list.Add(s)
		}

		return list
	}

	first, err := build().Resolve()
	require.NoError(t, err)

	for range 10 {
		again, err := build().Resolve()
		require.NoError(t, err)
		assert.Equal(t, first.Names(), again.Names())
	}

	assert.Equal(t, []string{"c", "e", "a", "d", "b"}, first.Names())
}

func TestHandlerList_ResolveStep(t *testing.T) {
	t.Parallel()

	list := svc.NewHandlerList()
	list.Add(spec(svc.StepBuild, "build"))
	list.Add(spec(svc.StepSign, "sign-a"))
	list.Add(spec(svc.StepSign, "sign-b"))

	specs, err := list.ResolveStep(svc.StepSign)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "sign-a", specs[0].Name)
	assert.Equal(t, "sign-b", specs[1].Name)
	assert.Equal(t, 3, list.Len())
}
