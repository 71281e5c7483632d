package plugins

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/fivetwenty-io/svc-client/internal/protocol"
	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Validation checks call parameters against the operation's input shape
// before anything is built. Disabled by validate_params=false.
func Validation() svc.Plugin {
	return &svc.PluginSpec{
		PluginName: NameValidation,
		Handlers: []svc.HandlerSpec{{
			Step:    svc.StepValidate,
			Name:    HandlerValidate,
			Handler: svc.HandlerFunc(validateParams),
		}},
	}
}

func validateParams(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	if !rc.Options.Bool(svc.OptValidateParams, true) || rc.Operation == nil {
		return next(ctx, rc)
	}

	if problems := ValidateParams(rc.Operation.Input, rc.Params); len(problems) > 0 {
		return &svc.ClientValidationError{Operation: rc.Operation.Name, Problems: problems, Err: svc.ErrInvalidParameters}
	}

	return next(ctx, rc)
}

// ValidateParams returns one problem per parameter that does not fit shape.
func ValidateParams(shape *svc.Shape, params map[string]any) []string {
	if shape == nil {
		return nil
	}

	v := &validator{}
	v.structure("params", shape, params)

	return v.problems
}

type validator struct {
	problems []string
}

func (v *validator) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) structure(path string, shape *svc.Shape, params map[string]any) {
	for _, m := range shape.Members {
		value, ok := params[m.Name]
		if !ok || value == nil {
			if m.Required {
				v.addf("missing required parameter %s.%s", path, m.Name)
			}

			continue
		}

		v.value(path+"."+m.Name, m.Shape, value)
	}

	for name := range params {
		if shape.MemberByName(name) == nil {
			v.addf("unexpected parameter %s.%s", path, name)
		}
	}
}

func (v *validator) value(path string, shape *svc.Shape, value any) {
	if shape == nil {
		return
	}

	switch shape.Type {
	case svc.TypeStructure:
		m, ok := protocol.ToMap(value)
		if !ok {
			v.mismatch(path, shape, value)

			return
		}

		v.structure(path, shape, m)
	case svc.TypeList:
		list, ok := protocol.ToList(value)
		if !ok {
			v.mismatch(path, shape, value)

			return
		}

		if shape.Member == nil {
			return
		}

		for i, item := range list {
			v.value(path+"["+strconv.Itoa(i)+"]", shape.Member.Shape, item)
		}
	case svc.TypeMap:
		m, ok := protocol.ToMap(value)
		if !ok {
			v.mismatch(path, shape, value)

			return
		}

		if shape.Value == nil {
			return
		}

		for _, k := range protocol.SortedKeys(m) {
			v.value(path+"["+strconv.Quote(k)+"]", shape.Value.Shape, m[k])
		}
	default:
		if !scalarFits(shape, value) {
			v.mismatch(path, shape, value)
		}
	}
}

func (v *validator) mismatch(path string, shape *svc.Shape, value any) {
	v.addf("expected %s to be a %s, got %T", path, shape.Type, value)
}

func scalarFits(shape *svc.Shape, value any) bool {
	var ok bool

	switch shape.Type {
	case svc.TypeString:
		_, ok = value.(string)
	case svc.TypeInteger, svc.TypeLong:
		_, ok = protocol.ToInt64(value)
	case svc.TypeFloat, svc.TypeDouble:
		_, ok = protocol.ToFloat64(value)
	case svc.TypeBoolean:
		_, ok = value.(bool)
	case svc.TypeTimestamp:
		_, ok = protocol.ToTime(value)
	case svc.TypeBlob:
		if _, ok = protocol.ToBytes(value); !ok && shape.Streaming {
			_, ok = value.(io.ReadSeeker)
		}
	default:
		ok = true
	}

	return ok
}
