// Copyright 2025 The Taskcluster Taskgraph Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package expr is a small CEL-based expression evaluator, used for
// apply-jsone-style templating, task-context interpolation, and
// from-deps/run-using "when" conditionals. It builds a fresh cel.Env per
// call, with dynamically-typed variables and no schema-backed type
// checking, since there is no CRD or OpenAPI schema to check expressions
// against in this pipeline.
package expr

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// Expression is a compiled CEL program bound to a fixed set of variable
// names, reusable across many Eval calls with different values for those
// variables.
type Expression struct {
	Original string
	program  cel.Program
}

// Compile parses and type-checks expression against an environment
// declaring one `any`-typed (dyn) variable per name in varNames.
func Compile(expression string, varNames []string) (_ *Expression, err error) {
	start := time.Now()
	defer func() { observeDuration(compileDuration, start, err) }()

	opts := make([]cel.EnvOption, 0, len(varNames))
	for _, name := range varNames {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("expr: build environment: %w", err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("expr: compile %q: %w", expression, issues.Err())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("expr: program %q: %w", expression, err)
	}
	return &Expression{Original: expression, program: program}, nil
}

// Eval runs the compiled expression against vars, returning a plain Go
// value (string, int64, uint64, bool, float64, []byte, []any,
// map[string]any, or nil).
func (e *Expression) Eval(vars map[string]any) (_ any, err error) {
	start := time.Now()
	defer func() { observeDuration(evalDuration, start, err) }()

	out, _, evalErr := e.program.Eval(vars)
	if evalErr != nil {
		err = fmt.Errorf("expr: eval %q: %w", e.Original, evalErr)
		return nil, err
	}
	v, convErr := goNativeType(out)
	if convErr != nil {
		err = convErr
		return nil, err
	}
	return v, nil
}

// Eval compiles expression against vars' keys and evaluates it in one call,
// for call sites that don't reuse the same expression across many inputs.
func Eval(expression string, vars map[string]any) (any, error) {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	e, err := Compile(expression, names)
	if err != nil {
		return nil, err
	}
	return e.Eval(vars)
}

// EvalBool is Eval with the result coerced to bool, for run-using/from-deps
// "when" conditionals, returning an error if the expression doesn't
// evaluate to a boolean.
func EvalBool(expression string, vars map[string]any) (bool, error) {
	v, err := Eval(expression, vars)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expr: %q did not evaluate to a bool (got %T)", expression, v)
	}
	return b, nil
}

// goNativeType converts a CEL ref.Val into a plain Go value (string, int64,
// uint64, bool, float64, []byte, []any, map[string]any, or nil).
func goNativeType(v ref.Val) (any, error) {
	switch v.Type() {
	case types.BoolType:
		return v.Value().(bool), nil
	case types.IntType:
		return v.Value().(int64), nil
	case types.UintType:
		return v.Value().(uint64), nil
	case types.DoubleType:
		return v.Value().(float64), nil
	case types.StringType:
		return v.Value().(string), nil
	case types.BytesType:
		return v.Value().([]byte), nil
	case types.NullType:
		return nil, nil
	case types.ListType:
		lister, ok := v.(traits.Lister)
		if !ok {
			return nil, fmt.Errorf("expr: list value does not implement traits.Lister")
		}
		out := make([]any, 0, lister.Size().Value().(int64))
		it := lister.Iterator()
		for it.HasNext() == types.True {
			elem, err := goNativeType(it.Next())
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case types.MapType:
		mapper, ok := v.(traits.Mapper)
		if !ok {
			return nil, fmt.Errorf("expr: map value does not implement traits.Mapper")
		}
		out := map[string]any{}
		it := mapper.Iterator()
		for it.HasNext() == types.True {
			key := it.Next()
			ks, ok := key.Value().(string)
			if !ok {
				return nil, fmt.Errorf("expr: map key is not a string: %v", key)
			}
			converted, err := goNativeType(mapper.Get(key))
			if err != nil {
				return nil, err
			}
			out[ks] = converted
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expr: unsupported CEL result type %v", v.Type())
	}
}
