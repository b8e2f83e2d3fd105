// Package starlarkext implements an ExtensionSearch backend that runs a
// sandboxed Starlark script per decl, grounded on the same go.starlark.net
// execution pattern the manifest loader uses to evaluate computed-variable scripts:
// a fresh Thread per call, a timeout race via goroutine + channel, and
// explicit Go<->Starlark value conversion at the boundary.
package starlarkext

import (
	"context"
	"fmt"
	"time"

	"go.starlark.net/starlark"

	"github.com/chainburn/chainburn/pkg/errs"
	"github.com/chainburn/chainburn/pkg/search"
	"github.com/chainburn/chainburn/pkg/variables"
)

// Extension runs one named Starlark script against every ExtensionSearch
// decl that references it by name.
type Extension struct {
	ScriptName string
	Script     string
	Timeout    time.Duration
}

// New builds a Starlark-backed extension. A zero Timeout defaults to 30s.
func New(name, script string, timeout time.Duration) *Extension {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Extension{ScriptName: name, Script: script, Timeout: timeout}
}

func (e *Extension) Name() string { return e.ScriptName }

// Execute runs the script with "arg" bound to d.Arg and a "get_variable"
// builtin the script can call to read the in-flight variable store. The
// script must set a global named "result" (string, int, bool, or None); that
// becomes the search's resulting Value.
func (e *Extension) Execute(ctx context.Context, d search.Decl, vars *variables.Store) (variables.Value, error) {
	evalCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	type outcome struct {
		val variables.Value
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		v, err := e.run(d, vars)
		done <- outcome{v, err}
	}()

	select {
	case <-evalCtx.Done():
		return variables.None, errs.NewExtensionFailed(fmt.Sprintf("extension %s timed out after %v", e.ScriptName, e.Timeout)).WithResource(d.ID)
	case o := <-done:
		return o.val, o.err
	}
}

func (e *Extension) run(d search.Decl, vars *variables.Store) (variables.Value, error) {
	thread := &starlark.Thread{
		Name:  "chainburn-search",
		Print: func(*starlark.Thread, string) {},
	}

	predeclared := starlark.StringDict{
		"arg": starlark.String(d.Arg),
		"get_variable": starlark.NewBuiltin("get_variable", func(
			_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple,
		) (starlark.Value, error) {
			var name string
			if err := starlark.UnpackArgs("get_variable", args, kwargs, "name", &name); err != nil {
				return nil, err
			}
			text, err := vars.GetString(name)
			if err != nil {
				return starlark.None, nil
			}
			return starlark.String(text), nil
		}),
	}

	globals, err := starlark.ExecFile(thread, d.ID+".star", e.Script, predeclared)
	if err != nil {
		return variables.None, errs.NewExtensionFailed(err.Error()).WithResource(d.ID)
	}

	result, ok := globals["result"]
	if !ok {
		return variables.None, nil
	}
	return fromStarlark(result)
}

func fromStarlark(v starlark.Value) (variables.Value, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return variables.None, nil
	case starlark.Bool:
		if bool(val) {
			return variables.Numeric(1), nil
		}
		return variables.Numeric(0), nil
	case starlark.Int:
		n, ok := val.Int64()
		if !ok {
			return variables.None, fmt.Errorf("result integer out of range")
		}
		return variables.Numeric(n), nil
	case starlark.String:
		return variables.String(string(val)), nil
	default:
		return variables.None, fmt.Errorf("unsupported result type: %s", v.Type())
	}
}
