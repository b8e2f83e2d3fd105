package wasmext

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/chainburn/chainburn/pkg/errs"
	"github.com/chainburn/chainburn/pkg/search"
	"github.com/chainburn/chainburn/pkg/variables"
)

// request is the JSON payload passed into the guest's search_execute.
type request struct {
	ID  string `json:"id"`
	Arg string `json:"arg"`
}

// response is the JSON payload the guest writes back from search_execute.
type response struct {
	Type  string `json:"type"` // "none", "numeric", "string", "version"
	Value string `json:"value,omitempty"`
}

// Extension implements search.Extension by sandboxing a compiled WASM
// module. The module must export "malloc", "free", and "search_execute"
// (an (ptr,len) -> packed (ptr<<32|len) function operating on JSON).
type Extension struct {
	name     string
	runtime  wazero.Runtime
	module   api.Module
	enforcer *CapabilityEnforcer

	memory api.Memory
	malloc api.Function
	free   api.Function
	search api.Function

	timeout time.Duration
}

// Load compiles wasmModule and instantiates it inside a fresh wazero
// runtime, wiring host functions gated by the manifest's capabilities.
func Load(ctx context.Context, m *Manifest, wasmModule []byte, timeout time.Duration) (*Extension, error) {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	enforcer := NewCapabilityEnforcer(m.RequiredCapabilities)

	runtime := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	builder := runtime.NewHostModuleBuilder("env")
	registerHostFunctions(builder, enforcer)
	if _, err := builder.Instantiate(ctx); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate host module: %w", err)
	}

	module, err := runtime.Instantiate(ctx, wasmModule)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASM module: %w", err)
	}

	ext := &Extension{
		name:     m.Name,
		runtime:  runtime,
		module:   module,
		enforcer: enforcer,
		memory:   module.Memory(),
		malloc:   module.ExportedFunction("malloc"),
		free:     module.ExportedFunction("free"),
		search:   module.ExportedFunction("search_execute"),
		timeout:  timeout,
	}
	if ext.memory == nil || ext.malloc == nil || ext.free == nil || ext.search == nil {
		module.Close(ctx)
		runtime.Close(ctx)
		return nil, fmt.Errorf("WASM module %s does not export the required malloc/free/search_execute surface", m.Name)
	}
	return ext, nil
}

func registerHostFunctions(builder wazero.HostModuleBuilder, enforcer *CapabilityEnforcer) {
	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, pathPtr, pathLen uint32) uint64 {
			pathBytes, ok := mod.Memory().Read(pathPtr, pathLen)
			if !ok {
				return packError("failed to read path from memory")
			}
			data, err := enforcer.ReadFile(string(pathBytes))
			if err != nil {
				return packError(err.Error())
			}
			return uint64(len(data))
		}).
		Export("read_file_len")

	builder.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, mod api.Module, keyPtr, keyLen uint32) uint64 {
			keyBytes, ok := mod.Memory().Read(keyPtr, keyLen)
			if !ok {
				return packError("failed to read env key from memory")
			}
			val, err := enforcer.ReadEnv(string(keyBytes))
			if err != nil {
				return packError(err.Error())
			}
			return uint64(len(val))
		}).
		Export("read_env_len")
}

func packError(msg string) uint64 {
	return (uint64(1) << 32) | uint64(len(msg))
}

// Name implements search.Extension.
func (e *Extension) Name() string { return e.name }

// Execute implements search.Extension by JSON-marshalling the decl's id/arg,
// calling the guest's search_execute, and decoding its response into a
// variables.Value.
func (e *Extension) Execute(ctx context.Context, d search.Decl, vars *variables.Store) (variables.Value, error) {
	evalCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reqJSON, err := json.Marshal(request{ID: d.ID, Arg: d.Arg})
	if err != nil {
		return variables.None, errs.NewExtensionFailed(err.Error()).WithResource(d.ID)
	}

	respJSON, err := e.call(evalCtx, reqJSON)
	if err != nil {
		return variables.None, errs.NewExtensionFailed(err.Error()).WithResource(d.ID)
	}

	var resp response
	if err := json.Unmarshal(respJSON, &resp); err != nil {
		return variables.None, errs.NewExtensionFailed("malformed response: " + err.Error()).WithResource(d.ID)
	}
	return decodeResponse(resp)
}

func decodeResponse(r response) (variables.Value, error) {
	switch r.Type {
	case "", "none":
		return variables.None, nil
	case "numeric":
		var n int64
		if _, err := fmt.Sscanf(r.Value, "%d", &n); err != nil {
			return variables.None, fmt.Errorf("invalid numeric response %q: %w", r.Value, err)
		}
		return variables.Numeric(n), nil
	case "string":
		return variables.String(r.Value), nil
	case "version":
		return variables.VersionValue(variables.ParseVersion(r.Value)), nil
	default:
		return variables.None, fmt.Errorf("unknown response type %q", r.Type)
	}
}

// call writes input into guest memory, invokes search_execute, and reads
// back its JSON output, using a (ptr<<32|len) packed return convention.
func (e *Extension) call(ctx context.Context, input []byte) ([]byte, error) {
	var inputPtr, inputLen uint32
	if len(input) > 0 {
		ptr, err := e.allocate(ctx, uint32(len(input)))
		if err != nil {
			return nil, err
		}
		defer e.deallocate(ctx, ptr)
		if !e.memory.Write(ptr, input) {
			return nil, fmt.Errorf("failed to write input to WASM memory")
		}
		inputPtr, inputLen = ptr, uint32(len(input))
	}

	results, err := e.search.Call(ctx, uint64(inputPtr), uint64(inputLen))
	if err != nil {
		return nil, fmt.Errorf("search_execute call failed: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("search_execute returned no results")
	}
	packed := results[0]
	outPtr, outLen := uint32(packed>>32), uint32(packed&0xFFFFFFFF)
	if outLen == 0 {
		return []byte(`{"type":"none"}`), nil
	}
	out, ok := e.memory.Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("failed to read output from WASM memory")
	}
	_ = e.deallocate(ctx, outPtr)
	return out, nil
}

func (e *Extension) allocate(ctx context.Context, size uint32) (uint32, error) {
	results, err := e.malloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, fmt.Errorf("malloc failed: %w", err)
	}
	if len(results) == 0 || uint32(results[0]) == 0 {
		return 0, fmt.Errorf("malloc returned null pointer")
	}
	return uint32(results[0]), nil
}

func (e *Extension) deallocate(ctx context.Context, ptr uint32) error {
	_, err := e.free.Call(ctx, uint64(ptr))
	return err
}

// Close releases the WASM module and runtime.
func (e *Extension) Close(ctx context.Context) error {
	if e.module != nil {
		if err := e.module.Close(ctx); err != nil {
			return err
		}
	}
	if e.runtime != nil {
		return e.runtime.Close(ctx)
	}
	return nil
}
