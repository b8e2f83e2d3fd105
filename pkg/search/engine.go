package search

import (
	"context"

	"github.com/chainburn/chainburn/pkg/condition"
	"github.com/chainburn/chainburn/pkg/errs"
	"github.com/chainburn/chainburn/pkg/variables"
)

// FileProbe resolves filesystem-backed searches. A real implementation
// walks the local disk; tests substitute a fake.
type FileProbe interface {
	Exists(path string) (bool, error)
	Version(path string) (variables.Version, error)
}

// RegistryProbe resolves registry-backed searches against whichever
// key-value store backs the engine's registry shim on this platform.
type RegistryProbe interface {
	Exists(root RegistryRoot, key string, win64 bool) (bool, error)
	Value(root RegistryRoot, key, value string, win64 bool) (variables.Value, error)
}

// MsiProbe resolves MSI component/product detection.
type MsiProbe interface {
	ComponentPath(componentID string) (string, error)
	ProductAttribute(productCode, attribute string) (variables.Value, error)
}

// Extension executes an ExtensionSearch decl and returns its result value.
// ExtensionSearch is the escape hatch for anything the built-in kinds can't
// express (§4.3) — implementations live in pkg/search/wasmext (WASM
// modules) and pkg/search/starlarkext (Starlark scripts).
type Extension interface {
	Name() string
	Execute(ctx context.Context, d Decl, vars *variables.Store) (variables.Value, error)
}

// Engine runs declared searches against the probes and extensions it was
// constructed with.
type Engine struct {
	Files       FileProbe
	Registry    RegistryProbe
	Msi         MsiProbe
	Extensions  map[string]Extension
	Evaluator   *condition.Evaluator
}

// NewEngine builds a search Engine; any probe may be nil if the caller knows
// no declared search will need it (e.g. a unit test exercising only registry
// searches).
func NewEngine(files FileProbe, reg RegistryProbe, msi MsiProbe) *Engine {
	return &Engine{
		Files:      files,
		Registry:   reg,
		Msi:        msi,
		Extensions: make(map[string]Extension),
		Evaluator:  condition.NewEvaluator(),
	}
}

// RegisterExtension makes an extension available to ExtensionSearch decls
// whose Extension field names it.
func (e *Engine) RegisterExtension(ext Extension) {
	e.Extensions[ext.Name()] = ext
}

// conditionSource adapts a *variables.Store to condition.VariableSource.
type conditionSource struct{ store *variables.Store }

func (c conditionSource) Lookup(name string) (variables.Value, bool) { return c.store.Lookup(name) }

// ExecuteAll runs every decl in declared order against vars. Per §4.3:
// a false condition skips the search without touching its variable; any
// other search failure is logged by the caller (via the returned Result) and
// execution continues to the next decl — a single bad search never aborts
// detect.
func (e *Engine) ExecuteAll(ctx context.Context, decls []Decl, vars *variables.Store) []Result {
	results := make([]Result, 0, len(decls))
	for _, d := range decls {
		results = append(results, e.executeOne(ctx, d, vars))
	}
	return results
}

func (e *Engine) executeOne(ctx context.Context, d Decl, vars *variables.Store) Result {
	if d.Condition != "" {
		ok, err := e.Evaluator.Evaluate(d.Condition, conditionSource{vars})
		if err != nil {
			return Result{ID: d.ID, Err: err}
		}
		if !ok {
			return Result{ID: d.ID, Skipped: true}
		}
	}

	val, err := e.run(ctx, d, vars)
	if errs.IsKind(err, errs.KindNotFound) {
		// A probe miss is not a failure: the search completes and its
		// variable stays unchanged (§4.3). Exists-kind searches never
		// take this path — a missing target is their 0 result.
		return Result{ID: d.ID}
	}
	if err != nil {
		return Result{ID: d.ID, Err: err}
	}
	if d.Variable == "" {
		return Result{ID: d.ID}
	}
	if err := writeResult(vars, d.Variable, val); err != nil {
		return Result{ID: d.ID, Err: err}
	}
	return Result{ID: d.ID}
}

// writeResult stores a search's value under its declared name with the
// value's own type, so an Exists-kind 0/1 lands as Numeric and a version
// probe as Version rather than everything flattening to formatted text.
func writeResult(vars *variables.Store, name string, val variables.Value) error {
	opts := variables.SetOptions{Overwrite: true, Internal: true}
	switch val.Type {
	case variables.TypeNone:
		return nil
	case variables.TypeNumeric:
		return vars.SetNumeric(name, val.Numeric, opts)
	case variables.TypeVersion:
		return vars.SetVersion(name, val.Version, opts)
	case variables.TypeFormatted:
		return vars.SetFormatted(name, val.Text, opts)
	default:
		return vars.SetString(name, val.Text, opts)
	}
}

func (e *Engine) run(ctx context.Context, d Decl, vars *variables.Store) (variables.Value, error) {
	switch d.Kind {
	case KindDirectoryExists, KindFileExists:
		ok, err := e.Files.Exists(d.Path)
		if err != nil {
			return variables.None, err
		}
		return boolValue(ok), nil
	case KindFileVersion:
		v, err := e.Files.Version(d.Path)
		if err != nil {
			return variables.None, err
		}
		if d.MinVersion != "" && v.Compare(variables.ParseVersion(d.MinVersion)) < 0 {
			return variables.None, errs.NewNotFound("file version below minimum: " + d.Path).WithResource(d.Path)
		}
		return variables.VersionValue(v), nil
	case KindFilePath:
		ok, err := e.Files.Exists(d.Path)
		if err != nil {
			return variables.None, err
		}
		if !ok {
			return variables.None, errs.NewNotFound("file not found: " + d.Path).WithResource(d.Path)
		}
		return variables.String(d.Path), nil
	case KindRegistryExists:
		ok, err := e.Registry.Exists(d.Root, d.Key, d.Win64)
		if err != nil {
			return variables.None, err
		}
		return boolValue(ok), nil
	case KindRegistryValue:
		return e.Registry.Value(d.Root, d.Key, d.Value, d.Win64)
	case KindMsiComponent:
		path, err := e.Msi.ComponentPath(d.ComponentID)
		if err != nil {
			return variables.None, err
		}
		if path == "" {
			return variables.None, errs.NewNotFound("msi component not registered: " + d.ComponentID).WithResource(d.ComponentID)
		}
		return variables.String(path), nil
	case KindMsiProduct:
		return e.Msi.ProductAttribute(d.ProductCode, d.Attribute)
	case KindExtension:
		ext, ok := e.Extensions[d.Extension]
		if !ok {
			return variables.None, extensionNotFound(d.Extension)
		}
		return ext.Execute(ctx, d, vars)
	default:
		return variables.None, unknownKind(d.Kind)
	}
}

func boolValue(ok bool) variables.Value {
	if ok {
		return variables.Numeric(1)
	}
	return variables.Numeric(0)
}
