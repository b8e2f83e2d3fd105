package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"
)

// CUEParser parses and validates a bundle's manifest.cue into a
// ParsedManifest, using the same load/unify/extract pipeline CUE-based
// config parsers use, retargeted at the bundle schema.
type CUEParser struct {
	ctx               *cue.Context
	schemaRegistry    *SchemaRegistry
	starlarkEvaluator *StarlarkEvaluator
	validator         *validator.Validate
}

// NewCUEParser creates a new CUE parser.
func NewCUEParser() *CUEParser {
	return &CUEParser{
		ctx:               cuecontext.New(),
		schemaRegistry:    NewSchemaRegistry(),
		starlarkEvaluator: NewStarlarkEvaluator(30 * time.Second),
		validator:         validator.New(),
	}
}

// Parse parses manifest CUE from the given sources (files or directories)
// and returns the decoded bundle manifest plus any validation diagnostics.
func (cp *CUEParser) Parse(ctx context.Context, sources []string) (*ParsedManifest, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	var cueValue cue.Value
	var sourceFiles []string
	var parseErrors []ValidationError

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		if info.IsDir() {
			val, files, errs := cp.loadDirectory(source)
			if len(errs) > 0 {
				parseErrors = append(parseErrors, errs...)
			}
			if val.Exists() {
				if cueValue.Exists() {
					cueValue = cueValue.Unify(val)
				} else {
					cueValue = val
				}
			}
			sourceFiles = append(sourceFiles, files...)
		} else {
			val, errs := cp.loadFile(source)
			if len(errs) > 0 {
				parseErrors = append(parseErrors, errs...)
			}
			if val.Exists() {
				if cueValue.Exists() {
					cueValue = cueValue.Unify(val)
				} else {
					cueValue = val
				}
			}
			sourceFiles = append(sourceFiles, source)
		}
	}

	if len(parseErrors) > 0 {
		return &ParsedManifest{SourceFiles: sourceFiles, ParsedAt: time.Now(), Errors: parseErrors}, nil
	}

	if err := cueValue.Err(); err != nil {
		parseErrors = append(parseErrors, cp.convertCUEErrors(err)...)
		return &ParsedManifest{SourceFiles: sourceFiles, ParsedAt: time.Now(), Errors: parseErrors}, nil
	}

	if cp.schemaRegistry != nil {
		if schema, ok := cp.schemaRegistry.GetSchema("bundle"); ok {
			unified := schema.LookupPath(cue.ParsePath("#Bundle")).Unify(cueValue)
			if err := unified.Validate(cue.Concrete(false)); err != nil {
				parseErrors = append(parseErrors, cp.convertCUEErrors(err)...)
			}
		}
	}

	parsed, err := cp.extractManifest(cueValue, sourceFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to extract manifest: %w", err)
	}
	parsed.Errors = append(parsed.Errors, parseErrors...)
	cp.evaluateComputed(ctx, parsed)
	return parsed, nil
}

// evaluateComputed runs each computed declaration's Starlark script and
// appends the resulting variable after the literal declarations, so a
// script may reference them. A failing script is a manifest diagnostic,
// not a parse failure, the same as a bad declaration in any other block.
func (cp *CUEParser) evaluateComputed(ctx context.Context, parsed *ParsedManifest) {
	if len(parsed.Bundle.Computed) == 0 {
		return
	}

	vars := make(map[string]interface{}, len(parsed.Bundle.Variables))
	for _, v := range parsed.Bundle.Variables {
		vars[v.Name] = v.Value
	}
	input := map[string]interface{}{
		"metadata": map[string]interface{}{
			"name":    parsed.Bundle.Metadata.Name,
			"version": parsed.Bundle.Metadata.Version,
		},
		"variables": vars,
	}

	for i, c := range parsed.Bundle.Computed {
		result, err := cp.starlarkEvaluator.Evaluate(ctx, c.Script, input)
		if err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{Path: fmt.Sprintf("computed[%d]", i), Message: err.Error(), Severity: "error"})
			continue
		}
		out, ok := result.Output["value"]
		if !ok {
			parsed.Errors = append(parsed.Errors, ValidationError{Path: fmt.Sprintf("computed[%d]", i), Message: "script did not assign a `value` global", Severity: "error"})
			continue
		}

		decl := VariableDecl{Name: c.Name}
		switch v := out.(type) {
		case string:
			decl.Type = "string"
			decl.Value = v
		case int64:
			decl.Type = "numeric"
			decl.Value = strconv.FormatInt(v, 10)
		case bool:
			decl.Type = "numeric"
			decl.Value = "0"
			if v {
				decl.Value = "1"
			}
		default:
			parsed.Errors = append(parsed.Errors, ValidationError{Path: fmt.Sprintf("computed[%d]", i), Message: fmt.Sprintf("`value` must be a string, int, or bool, got %T", out), Severity: "error"})
			continue
		}
		parsed.Bundle.Variables = append(parsed.Bundle.Variables, decl)
	}
}

// loadDirectory loads a directory as a CUE package.
func (cp *CUEParser) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	buildInstances := load.Instances([]string{dir}, nil)
	if len(buildInstances) == 0 {
		return cue.Value{}, nil, []ValidationError{{File: dir, Message: "no CUE files found", Severity: "error"}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(inst.Err)
	}

	val := cp.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, nil, cp.convertCUEErrors(err)
	}

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}

	return val, files, nil
}

// loadFile loads a single CUE file.
func (cp *CUEParser) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{File: path, Message: fmt.Sprintf("failed to read file: %v", err), Severity: "error"}}
	}

	val := cp.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, cp.convertCUEErrors(err)
	}

	return val, nil
}

// extractManifest decodes the unified CUE value's metadata/variables/
// searches/packages/related_bundles paths into a BundleManifest.
func (cp *CUEParser) extractManifest(val cue.Value, sourceFiles []string) (*ParsedManifest, error) {
	parsed := &ParsedManifest{SourceFiles: sourceFiles, ParsedAt: time.Now()}

	metaVal := val.LookupPath(cue.ParsePath("metadata"))
	if metaVal.Exists() {
		var meta Metadata
		if err := metaVal.Decode(&meta); err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{Path: "metadata", Message: fmt.Sprintf("failed to decode metadata: %v", err), Severity: "error"})
		} else {
			parsed.Bundle.Metadata = meta
		}
	} else {
		parsed.Errors = append(parsed.Errors, ValidationError{Path: "metadata", Message: "manifest is missing a metadata block", Severity: "error"})
	}

	if vars := val.LookupPath(cue.ParsePath("variables")); vars.Exists() {
		iter, err := vars.List()
		if err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{Path: "variables", Message: fmt.Sprintf("failed to list variables: %v", err), Severity: "error"})
		} else {
			idx := 0
			for iter.Next() {
				var v VariableDecl
				if err := iter.Value().Decode(&v); err != nil {
					parsed.Errors = append(parsed.Errors, ValidationError{Path: fmt.Sprintf("variables[%d]", idx), Message: err.Error(), Severity: "error"})
				} else {
					parsed.Bundle.Variables = append(parsed.Bundle.Variables, v)
				}
				idx++
			}
		}
	}

	if computed := val.LookupPath(cue.ParsePath("computed")); computed.Exists() {
		iter, err := computed.List()
		if err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{Path: "computed", Message: fmt.Sprintf("failed to list computed variables: %v", err), Severity: "error"})
		} else {
			idx := 0
			for iter.Next() {
				var c ComputedDecl
				if err := iter.Value().Decode(&c); err != nil {
					parsed.Errors = append(parsed.Errors, ValidationError{Path: fmt.Sprintf("computed[%d]", idx), Message: err.Error(), Severity: "error"})
				} else {
					parsed.Bundle.Computed = append(parsed.Bundle.Computed, c)
				}
				idx++
			}
		}
	}

	if searches := val.LookupPath(cue.ParsePath("searches")); searches.Exists() {
		iter, err := searches.List()
		if err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{Path: "searches", Message: fmt.Sprintf("failed to list searches: %v", err), Severity: "error"})
		} else {
			idx := 0
			for iter.Next() {
				var s SearchDecl
				if err := iter.Value().Decode(&s); err != nil {
					parsed.Errors = append(parsed.Errors, ValidationError{Path: fmt.Sprintf("searches[%d]", idx), Message: err.Error(), Severity: "error"})
				} else {
					parsed.Bundle.Searches = append(parsed.Bundle.Searches, s)
				}
				idx++
			}
		}
	}

	if relBundles := val.LookupPath(cue.ParsePath("related_bundles")); relBundles.Exists() {
		iter, err := relBundles.List()
		if err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{Path: "related_bundles", Message: fmt.Sprintf("failed to list related_bundles: %v", err), Severity: "error"})
		} else {
			idx := 0
			for iter.Next() {
				var rb RelatedBundleDecl
				if err := iter.Value().Decode(&rb); err != nil {
					parsed.Errors = append(parsed.Errors, ValidationError{Path: fmt.Sprintf("related_bundles[%d]", idx), Message: err.Error(), Severity: "error"})
				} else {
					parsed.Bundle.RelatedBundles = append(parsed.Bundle.RelatedBundles, rb)
				}
				idx++
			}
		}
	}

	packagesVal := val.LookupPath(cue.ParsePath("packages"))
	if !packagesVal.Exists() {
		parsed.Errors = append(parsed.Errors, ValidationError{Path: "packages", Message: "manifest declares no packages", Severity: "error"})
		return parsed, nil
	}

	switch packagesVal.Kind() {
	case cue.StructKind:
		iter, err := packagesVal.Fields(cue.All())
		if err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{Path: "packages", Message: fmt.Sprintf("failed to iterate packages: %v", err), Severity: "error"})
		} else {
			for iter.Next() {
				pkg, err := cp.extractPackage(iter.Selector().String(), iter.Value())
				if err != nil {
					parsed.Errors = append(parsed.Errors, ValidationError{Path: fmt.Sprintf("packages.%s", iter.Selector()), Message: err.Error(), Severity: "error"})
				} else {
					parsed.Bundle.Packages = append(parsed.Bundle.Packages, pkg)
				}
			}
		}
	case cue.ListKind:
		iter, err := packagesVal.List()
		if err != nil {
			parsed.Errors = append(parsed.Errors, ValidationError{Path: "packages", Message: fmt.Sprintf("failed to list packages: %v", err), Severity: "error"})
		} else {
			idx := 0
			for iter.Next() {
				pkg, err := cp.extractPackage("", iter.Value())
				if err != nil {
					parsed.Errors = append(parsed.Errors, ValidationError{Path: fmt.Sprintf("packages[%d]", idx), Message: err.Error(), Severity: "error"})
				} else {
					parsed.Bundle.Packages = append(parsed.Bundle.Packages, pkg)
				}
				idx++
			}
		}
	}

	return parsed, nil
}

// extractPackage decodes one package declaration from a CUE value.
func (cp *CUEParser) extractPackage(id string, val cue.Value) (PackageDecl, error) {
	var pkg PackageDecl
	if err := val.Decode(&pkg); err != nil {
		return pkg, fmt.Errorf("failed to decode package: %w", err)
	}
	if pkg.ID == "" && id != "" {
		pkg.ID = id
	}
	if err := cp.validator.Struct(pkg); err != nil {
		return pkg, fmt.Errorf("validation failed: %w", err)
	}
	return pkg, nil
}

// convertCUEErrors converts CUE errors to a ValidationError slice.
func (cp *CUEParser) convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	errs := errors.Errors(err)
	for _, e := range errs {
		pos := errors.Positions(e)
		var file string
		var line, column int

		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Path:     fmt.Sprintf("%d:%d", line, column),
			Message:  errors.Details(e, nil),
			Severity: "error",
		})
	}

	return validationErrors
}

// ParseInline parses inline CUE content, useful for unit tests and the
// `--set` command-line override surface.
func (cp *CUEParser) ParseInline(ctx context.Context, content string) (*ParsedManifest, error) {
	val := cp.ctx.CompileString(content)
	if err := val.Err(); err != nil {
		return &ParsedManifest{SourceFiles: []string{"inline"}, ParsedAt: time.Now(), Errors: cp.convertCUEErrors(err)}, nil
	}

	parsed, err := cp.extractManifest(val, []string{"inline"})
	if err != nil {
		return nil, err
	}
	cp.evaluateComputed(ctx, parsed)
	return parsed, nil
}

// ValidateWithSchema validates arbitrary data against a named schema.
func (cp *CUEParser) ValidateWithSchema(ctx context.Context, data interface{}, schemaName string) error {
	return cp.schemaRegistry.ValidateAgainstSchema(ctx, schemaName, data)
}

// GetSchemaRegistry returns the schema registry.
func (cp *CUEParser) GetSchemaRegistry() *SchemaRegistry {
	return cp.schemaRegistry
}

// ExtractValue extracts a specific path from a CUE configuration.
func (cp *CUEParser) ExtractValue(val cue.Value, path string) (interface{}, error) {
	v := val.LookupPath(cue.ParsePath(path))
	if !v.Exists() {
		return nil, fmt.Errorf("path %s not found", path)
	}

	var result interface{}
	if err := v.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode value at %s: %w", path, err)
	}

	return result, nil
}

// MergeValues merges two CUE values, used to layer a `--set` override on top
// of the parsed manifest before extraction.
func (cp *CUEParser) MergeValues(val1, val2 cue.Value) (cue.Value, error) {
	merged := val1.Unify(val2)
	if err := merged.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("failed to merge values: %w", err)
	}
	return merged, nil
}

// ExportJSON exports a CUE value to JSON, used by `chainburn manifest dump`.
func (cp *CUEParser) ExportJSON(val cue.Value) ([]byte, error) {
	var data interface{}
	if err := val.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}

	return json.MarshalIndent(data, "", "  ")
}

// LoadFromDirectory returns every .cue file under dir.
func (cp *CUEParser) LoadFromDirectory(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".cue") {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return files, nil
}
