package manifest

import (
	"context"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages the CUE schemas used to validate a bundle manifest
// before it is decoded into Go structs.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with the built-in bundle
// schemas registered.
func NewSchemaRegistry() *SchemaRegistry {
	ctx := cuecontext.New()
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}
	sr.registerBuiltInSchemas()
	return sr
}

func (sr *SchemaRegistry) registerBuiltInSchemas() {
	sr.RegisterSchema("bundle", builtinBundleSchema)
	sr.RegisterSchema("package", builtinPackageSchema)
	sr.RegisterSchema("search", builtinSearchSchema)
	sr.RegisterSchema("variable", builtinVariableSchema)
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	// A schema source declares its shape as a definition (#Package etc.);
	// the data is constrained by that definition, not the enclosing struct.
	if iter, err := schema.Fields(cue.Definitions(true)); err == nil {
		for iter.Next() {
			if iter.Selector().IsDefinition() {
				schema = iter.Value()
				break
			}
		}
	}
	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

// Built-in schema definitions. These mirror BundleManifest/PackageDecl/
// SearchDecl/VariableDecl field-for-field so an invalid manifest is rejected
// at CUE-validation time rather than surfacing as a confusing decode error.

const builtinBundleSchema = `
#Bundle: {
	metadata: {
		name:            string
		version:         string
		upgrade_code?:   string
		manufacturer?:   string
		provider_key?:   string
		tag?:            string
		engine_version?: string
	}

	variables?: [...#Variable]
	computed?: [...{
		name:   string
		script: string
	}]
	searches?: [...#Search]
	packages:  [...#Package] | {[string]: #Package}

	related_bundles?: [...{
		code:     string
		relation: "detect" | "upgrade" | "addon" | "patch" | "dependentAddon" | "dependentPatch" | "update" | "chainPackage"
	}]
}
`

const builtinPackageSchema = `
#Package: {
	id:   string & =~"^[a-zA-Z0-9_.-]+$"
	kind: "exe" | "msi" | "msp" | "msu" | "bundle"

	permanent?:                  bool
	per_machine?:                bool
	cache_id?:                   string
	condition?:                  string
	can_affect_registration?:    bool
	rollback_boundary?:          string
	dependencies?:               [...string]

	payloads: [...{
		id:        string
		file_path: string
		hash?:     string
		size?:     int
		embedded?: bool
	}]

	detail: {...}
}
`

const builtinSearchSchema = `
#Search: {
	id:   string
	kind: "directory_exists" | "file_exists" | "file_version" | "file_path" |
		"registry_exists" | "registry_value" | "msi_component" | "msi_product" | "extension"

	condition?:    string
	variable?:     string
	win64?:        bool
	path?:         string
	min_version?:  string
	root?:         "HKCR" | "HKCU" | "HKLM" | "HKU"
	key?:          string
	value?:        string
	component_id?: string
	product_code?: string
	attribute?:    string
	extension?:    string
	arg?:          string
}
`

const builtinVariableSchema = `
#Variable: {
	name:        string & =~"^[a-zA-Z_][a-zA-Z0-9_]*$"
	type:        "numeric" | "string" | "formatted" | "version"
	value?:      string
	hidden?:     bool
	persisted?:  bool
}
`

// ValidatePackage validates a package declaration against the package schema.
func (sr *SchemaRegistry) ValidatePackage(ctx context.Context, pkg PackageDecl) error {
	return sr.ValidateAgainstSchema(ctx, "package", pkg)
}

// ValidateSearch validates a search declaration against the search schema.
func (sr *SchemaRegistry) ValidateSearch(ctx context.Context, search SearchDecl) error {
	return sr.ValidateAgainstSchema(ctx, "search", search)
}

// ValidateVariable validates a variable declaration against the variable schema.
func (sr *SchemaRegistry) ValidateVariable(ctx context.Context, v VariableDecl) error {
	return sr.ValidateAgainstSchema(ctx, "variable", v)
}
