// Package manifest loads a bundle's manifest.cue into the package, search,
// and variable declarations the rest of the engine operates on.
//
// # Overview
//
// A bundle manifest declares the bundle's metadata, its initial variables,
// its detect-time searches, and the ordered list of packages that make up
// the chain. This package parses that CUE source, validates it against the
// built-in schemas, and decodes it into BundleManifest — from which
// ToEnginePackages and ToSearchDecls build the engine's and search runtime's
// own typed structures.
//
// # Components
//
// CUEParser loads CUE from files, directories, or inline strings, unifies
// multiple sources, validates against the bundle schema, and extracts a
// ParsedManifest.
//
// SchemaRegistry holds the built-in CUE schemas (#Bundle, #Package, #Search,
// #Variable) that a manifest must satisfy, and allows additional schemas to
// be registered for extension-specific validation.
//
// StarlarkEvaluator runs a manifest's computed-field Starlark snippets (for
// example, deriving an exe package's install arguments from a declared
// variable) under a timeout, with no filesystem or network access.
//
// # Security
//
// Starlark execution is sandboxed: no filesystem access, no network access,
// a default 30 second timeout, and print statements suppressed.
package manifest
