package manifest

import (
	"context"
	"encoding/json"
	"testing"
)

func TestSchemaRegistryRegisterAndGet(t *testing.T) {
	sr := NewSchemaRegistry()

	customSchema := `
#CustomType: {
	field1: string
	field2: int
}
`

	err := sr.RegisterSchema("custom", customSchema)
	if err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	schema, ok := sr.GetSchema("custom")
	if !ok {
		t.Fatal("expected to find custom schema")
	}
	if schema.Err() != nil {
		t.Errorf("schema has errors: %v", schema.Err())
	}
}

func TestSchemaRegistryBuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	for _, name := range []string{"bundle", "package", "search", "variable"} {
		t.Run(name, func(t *testing.T) {
			schema, ok := sr.GetSchema(name)
			if !ok {
				t.Fatalf("built-in schema %s not found", name)
			}
			if schema.Err() != nil {
				t.Errorf("built-in schema %s has errors: %v", name, schema.Err())
			}
		})
	}
}

func TestSchemaRegistryValidatePackage(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		pkg     PackageDecl
		wantErr bool
	}{
		{
			name: "valid exe package",
			pkg: PackageDecl{
				ID:       "AppExe",
				Kind:     "exe",
				Payloads: []PayloadDecl{{ID: "setup.exe", FilePath: "setup.exe"}},
				Detail:   json.RawMessage(`{"detection":"arp"}`),
			},
			wantErr: false,
		},
		{
			name: "invalid package - bad id",
			pkg: PackageDecl{
				ID:       "invalid id with spaces",
				Kind:     "exe",
				Payloads: []PayloadDecl{{ID: "setup.exe", FilePath: "setup.exe"}},
				Detail:   json.RawMessage(`{}`),
			},
			wantErr: true,
		},
		{
			name: "invalid package - bad kind",
			pkg: PackageDecl{
				ID:       "App",
				Kind:     "zip",
				Payloads: []PayloadDecl{{ID: "setup.exe", FilePath: "setup.exe"}},
				Detail:   json.RawMessage(`{}`),
			},
			wantErr: true,
		},
		{
			name: "invalid package - no payloads",
			pkg: PackageDecl{
				ID:     "App",
				Kind:   "exe",
				Detail: json.RawMessage(`{}`),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidatePackage(ctx, tt.pkg)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestSchemaRegistryValidateSearch(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		search  SearchDecl
		wantErr bool
	}{
		{
			name:    "valid registry search",
			search:  SearchDecl{ID: "Prior", Kind: "registry_value", Root: "HKLM", Key: "Software\\App", Value: "Version"},
			wantErr: false,
		},
		{
			name:    "invalid search - bad kind",
			search:  SearchDecl{ID: "Prior", Kind: "nonsense"},
			wantErr: true,
		},
		{
			name:    "invalid search - bad root",
			search:  SearchDecl{ID: "Prior", Kind: "registry_value", Root: "HKFOO"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateSearch(ctx, tt.search)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestSchemaRegistryValidateVariable(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		v       VariableDecl
		wantErr bool
	}{
		{name: "valid string variable", v: VariableDecl{Name: "InstallFolder", Type: "string", Value: "C:\\App"}, wantErr: false},
		{name: "invalid variable - bad name", v: VariableDecl{Name: "1BadName", Type: "string"}, wantErr: true},
		{name: "invalid variable - bad type", v: VariableDecl{Name: "X", Type: "object"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateVariable(ctx, tt.v)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestSchemaRegistryListSchemas(t *testing.T) {
	sr := NewSchemaRegistry()
	schemas := sr.ListSchemas()
	if len(schemas) < 4 {
		t.Errorf("expected at least 4 schemas, got %d", len(schemas))
	}

	expected := map[string]bool{"bundle": false, "package": false, "search": false, "variable": false}
	for _, schema := range schemas {
		if _, ok := expected[schema]; ok {
			expected[schema] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("expected built-in schema %s not found", name)
		}
	}
}

func TestSchemaRegistryInvalidSchema(t *testing.T) {
	sr := NewSchemaRegistry()
	err := sr.RegisterSchema("invalid", `this is not valid CUE syntax`)
	if err == nil {
		t.Error("expected error when registering invalid schema")
	}
}
