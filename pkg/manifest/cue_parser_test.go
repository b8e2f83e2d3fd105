package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const validManifest = `
metadata: {
	name:    "ExampleApp"
	version: "1.2.3.0"
}

variables: [
	{name: "InstallFolder", type: "formatted", value: "[ProgramFilesFolder]ExampleApp\\"},
]

searches: [
	{id: "PriorVersion", kind: "registry_value", root: "HKLM", key: "Software\\ExampleApp", value: "Version", variable: "PriorVersion"},
]

packages: [
	{
		id:   "ExampleAppExe"
		kind: "exe"
		payloads: [{id: "setup.exe", file_path: "setup.exe"}]
		detail: {
			detection:        "arp"
			install_arguments: "/quiet"
			protocol:         "burn"
		}
	},
]
`

func TestCUEParserParseInlineValidManifest(t *testing.T) {
	parser := NewCUEParser()
	pc, err := parser.ParseInline(context.Background(), validManifest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pc.Errors) > 0 {
		t.Fatalf("unexpected validation errors: %v", pc.Errors)
	}

	if pc.Bundle.Metadata.Name != "ExampleApp" {
		t.Errorf("expected metadata.name ExampleApp, got %s", pc.Bundle.Metadata.Name)
	}
	if len(pc.Bundle.Variables) != 1 || pc.Bundle.Variables[0].Name != "InstallFolder" {
		t.Fatalf("expected one InstallFolder variable, got %v", pc.Bundle.Variables)
	}
	if len(pc.Bundle.Searches) != 1 || pc.Bundle.Searches[0].ID != "PriorVersion" {
		t.Fatalf("expected one PriorVersion search, got %v", pc.Bundle.Searches)
	}
	if len(pc.Bundle.Packages) != 1 || pc.Bundle.Packages[0].Kind != "exe" {
		t.Fatalf("expected one exe package, got %v", pc.Bundle.Packages)
	}
}

func TestCUEParserParseInlineInvalidSyntax(t *testing.T) {
	parser := NewCUEParser()
	pc, err := parser.ParseInline(context.Background(), `metadata: { name: "x" invalid syntax here }`)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if len(pc.Errors) == 0 {
		t.Fatal("expected parse errors for invalid CUE syntax")
	}
}

func TestCUEParserParseInlineMissingPackages(t *testing.T) {
	parser := NewCUEParser()
	pc, err := parser.ParseInline(context.Background(), `metadata: { name: "x", version: "1.0" }`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pc.Errors) == 0 {
		t.Fatal("expected a validation error for a manifest with no packages")
	}
}

func TestCUEParserComputedVariables(t *testing.T) {
	manifest := validManifest + `
computed: [
	{name: "InstallArgs", script: "value = \"/quiet APPDIR=\" + variables[\"InstallFolder\"]"},
	{name: "FeatureCount", script: "value = 1 + 1"},
]
`
	parser := NewCUEParser()
	pc, err := parser.ParseInline(context.Background(), manifest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pc.Errors) > 0 {
		t.Fatalf("unexpected validation errors: %v", pc.Errors)
	}

	byName := make(map[string]VariableDecl)
	for _, v := range pc.Bundle.Variables {
		byName[v.Name] = v
	}
	args, ok := byName["InstallArgs"]
	if !ok || args.Type != "string" {
		t.Fatalf("expected a computed string InstallArgs, got %+v", byName)
	}
	if args.Value != `/quiet APPDIR=[ProgramFilesFolder]ExampleApp\` {
		t.Errorf("InstallArgs = %q", args.Value)
	}
	count, ok := byName["FeatureCount"]
	if !ok || count.Type != "numeric" || count.Value != "2" {
		t.Fatalf("expected a computed numeric FeatureCount=2, got %+v", count)
	}
	// Literal declarations come first; computed values land after them.
	if pc.Bundle.Variables[0].Name != "InstallFolder" {
		t.Errorf("expected InstallFolder first, got %s", pc.Bundle.Variables[0].Name)
	}
}

func TestCUEParserComputedScriptFailureIsDiagnostic(t *testing.T) {
	manifest := validManifest + `
computed: [
	{name: "Broken", script: "value = undefined_name"},
	{name: "NoValue", script: "x = 1"},
]
`
	parser := NewCUEParser()
	pc, err := parser.ParseInline(context.Background(), manifest)
	if err != nil {
		t.Fatalf("a failing computed script must not abort the parse: %v", err)
	}
	if len(pc.Errors) != 2 {
		t.Fatalf("expected one diagnostic per bad script, got %v", pc.Errors)
	}
	for _, v := range pc.Bundle.Variables {
		if v.Name == "Broken" || v.Name == "NoValue" {
			t.Errorf("failed computed script must not declare a variable: %+v", v)
		}
	}
}

func TestCUEParserParseFile(t *testing.T) {
	parser := NewCUEParser()
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "manifest.cue")

	if err := os.WriteFile(testFile, []byte(validManifest), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	pc, err := parser.Parse(context.Background(), []string{testFile})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pc.Errors) > 0 {
		t.Fatalf("unexpected validation errors: %v", pc.Errors)
	}
	if len(pc.Bundle.Packages) != 1 {
		t.Fatalf("expected 1 package, got %d", len(pc.Bundle.Packages))
	}
	if pc.SourceFiles[0] != testFile {
		t.Errorf("expected source file %s, got %v", testFile, pc.SourceFiles)
	}
}

func TestCUEParserToEnginePackages(t *testing.T) {
	parser := NewCUEParser()
	pc, err := parser.ParseInline(context.Background(), validManifest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pkgs, err := pc.ToEnginePackages()
	if err != nil {
		t.Fatalf("unexpected conversion error: %v", err)
	}
	if len(pkgs) != 1 {
		t.Fatalf("expected 1 engine package, got %d", len(pkgs))
	}
	if pkgs[0].Exe == nil {
		t.Fatal("expected exe detail to be populated")
	}
	if pkgs[0].Exe.InstallArguments != "/quiet" {
		t.Errorf("expected install arguments /quiet, got %s", pkgs[0].Exe.InstallArguments)
	}
}

func TestCUEParserToSearchDecls(t *testing.T) {
	parser := NewCUEParser()
	pc, err := parser.ParseInline(context.Background(), validManifest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decls, err := pc.ToSearchDecls()
	if err != nil {
		t.Fatalf("unexpected conversion error: %v", err)
	}
	if len(decls) != 1 {
		t.Fatalf("expected 1 search decl, got %d", len(decls))
	}
	if decls[0].Variable != "PriorVersion" {
		t.Errorf("expected variable PriorVersion, got %s", decls[0].Variable)
	}
}
