package search

import (
	"context"
	"testing"

	"github.com/chainburn/chainburn/pkg/condition"
	"github.com/chainburn/chainburn/pkg/variables"
)

func newTestStore() *variables.Store {
	return variables.NewStore(&variables.OSBuiltins{})
}

func TestExecuteAllDirectoryExists(t *testing.T) {
	files := OSFileProbe{}
	eng := NewEngine(files, NewMemRegistry(), NewMemMsiCatalog())
	vars := newTestStore()

	results := eng.ExecuteAll(context.Background(), []Decl{
		{ID: "tmp", Kind: KindDirectoryExists, Path: "/", Variable: "ROOT_EXISTS"},
	}, vars)

	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	n, err := vars.GetNumeric("ROOT_EXISTS")
	if err != nil || n != 1 {
		t.Fatalf("expected ROOT_EXISTS=1, got %d err=%v", n, err)
	}
}

func TestExecuteAllSkipsOnFalseCondition(t *testing.T) {
	eng := NewEngine(OSFileProbe{}, NewMemRegistry(), NewMemMsiCatalog())
	vars := newTestStore()
	_ = vars.SetNumeric("GATE", 0, variables.SetOptions{Overwrite: true})

	results := eng.ExecuteAll(context.Background(), []Decl{
		{ID: "gated", Kind: KindDirectoryExists, Path: "/", Condition: "GATE", Variable: "X"},
	}, vars)

	if !results[0].Skipped {
		t.Fatalf("expected search to be skipped")
	}
	if vars.Has("X") {
		t.Fatalf("expected X to remain unset when condition is false")
	}
}

func TestExecuteAllContinuesPastFailure(t *testing.T) {
	eng := NewEngine(OSFileProbe{}, NewMemRegistry(), NewMemMsiCatalog())
	vars := newTestStore()

	results := eng.ExecuteAll(context.Background(), []Decl{
		{ID: "broken", Kind: KindExtension, Extension: "nope", Variable: "X"},
		{ID: "ok", Kind: KindDirectoryExists, Path: "/", Variable: "OK"},
	}, vars)

	if results[0].Err == nil {
		t.Fatalf("expected the first search to fail")
	}
	if results[1].Err != nil {
		t.Fatalf("expected the second search to still run: %v", results[1].Err)
	}
	if !vars.Has("OK") {
		t.Fatalf("expected OK to be set despite the prior failure")
	}
}

func TestExecuteAllExistsMissWritesNumericZero(t *testing.T) {
	eng := NewEngine(OSFileProbe{}, NewMemRegistry(), NewMemMsiCatalog())
	vars := newTestStore()

	results := eng.ExecuteAll(context.Background(), []Decl{
		{ID: "gone", Kind: KindFileExists, Path: "/definitely/not/here", Variable: "FOUND"},
	}, vars)

	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	val, ok := vars.Lookup("FOUND")
	if !ok || val.Type != variables.TypeNumeric || val.Numeric != 0 {
		t.Fatalf("expected Numeric 0, got %+v (ok=%v)", val, ok)
	}
	// A bare atom over the result must be false, not truthy text "0".
	eval := condition.NewEvaluator()
	got, err := eval.Evaluate("FOUND", conditionSource{vars})
	if err != nil || got {
		t.Fatalf("bare FOUND evaluated (%v, %v), want false", got, err)
	}
}

func TestExecuteAllMissingRegistryValueLeavesVariableUnchanged(t *testing.T) {
	eng := NewEngine(OSFileProbe{}, NewMemRegistry(), NewMemMsiCatalog())
	vars := newTestStore()
	_ = vars.SetString("INSTALLDIR", "prior", variables.SetOptions{Overwrite: true})

	results := eng.ExecuteAll(context.Background(), []Decl{
		{ID: "missing", Kind: KindRegistryValue, Root: RootLocalMachine, Key: `SOFTWARE\Nope`, Value: "X", Variable: "INSTALLDIR"},
	}, vars)

	if results[0].Err != nil {
		t.Fatalf("a probe miss must not be an error, got %v", results[0].Err)
	}
	if s, _ := vars.GetString("INSTALLDIR"); s != "prior" {
		t.Fatalf("INSTALLDIR = %q, want the prior value untouched", s)
	}
}

func TestExecuteAllMissingFilePathLeavesVariableUnchanged(t *testing.T) {
	eng := NewEngine(OSFileProbe{}, NewMemRegistry(), NewMemMsiCatalog())
	vars := newTestStore()

	results := eng.ExecuteAll(context.Background(), []Decl{
		{ID: "path", Kind: KindFilePath, Path: "/definitely/not/here", Variable: "TOOLPATH"},
		{ID: "ver", Kind: KindFileVersion, Path: "/definitely/not/here", Variable: "TOOLVER"},
		{ID: "comp", Kind: KindMsiComponent, ComponentID: "{NOPE}", Variable: "COMPDIR"},
	}, vars)

	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("search %s: a probe miss must not be an error, got %v", r.ID, r.Err)
		}
	}
	for _, name := range []string{"TOOLPATH", "TOOLVER", "COMPDIR"} {
		if vars.Has(name) {
			t.Fatalf("expected %s to remain unset on a probe miss", name)
		}
	}
}

func TestExecuteAllRegistryValue(t *testing.T) {
	reg := NewMemRegistry()
	reg.Seed(RootLocalMachine, `SOFTWARE\Chainburn`, "InstallDir", variables.String(`C:\Chainburn`))
	eng := NewEngine(OSFileProbe{}, reg, NewMemMsiCatalog())
	vars := newTestStore()

	results := eng.ExecuteAll(context.Background(), []Decl{
		{ID: "dir", Kind: KindRegistryValue, Root: RootLocalMachine, Key: `SOFTWARE\Chainburn`, Value: "InstallDir", Variable: "INSTALLDIR"},
	}, vars)

	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	s, _ := vars.GetString("INSTALLDIR")
	if s != `C:\Chainburn` {
		t.Fatalf("got %q", s)
	}
}

func TestExecuteAllMsiProduct(t *testing.T) {
	msi := NewMemMsiCatalog()
	msi.SeedProduct("{PRODUCT-CODE}", "version", variables.VersionValue(variables.ParseVersion("v3.2.1")))
	eng := NewEngine(OSFileProbe{}, NewMemRegistry(), msi)
	vars := newTestStore()

	results := eng.ExecuteAll(context.Background(), []Decl{
		{ID: "prod", Kind: KindMsiProduct, ProductCode: "{PRODUCT-CODE}", Attribute: "version", Variable: "PRODVER"},
	}, vars)

	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	v, err := vars.GetVersion("PRODVER")
	if err != nil || v.Text() != "3.2.1" {
		t.Fatalf("got %v err=%v", v, err)
	}
}

func TestExecuteAllExtensionNotRegistered(t *testing.T) {
	eng := NewEngine(OSFileProbe{}, NewMemRegistry(), NewMemMsiCatalog())
	vars := newTestStore()

	results := eng.ExecuteAll(context.Background(), []Decl{
		{ID: "ext", Kind: KindExtension, Extension: "nope"},
	}, vars)

	if results[0].Err == nil {
		t.Fatalf("expected error for unregistered extension")
	}
}
