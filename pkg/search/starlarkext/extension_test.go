package starlarkext

import (
	"context"
	"testing"

	"github.com/chainburn/chainburn/pkg/search"
	"github.com/chainburn/chainburn/pkg/variables"
)

func TestExtensionReturnsResult(t *testing.T) {
	ext := New("custom-probe", `result = "found-" + arg`, 0)
	vars := variables.NewStore(&variables.OSBuiltins{})

	v, err := ext.Execute(context.Background(), search.Decl{ID: "d1", Arg: "thing"}, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.AsString() != "found-thing" {
		t.Fatalf("got %q", v.AsString())
	}
}

func TestExtensionReadsVariable(t *testing.T) {
	ext := New("reader", `result = get_variable("GREETING")`, 0)
	vars := variables.NewStore(&variables.OSBuiltins{})
	_ = vars.SetString("GREETING", "hello", variables.SetOptions{Overwrite: true})

	v, err := ext.Execute(context.Background(), search.Decl{ID: "d2"}, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.AsString() != "hello" {
		t.Fatalf("got %q", v.AsString())
	}
}

func TestExtensionMissingResultIsNone(t *testing.T) {
	ext := New("noop", `x = 1`, 0)
	vars := variables.NewStore(&variables.OSBuiltins{})

	v, err := ext.Execute(context.Background(), search.Decl{ID: "d3"}, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Type != variables.TypeNone {
		t.Fatalf("expected None, got %v", v.Type)
	}
}
