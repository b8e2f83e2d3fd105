package condition

import (
	"testing"

	"github.com/chainburn/chainburn/pkg/errs"
	"github.com/chainburn/chainburn/pkg/variables"
)

type mapSource map[string]variables.Value

func (m mapSource) Lookup(name string) (variables.Value, bool) {
	v, ok := m[name]
	return v, ok
}

func TestEvaluateScenario2(t *testing.T) {
	vars := mapSource{
		"PROP1":  variables.String("VAL1"),
		"PROP5":  variables.Numeric(5),
		"PROP17": variables.VersionValue(variables.ParseVersion("v1")),
	}
	e := NewEvaluator()

	ok, err := e.Evaluate(`PROP1 = "VAL1" AND PROP5 < 6 AND PROP17 = v1`, vars)
	if err != nil || !ok {
		t.Fatalf("expected true, got %v err=%v", ok, err)
	}

	ok, err = e.Evaluate(`PROP5 = "6"`, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected PROP5=5 = \"6\" to be false")
	}

	_, err = e.Evaluate(`1 == 1`, vars)
	if !errs.IsInvalidData(err) {
		t.Fatalf("expected InvalidData for '==', got %v", err)
	}
}

func TestTruthiness(t *testing.T) {
	vars := mapSource{
		"EMPTY": variables.String(""),
		"ZERO":  variables.Numeric(0),
		"ONE":   variables.Numeric(1),
	}
	e := NewEvaluator()
	cases := map[string]bool{
		"EMPTY": false,
		"ZERO":  false,
		"ONE":   true,
		"NOPE":  false, // unknown variable is None, falsy
	}
	for expr, want := range cases {
		got, err := e.Evaluate(expr, vars)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", expr, err)
		}
		if got != want {
			t.Errorf("%s: got %v want %v", expr, got, want)
		}
	}
}

func TestComparators(t *testing.T) {
	vars := mapSource{
		"A": variables.String("Hello World"),
		"B": variables.String("hello"),
	}
	e := NewEvaluator()

	ok, err := e.Evaluate(`A >< "World"`, vars)
	if err != nil || !ok {
		t.Fatalf("expected contains match, got %v err=%v", ok, err)
	}

	ok, err = e.Evaluate(`A ~<< "hello"`, vars)
	if err != nil || !ok {
		t.Fatalf("expected case-insensitive prefix match, got %v err=%v", ok, err)
	}

	ok, err = e.Evaluate(`A << "hello"`, vars)
	if err != nil || ok {
		t.Fatalf("expected case-sensitive prefix mismatch, got %v err=%v", ok, err)
	}
}

func TestPositionReporting(t *testing.T) {
	e := NewEvaluator()
	_, err := e.Evaluate(`A AND `, mapSource{})
	if !errs.IsInvalidData(err) {
		t.Fatalf("expected InvalidData, got %v", err)
	}
}

func TestNotAndParens(t *testing.T) {
	vars := mapSource{"X": variables.Numeric(0)}
	e := NewEvaluator()
	ok, err := e.Evaluate(`NOT (X = 1)`, vars)
	if err != nil || !ok {
		t.Fatalf("expected true, got %v err=%v", ok, err)
	}
}
