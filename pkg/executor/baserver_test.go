package executor

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/chainburn/chainburn/pkg/condition"
	"github.com/chainburn/chainburn/pkg/engine"
	"github.com/chainburn/chainburn/pkg/rpc"
	"github.com/chainburn/chainburn/pkg/variables"
)

func newTestBAServer(t *testing.T, chain []*engine.Package, ops Operations) *BAServer {
	t.Helper()
	vars := variables.NewStore(nil)
	if err := vars.SetString("ProductName", "Widget", variables.SetOptions{Overwrite: true}); err != nil {
		t.Fatalf("seed variable: %v", err)
	}
	if err := vars.SetNumeric("InstallCount", 3, variables.SetOptions{Overwrite: true}); err != nil {
		t.Fatalf("seed variable: %v", err)
	}
	return NewBAServer(nil, vars, condition.NewEvaluator(), chain, NewPump(), ops, nil, nil, zerolog.Nop())
}

func respString(t *testing.T, result []byte) string {
	t.Helper()
	s, err := rpc.NewBufferReader(result).ReadString()
	if err != nil {
		t.Fatalf("read result string: %v", err)
	}
	return s
}

func TestBAServerGetPackageCount(t *testing.T) {
	chain := []*engine.Package{{ID: "a"}, {ID: "b"}}
	s := newTestBAServer(t, chain, Operations{})

	hr, result := s.dispatch(context.Background(), rpc.MsgGetPackageCount, nil)
	if hr != rpc.SOK {
		t.Fatalf("hr = %s", hr)
	}
	n, err := rpc.NewBufferReader(result).ReadU32()
	if err != nil || n != 2 {
		t.Fatalf("count = %d, err %v, want 2", n, err)
	}
}

func TestBAServerVariableReads(t *testing.T) {
	s := newTestBAServer(t, nil, Operations{})

	params := rpc.NewBufferWriter()
	params.WriteString("ProductName")
	hr, result := s.dispatch(context.Background(), rpc.MsgGetVariableString, params.Bytes())
	if hr != rpc.SOK || respString(t, result) != "Widget" {
		t.Fatalf("GetVariableString = %s / %q", hr, result)
	}

	params = rpc.NewBufferWriter()
	params.WriteString("InstallCount")
	hr, result = s.dispatch(context.Background(), rpc.MsgGetVariableNumeric, params.Bytes())
	if hr != rpc.SOK {
		t.Fatalf("GetVariableNumeric hr = %s", hr)
	}
	if n, err := rpc.NewBufferReader(result).ReadU64(); err != nil || n != 3 {
		t.Fatalf("numeric = %d, err %v", n, err)
	}

	params = rpc.NewBufferWriter()
	params.WriteString("Missing")
	hr, _ = s.dispatch(context.Background(), rpc.MsgGetVariableString, params.Bytes())
	if hr != rpc.ENotFound {
		t.Fatalf("missing name hr = %s, want E_NOTFOUND", hr)
	}

	// A string read through the numeric getter that can't parse is a type
	// mismatch, not a not-found.
	params = rpc.NewBufferWriter()
	params.WriteString("ProductName")
	hr, _ = s.dispatch(context.Background(), rpc.MsgGetVariableNumeric, params.Bytes())
	if hr != rpc.ETypeMismatch {
		t.Fatalf("non-numeric read hr = %s, want DISP_E_TYPEMISMATCH", hr)
	}
}

func TestBAServerSetRefusedWhileEngineActive(t *testing.T) {
	s := newTestBAServer(t, nil, Operations{})
	s.vars.SetActive(true)
	defer s.vars.SetActive(false)

	params := rpc.NewBufferWriter()
	params.WriteString("ProductName")
	params.WriteString("Other")
	hr, _ := s.dispatch(context.Background(), rpc.MsgSetVariableString, params.Bytes())
	if hr != rpc.EInvalidState {
		t.Fatalf("hr = %s, want E_INVALIDSTATE while the engine is active", hr)
	}
}

func TestBAServerFormatAndEscape(t *testing.T) {
	s := newTestBAServer(t, nil, Operations{})

	params := rpc.NewBufferWriter()
	params.WriteString("name=[ProductName]")
	hr, result := s.dispatch(context.Background(), rpc.MsgFormatString, params.Bytes())
	if hr != rpc.SOK {
		t.Fatalf("FormatString hr = %s", hr)
	}
	if got := respString(t, result); got != "name=Widget" {
		t.Fatalf("FormatString = %q", got)
	}

	params = rpc.NewBufferWriter()
	params.WriteString("[x]")
	hr, result = s.dispatch(context.Background(), rpc.MsgEscapeString, params.Bytes())
	if hr != rpc.SOK || respString(t, result) != `[\[]x[\]]` {
		t.Fatalf("EscapeString = %s / %q", hr, result)
	}
}

func TestBAServerEvaluateCondition(t *testing.T) {
	s := newTestBAServer(t, nil, Operations{})

	params := rpc.NewBufferWriter()
	params.WriteString(`ProductName = "Widget" AND InstallCount < 5`)
	hr, result := s.dispatch(context.Background(), rpc.MsgEvaluateCondition, params.Bytes())
	if hr != rpc.SOK {
		t.Fatalf("hr = %s", hr)
	}
	if ok, err := rpc.NewBufferReader(result).ReadBool(); err != nil || !ok {
		t.Fatalf("condition = %v, err %v, want true", ok, err)
	}

	params = rpc.NewBufferWriter()
	params.WriteString("1 == 1")
	hr, _ = s.dispatch(context.Background(), rpc.MsgEvaluateCondition, params.Bytes())
	if hr != rpc.EInvalidData {
		t.Fatalf("bad expression hr = %s, want E_INVALIDDATA", hr)
	}
}

func TestBAServerCompareVersions(t *testing.T) {
	s := newTestBAServer(t, nil, Operations{})

	params := rpc.NewBufferWriter()
	params.WriteString("1.1")
	params.WriteString("1.1.0.0")
	hr, result := s.dispatch(context.Background(), rpc.MsgCompareVersions, params.Bytes())
	if hr != rpc.SOK {
		t.Fatalf("hr = %s", hr)
	}
	if cmp, err := rpc.NewBufferReader(result).ReadU32(); err != nil || int32(cmp) != 0 {
		t.Fatalf("cmp = %d, err %v, want 0: truncated versions compare equal", int32(cmp), err)
	}
}

func TestBAServerPostsCoreOperations(t *testing.T) {
	ran := make(chan MessageType, 1)
	ops := Operations{Detect: func(context.Context) error {
		ran <- MessageDetect
		return nil
	}}
	s := newTestBAServer(t, nil, ops)

	hr, _ := s.dispatch(context.Background(), rpc.MsgDetect, nil)
	if hr != rpc.SOK {
		t.Fatalf("Detect post hr = %s", hr)
	}
	select {
	case got := <-ran:
		if got != MessageDetect {
			t.Fatalf("ran %v, want Detect", got)
		}
	default:
		t.Fatal("posted Detect handler did not run")
	}

	// An operation the hosting role doesn't wire answers E_NOTIMPL.
	hr, _ = s.dispatch(context.Background(), rpc.MsgApply, nil)
	if hr != rpc.ENotImpl {
		t.Fatalf("unwired Apply hr = %s, want E_NOTIMPL", hr)
	}
}
