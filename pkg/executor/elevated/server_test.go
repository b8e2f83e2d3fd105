package elevated

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/chainburn/chainburn/pkg/engine"
	"github.com/chainburn/chainburn/pkg/rpc"
)

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type fakeRunner struct {
	gotPath string
	gotArgs []string
	exit    int
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, path string, args []string) (int, error) {
	f.gotPath = path
	f.gotArgs = args
	return f.exit, f.err
}

func newTestServer(t *testing.T, runner CommandRunner) *Server {
	t.Helper()
	dir := t.TempDir()
	cache := &FileCacheStore{Root: filepath.Join(dir, "cache")}
	reg := &FileRegistrationStore{Root: filepath.Join(dir, "deps")}
	return NewServer(nil, runner, cache, reg, nil, zerolog.Nop())
}

func TestHandleExecuteExePackageSuccess(t *testing.T) {
	runner := &fakeRunner{exit: 0}
	s := newTestServer(t, runner)

	w := rpc.NewBufferWriter()
	w.WriteString(`C:\install.exe`)
	w.WriteString("/quiet /norestart")

	hr, result := s.handleExecuteExePackage(context.Background(), w.Bytes())
	if hr != rpc.SOK {
		t.Fatalf("expected SOK, got %v", hr)
	}
	if runner.gotPath != `C:\install.exe` {
		t.Errorf("unexpected path: %s", runner.gotPath)
	}
	wantArgs := []string{"/quiet", "/norestart"}
	if len(runner.gotArgs) != len(wantArgs) {
		t.Fatalf("unexpected args: %v", runner.gotArgs)
	}

	r := rpc.NewBufferReader(result)
	exitCode, err := r.ReadU32()
	if err != nil || exitCode != 0 {
		t.Errorf("unexpected exit code: %d, err %v", exitCode, err)
	}
}

func TestHandleExecuteExePackageRunFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("spawn failed")}
	s := newTestServer(t, runner)

	w := rpc.NewBufferWriter()
	w.WriteString("/bin/true")
	w.WriteString("")

	hr, _ := s.handleExecuteExePackage(context.Background(), w.Bytes())
	if hr != rpc.EFail {
		t.Errorf("expected EFail, got %v", hr)
	}
}

func TestHandleExecuteExePackageInvalidParams(t *testing.T) {
	s := newTestServer(t, &fakeRunner{})
	hr, _ := s.handleExecuteExePackage(context.Background(), []byte{0x01})
	if hr != rpc.EInvalidArg {
		t.Errorf("expected EInvalidArg, got %v", hr)
	}
}

func TestMsiexecArgsByAction(t *testing.T) {
	tests := []struct {
		name   string
		action engine.Action
		want   string
	}{
		{"install", engine.ActionInstall, "/i"},
		{"uninstall", engine.ActionUninstall, "/x"},
		{"repair", engine.ActionRepair, "/fa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := msiexecArgs(tt.action, `C:\pkg.msi`, "", "")
			if len(args) == 0 || args[0] != tt.want {
				t.Errorf("expected first arg %s, got %v", tt.want, args)
			}
		})
	}
}

func TestHandleCacheCopyAndVerify(t *testing.T) {
	s := newTestServer(t, &fakeRunner{})

	src := filepath.Join(t.TempDir(), "payload.bin")
	content := []byte("bundle payload contents")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	copyReq := rpc.NewBufferWriter()
	copyReq.WriteString(src)
	copyReq.WriteString("cache-id-1")
	copyReq.WriteString("payload-1")

	hr, result := s.handleCacheCopy(context.Background(), copyReq.Bytes())
	if hr != rpc.SOK {
		t.Fatalf("expected SOK, got %v", hr)
	}
	r := rpc.NewBufferReader(result)
	destPath, err := r.ReadString()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(destPath); err != nil {
		t.Fatalf("expected copied file to exist: %v", err)
	}

	verifyReq := rpc.NewBufferWriter()
	verifyReq.WriteString("cache-id-1")
	verifyReq.WriteString("payload-1")
	verifyReq.WriteString(sha256Hex(content))

	hr, result = s.handleCacheVerify(context.Background(), verifyReq.Bytes())
	if hr != rpc.SOK {
		t.Fatalf("expected SOK, got %v", hr)
	}
	vr := rpc.NewBufferReader(result)
	matched, err := vr.ReadBool()
	if err != nil || !matched {
		t.Errorf("expected hash match, got %v err %v", matched, err)
	}
}

func TestHandleDependencyRegisterAndUnregister(t *testing.T) {
	s := newTestServer(t, &fakeRunner{})

	regReq := rpc.NewBufferWriter()
	regReq.WriteString("dep-package-1")
	regReq.WriteString("bundle-a")

	if hr, _ := s.handleDependencyRegister(context.Background(), regReq.Bytes()); hr != rpc.SOK {
		t.Fatalf("expected SOK, got %v", hr)
	}

	dependents, err := s.reg.Dependents("dep-package-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(dependents) != 1 || dependents[0] != "bundle-a" {
		t.Errorf("unexpected dependents: %v", dependents)
	}

	unregReq := rpc.NewBufferWriter()
	unregReq.WriteString("dep-package-1")
	unregReq.WriteString("bundle-a")
	if hr, _ := s.handleDependencyUnregister(context.Background(), unregReq.Bytes()); hr != rpc.SOK {
		t.Fatalf("expected SOK, got %v", hr)
	}

	dependents, err = s.reg.Dependents("dep-package-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(dependents) != 0 {
		t.Errorf("expected no dependents after unregister, got %v", dependents)
	}
}

func TestHandleLaunchApprovedExeNoEngineDenied(t *testing.T) {
	s := newTestServer(t, &fakeRunner{})

	req := rpc.NewBufferWriter()
	req.WriteString("tool-key")
	req.WriteString("/usr/bin/tool")
	req.WriteU32(0)

	hr, _ := s.handleLaunchApprovedExe(context.Background(), req.Bytes())
	if hr != rpc.EAccessDenied {
		t.Errorf("expected EAccessDenied with no approval engine, got %v", hr)
	}
}

func TestDispatchUnknownMessageType(t *testing.T) {
	s := newTestServer(t, &fakeRunner{})
	hr, _ := s.dispatch(context.Background(), rpc.ElevatedMessageType(999), nil)
	if hr != rpc.ENotImpl {
		t.Errorf("expected ENotImpl, got %v", hr)
	}
}
