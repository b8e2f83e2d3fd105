package executor

import "testing"

func TestSelectRunModeDefaultsToNormal(t *testing.T) {
	if got := SelectRunMode([]string{"-quiet"}); got != RunModeNormal {
		t.Fatalf("got %v, want Normal", got)
	}
}

func TestSelectRunModeElevated(t *testing.T) {
	if got := SelectRunMode([]string{"-burn.elevated"}); got != RunModeElevated {
		t.Fatalf("got %v, want Elevated", got)
	}
}

func TestSelectRunModeEmbedded(t *testing.T) {
	if got := SelectRunMode([]string{"-burn.embedded=pipe,secret,123"}); got != RunModeEmbedded {
		t.Fatalf("got %v, want Embedded", got)
	}
}

func TestSelectRunModeRunOnce(t *testing.T) {
	if got := SelectRunMode([]string{"-burn.runonce"}); got != RunModeRunOnce {
		t.Fatalf("got %v, want RunOnce", got)
	}
}

func TestSelectRunModeUntrusted(t *testing.T) {
	if got := SelectRunMode([]string{"-burn.clean.room"}); got != RunModeUntrusted {
		t.Fatalf("got %v, want Untrusted", got)
	}
}

func TestParsePipeSpec(t *testing.T) {
	spec, err := ParsePipeSpec("-burn.embedded=BurnPipe.abc,s3cret,4242")
	if err != nil {
		t.Fatalf("ParsePipeSpec: %v", err)
	}
	if spec.PipeName != "BurnPipe.abc" || spec.Secret != "s3cret" || spec.ParentPID != 4242 {
		t.Fatalf("spec = %+v", spec)
	}

	if spec, err := ParsePipeSpec("-burn.elevated"); err != nil || spec != (PipeSpec{}) {
		t.Fatalf("bare switch: spec = %+v, err = %v", spec, err)
	}

	if _, err := ParsePipeSpec("-burn.embedded=only,two"); err == nil {
		t.Fatal("expected error for a two-part spec")
	}
	if _, err := ParsePipeSpec("-burn.embedded=p,s,notanumber"); err == nil {
		t.Fatal("expected error for a non-numeric pid")
	}
}

func TestCleanRoomRelaunchPath(t *testing.T) {
	path, ok := CleanRoomRelaunchPath([]string{"-clean-room=/var/cache/bundle.exe"})
	if !ok || path != "/var/cache/bundle.exe" {
		t.Fatalf("got (%q, %v), want (/var/cache/bundle.exe, true)", path, ok)
	}

	if _, ok := CleanRoomRelaunchPath([]string{"-quiet"}); ok {
		t.Fatal("expected no clean-room path")
	}
}
